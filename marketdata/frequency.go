// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package marketdata

import (
	"math"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/marketdata/db"
)

// Frequency of trading. The zero value is the frequency of the data itself,
// typically daily.
type Frequency string

const (
	Daily     Frequency = ""
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Annual    Frequency = "annual"
)

// ParseFrequency validates the string representation of a Frequency.
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(s); f {
	case Daily, Weekly, Monthly, Quarterly, Annual:
		return f, nil
	}
	if s == "daily" {
		return Daily, nil
	}
	return Daily, errors.Reason("unsupported trading frequency: '%s'", s)
}

// periodStart is the first date of the period containing d.
func (f Frequency) periodStart(d db.Date) db.Date {
	switch f {
	case Weekly:
		return d.Monday()
	case Monthly:
		return d.MonthStart()
	case Quarterly:
		return d.QuarterStart()
	case Annual:
		return d.YearStart()
	}
	return d
}

// groups splits the dates into [start, end) index ranges of the same period.
func (f Frequency) groups(dates []db.Date) [][2]int {
	var res [][2]int
	for i := 0; i < len(dates); {
		p := f.periodStart(dates[i])
		j := i + 1
		for j < len(dates) && f.periodStart(dates[j]) == p {
			j++
		}
		res = append(res, [2]int{i, j})
		i = j
	}
	return res
}

// aggregator combines the values of a column within a group.
type aggregator func(values []float64) float64

func compound(values []float64) float64 {
	res := 1.0
	valid := false
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		res *= 1 + v
		valid = true
	}
	if !valid {
		return math.NaN()
	}
	return res - 1
}

func sum(values []float64) float64 {
	res := 0.0
	valid := false
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		res += v
		valid = true
	}
	if !valid {
		return math.NaN()
	}
	return res
}

func first(values []float64) float64 {
	for _, v := range values {
		if !math.IsNaN(v) {
			return v
		}
	}
	return math.NaN()
}

// resample aggregates the frame's rows by the groups, indexing each group by
// its first date.
func resample(f *db.Frame, groups [][2]int, agg aggregator) (*db.Frame, error) {
	if f == nil {
		return nil, nil
	}
	dates := make([]db.Date, len(groups))
	for i, g := range groups {
		dates[i] = f.Dates()[g[0]]
	}
	data := make([][]float64, len(f.Columns()))
	for j := range f.Columns() {
		col := f.ColumnAt(j)
		data[j] = make([]float64, len(groups))
		for i, g := range groups {
			data[j][i] = agg(col[g[0]:g[1]])
		}
	}
	columns := append([]string{}, f.Columns()...)
	return db.NewFrame(dates, columns, data)
}

// Resample converts daily returns, volumes and prices to the frequency.
// Returns are compounded, volumes summed, and prices take the first available
// value in each period. Volumes and prices may be nil, and must have the same
// dates as the returns.
func (f Frequency) Resample(returns, volumes, prices *db.Frame) (r, v, p *db.Frame, err error) {
	if f == Daily {
		return returns, volumes, prices, nil
	}
	groups := f.groups(returns.Dates())
	if r, err = resample(returns, groups, compound); err != nil {
		err = errors.Annotate(err, "failed to resample returns")
		return
	}
	if v, err = resample(volumes, groups, sum); err != nil {
		err = errors.Annotate(err, "failed to resample volumes")
		return
	}
	if p, err = resample(prices, groups, first); err != nil {
		err = errors.Annotate(err, "failed to resample prices")
		return
	}
	return
}
