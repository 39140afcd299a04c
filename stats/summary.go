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

package stats

import (
	"math"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/marketdata/db"
	"github.com/stockparfait/marketdata/estimator"
	"github.com/stockparfait/marketdata/table"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Summary of the returns of a single asset. Mean and volatility are
// annualized.
type Summary struct {
	Name       string
	Count      int
	Mean       float64
	Volatility float64
	Sharpe     float64
}

var _ table.Row = Summary{}

// SummaryHeader is the table header matching Summary.CSV.
var SummaryHeader = []string{"Asset", "Count", "Mean", "Volatility", "Sharpe"}

// CSV implements table.Row.
func (s Summary) CSV() []string {
	return []string{
		s.Name,
		table.Int(s.Count),
		table.Percent(s.Mean),
		table.Percent(s.Volatility),
		table.Float(s.Sharpe, 2),
	}
}

// Summarize the per-period returns of each column of the frame. NaNs are
// skipped.
func Summarize(f *db.Frame, periodsPerYear int) []Summary {
	res := make([]Summary, len(f.Columns()))
	ppy := float64(periodsPerYear)
	for j, c := range f.Columns() {
		s := NewSample(f.ColumnAt(j))
		mean := s.Mean() * ppy
		vol := s.Sigma() * math.Sqrt(ppy)
		sharpe := math.NaN()
		if vol > 0 {
			sharpe = mean / vol
		}
		res[j] = Summary{
			Name:       c,
			Count:      s.Len(),
			Mean:       mean,
			Volatility: vol,
			Sharpe:     sharpe,
		}
	}
	return res
}

// SummaryTable arranges the summaries in a table.
func SummaryTable(summaries []Summary) *table.Table {
	t := table.NewTable(SummaryHeader...)
	for _, s := range summaries {
		t.AddRow(s)
	}
	return t
}

// SigmaEstimate computes, for each date and column, the standard deviation of
// the valid values in the preceding window rows, excluding the current one.
// The result is NaN where fewer than 2 values are available.
func SigmaEstimate(f *db.Frame, window int) (*db.Frame, error) {
	if window < 2 {
		return nil, errors.Reason("window must be at least 2, got %d", window)
	}
	data := make([][]float64, len(f.Columns()))
	for j := range f.Columns() {
		col := f.ColumnAt(j)
		data[j] = make([]float64, len(col))
		for i := range col {
			start := i - window
			if start < 0 {
				start = 0
			}
			data[j][i] = NewSample(col[start:i]).Sigma()
		}
	}
	dates := append([]db.Date{}, f.Dates()...)
	columns := append([]string{}, f.Columns()...)
	return db.NewFrame(dates, columns, data)
}

// Covariance of the columns over the rows without NaNs, labeled by the
// columns on both axes.
func Covariance(f *db.Frame) (*estimator.LabeledMatrix, error) {
	n := len(f.Columns())
	var rows []float64
	count := 0
	for i := 0; i < f.Len(); i++ {
		row := f.Row(i)
		if row.HasNaN() {
			continue
		}
		rows = append(rows, row.Values...)
		count++
	}
	if n == 0 || count < 2 {
		return nil, db.NewError(db.DataError,
			"covariance requires at least 2 complete rows, found %d", count)
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, mat.NewDense(count, n, rows), nil)
	columns := append([]string{}, f.Columns()...)
	return estimator.NewLabeledMatrix(columns, columns, mat.DenseCopyOf(&cov))
}
