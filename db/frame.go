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

package db

import (
	"math"
	"sort"
	"strings"

	"github.com/stockparfait/errors"
)

// Series is a vector of values labeled by asset names, typically a single row
// of a Frame.
type Series struct {
	Labels []string
	Values []float64
}

// NewSeries creates a Series. It panics if the lengths differ.
func NewSeries(labels []string, values []float64) *Series {
	if len(labels) != len(values) {
		panic(errors.Reason("len(labels) [%d] != len(values) [%d]",
			len(labels), len(values)))
	}
	return &Series{Labels: labels, Values: values}
}

// Len is the number of elements.
func (s *Series) Len() int { return len(s.Values) }

// Get the value by its label.
func (s *Series) Get(label string) (float64, bool) {
	for i, l := range s.Labels {
		if l == label {
			return s.Values[i], true
		}
	}
	return math.NaN(), false
}

// Select the values for the given labels in the given order. Missing labels
// result in a MissingAssetsError listing them.
func (s *Series) Select(labels []string) (*Series, error) {
	idx := make(map[string]int, len(s.Labels))
	for i, l := range s.Labels {
		idx[l] = i
	}
	values := make([]float64, len(labels))
	var missing []string
	for i, l := range labels {
		j, ok := idx[l]
		if !ok {
			missing = append(missing, l)
			continue
		}
		values[i] = s.Values[j]
	}
	if len(missing) > 0 {
		return nil, NewError(MissingAssetsError, "labels not found: %s",
			strings.Join(missing, ", "))
	}
	ls := make([]string, len(labels))
	copy(ls, labels)
	return NewSeries(ls, values), nil
}

// HasNaN checks if any of the values is NaN.
func (s *Series) HasNaN() bool {
	for _, v := range s.Values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// Copy makes a deep copy.
func (s *Series) Copy() *Series {
	labels := make([]string, len(s.Labels))
	values := make([]float64, len(s.Values))
	copy(labels, s.Labels)
	copy(values, s.Values)
	return NewSeries(labels, values)
}

// Frame is a table of float64 columns indexed by dates. The dates are strictly
// ascending, and every column has exactly one value per date. Missing values
// are NaN.
type Frame struct {
	dates   []Date
	columns []string
	data    [][]float64 // data[column][row]
}

// NewFrame creates and validates a new Frame. The arguments are used as is,
// not copied.
func NewFrame(dates []Date, columns []string, data [][]float64) (*Frame, error) {
	f := &Frame{dates: dates, columns: columns, data: data}
	if err := f.Check(); err != nil {
		return nil, err
	}
	return f, nil
}

// EmptyFrame creates a Frame with the given columns and no rows.
func EmptyFrame(columns ...string) *Frame {
	data := make([][]float64, len(columns))
	for i := range data {
		data[i] = []float64{}
	}
	return &Frame{dates: []Date{}, columns: columns, data: data}
}

// NaNs creates a slice of n NaN values.
func NaNs(n int) []float64 {
	res := make([]float64, n)
	for i := range res {
		res[i] = math.NaN()
	}
	return res
}

// Check the Frame invariants.
func (f *Frame) Check() error {
	if len(f.columns) != len(f.data) {
		return NewError(DataError, "len(columns) [%d] != len(data) [%d]",
			len(f.columns), len(f.data))
	}
	seen := make(map[string]struct{}, len(f.columns))
	for i, c := range f.columns {
		if _, ok := seen[c]; ok {
			return NewError(DataError, "duplicate column '%s'", c)
		}
		seen[c] = struct{}{}
		if len(f.data[i]) != len(f.dates) {
			return NewError(DataError, "column '%s' has %d values for %d dates",
				c, len(f.data[i]), len(f.dates))
		}
	}
	for i := 1; i < len(f.dates); i++ {
		if !f.dates[i-1].Before(f.dates[i]) {
			return NewError(DataError, "dates[%d] = %s >= dates[%d] = %s",
				i-1, f.dates[i-1], i, f.dates[i])
		}
	}
	return nil
}

// Len is the number of rows.
func (f *Frame) Len() int { return len(f.dates) }

// Dates of the Frame. Do not modify.
func (f *Frame) Dates() []Date { return f.dates }

// Columns of the Frame. Do not modify.
func (f *Frame) Columns() []string { return f.columns }

// First date, or zero value for an empty Frame.
func (f *Frame) First() Date {
	if len(f.dates) == 0 {
		return Date{}
	}
	return f.dates[0]
}

// Last date, or zero value for an empty Frame.
func (f *Frame) Last() Date {
	if len(f.dates) == 0 {
		return Date{}
	}
	return f.dates[len(f.dates)-1]
}

// ColumnIndex returns the index of the column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column values by name, or nil if the column doesn't exist. Do not modify.
func (f *Frame) Column(name string) []float64 {
	i := f.ColumnIndex(name)
	if i < 0 {
		return nil
	}
	return f.data[i]
}

// ColumnAt returns the values of the i'th column. Do not modify.
func (f *Frame) ColumnAt(i int) []float64 { return f.data[i] }

// Value at the given row and column indices.
func (f *Frame) Value(row, col int) float64 { return f.data[col][row] }

// Index returns the row index of the exact date, or -1.
func (f *Frame) Index(d Date) int {
	i := sort.Search(len(f.dates), func(i int) bool { return !f.dates[i].Before(d) })
	if i < len(f.dates) && f.dates[i] == d {
		return i
	}
	return -1
}

// LastIndexAtOrBefore returns the index of the latest date <= d, or -1.
func (f *Frame) LastIndexAtOrBefore(d Date) int {
	i := sort.Search(len(f.dates), func(i int) bool { return f.dates[i].After(d) })
	return i - 1
}

// Row returns the i'th row as a Series labeled by the columns.
func (f *Frame) Row(i int) *Series {
	labels := make([]string, len(f.columns))
	values := make([]float64, len(f.columns))
	copy(labels, f.columns)
	for j := range f.columns {
		values[j] = f.data[j][i]
	}
	return NewSeries(labels, values)
}

// slice returns rows [s, e) sharing the underlying data.
func (f *Frame) slice(s, e int) *Frame {
	data := make([][]float64, len(f.columns))
	for j := range f.columns {
		data[j] = f.data[j][s:e]
	}
	return &Frame{dates: f.dates[s:e], columns: f.columns, data: data}
}

// Head returns the first n rows, sharing the data with the receiver.
func (f *Frame) Head(n int) *Frame {
	if n > f.Len() {
		n = f.Len()
	}
	if n < 0 {
		n = 0
	}
	return f.slice(0, n)
}

// Range extracts the rows in the inclusive date range, sharing the data with
// the receiver. Zero bounds are ignored.
func (f *Frame) Range(start, end Date) *Frame {
	s := 0
	if !start.IsZero() {
		s = sort.Search(len(f.dates), func(i int) bool { return !f.dates[i].Before(start) })
	}
	e := len(f.dates)
	if !end.IsZero() {
		e = sort.Search(len(f.dates), func(i int) bool { return f.dates[i].After(end) })
	}
	if s >= e {
		return f.slice(0, 0)
	}
	return f.slice(s, e)
}

// Select a subset of the columns in the given order. Missing columns are a
// MissingAssetsError.
func (f *Frame) Select(columns ...string) (*Frame, error) {
	data := make([][]float64, len(columns))
	var missing []string
	for i, c := range columns {
		j := f.ColumnIndex(c)
		if j < 0 {
			missing = append(missing, c)
			continue
		}
		data[i] = f.data[j]
	}
	if len(missing) > 0 {
		return nil, NewError(MissingAssetsError, "columns not found: %s",
			strings.Join(missing, ", "))
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Frame{dates: f.dates, columns: cols, data: data}, nil
}

// WithColumn returns a new Frame with the column added, or replaced if it
// already exists. The values must have the Frame's length.
func (f *Frame) WithColumn(name string, values []float64) (*Frame, error) {
	if len(values) != f.Len() {
		return nil, NewError(DataError, "column '%s' has %d values for %d dates",
			name, len(values), f.Len())
	}
	columns := make([]string, len(f.columns))
	copy(columns, f.columns)
	data := make([][]float64, len(f.data))
	copy(data, f.data)
	if j := f.ColumnIndex(name); j >= 0 {
		data[j] = values
	} else {
		columns = append(columns, name)
		data = append(data, values)
	}
	return &Frame{dates: f.dates, columns: columns, data: data}, nil
}

// Copy makes a deep copy of the Frame.
func (f *Frame) Copy() *Frame {
	dates := make([]Date, len(f.dates))
	copy(dates, f.dates)
	columns := make([]string, len(f.columns))
	copy(columns, f.columns)
	data := make([][]float64, len(f.data))
	for j := range f.data {
		data[j] = make([]float64, len(f.data[j]))
		copy(data[j], f.data[j])
	}
	return &Frame{dates: dates, columns: columns, data: data}
}

// Concat appends the rows of other, replacing the receiver's rows at and after
// the first date of other. The columns must be the same set; the result keeps
// the receiver's column order.
func (f *Frame) Concat(other *Frame) (*Frame, error) {
	if len(other.columns) != len(f.columns) {
		return nil, NewError(DataError, "cannot concat columns [%s] with [%s]",
			strings.Join(f.columns, ", "), strings.Join(other.columns, ", "))
	}
	o, err := other.Select(f.columns...)
	if err != nil {
		return nil, errors.Annotate(err, "cannot concat frames with different columns")
	}
	keep := f.Len()
	if other.Len() > 0 {
		keep = sort.Search(f.Len(), func(i int) bool { return !f.dates[i].Before(other.First()) })
	}
	n := keep + o.Len()
	dates := make([]Date, 0, n)
	dates = append(dates, f.dates[:keep]...)
	dates = append(dates, o.dates...)
	data := make([][]float64, len(f.columns))
	for j := range f.columns {
		data[j] = make([]float64, 0, n)
		data[j] = append(data[j], f.data[j][:keep]...)
		data[j] = append(data[j], o.data[j]...)
	}
	return &Frame{dates: dates, columns: f.Columns(), data: data}, nil
}

// UnionDates merges the dates of several sorted slices into a single sorted
// slice of unique dates.
func UnionDates(lists ...[]Date) []Date {
	seen := make(map[Date]struct{})
	var res []Date
	for _, l := range lists {
		for _, d := range l {
			if _, ok := seen[d]; !ok {
				seen[d] = struct{}{}
				res = append(res, d)
			}
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Before(res[j]) })
	return res
}

// Reindex the Frame onto new dates. Values for dates not in the Frame are NaN,
// or, if ffill is true, the last available value before that date.
func (f *Frame) Reindex(dates []Date, ffill bool) *Frame {
	data := make([][]float64, len(f.columns))
	for j := range f.columns {
		data[j] = make([]float64, len(dates))
	}
	for i, d := range dates {
		k := f.Index(d)
		if k < 0 && ffill {
			k = f.LastIndexAtOrBefore(d)
		}
		for j := range f.columns {
			if k < 0 {
				data[j][i] = math.NaN()
			} else {
				data[j][i] = f.data[j][k]
			}
		}
	}
	ds := make([]Date, len(dates))
	copy(ds, dates)
	cols := make([]string, len(f.columns))
	copy(cols, f.columns)
	return &Frame{dates: ds, columns: cols, data: data}
}

// Union outer-joins the frames on dates. Column names must be unique across
// all the frames.
func Union(frames ...*Frame) (*Frame, error) {
	lists := make([][]Date, len(frames))
	for i, f := range frames {
		lists[i] = f.dates
	}
	dates := UnionDates(lists...)
	var columns []string
	var data [][]float64
	for _, f := range frames {
		r := f.Reindex(dates, false)
		columns = append(columns, r.columns...)
		data = append(data, r.data...)
	}
	return NewFrame(dates, columns, data)
}
