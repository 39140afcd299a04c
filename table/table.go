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

// Package table renders market data as text or CSV tables.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/marketdata/db"
)

// Row of a table, as a list of formatted cells.
type Row interface {
	CSV() []string
}

// Cells is a Row of preformatted strings.
type Cells []string

// CSV implements Row.
func (c Cells) CSV() []string { return c }

// Table of rows with an optional header.
type Table struct {
	Header []string // may be nil
	Rows   []Row
}

// NewTable creates a Table with the header. All the rows are expected to have
// the same size as the header, when present.
func NewTable(header ...string) *Table {
	return &Table{Header: header}
}

// AddRow appends the rows.
func (t *Table) AddRow(rows ...Row) {
	t.Rows = append(t.Rows, rows...)
}

// Params for writing a table.
type Params struct {
	Rows        int  // max. number of rows to write; 0 = all
	Tail        bool // write the last Rows rows instead of the first
	NoHeader    bool
	MaxColWidth int // for WriteText only; 0 = unlimited, otherwise must be >= 4
}

// rows to be written, according to the params.
func (t *Table) rows(p Params) []Row {
	if p.Rows <= 0 || p.Rows >= len(t.Rows) {
		return t.Rows
	}
	if p.Tail {
		return t.Rows[len(t.Rows)-p.Rows:]
	}
	return t.Rows[:p.Rows]
}

// WriteCSV writes the table in CSV format.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if !p.NoHeader && len(t.Header) > 0 {
		if err := cw.Write(t.Header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
	}
	for _, r := range t.rows(p) {
		if err := cw.Write(r.CSV()); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Annotate(err, "failed to flush written rows")
	}
	return nil
}

// WriteText writes the table with right-aligned columns separated by "|".
// Cells wider than MaxColWidth are truncated with "..".
func (t *Table) WriteText(w io.Writer, p Params) error {
	if p.MaxColWidth != 0 && p.MaxColWidth < 4 {
		return errors.Reason("MaxColWidth [%d] must be 0 or >= 4", p.MaxColWidth)
	}
	var lines [][]string
	if !p.NoHeader && len(t.Header) > 0 {
		lines = append(lines, t.Header)
	}
	for _, r := range t.rows(p) {
		lines = append(lines, r.CSV())
	}
	if len(lines) == 0 {
		return nil
	}
	widths := make([]int, len(lines[0]))
	for i, l := range lines {
		if len(l) != len(widths) {
			return errors.Reason("line %d has %d cells, expected %d", i, len(l), len(widths))
		}
		for j, c := range l {
			n := len([]rune(c))
			if p.MaxColWidth > 0 && n > p.MaxColWidth {
				n = p.MaxColWidth
			}
			if n > widths[j] {
				widths[j] = n
			}
		}
	}
	write := func(cells []string) error {
		out := make([]string, len(cells))
		for j, c := range cells {
			if r := []rune(c); len(r) > widths[j] {
				c = string(r[:widths[j]-2]) + ".."
			}
			out[j] = fmt.Sprintf("%*s", widths[j], c)
		}
		_, err := fmt.Fprintln(w, strings.Join(out, " | "))
		return err
	}
	for i, l := range lines {
		if err := write(l); err != nil {
			return errors.Annotate(err, "failed to write line %d", i)
		}
		if i == 0 && !p.NoHeader && len(t.Header) > 0 {
			dashes := make([]string, len(widths))
			for j, n := range widths {
				dashes[j] = strings.Repeat("-", n)
			}
			if err := write(dashes); err != nil {
				return errors.Annotate(err, "failed to write header separator")
			}
		}
	}
	return nil
}

// Float formats a value with the given number of decimals. NaN is "-".
func Float(x float64, decimals int) string {
	if math.IsNaN(x) {
		return "-"
	}
	return fmt.Sprintf("%.*f", decimals, x)
}

// Percent formats a fraction as a percentage with 2 decimals. NaN is "-".
func Percent(x float64) string {
	if math.IsNaN(x) {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", x*100)
}

// Int formats an integer.
func Int(x int) string { return fmt.Sprintf("%d", x) }

// FromFrame creates a Table with a "date" column followed by the frame's
// columns, with values formatted to the given number of decimals.
func FromFrame(f *db.Frame, decimals int) *Table {
	t := NewTable(append([]string{"date"}, f.Columns()...)...)
	for i, d := range f.Dates() {
		row := make(Cells, len(f.Columns())+1)
		row[0] = d.String()
		for j := range f.Columns() {
			row[j+1] = Float(f.Value(i, j), decimals)
		}
		t.AddRow(row)
	}
	return t
}

// FromSeries creates a two-column Table of labels and values.
func FromSeries(s *db.Series, valueHeader string, decimals int) *Table {
	t := NewTable("asset", valueHeader)
	for i, l := range s.Labels {
		t.AddRow(Cells{l, Float(s.Values[i], decimals)})
	}
	return t
}

// FromDates creates a single-column Table of dates.
func FromDates(dates []db.Date) *Table {
	t := NewTable("date")
	for _, d := range dates {
		t.AddRow(Cells{d.String()})
	}
	return t
}
