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
	"encoding/csv"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
)

// FormatValue prints a value for CSV. NaN is an empty string.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ParseValue parses a CSV cell. Empty strings, "." and "NaN" (in any case)
// are NaN.
func ParseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", ".", "nan", "null":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Annotate(err, "failed to parse value '%s'", s)
	}
	return v, nil
}

// WriteCSV writes the Frame with a header row: "date" followed by the
// columns.
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w)
	header := append([]string{"date"}, f.Columns()...)
	if err := cw.Write(header); err != nil {
		return errors.Annotate(err, "failed to write header")
	}
	row := make([]string, len(header))
	for i, d := range f.Dates() {
		row[0] = d.String()
		for j := range f.Columns() {
			row[j+1] = FormatValue(f.Value(i, j))
		}
		if err := cw.Write(row); err != nil {
			return errors.Annotate(err, "failed to write row %d", i)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Annotate(err, "failed to flush written rows")
	}
	return nil
}

// ReadCSV reads a Frame from CSV. The first row is the header; the first
// column holds the dates, and its header is ignored. Rows may be unsorted, but
// the dates must be unique.
func ReadCSV(r io.Reader) (*Frame, error) {
	csvReader := csv.NewReader(r)
	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, errors.Annotate(err, "failed to read CSV")
	}
	if len(rows) == 0 {
		return nil, errors.Reason("CSV requires a header")
	}
	header := rows[0]
	if len(header) < 1 {
		return nil, errors.Reason("CSV header requires a date column")
	}
	rows = rows[1:]

	columns := make([]string, len(header)-1)
	for j := range columns {
		columns[j] = strings.TrimSpace(header[j+1])
	}
	type parsedRow struct {
		date   Date
		values []float64
	}
	parsed := make([]parsedRow, len(rows))
	for i, row := range rows {
		if parsed[i].date, err = NewDateFromString(strings.TrimSpace(row[0])); err != nil {
			return nil, errors.Annotate(err, "failed to parse date in row %d", i+1)
		}
		parsed[i].values = make([]float64, len(columns))
		for j := range columns {
			if parsed[i].values[j], err = ParseValue(row[j+1]); err != nil {
				return nil, errors.Annotate(err, "failed to parse row %d, column '%s'",
					i+1, columns[j])
			}
		}
	}
	sort.SliceStable(parsed, func(i, j int) bool { return parsed[i].date.Before(parsed[j].date) })

	dates := make([]Date, len(parsed))
	data := make([][]float64, len(columns))
	for j := range data {
		data[j] = make([]float64, len(parsed))
	}
	for i, p := range parsed {
		dates[i] = p.date
		for j := range columns {
			data[j][i] = p.values[j]
		}
	}
	f, err := NewFrame(dates, columns, data)
	if err != nil {
		return nil, errors.Annotate(err, "inconsistent CSV data")
	}
	return f, nil
}
