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

package datasource

import (
	"context"
	"encoding/csv"
	"io"
	"net/url"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/marketdata/db"
)

// FredURL is the CSV download endpoint of the FRED database. It can be
// overridden in tests.
var FredURL = "https://fred.stlouisfed.org/graph/fredgraph.csv"

// ColValue is the only column of a Fred frame.
const ColValue = "value"

// Fred downloads economic time series from the Federal Reserve Economic Data
// (FRED) database, e.g. DFF for the Federal Funds effective rate in percent.
type Fred struct{}

var _ Source = &Fred{}

// Name implements Source.
func (f *Fred) Name() string { return "Fred" }

// Download implements Source. The series is always downloaded in full; stored
// rows before the first downloaded date are kept.
func (f *Fred) Download(ctx context.Context, symbol string, current *db.Frame) (*db.Frame, error) {
	query := url.Values{}
	query.Set("id", symbol)
	resp, err := fetch.GetRetry(ctx, FredURL, query, nil)
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch %s from FRED", symbol)
	}
	defer resp.Body.Close()

	frame, err := parseFred(resp.Body)
	if err != nil {
		return nil, errors.Annotate(err, "failed to parse FRED data for %s", symbol)
	}
	if frame.Len() == 0 {
		return nil, errors.Reason("FRED returned no data for %s", symbol)
	}
	if current == nil || current.Len() == 0 {
		return frame, nil
	}
	if current.ColumnIndex(ColValue) < 0 || len(current.Columns()) != 1 {
		logging.Warningf(ctx, "stored %s data has unexpected columns, replacing it", symbol)
		return frame, nil
	}
	if current.First().Before(frame.First()) {
		logging.Debugf(ctx, "%s: keeping stored data before %s", symbol, frame.First())
	}
	res, err := current.Concat(frame)
	if err != nil {
		return nil, errors.Annotate(err, "failed to merge %s with stored data", symbol)
	}
	return res, nil
}

// parseFred reads the CSV with the header "<date>,<symbol>". Missing values
// are represented as ".".
func parseFred(r io.Reader) (*db.Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.ReuseRecord = true
	if _, err := cr.Read(); err != nil {
		return nil, errors.Annotate(err, "failed to read CSV header")
	}
	var dates []db.Date
	var values []float64
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Annotate(err, "failed to read CSV row")
		}
		d, err := db.NewDateFromString(row[0])
		if err != nil {
			return nil, errors.Annotate(err, "bad date '%s'", row[0])
		}
		v, err := db.ParseValue(row[1])
		if err != nil {
			return nil, errors.Annotate(err, "bad value '%s' on %s", row[1], d)
		}
		dates = append(dates, d)
		values = append(values, v)
	}
	if dates == nil {
		return db.EmptyFrame(ColValue), nil
	}
	return db.NewFrame(dates, []string{ColValue}, [][]float64{values})
}
