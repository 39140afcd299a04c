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
	"context"
	"os"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/marketdata/db"
)

// UserProvidedParams configure UserProvided market data.
type UserProvidedParams struct {
	Params
	// Returns per period, with the cash account as the last column. Required.
	Returns *db.Frame
	// Volumes and Prices are optional. Their columns must be the non-cash
	// returns columns, and their dates the returns dates.
	Volumes *db.Frame
	Prices  *db.Frame
}

// UserProvided serves market data provided by the user.
type UserProvided struct {
	*marketData
}

var _ MarketData = &UserProvided{}

func copyFrame(f *db.Frame) *db.Frame {
	if f == nil {
		return nil
	}
	return f.Copy()
}

// NewUserProvided validates and copies the data.
func NewUserProvided(ctx context.Context, p UserProvidedParams) (*UserProvided, error) {
	m, err := newMarketData(ctx, copyFrame(p.Returns), copyFrame(p.Volumes),
		copyFrame(p.Prices), p.Params)
	if err != nil {
		return nil, errors.Annotate(err, "invalid user provided data")
	}
	return &UserProvided{marketData: m}, nil
}

// CSVPaths locate the user provided data files. Empty paths are skipped,
// except for Returns which is required.
type CSVPaths struct {
	Returns string `toml:"returns"`
	Volumes string `toml:"volumes"`
	Prices  string `toml:"prices"`
}

// LoadCSV reads a frame from a CSV file with a "date" column followed by the
// value columns.
func LoadCSV(path string) (*db.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open '%s'", path)
	}
	defer f.Close()
	frame, err := db.ReadCSV(f)
	if err != nil {
		return nil, errors.Annotate(err, "failed to read '%s'", path)
	}
	return frame, nil
}

// NewUserProvidedFromCSV loads the files and creates UserProvided market data.
func NewUserProvidedFromCSV(ctx context.Context, paths CSVPaths, p Params) (*UserProvided, error) {
	if paths.Returns == "" {
		return nil, db.NewError(db.DataError, "returns CSV file is required")
	}
	up := UserProvidedParams{Params: p}
	var err error
	if up.Returns, err = LoadCSV(paths.Returns); err != nil {
		return nil, err
	}
	if paths.Volumes != "" {
		if up.Volumes, err = LoadCSV(paths.Volumes); err != nil {
			return nil, err
		}
	}
	if paths.Prices != "" {
		if up.Prices, err = LoadCSV(paths.Prices); err != nil {
			return nil, err
		}
	}
	m, err := newMarketData(ctx, up.Returns, up.Volumes, up.Prices, p)
	if err != nil {
		return nil, errors.Annotate(err, "invalid data in '%s'", paths.Returns)
	}
	return &UserProvided{marketData: m}, nil
}
