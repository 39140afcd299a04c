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
	"fmt"
	"math"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/marketdata/db"
	"golang.org/x/sync/singleflight"
)

// Source downloads the history of a symbol from a data provider.
type Source interface {
	// Name of the source, used as the storage key prefix.
	Name() string
	// Download the full history of the symbol. When current is not nil, it is
	// the previously stored history, and the source may download only the
	// recent data, returning current updated with it.
	Download(ctx context.Context, symbol string, current *db.Frame) (*db.Frame, error)
}

// DefaultGracePeriod is how old the stored data may be before SymbolData
// downloads it again.
const DefaultGracePeriod = 24 * time.Hour

// Concurrent updates of the same key in the same storage share a single
// download.
var updates singleflight.Group

// SymbolData is the locally stored history of a single symbol from a Source.
type SymbolData struct {
	Symbol      string
	Source      Source
	Storage     db.Storage
	GracePeriod time.Duration    // default: DefaultGracePeriod
	Now         func() time.Time // default: time.Now
}

// NewSymbolData creates a SymbolData with the default grace period.
func NewSymbolData(symbol string, source Source, storage db.Storage) *SymbolData {
	return &SymbolData{
		Symbol:      symbol,
		Source:      source,
		Storage:     storage,
		GracePeriod: DefaultGracePeriod,
	}
}

// Key in the storage.
func (s *SymbolData) Key() string {
	return s.Source.Name() + "/" + s.Symbol
}

func (s *SymbolData) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Load the stored data, without updating it. It returns nil, nil if there is
// no stored data.
func (s *SymbolData) Load(ctx context.Context) (*db.Frame, error) {
	f, err := s.Storage.Load(ctx, s.Key())
	if err != nil {
		return nil, errors.Annotate(err, "failed to load %s", s.Key())
	}
	return f, nil
}

// IsFresh checks if the stored frame's last date is within the grace period
// from now. Dates are compared in the New York timezone.
func (s *SymbolData) IsFresh(f *db.Frame) bool {
	if f == nil || f.Len() == 0 {
		return false
	}
	today := db.DateInNY(s.now())
	age := time.Duration(f.Last().DaysTill(today)) * 24 * time.Hour
	return age < s.GracePeriod
}

// Update downloads new data if the stored data is missing or stale, and stores
// the result.
func (s *SymbolData) Update(ctx context.Context) error {
	key := fmt.Sprintf("%p|%s", s.Storage, s.Key())
	_, err, _ := updates.Do(key, func() (interface{}, error) {
		return nil, s.update(ctx)
	})
	return err
}

func (s *SymbolData) update(ctx context.Context) error {
	current, err := s.Load(ctx)
	if err != nil {
		logging.Warningf(ctx, "discarding stored data: %s", err.Error())
		current = nil
	}
	if s.IsFresh(current) {
		logging.Debugf(ctx, "%s is up to date (last: %s)", s.Key(), current.Last())
		return nil
	}
	if current == nil {
		logging.Infof(ctx, "downloading %s", s.Key())
	} else {
		logging.Infof(ctx, "updating %s from %s", s.Key(), current.Last())
	}
	updated, err := s.Source.Download(ctx, s.Symbol, current)
	if err != nil {
		return errors.Annotate(err, "failed to download %s", s.Key())
	}
	if err := updated.Check(); err != nil {
		return errors.Annotate(err, "downloaded data for %s is invalid", s.Key())
	}
	if updated.Len() == 0 {
		return db.NewError(db.DataError, "no data for %s", s.Key())
	}
	if current != nil {
		if n := countChanged(current, updated); n > 0 {
			logging.Warningf(ctx, "%s: %d previously stored values have changed", s.Key(), n)
		}
	}
	if err := s.Storage.Store(ctx, s.Key(), updated); err != nil {
		return errors.Annotate(err, "failed to store %s", s.Key())
	}
	return nil
}

// Data updates the stored data if necessary and returns it.
func (s *SymbolData) Data(ctx context.Context) (*db.Frame, error) {
	if err := s.Update(ctx); err != nil {
		return nil, errors.Annotate(err, "failed to update %s", s.Key())
	}
	f, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, db.NewError(db.DataError, "no stored data for %s", s.Key())
	}
	return f, nil
}

func sameValue(x, y float64) bool {
	if math.IsNaN(x) || math.IsNaN(y) {
		return math.IsNaN(x) && math.IsNaN(y)
	}
	return math.Abs(x-y) <= 1e-8*math.Max(1, math.Max(math.Abs(x), math.Abs(y)))
}

// countChanged counts the values of old which differ in updated on the same
// dates and columns. Missing old values filled in by the update, such as the
// last return, are not changes.
func countChanged(old, updated *db.Frame) int {
	n := 0
	for j, c := range old.Columns() {
		k := updated.ColumnIndex(c)
		if k < 0 {
			continue
		}
		for i, d := range old.Dates() {
			r := updated.Index(d)
			if r < 0 {
				continue
			}
			v := old.Value(i, j)
			if math.IsNaN(v) {
				continue
			}
			if !sameValue(v, updated.Value(r, k)) {
				n++
			}
		}
	}
	return n
}
