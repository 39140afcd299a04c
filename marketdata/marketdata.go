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

// Package marketdata serves point-in-time views of market data to backtests
// and trading policies.
//
// The data consists of per-period asset returns with the cash account as the
// last column, and optionally the traded value volumes and prices of the
// non-cash assets. At each trading date t only the past (dates before t) and
// the current row are visible, restricted to the assets tradable at t.
package marketdata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/marketdata/db"
)

// DefaultCashKey is the name of the US dollar cash account.
const DefaultCashKey = "USDOLLAR"

// DefaultMinHistoryDays is the number of days of valid returns an asset needs
// before it enters the universe.
const DefaultMinHistoryDays = 365

// MarketData serves the data available at each trading date.
type MarketData interface {
	// Serve the data visible at t. The universe is restricted to the assets
	// valid at t.
	Serve(t db.Date) (*Snapshot, error)
	// TradingCalendar lists the trading dates in [start, end], or [start, end)
	// if includeEnd is false, but not before the earliest date with enough
	// history. Zero dates are unbounded.
	TradingCalendar(start, end db.Date, includeEnd bool) ([]db.Date, error)
	// FullUniverse is all the asset names, with cash as the last one.
	FullUniverse() []string
	CashKey() string
	// UniverseAt t lists the assets valid at t, with cash as the last one.
	UniverseAt(t db.Date) ([]string, error)
	// PeriodsPerYear is the average number of trading periods per year.
	PeriodsPerYear() int
	// PartialUniverseSignature identifies the universe, e.g. for caching the
	// values computed for it.
	PartialUniverseSignature(universe []string) string
}

// Snapshot is the data visible at a trading date. Volumes and prices are nil
// when not available.
type Snapshot struct {
	PastReturns    *db.Frame
	CurrentReturns *db.Series
	PastVolumes    *db.Frame
	CurrentVolumes *db.Series
	CurrentPrices  *db.Series
}

// Params are the common parameters of all MarketData implementations.
type Params struct {
	CashKey string // default: DefaultCashKey
	// Assets enter the universe this many days after their first valid return.
	// Default: DefaultMinHistoryDays; negative means no minimum.
	MinHistoryDays   int
	TradingFrequency Frequency
	// OnlineUsage means the current period's returns are not known yet: the
	// universe and the trading calendar do not depend on them.
	OnlineUsage bool
}

func (p *Params) setDefaults() {
	if p.CashKey == "" {
		p.CashKey = DefaultCashKey
	}
	if p.MinHistoryDays == 0 {
		p.MinHistoryDays = DefaultMinHistoryDays
	}
	if p.MinHistoryDays < 0 {
		p.MinHistoryDays = 0
	}
}

// marketData implements MarketData over in-memory frames.
type marketData struct {
	params     Params
	returns    *db.Frame
	volumes    *db.Frame
	prices     *db.Frame
	firstValid map[string]db.Date // first valid return of non-cash assets
}

var _ MarketData = &marketData{}

// newMarketData validates and takes ownership of the frames.
func newMarketData(ctx context.Context, returns, volumes, prices *db.Frame, p Params) (*marketData, error) {
	p.setDefaults()
	if returns == nil || returns.Len() == 0 {
		return nil, db.NewError(db.DataError, "returns are empty")
	}
	cols := returns.Columns()
	if len(cols) == 0 || cols[len(cols)-1] != p.CashKey {
		return nil, db.NewError(db.DataError,
			"the last column of returns must be the cash account '%s'", p.CashKey)
	}
	assets := cols[:len(cols)-1]
	check := func(name string, f *db.Frame) error {
		if f == nil {
			return nil
		}
		if !sameStrings(f.Columns(), assets) {
			return db.NewError(db.DataError,
				"%s columns [%s] must be the non-cash returns columns [%s]",
				name, strings.Join(f.Columns(), ", "), strings.Join(assets, ", "))
		}
		if !sameDates(f.Dates(), returns.Dates()) {
			return db.NewError(db.DataError, "%s must have the same dates as returns", name)
		}
		return nil
	}
	if err := check("volumes", volumes); err != nil {
		return nil, err
	}
	if err := check("prices", prices); err != nil {
		return nil, err
	}
	var err error
	returns, volumes, prices, err = p.TradingFrequency.Resample(returns, volumes, prices)
	if err != nil {
		return nil, errors.Annotate(err, "failed to resample to %s", p.TradingFrequency)
	}
	if days := returns.First().DaysTill(returns.Last()); days < p.MinHistoryDays {
		return nil, db.NewError(db.DataError,
			"returns cover %d days, less than the minimum history of %d days",
			days, p.MinHistoryDays)
	}
	m := &marketData{
		params:     p,
		returns:    returns,
		volumes:    volumes,
		prices:     prices,
		firstValid: make(map[string]db.Date, len(assets)),
	}
	for j, a := range assets {
		col := returns.ColumnAt(j)
		for i, v := range col {
			if !math.IsNaN(v) {
				m.firstValid[a] = returns.Dates()[i]
				break
			}
		}
		if _, ok := m.firstValid[a]; !ok {
			logging.Warningf(ctx, "%s has no valid returns", a)
		}
	}
	logging.Debugf(ctx, "market data: %d assets, %d periods from %s to %s",
		len(assets), returns.Len(), returns.First(), returns.Last())
	return m, nil
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameDates(a, b []db.Date) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Returns is the full returns frame. Do not modify.
func (m *marketData) Returns() *db.Frame { return m.returns }

// Volumes is the full volumes frame, or nil. Do not modify.
func (m *marketData) Volumes() *db.Frame { return m.volumes }

// Prices is the full prices frame, or nil. Do not modify.
func (m *marketData) Prices() *db.Frame { return m.prices }

func (m *marketData) CashKey() string { return m.params.CashKey }

func (m *marketData) FullUniverse() []string {
	return append([]string{}, m.returns.Columns()...)
}

func (m *marketData) index(t db.Date) (int, error) {
	i := m.returns.Index(t)
	if i < 0 {
		return -1, db.NewError(db.MissingTimesError, "%s is not a trading date", t)
	}
	return i, nil
}

// validAt checks whether the non-cash asset at column j is tradable at row i.
func (m *marketData) validAt(i, j int) bool {
	a := m.returns.Columns()[j]
	fv, ok := m.firstValid[a]
	if !ok {
		return false
	}
	if m.returns.Dates()[i].Before(fv.AddDays(m.params.MinHistoryDays)) {
		return false
	}
	if !m.params.OnlineUsage && math.IsNaN(m.returns.Value(i, j)) {
		return false
	}
	if m.prices != nil && math.IsNaN(m.prices.Value(i, j)) {
		return false
	}
	return true
}

func (m *marketData) universeAt(i int) []string {
	cols := m.returns.Columns()
	var res []string
	for j := 0; j < len(cols)-1; j++ {
		if m.validAt(i, j) {
			res = append(res, cols[j])
		}
	}
	return append(res, m.params.CashKey)
}

func (m *marketData) UniverseAt(t db.Date) ([]string, error) {
	i, err := m.index(t)
	if err != nil {
		return nil, err
	}
	return m.universeAt(i), nil
}

func (m *marketData) Serve(t db.Date) (*Snapshot, error) {
	i, err := m.index(t)
	if err != nil {
		return nil, err
	}
	universe := m.universeAt(i)
	assets := universe[:len(universe)-1]

	past, err := m.returns.Head(i).Select(universe...)
	if err != nil {
		return nil, errors.Annotate(err, "failed to select past returns")
	}
	current, err := m.returns.Row(i).Select(universe)
	if err != nil {
		return nil, errors.Annotate(err, "failed to select current returns")
	}
	s := &Snapshot{PastReturns: past.Copy(), CurrentReturns: current}
	if m.volumes != nil {
		pv, err := m.volumes.Head(i).Select(assets...)
		if err != nil {
			return nil, errors.Annotate(err, "failed to select past volumes")
		}
		s.PastVolumes = pv.Copy()
		if s.CurrentVolumes, err = m.volumes.Row(i).Select(assets); err != nil {
			return nil, errors.Annotate(err, "failed to select current volumes")
		}
	}
	if m.prices != nil {
		if s.CurrentPrices, err = m.prices.Row(i).Select(assets); err != nil {
			return nil, errors.Annotate(err, "failed to select current prices")
		}
	}
	return s, nil
}

// earliestStart is the first date with at least the minimum history of any
// non-cash asset.
func (m *marketData) earliestStart() (db.Date, error) {
	var firstAny db.Date
	for _, d := range m.firstValid {
		if firstAny.IsZero() || d.Before(firstAny) {
			firstAny = d
		}
	}
	if firstAny.IsZero() {
		return db.Date{}, db.NewError(db.DataError, "no asset has valid returns")
	}
	earliest := firstAny.AddDays(m.params.MinHistoryDays)
	dates := m.returns.Dates()
	for _, d := range dates {
		if !d.Before(earliest) {
			return d, nil
		}
	}
	return db.Date{}, db.NewError(db.DataError,
		"no date has %d days of history after %s", m.params.MinHistoryDays, firstAny)
}

// lastValidIndex is the index of the last date with any valid non-cash
// return, or the last index for online usage.
func (m *marketData) lastValidIndex() int {
	last := m.returns.Len() - 1
	if m.params.OnlineUsage {
		return last
	}
	n := len(m.returns.Columns()) - 1
	for ; last >= 0; last-- {
		for j := 0; j < n; j++ {
			if !math.IsNaN(m.returns.Value(last, j)) {
				return last
			}
		}
	}
	return last
}

func (m *marketData) TradingCalendar(start, end db.Date, includeEnd bool) ([]db.Date, error) {
	earliest, err := m.earliestStart()
	if err != nil {
		return nil, err
	}
	if start.Before(earliest) {
		start = earliest
	}
	dates := m.returns.Dates()[:m.lastValidIndex()+1]
	var res []db.Date
	for _, d := range dates {
		if d.Before(start) {
			continue
		}
		if !end.IsZero() && (end.Before(d) || (!includeEnd && d == end)) {
			break
		}
		res = append(res, d)
	}
	if len(res) == 0 {
		return nil, db.NewError(db.MissingTimesError,
			"no trading dates between %s and %s", start, end)
	}
	return res, nil
}

func (m *marketData) PeriodsPerYear() int {
	if m.returns.Len() < 2 {
		return 0
	}
	days := float64(m.returns.First().DaysTill(m.returns.Last()))
	return int(math.Round(float64(m.returns.Len()) * 365.24 / days))
}

func (m *marketData) PartialUniverseSignature(universe []string) string {
	h := sha256.Sum256([]byte(strings.Join(universe, "\x00")))
	return hex.EncodeToString(h[:])
}
