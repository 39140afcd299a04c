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
	"math"
	"runtime"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/marketdata/datasource"
	"github.com/stockparfait/marketdata/db"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Names of the supported data sources.
const (
	SourceYahooFinance = "YahooFinance"
	SourceFred         = "Fred"
)

// CashRateSymbol is the FRED series of the US dollar cash rate, the Federal
// Funds effective rate in percent per year.
const CashRateSymbol = "DFF"

// DownloadedParams configure Downloaded market data.
type DownloadedParams struct {
	Params
	Universe   []string
	Datasource string     // SourceYahooFinance (default) or SourceFred
	Storage    db.Storage // required
	// GracePeriod before the stored data is updated. Default:
	// datasource.DefaultGracePeriod.
	GracePeriod time.Duration
	Workers     int               // parallel downloads; default: 2*runtime.NumCPU()
	Source      datasource.Source // overrides Datasource when set
	CashSource  datasource.Source // default: datasource.Fred
	Now         func() time.Time  // default: time.Now
}

// Downloaded serves market data downloaded from a public data source and
// stored locally.
type Downloaded struct {
	*marketData
	source string
}

var _ MarketData = &Downloaded{}

// NormalizeUniverse deduplicates and sorts the symbols.
func NormalizeUniverse(universe []string) []string {
	set := make(map[string]struct{}, len(universe))
	for _, s := range universe {
		set[s] = struct{}{}
	}
	res := maps.Keys(set)
	slices.Sort(res)
	return res
}

func (p *DownloadedParams) source() (datasource.Source, error) {
	if p.Source != nil {
		return p.Source, nil
	}
	switch p.Datasource {
	case "", SourceYahooFinance:
		return &datasource.YahooFinance{Now: p.Now}, nil
	case SourceFred:
		return &datasource.Fred{}, nil
	}
	return nil, errors.Reason("unsupported data source: '%s'", p.Datasource)
}

func (p *DownloadedParams) symbolData(symbol string, source datasource.Source) *datasource.SymbolData {
	s := datasource.NewSymbolData(symbol, source, p.Storage)
	if p.GracePeriod > 0 {
		s.GracePeriod = p.GracePeriod
	}
	s.Now = p.Now
	return s
}

type download struct {
	symbol string
	frame  *db.Frame
	err    error
}

// NewDownloaded updates the stored data of all the symbols in the universe and
// the cash rate, and assembles them into market data.
func NewDownloaded(ctx context.Context, p DownloadedParams) (*Downloaded, error) {
	p.setDefaults()
	if p.Storage == nil {
		return nil, errors.Reason("storage is required")
	}
	if p.CashKey != DefaultCashKey {
		return nil, db.NewError(db.DataError, "unsupported cash key '%s', only %s is available",
			p.CashKey, DefaultCashKey)
	}
	source, err := p.source()
	if err != nil {
		return nil, err
	}
	universe := NormalizeUniverse(p.Universe)
	if i := slices.Index(universe, p.CashKey); i >= 0 {
		logging.Warningf(ctx, "removing the cash key %s from the universe", p.CashKey)
		universe = slices.Delete(universe, i, i+1)
	}
	if len(universe) == 0 {
		return nil, db.NewError(db.DataError, "the universe is empty")
	}
	workers := p.Workers
	if workers <= 0 {
		workers = 2 * runtime.NumCPU()
	}

	f := func(symbol string) download {
		frame, err := p.symbolData(symbol, source).Data(ctx)
		return download{symbol: symbol, frame: frame, err: err}
	}
	pm := iterator.ParallelMap(ctx, workers, iterator.FromSlice(universe), f)
	defer pm.Close()
	results := iterator.Reduce[download, []download](pm, nil, func(d download, acc []download) []download {
		return append(acc, d)
	})
	slices.SortFunc(results, func(a, b download) bool { return a.symbol < b.symbol })

	var returns, volumes, prices []*db.Frame
	for _, r := range results {
		if r.err != nil {
			return nil, errors.Annotate(r.err, "failed to get data for %s", r.symbol)
		}
		ret, vol, pr, err := splitFrame(r.symbol, r.frame)
		if err != nil {
			return nil, errors.Annotate(err, "unexpected data for %s", r.symbol)
		}
		returns = append(returns, ret)
		if vol != nil {
			volumes = append(volumes, vol)
		}
		if pr != nil {
			prices = append(prices, pr)
		}
	}
	ret, err := db.Union(returns...)
	if err != nil {
		return nil, errors.Annotate(err, "failed to join returns")
	}
	var vol, pr *db.Frame
	if len(volumes) > 0 {
		if vol, err = db.Union(volumes...); err != nil {
			return nil, errors.Annotate(err, "failed to join volumes")
		}
		vol = vol.Reindex(ret.Dates(), false)
	}
	if len(prices) > 0 {
		if pr, err = db.Union(prices...); err != nil {
			return nil, errors.Annotate(err, "failed to join prices")
		}
		pr = pr.Reindex(ret.Dates(), false)
	}

	cashSource := p.CashSource
	if cashSource == nil {
		cashSource = &datasource.Fred{}
	}
	rates, err := p.symbolData(CashRateSymbol, cashSource).Data(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "failed to get the cash rate")
	}
	cash, err := cashReturns(rates, ret.Dates())
	if err != nil {
		return nil, err
	}
	if ret, err = ret.WithColumn(p.CashKey, cash); err != nil {
		return nil, errors.Annotate(err, "failed to add cash returns")
	}
	m, err := newMarketData(ctx, ret, vol, pr, p.Params)
	if err != nil {
		return nil, errors.Annotate(err, "invalid downloaded data")
	}
	return &Downloaded{marketData: m, source: source.Name()}, nil
}

// Source is the name of the data source.
func (d *Downloaded) Source() string { return d.source }

func singleColumn(name string, f *db.Frame, values []float64) (*db.Frame, error) {
	return db.NewFrame(f.Dates(), []string{name}, [][]float64{values})
}

// splitFrame extracts the returns, volumes and prices of a symbol. A single
// value series has no volumes and prices, and its returns are its relative
// changes.
func splitFrame(symbol string, f *db.Frame) (ret, vol, pr *db.Frame, err error) {
	if f.ColumnIndex(datasource.ColReturn) < 0 && f.ColumnIndex(datasource.ColValue) >= 0 {
		ret, err = singleColumn(symbol, f, forwardChange(f.Column(datasource.ColValue)))
		return
	}
	for _, c := range []string{datasource.ColReturn, datasource.ColValueVolume, datasource.ColOpen} {
		if f.ColumnIndex(c) < 0 {
			err = db.NewError(db.DataError, "missing column '%s'", c)
			return
		}
	}
	if ret, err = singleColumn(symbol, f, f.Column(datasource.ColReturn)); err != nil {
		return
	}
	if vol, err = singleColumn(symbol, f, f.Column(datasource.ColValueVolume)); err != nil {
		return
	}
	pr, err = singleColumn(symbol, f, f.Column(datasource.ColOpen))
	return
}

// forwardChange computes v[t+1]/v[t] - 1, with the last value NaN.
func forwardChange(values []float64) []float64 {
	res := db.NaNs(len(values))
	for i := 0; i+1 < len(values); i++ {
		res[i] = values[i+1]/values[i] - 1
	}
	return res
}

// cashReturns converts the annual percentage rates to daily returns on the
// given dates, carrying the last known rate forward.
func cashReturns(rates *db.Frame, dates []db.Date) ([]float64, error) {
	if rates.ColumnIndex(datasource.ColValue) < 0 {
		return nil, db.NewError(db.DataError, "cash rates have no '%s' column", datasource.ColValue)
	}
	r := rates.Reindex(dates, true).Column(datasource.ColValue)
	res := make([]float64, len(r))
	for i, v := range r {
		res[i] = math.Pow(1+v/100, 1.0/252) - 1
	}
	return res, nil
}
