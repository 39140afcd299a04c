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
	"net/http"
	"net/url"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/marketdata/db"
)

// YahooURL is the base URL of the Yahoo Finance chart API. It can be
// overridden in tests.
var YahooURL = "https://query2.finance.yahoo.com/v8/finance/chart"

// YahooUserAgent is sent with every request; the API rejects unknown agents.
var YahooUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Columns of the Yahoo Finance frames.
const (
	ColOpen        = "open"
	ColHigh        = "high"
	ColLow         = "low"
	ColClose       = "close"
	ColAdjClose    = "adjclose"
	ColVolume      = "volume"
	ColReturn      = "return"
	ColValueVolume = "valuevolume"
)

// YahooRawColumns are the downloaded columns, in the stored order.
var YahooRawColumns = []string{
	ColOpen, ColHigh, ColLow, ColClose, ColAdjClose, ColVolume}

// YahooColumns are all the columns of a YahooFinance frame.
var YahooColumns = append(append([]string{}, YahooRawColumns...),
	ColReturn, ColValueVolume)

// YahooOverlap is the number of last stored rows downloaded again on update.
const YahooOverlap = 5

var yahooEpoch = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// YahooFinance downloads daily bars of stocks and ETFs.
type YahooFinance struct {
	Now func() time.Time // default: time.Now
}

var _ Source = &YahooFinance{}

// Name implements Source.
func (y *YahooFinance) Name() string { return "YahooFinance" }

type yahooQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

type yahooAdjClose struct {
	AdjClose []*float64 `json:"adjclose"`
}

type yahooResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote    []yahooQuote    `json:"quote"`
		AdjClose []yahooAdjClose `json:"adjclose"`
	} `json:"indicators"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type yahooResponse struct {
	Chart struct {
		Result []yahooResult `json:"result"`
		Error  *yahooError   `json:"error"`
	} `json:"chart"`
}

func (y *YahooFinance) now() time.Time {
	if y.Now == nil {
		return time.Now()
	}
	return y.Now()
}

// Download implements Source. With the current data present, only the last
// YahooOverlap rows and the new ones are downloaded.
func (y *YahooFinance) Download(ctx context.Context, symbol string, current *db.Frame) (*db.Frame, error) {
	start := yahooEpoch
	var stored *db.Frame
	if current != nil && current.Len() > YahooOverlap {
		var err error
		if stored, err = current.Select(YahooRawColumns...); err != nil {
			logging.Warningf(ctx, "stored %s data is incompatible, downloading in full: %s",
				symbol, err.Error())
			stored = nil
		} else {
			start = current.Dates()[current.Len()-YahooOverlap].ToTime()
		}
	}
	raw, err := y.fetch(ctx, symbol, start, y.now())
	if err != nil {
		return nil, err
	}
	if stored != nil {
		if raw, err = stored.Concat(raw); err != nil {
			return nil, errors.Annotate(err, "failed to merge %s with stored data", symbol)
		}
	}
	cleanYahoo(ctx, symbol, raw)
	return deriveYahoo(ctx, symbol, raw)
}

func (y *YahooFinance) fetch(ctx context.Context, symbol string, start, end time.Time) (*db.Frame, error) {
	uri := YahooURL + "/" + url.PathEscape(symbol)
	query := url.Values{}
	query.Set("interval", "1d")
	query.Set("period1", fmt.Sprintf("%d", start.Unix()))
	query.Set("period2", fmt.Sprintf("%d", end.Unix()))
	query.Set("includeAdjustedClose", "true")

	var resp yahooResponse
	if err := fetch.FetchJSON(withUserAgent(ctx, YahooUserAgent), uri, &resp, query, nil); err != nil {
		return nil, errors.Annotate(err, "failed to fetch %s from Yahoo Finance", symbol)
	}
	if e := resp.Chart.Error; e != nil {
		return nil, errors.Reason("Yahoo Finance error for %s: %s: %s",
			symbol, e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, errors.Reason("Yahoo Finance returned no results for %s", symbol)
	}
	return yahooFrame(ctx, symbol, &resp.Chart.Result[0])
}

// userAgentTransport sets the User-Agent header of every request.
type userAgentTransport struct {
	base  http.RoundTripper
	agent string
}

func (t *userAgentTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(r)
}

// withUserAgent installs a copy of the context's HTTP client which sends the
// agent with every request.
func withUserAgent(ctx context.Context, agent string) context.Context {
	client := http.DefaultClient
	if c := fetch.GetClient(ctx); c != nil {
		client = c
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c := *client
	c.Transport = &userAgentTransport{base: base, agent: agent}
	return fetch.UseClient(ctx, &c)
}

func yahooValue(vs []*float64, i int) float64 {
	if i >= len(vs) || vs[i] == nil {
		return math.NaN()
	}
	return *vs[i]
}

// yahooFrame converts the API result to a frame of YahooRawColumns. Multiple
// timestamps on the same date keep the last one.
func yahooFrame(ctx context.Context, symbol string, r *yahooResult) (*db.Frame, error) {
	if len(r.Timestamp) == 0 {
		return nil, errors.Reason("Yahoo Finance returned no data for %s", symbol)
	}
	if len(r.Indicators.Quote) == 0 {
		return nil, errors.Reason("Yahoo Finance returned no quotes for %s", symbol)
	}
	tz := r.Meta.ExchangeTimezoneName
	if tz == "" {
		tz = "America/New_York"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errors.Annotate(err, "bad exchange timezone for %s", symbol)
	}
	q := &r.Indicators.Quote[0]
	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}
	sources := [][]*float64{q.Open, q.High, q.Low, q.Close, adj, q.Volume}

	var dates []db.Date
	data := make([][]float64, len(YahooRawColumns))
	for i, ts := range r.Timestamp {
		d := db.NewDateFromTime(time.Unix(ts, 0).In(loc))
		n := len(dates)
		if n > 0 && !dates[n-1].Before(d) {
			if dates[n-1] != d {
				return nil, errors.Reason("%s: timestamps out of order at %s", symbol, d)
			}
			logging.Debugf(ctx, "%s: duplicate date %s, keeping the latest", symbol, d)
			for j, s := range sources {
				data[j][n-1] = yahooValue(s, i)
			}
			continue
		}
		dates = append(dates, d)
		for j, s := range sources {
			data[j] = append(data[j], yahooValue(s, i))
		}
	}
	return db.NewFrame(dates, append([]string{}, YahooRawColumns...), data)
}

func isMissing(v float64) bool { return math.IsNaN(v) }

// cleanYahoo fixes the known problems of the Yahoo Finance data in place.
func cleanYahoo(ctx context.Context, symbol string, f *db.Frame) {
	open := f.Column(ColOpen)
	high := f.Column(ColHigh)
	low := f.Column(ColLow)
	cls := f.Column(ColClose)
	adj := f.Column(ColAdjClose)
	vol := f.Column(ColVolume)

	warn := func(n int, format string) {
		if n > 0 {
			logging.Warningf(ctx, "%s: "+format, symbol, n)
		}
	}
	for _, c := range []struct {
		name   string
		values []float64
	}{{ColOpen, open}, {ColHigh, high}, {ColLow, low}, {ColClose, cls}, {ColAdjClose, adj}} {
		n := 0
		for i, v := range c.values {
			if v <= 0 {
				c.values[i] = math.NaN()
				n++
			}
		}
		warn(n, "%d non-positive '"+c.name+"' values are removed")
	}
	n := 0
	for i, v := range vol {
		if v < 0 {
			vol[i] = math.NaN()
			n++
		}
	}
	warn(n, "%d negative volumes are removed")

	n = 0
	for i := 1; i < len(open); i++ {
		if isMissing(open[i]) && !isMissing(cls[i-1]) {
			open[i] = cls[i-1]
			n++
		}
	}
	warn(n, "%d missing open prices are filled with the previous close")

	n = 0
	for i := range cls {
		if isMissing(cls[i]) && !isMissing(open[i]) {
			cls[i] = open[i]
			n++
		}
	}
	warn(n, "%d missing close prices are filled with the open")

	nh, nl := 0, 0
	for i := range open {
		if isMissing(open[i]) || isMissing(cls[i]) {
			continue
		}
		hi := math.Max(open[i], cls[i])
		lo := math.Min(open[i], cls[i])
		if isMissing(high[i]) || high[i] < hi {
			high[i] = hi
			nh++
		}
		if isMissing(low[i]) || low[i] > lo {
			low[i] = lo
			nl++
		}
	}
	warn(nh, "%d missing or inconsistent high prices are fixed")
	warn(nl, "%d missing or inconsistent low prices are fixed")

	n = 0
	ratio := math.NaN()
	for i := range adj {
		if !isMissing(adj[i]) && !isMissing(cls[i]) {
			ratio = adj[i] / cls[i]
			continue
		}
		if isMissing(adj[i]) && !isMissing(cls[i]) && !isMissing(ratio) {
			adj[i] = cls[i] * ratio
			n++
		}
	}
	warn(n, "%d missing adjusted closes are filled from the previous ratio")
}

// deriveYahoo adds the return and valuevolume columns.
func deriveYahoo(ctx context.Context, symbol string, f *db.Frame) (*db.Frame, error) {
	open := f.Column(ColOpen)
	cls := f.Column(ColClose)
	adj := f.Column(ColAdjClose)
	vol := f.Column(ColVolume)
	l := f.Len()

	ret := db.NaNs(l)
	vv := db.NaNs(l)
	suspicious := 0
	for i := 0; i+1 < l; i++ {
		r0 := adj[i] / cls[i]
		r1 := adj[i+1] / cls[i+1]
		ret[i] = open[i+1]*r1/(open[i]*r0) - 1
		if math.Abs(ret[i]) > 1 {
			suspicious++
			logging.Debugf(ctx, "%s: return on %s is %.2f", symbol, f.Dates()[i], ret[i])
		}
		vv[i] = vol[i] * open[i]
	}
	if suspicious > 0 {
		logging.Warningf(ctx, "%s: %d returns are larger than 100%% in absolute value",
			symbol, suspicious)
	}
	res, err := f.WithColumn(ColReturn, ret)
	if err != nil {
		return nil, errors.Annotate(err, "failed to add returns for %s", symbol)
	}
	if res, err = res.WithColumn(ColValueVolume, vv); err != nil {
		return nil, errors.Annotate(err, "failed to add value volumes for %s", symbol)
	}
	return res, nil
}
