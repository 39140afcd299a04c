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
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/marketdata/datasource"
	"github.com/stockparfait/marketdata/db"
	"github.com/stockparfait/testutil"

	. "github.com/smartystreets/goconvey/convey"
)

type testSource struct {
	name   string
	mu     sync.Mutex
	frames map[string]*db.Frame
	calls  map[string]int
}

var _ datasource.Source = &testSource{}

func newTestSource(name string, frames map[string]*db.Frame) *testSource {
	return &testSource{name: name, frames: frames, calls: make(map[string]int)}
}

func (s *testSource) Name() string { return s.name }

func (s *testSource) Download(ctx context.Context, symbol string, current *db.Frame) (*db.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[symbol]++
	f, ok := s.frames[symbol]
	if !ok {
		return nil, errors.Reason("unknown symbol %s", symbol)
	}
	return f, nil
}

// yahooTestFrame has the columns of a YahooFinance frame used by Downloaded.
func yahooTestFrame(start db.Date, n int, ret, open, volume float64) *db.Frame {
	r := repeat(ret, n)
	r[n-1] = nan
	vv := repeat(volume*open, n)
	vv[n-1] = nan
	return testFrame(testDates(start, n),
		[]string{datasource.ColOpen, datasource.ColReturn, datasource.ColValueVolume},
		repeat(open, n), r, vv)
}

func TestDownloaded(t *testing.T) {
	t.Parallel()
	tmpdir, tmpdirErr := os.MkdirTemp("", "test_downloaded")
	defer os.RemoveAll(tmpdir)

	Convey("Test setup succeeded", t, func() {
		So(tmpdirErr, ShouldBeNil)
	})

	Convey("Downloaded market data", t, func() {
		ctx := context.Background()
		dir, err := os.MkdirTemp(tmpdir, "storage")
		So(err, ShouldBeNil)
		storage, err := db.NewFileStorage(dir, db.BackendGob)
		So(err, ShouldBeNil)

		source := newTestSource("TestStocks", map[string]*db.Frame{
			"AAA": yahooTestFrame(db.NewDate(2021, 1, 4), 10, 0.01, 10, 100),
			"BBB": yahooTestFrame(db.NewDate(2021, 1, 6), 8, 0.02, 20, 10),
		})
		cashSource := newTestSource("TestRates", map[string]*db.Frame{
			CashRateSymbol: testFrame(
				[]db.Date{db.NewDate(2021, 1, 1), db.NewDate(2021, 1, 8)},
				[]string{datasource.ColValue}, []float64{5, 6}),
		})
		now := time.Date(2021, 1, 14, 0, 0, 0, 0, time.UTC)
		p := DownloadedParams{
			Params:      Params{MinHistoryDays: 2},
			Universe:    []string{"BBB", "AAA", "AAA", DefaultCashKey},
			Storage:     storage,
			GracePeriod: 30 * 24 * time.Hour,
			Workers:     2,
			Source:      source,
			CashSource:  cashSource,
			Now:         func() time.Time { return now },
		}

		Convey("assembles stock data", func() {
			m, err := NewDownloaded(ctx, p)
			So(err, ShouldBeNil)
			So(m.Source(), ShouldEqual, "TestStocks")
			So(m.FullUniverse(), ShouldResemble, []string{"AAA", "BBB", DefaultCashKey})
			So(m.Returns().Dates(), ShouldResemble, testDates(db.NewDate(2021, 1, 4), 10))
			So(m.Volumes().Columns(), ShouldResemble, []string{"AAA", "BBB"})
			So(m.Prices().Column("BBB")[2], ShouldEqual, 20)
			So(math.IsNaN(m.Prices().Column("BBB")[0]), ShouldBeTrue)
			So(m.Volumes().Column("AAA")[0], ShouldEqual, 1000)

			cash := m.Returns().Column(DefaultCashKey)
			So(testutil.Round(cash[0], 6), ShouldEqual, testutil.Round(math.Pow(1.05, 1.0/252)-1, 6))
			So(testutil.Round(cash[9], 6), ShouldEqual, testutil.Round(math.Pow(1.06, 1.0/252)-1, 6))

			s, err := m.Serve(db.NewDate(2021, 1, 8))
			So(err, ShouldBeNil)
			So(s.CurrentReturns.Labels, ShouldResemble, []string{"AAA", "BBB", DefaultCashKey})
			So(s.CurrentPrices.Values, ShouldResemble, []float64{10, 20})

			cal, err := m.TradingCalendar(db.Date{}, db.Date{}, true)
			So(err, ShouldBeNil)
			So(cal, ShouldResemble, testDates(db.NewDate(2021, 1, 6), 7))

			Convey("and caches the downloads", func() {
				_, err := NewDownloaded(ctx, p)
				So(err, ShouldBeNil)
				So(source.calls["AAA"], ShouldEqual, 1)
				So(source.calls["BBB"], ShouldEqual, 1)
				So(cashSource.calls[CashRateSymbol], ShouldEqual, 1)
			})
		})

		Convey("economic series", func() {
			p.Source = newTestSource("TestSeries", map[string]*db.Frame{
				"GDP": testFrame(testDates(db.NewDate(2021, 1, 4), 4),
					[]string{datasource.ColValue}, []float64{100, 110, 121, 121}),
			})
			p.Universe = []string{"GDP"}
			p.MinHistoryDays = -1
			m, err := NewDownloaded(ctx, p)
			So(err, ShouldBeNil)
			So(m.Volumes(), ShouldBeNil)
			So(m.Prices(), ShouldBeNil)
			r := m.Returns().Column("GDP")
			So(testutil.RoundSlice(r[:3], 5), ShouldResemble, []float64{0.1, 0.1, 0})
			So(math.IsNaN(r[3]), ShouldBeTrue)
		})

		Convey("errors", func() {
			Convey("unsupported cash key", func() {
				p.CashKey = "EURO"
				_, err := NewDownloaded(ctx, p)
				So(db.IsKind(err, db.DataError), ShouldBeTrue)
			})

			Convey("unknown symbol", func() {
				p.Universe = []string{"AAA", "ZZZ"}
				_, err := NewDownloaded(ctx, p)
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "unknown symbol ZZZ")
			})

			Convey("empty universe", func() {
				p.Universe = []string{DefaultCashKey}
				_, err := NewDownloaded(ctx, p)
				So(db.IsKind(err, db.DataError), ShouldBeTrue)
			})

			Convey("unsupported data source", func() {
				p.Source = nil
				p.Datasource = "Bloomberg"
				_, err := NewDownloaded(ctx, p)
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "unsupported data source")
			})
		})
	})

	Convey("NormalizeUniverse", t, func() {
		So(NormalizeUniverse([]string{"C", "A", "B", "A"}), ShouldResemble, []string{"A", "B", "C"})
		So(NormalizeUniverse(nil), ShouldResemble, []string{})
	})
}
