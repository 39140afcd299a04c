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

package stats

import (
	"math"
	"testing"

	"github.com/stockparfait/marketdata/db"
	"github.com/stockparfait/testutil"
	"gonum.org/v1/gonum/mat"

	. "github.com/smartystreets/goconvey/convey"
)

func testFrame(columns []string, data ...[]float64) *db.Frame {
	dates := make([]db.Date, len(data[0]))
	for i := range dates {
		dates[i] = db.NewDate(2021, 1, 4).AddDays(i)
	}
	f, err := db.NewFrame(dates, columns, data)
	if err != nil {
		panic(err)
	}
	return f
}

func TestStats(t *testing.T) {
	t.Parallel()
	nan := math.NaN()

	Convey("Sample", t, func() {
		s := NewSample([]float64{1, nan, 2, 3})
		So(s.Len(), ShouldEqual, 3)
		So(s.Data(), ShouldResemble, []float64{1, 2, 3})
		So(s.Mean(), ShouldEqual, 2)
		So(s.Variance(), ShouldEqual, 1)
		So(s.Sigma(), ShouldEqual, 1)

		So(math.IsNaN(NewSample(nil).Mean()), ShouldBeTrue)
		one := NewSample([]float64{5})
		So(one.Mean(), ShouldEqual, 5)
		So(math.IsNaN(one.Sigma()), ShouldBeTrue)
	})

	Convey("Summarize", t, func() {
		f := testFrame([]string{"A", "B"},
			[]float64{0.01, 0.03, nan, 0.02},
			[]float64{0, 0, 0, 0})
		res := Summarize(f, 252)
		So(len(res), ShouldEqual, 2)
		So(res[0].Name, ShouldEqual, "A")
		So(res[0].Count, ShouldEqual, 3)
		So(testutil.Round(res[0].Mean, 5), ShouldEqual, 5.04)
		So(testutil.Round(res[0].Volatility, 5), ShouldEqual, testutil.Round(0.01*math.Sqrt(252), 5))
		So(testutil.Round(res[0].Sharpe, 5), ShouldEqual, testutil.Round(5.04/(0.01*math.Sqrt(252)), 5))
		So(res[1].Volatility, ShouldEqual, 0)
		So(math.IsNaN(res[1].Sharpe), ShouldBeTrue)
		So(res[1].CSV(), ShouldResemble, []string{"B", "4", "0.00%", "0.00%", "-"})

		tbl := SummaryTable(res)
		So(tbl.Header, ShouldResemble, SummaryHeader)
		So(len(tbl.Rows), ShouldEqual, 2)
	})

	Convey("SigmaEstimate", t, func() {
		f := testFrame([]string{"A"}, []float64{1, 3, 5, nan, 11})
		s, err := SigmaEstimate(f, 2)
		So(err, ShouldBeNil)
		So(s.Dates(), ShouldResemble, f.Dates())
		sigma := s.Column("A")
		So(math.IsNaN(sigma[0]), ShouldBeTrue)
		So(math.IsNaN(sigma[1]), ShouldBeTrue)
		So(testutil.Round(sigma[2], 5), ShouldEqual, testutil.Round(math.Sqrt2, 5))
		So(testutil.Round(sigma[3], 5), ShouldEqual, testutil.Round(math.Sqrt2, 5))
		So(math.IsNaN(sigma[4]), ShouldBeTrue)

		_, err = SigmaEstimate(f, 1)
		So(err, ShouldNotBeNil)
	})

	Convey("Covariance", t, func() {
		f := testFrame([]string{"A", "B"},
			[]float64{1, 2, nan, 3},
			[]float64{2, 4, 100, 6})
		cov, err := Covariance(f)
		So(err, ShouldBeNil)
		So(cov.Rows, ShouldResemble, []string{"A", "B"})
		So(cov.Columns, ShouldResemble, []string{"A", "B"})
		So(mat.EqualApprox(cov.Data, mat.NewDense(2, 2, []float64{1, 2, 2, 4}), 1e-12), ShouldBeTrue)

		_, err = Covariance(testFrame([]string{"A"}, []float64{1, nan}))
		So(db.IsKind(err, db.DataError), ShouldBeTrue)
	})
}
