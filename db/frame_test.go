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
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func testFrame() *Frame {
	f, err := NewFrame(
		[]Date{NewDate(2021, 1, 4), NewDate(2021, 1, 5), NewDate(2021, 1, 7)},
		[]string{"A", "B"},
		[][]float64{{1, 2, 3}, {10, math.NaN(), 30}})
	if err != nil {
		panic(err)
	}
	return f
}

func TestFrame(t *testing.T) {
	t.Parallel()

	Convey("Series", t, func() {
		s := NewSeries([]string{"A", "B", "C"}, []float64{1, 2, math.NaN()})
		v, ok := s.Get("B")
		So(ok, ShouldBeTrue)
		So(v, ShouldEqual, 2)
		_, ok = s.Get("X")
		So(ok, ShouldBeFalse)
		So(s.HasNaN(), ShouldBeTrue)

		sel, err := s.Select([]string{"B", "A"})
		So(err, ShouldBeNil)
		So(sel, ShouldResemble, NewSeries([]string{"B", "A"}, []float64{2, 1}))
		So(sel.HasNaN(), ShouldBeFalse)

		_, err = s.Select([]string{"A", "X"})
		So(IsKind(err, MissingAssetsError), ShouldBeTrue)

		c := sel.Copy()
		c.Values[0] = 100
		So(sel.Values[0], ShouldEqual, 2)
	})

	Convey("Frame invariants are checked", t, func() {
		_, err := NewFrame([]Date{NewDate(2021, 1, 2), NewDate(2021, 1, 1)},
			[]string{"A"}, [][]float64{{1, 2}})
		So(IsKind(err, DataError), ShouldBeTrue)

		_, err = NewFrame([]Date{NewDate(2021, 1, 1)}, []string{"A"}, [][]float64{{1, 2}})
		So(IsKind(err, DataError), ShouldBeTrue)

		_, err = NewFrame([]Date{NewDate(2021, 1, 1)}, []string{"A", "A"},
			[][]float64{{1}, {2}})
		So(IsKind(err, DataError), ShouldBeTrue)

		So(EmptyFrame("A", "B").Check(), ShouldBeNil)
	})

	Convey("Frame access methods", t, func() {
		f := testFrame()
		So(f.Len(), ShouldEqual, 3)
		So(f.First(), ShouldResemble, NewDate(2021, 1, 4))
		So(f.Last(), ShouldResemble, NewDate(2021, 1, 7))
		So(f.Column("A"), ShouldResemble, []float64{1, 2, 3})
		So(f.Column("X"), ShouldBeNil)
		So(f.Index(NewDate(2021, 1, 5)), ShouldEqual, 1)
		So(f.Index(NewDate(2021, 1, 6)), ShouldEqual, -1)
		So(f.LastIndexAtOrBefore(NewDate(2021, 1, 6)), ShouldEqual, 1)
		So(f.LastIndexAtOrBefore(NewDate(2021, 1, 1)), ShouldEqual, -1)
		So(f.LastIndexAtOrBefore(NewDate(2022, 1, 1)), ShouldEqual, 2)

		r := f.Row(2)
		So(r, ShouldResemble, NewSeries([]string{"A", "B"}, []float64{3, 30}))

		So(f.Head(2).Dates(), ShouldResemble, f.Dates()[:2])
		So(f.Head(10).Len(), ShouldEqual, 3)
		So(f.Range(NewDate(2021, 1, 5), Date{}).Column("A"), ShouldResemble, []float64{2, 3})
		So(f.Range(Date{}, NewDate(2021, 1, 6)).Column("A"), ShouldResemble, []float64{1, 2})
		So(f.Range(NewDate(2021, 1, 8), Date{}).Len(), ShouldEqual, 0)

		s, err := f.Select("B")
		So(err, ShouldBeNil)
		So(s.Columns(), ShouldResemble, []string{"B"})
		_, err = f.Select("C")
		So(IsKind(err, MissingAssetsError), ShouldBeTrue)

		w, err := f.WithColumn("C", []float64{7, 8, 9})
		So(err, ShouldBeNil)
		So(w.Columns(), ShouldResemble, []string{"A", "B", "C"})
		So(f.Columns(), ShouldResemble, []string{"A", "B"})
		w, err = f.WithColumn("A", []float64{7, 8, 9})
		So(err, ShouldBeNil)
		So(w.Column("A"), ShouldResemble, []float64{7, 8, 9})
		So(f.Column("A"), ShouldResemble, []float64{1, 2, 3})
		_, err = f.WithColumn("D", []float64{1})
		So(err, ShouldNotBeNil)

		c := f.Copy()
		c.ColumnAt(0)[0] = 100
		So(f.Value(0, 0), ShouldEqual, 1)
	})

	Convey("Concat replaces the overlap", t, func() {
		f := testFrame()
		update, err := NewFrame(
			[]Date{NewDate(2021, 1, 5), NewDate(2021, 1, 8)},
			[]string{"B", "A"},
			[][]float64{{20, 40}, {2.5, 4}})
		So(err, ShouldBeNil)
		res, err := f.Concat(update)
		So(err, ShouldBeNil)
		So(res.Dates(), ShouldResemble, []Date{
			NewDate(2021, 1, 4), NewDate(2021, 1, 5), NewDate(2021, 1, 8)})
		So(res.Column("A"), ShouldResemble, []float64{1, 2.5, 4})
		So(res.Column("B"), ShouldResemble, []float64{10, 20, 40})
		So(res.Check(), ShouldBeNil)

		bad, err := NewFrame([]Date{}, []string{"C", "A"}, [][]float64{{}, {}})
		So(err, ShouldBeNil)
		_, err = f.Concat(bad)
		So(err, ShouldNotBeNil)
	})

	Convey("Reindex and Union", t, func() {
		f := testFrame()
		dates := []Date{NewDate(2021, 1, 3), NewDate(2021, 1, 5), NewDate(2021, 1, 6)}
		r := f.Reindex(dates, false)
		So(math.IsNaN(r.Column("A")[0]), ShouldBeTrue)
		So(r.Column("A")[1], ShouldEqual, 2)
		So(math.IsNaN(r.Column("A")[2]), ShouldBeTrue)

		r = f.Reindex(dates, true)
		So(math.IsNaN(r.Column("A")[0]), ShouldBeTrue)
		So(r.Column("A")[1:], ShouldResemble, []float64{2, 2})

		g, err := NewFrame([]Date{NewDate(2021, 1, 6)}, []string{"C"}, [][]float64{{5}})
		So(err, ShouldBeNil)
		u, err := Union(f, g)
		So(err, ShouldBeNil)
		So(u.Len(), ShouldEqual, 4)
		So(u.Columns(), ShouldResemble, []string{"A", "B", "C"})
		So(u.Column("C")[2], ShouldEqual, 5)
		So(math.IsNaN(u.Column("A")[2]), ShouldBeTrue)

		_, err = Union(f, f)
		So(err, ShouldNotBeNil)
	})
}
