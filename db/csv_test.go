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
	"bytes"
	"math"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCSV(t *testing.T) {
	t.Parallel()

	Convey("ParseValue and FormatValue", t, func() {
		for _, s := range []string{"", ".", "NaN", "nan", " "} {
			v, err := ParseValue(s)
			So(err, ShouldBeNil)
			So(math.IsNaN(v), ShouldBeTrue)
		}
		v, err := ParseValue(" 1.5")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 1.5)
		_, err = ParseValue("abc")
		So(err, ShouldNotBeNil)

		So(FormatValue(math.NaN()), ShouldEqual, "")
		So(FormatValue(0.25), ShouldEqual, "0.25")
	})

	Convey("WriteCSV", t, func() {
		var buf bytes.Buffer
		So(WriteCSV(&buf, testFrame()), ShouldBeNil)
		So(buf.String(), ShouldEqual, `date,A,B
2021-01-04,1,10
2021-01-05,2,
2021-01-07,3,30
`)
	})

	Convey("ReadCSV", t, func() {
		Convey("reads what WriteCSV wrote", func() {
			var buf bytes.Buffer
			So(WriteCSV(&buf, testFrame()), ShouldBeNil)
			f, err := ReadCSV(&buf)
			So(err, ShouldBeNil)
			So(f.Dates(), ShouldResemble, testFrame().Dates())
			So(f.Columns(), ShouldResemble, []string{"A", "B"})
			So(f.Column("A"), ShouldResemble, []float64{1, 2, 3})
			So(math.IsNaN(f.Column("B")[1]), ShouldBeTrue)
		})

		Convey("sorts unsorted rows", func() {
			f, err := ReadCSV(strings.NewReader(`Date,X
2021-01-05,2
2021-01-04,1
`))
			So(err, ShouldBeNil)
			So(f.Dates(), ShouldResemble, []Date{NewDate(2021, 1, 4), NewDate(2021, 1, 5)})
			So(f.Column("X"), ShouldResemble, []float64{1, 2})
		})

		Convey("rejects duplicate dates", func() {
			_, err := ReadCSV(strings.NewReader(`Date,X
2021-01-05,2
2021-01-05,1
`))
			So(err, ShouldNotBeNil)
		})

		Convey("rejects bad values", func() {
			_, err := ReadCSV(strings.NewReader(`Date,X
2021-01-05,abc
`))
			So(err, ShouldNotBeNil)
			_, err = ReadCSV(strings.NewReader(`Date,X
yesterday,1
`))
			So(err, ShouldNotBeNil)
			_, err = ReadCSV(strings.NewReader(""))
			So(err, ShouldNotBeNil)
		})
	})
}
