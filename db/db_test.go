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
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func testStorage(ctx context.Context, s Storage) {
	f, err := s.Load(ctx, "Source/NONE")
	So(err, ShouldBeNil)
	So(f, ShouldBeNil)

	So(s.Store(ctx, "Source/SYM", testFrame()), ShouldBeNil)
	f, err = s.Load(ctx, "Source/SYM")
	So(err, ShouldBeNil)
	So(f, ShouldNotBeNil)
	So(f.Dates(), ShouldResemble, testFrame().Dates())
	So(f.Columns(), ShouldResemble, testFrame().Columns())
	So(f.Column("A"), ShouldResemble, testFrame().Column("A"))
	So(math.IsNaN(f.Column("B")[1]), ShouldBeTrue)

	// Overwrite.
	g, err := testFrame().Select("B")
	So(err, ShouldBeNil)
	So(s.Store(ctx, "Source/SYM", g), ShouldBeNil)
	f, err = s.Load(ctx, "Source/SYM")
	So(err, ShouldBeNil)
	So(f.Columns(), ShouldResemble, []string{"B"})

	// A frame without rows keeps its columns.
	So(s.Store(ctx, "Source/EMPTY", EmptyFrame("A", "B")), ShouldBeNil)
	f, err = s.Load(ctx, "Source/EMPTY")
	So(err, ShouldBeNil)
	So(f, ShouldNotBeNil)
	So(f.Len(), ShouldEqual, 0)
	So(f.Columns(), ShouldResemble, []string{"A", "B"})

	So(s.Store(ctx, "../escape", testFrame()), ShouldNotBeNil)
	_, err = s.Load(ctx, "")
	So(err, ShouldNotBeNil)
}

func TestDB(t *testing.T) {
	t.Parallel()
	tmpdir, tmpdirErr := os.MkdirTemp("", "testdb")
	defer os.RemoveAll(tmpdir)

	Convey("Test setup succeeded", t, func() {
		So(tmpdirErr, ShouldBeNil)
	})

	ctx := context.Background()

	Convey("Gob blobs round trip", t, func() {
		b, err := MarshalFrame(testFrame())
		So(err, ShouldBeNil)
		f, err := UnmarshalFrame(b)
		So(err, ShouldBeNil)
		So(f.Column("A"), ShouldResemble, []float64{1, 2, 3})

		b, err = MarshalFrame(EmptyFrame("A"))
		So(err, ShouldBeNil)
		f, err = UnmarshalFrame(b)
		So(err, ShouldBeNil)
		So(f.Len(), ShouldEqual, 0)
		So(f.Columns(), ShouldResemble, []string{"A"})

		_, err = UnmarshalFrame([]byte("junk"))
		So(err, ShouldNotBeNil)
	})

	Convey("NewStorage", t, func() {
		s, err := NewStorage(ctx, StorageConfig{Location: tmpdir})
		So(err, ShouldBeNil)
		So(s.(*FileStorage).Path("Src/X"), ShouldEqual, filepath.Join(tmpdir, "Src", "X.gob"))

		s, err = NewStorage(ctx, StorageConfig{Backend: BackendCSV, Location: tmpdir})
		So(err, ShouldBeNil)
		So(s.(*FileStorage).Path("Src/X"), ShouldEqual, filepath.Join(tmpdir, "Src", "X.csv"))

		_, err = NewStorage(ctx, StorageConfig{})
		So(err, ShouldNotBeNil)
		_, err = NewStorage(ctx, StorageConfig{Backend: BackendRedis})
		So(err, ShouldNotBeNil)
		_, err = NewStorage(ctx, StorageConfig{Backend: BackendPostgres})
		So(err, ShouldNotBeNil)
		_, err = NewStorage(ctx, StorageConfig{Backend: "sqlite", Location: tmpdir})
		So(err, ShouldNotBeNil)
	})

	Convey("Gob file storage", t, func() {
		s, err := NewFileStorage(filepath.Join(tmpdir, "gob"), BackendGob)
		So(err, ShouldBeNil)
		testStorage(ctx, s)
	})

	Convey("CSV file storage", t, func() {
		s, err := NewFileStorage(filepath.Join(tmpdir, "csv"), BackendCSV)
		So(err, ShouldBeNil)
		testStorage(ctx, s)
	})

	Convey("Redis storage", t, func() {
		addr := os.Getenv("PARFAIT_TEST_REDIS")
		if addr == "" {
			SkipConvey("set PARFAIT_TEST_REDIS=host:port to test", func() {})
			return
		}
		s, err := NewRedisStorage(ctx, addr)
		So(err, ShouldBeNil)
		defer s.Close()
		testStorage(ctx, s)
	})

	Convey("Postgres rows round trip", t, func() {
		toFrame := func(columns, cells [][]any) (*Frame, error) {
			var names []string
			for _, c := range columns {
				names = append(names, c[2].(string))
			}
			var pc []postgresCell
			for _, c := range cells {
				pc = append(pc, postgresCell{
					Date:   NewDateFromTime(c[1].(time.Time)),
					Column: c[2].(int),
					Value:  c[3].(float64),
				})
			}
			return postgresFrame(names, pc)
		}

		Convey("frame with rows", func() {
			columns, cells := postgresRows("Source/SYM", testFrame())
			So(len(columns), ShouldEqual, 2)
			So(len(cells), ShouldEqual, 2*testFrame().Len())
			So(columns[0], ShouldResemble, []any{"Source/SYM", 0, "A"})
			f, err := toFrame(columns, cells)
			So(err, ShouldBeNil)
			So(f.Dates(), ShouldResemble, testFrame().Dates())
			So(f.Column("A"), ShouldResemble, testFrame().Column("A"))
			So(math.IsNaN(f.Column("B")[1]), ShouldBeTrue)
		})

		Convey("frame without rows keeps its columns", func() {
			columns, cells := postgresRows("Source/EMPTY", EmptyFrame("A", "B"))
			So(len(columns), ShouldEqual, 2)
			So(len(cells), ShouldEqual, 0)
			f, err := toFrame(columns, cells)
			So(err, ShouldBeNil)
			So(f.Len(), ShouldEqual, 0)
			So(f.Columns(), ShouldResemble, []string{"A", "B"})
		})

		Convey("missing cells are NaN", func() {
			d := NewDate(2021, 1, 4)
			f, err := postgresFrame([]string{"A", "B"}, []postgresCell{{Date: d, Column: 1, Value: 5}})
			So(err, ShouldBeNil)
			So(math.IsNaN(f.Column("A")[0]), ShouldBeTrue)
			So(f.Column("B"), ShouldResemble, []float64{5})
		})

		Convey("column index out of range", func() {
			_, err := postgresFrame([]string{"A"}, []postgresCell{
				{Date: NewDate(2021, 1, 4), Column: 1, Value: 5}})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Postgres storage", t, func() {
		dsn := os.Getenv("PARFAIT_TEST_POSTGRES")
		if dsn == "" {
			SkipConvey("set PARFAIT_TEST_POSTGRES=<dsn> to test", func() {})
			return
		}
		s, err := NewPostgresStorage(ctx, dsn)
		So(err, ShouldBeNil)
		defer s.Close()
		testStorage(ctx, s)
	})
}
