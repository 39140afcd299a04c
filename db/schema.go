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
	"encoding"
	"fmt"
	"time"

	"github.com/stockparfait/errors"
)

// dateFormats are the accepted layouts of date strings, with an optional time
// of day which is ignored.
var dateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
}

func parseTime(s string) (time.Time, error) {
	var err error
	for _, f := range dateFormats {
		var tm time.Time
		if tm, err = time.Parse(f, s); err == nil {
			return tm, nil
		}
	}
	return time.Time{}, err
}

// Date records a calendar date as year, month and day. The struct is designed
// to fit into 4 bytes and is comparable with ==.
type Date struct {
	YearVal  uint16
	MonthVal uint8
	DayVal   uint8
}

var _ encoding.TextMarshaler = Date{}
var _ encoding.TextUnmarshaler = &Date{}

// NewDate is the constructor for Date.
func NewDate(year uint16, month, day uint8) Date {
	return Date{year, month, day}
}

// NewDateFromTime creates a Date instance from a time.Time value in its own
// location.
func NewDateFromTime(t time.Time) Date {
	return Date{
		YearVal:  uint16(t.Year()),
		MonthVal: uint8(t.Month()),
		DayVal:   uint8(t.Day()),
	}
}

// NewDateFromString creates a Date instance from a string representation.
func NewDateFromString(s string) (Date, error) {
	t, err := parseTime(s)
	if err != nil {
		return Date{}, errors.Annotate(err, "failed to parse a Date string: '%s'", s)
	}
	return NewDateFromTime(t), nil
}

// DateInLocation returns the date of t in the named timezone, e.g.
// "America/New_York". An unknown timezone results in an error.
func DateInLocation(t time.Time, tz string) (Date, error) {
	location, err := time.LoadLocation(tz)
	if err != nil {
		return Date{}, errors.Annotate(err, "failed to load timezone %s", tz)
	}
	return NewDateFromTime(t.In(location)), nil
}

// DateInNY returns today's date in New York timezone.
func DateInNY(now time.Time) Date {
	d, err := DateInLocation(now, "America/New_York")
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) Year() uint16 { return d.YearVal }
func (d Date) Month() uint8 { return d.MonthVal }
func (d Date) Day() uint8   { return d.DayVal }

// String representation of the value.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year(), d.Month(), d.Day())
}

// MarshalText makes Date usable as a TOML value.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses a "YYYY-MM-DD" string. Empty string is the zero Date.
func (d *Date) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Date{}
		return nil
	}
	date, err := NewDateFromString(string(text))
	if err != nil {
		return err
	}
	*d = date
	return nil
}

// ToTime converts Date to Time in UTC.
func (d Date) ToTime() time.Time {
	return time.Date(int(d.Year()), time.Month(d.Month()), int(d.Day()), 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return NewDateFromTime(d.ToTime().AddDate(0, 0, n))
}

// DaysTill is the number of calendar days from d to d2, negative if d2 is
// before d.
func (d Date) DaysTill(d2 Date) int {
	return int(d2.ToTime().Sub(d.ToTime()).Hours() / 24)
}

// Monday return a new Date of the Monday of the current date's week.
func (d Date) Monday() Date {
	t := d.ToTime()
	wd := int(t.Weekday())
	if wd == 0 { // Sunday belongs to the week that started 6 days earlier
		wd = 7
	}
	return NewDateFromTime(t.AddDate(0, 0, 1-wd))
}

// MonthStart returns the 1st of the month of the current date.
func (d Date) MonthStart() Date {
	return NewDate(d.Year(), d.Month(), 1)
}

// QuarterStart returns the first day of the quarter of the current date.
func (d Date) QuarterStart() Date {
	return NewDate(d.Year(), (d.Month()-1)/3*3+1, 1)
}

// YearStart returns January 1st of the current date's year.
func (d Date) YearStart() Date {
	return NewDate(d.Year(), 1, 1)
}

// Before compares two Date objects for strict inequality (self < d2).
func (d Date) Before(d2 Date) bool {
	if d.YearVal != d2.YearVal {
		return d.YearVal < d2.YearVal
	}
	if d.MonthVal != d2.MonthVal {
		return d.MonthVal < d2.MonthVal
	}
	return d.DayVal < d2.DayVal
}

// After compares two Date objects for strict inequality, self > d2.
func (d Date) After(d2 Date) bool {
	return d2.Before(d)
}

// IsZero checks whether the date has a zero value.
func (d Date) IsZero() bool {
	return d.Year() == 0 && d.Month() == 0 && d.Day() == 0
}
