package entities

import (
	"fmt"
	"time"
)

// isoDateLayout is the wire form of a CalendarDate
const isoDateLayout = "2006-01-02"

// CalendarDate is a timezone-free day of the Gregorian calendar
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// NewCalendarDate builds a date, normalising overflowing days and months the
// way time.Date does (e.g. February 30 becomes March 1 or 2).
func NewCalendarDate(year int, month time.Month, day int) CalendarDate {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar date of t in t's own location
func DateOf(t time.Time) CalendarDate {
	y, m, d := t.Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

// ParseCalendarDate parses an ISO date (YYYY-MM-DD)
func ParseCalendarDate(value string) (CalendarDate, error) {
	t, err := time.Parse(isoDateLayout, value)
	if err != nil {
		return CalendarDate{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return DateOf(t), nil
}

// IsZero reports whether d is the zero date
func (d CalendarDate) IsZero() bool {
	return d == CalendarDate{}
}

// Time returns midnight UTC of d
func (d CalendarDate) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether d is strictly earlier than other
func (d CalendarDate) Before(other CalendarDate) bool {
	return d.Time().Before(other.Time())
}

// Weekday returns the day of the week of d
func (d CalendarDate) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// YearMonth returns the month d belongs to
func (d CalendarDate) YearMonth() YearMonth {
	return YearMonth{Year: d.Year, Month: d.Month}
}

// AddDays returns d shifted by n days
func (d CalendarDate) AddDays(n int) CalendarDate {
	return DateOf(d.Time().AddDate(0, 0, n))
}

func (d CalendarDate) String() string {
	return d.Time().Format(isoDateLayout)
}

// MarshalText encodes the date as YYYY-MM-DD
func (d CalendarDate) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

// UnmarshalText decodes a YYYY-MM-DD date
func (d *CalendarDate) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = CalendarDate{}
		return nil
	}
	parsed, err := ParseCalendarDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// YearMonth identifies a displayed calendar month
type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth parses YYYY-MM
func ParseYearMonth(value string) (YearMonth, error) {
	t, err := time.Parse("2006-01", value)
	if err != nil {
		return YearMonth{}, fmt.Errorf("invalid month %q: expected YYYY-MM", value)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

// AddMonths shifts the month by n, rolling the year over in both directions
func (ym YearMonth) AddMonths(n int) YearMonth {
	index := ym.Year*12 + int(ym.Month-1) + n
	year := index / 12
	month := index % 12
	if month < 0 {
		month += 12
		year--
	}
	return YearMonth{Year: year, Month: time.Month(month + 1)}
}

// FirstDay returns the first day of the month
func (ym YearMonth) FirstDay() CalendarDate {
	return CalendarDate{Year: ym.Year, Month: ym.Month, Day: 1}
}

// DaysIn returns the number of days in the month
func (ym YearMonth) DaysIn() int {
	return time.Date(ym.Year, ym.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Contains reports whether d falls inside the month
func (ym YearMonth) Contains(d CalendarDate) bool {
	return d.Year == ym.Year && d.Month == ym.Month
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// MarshalText encodes the month as YYYY-MM
func (ym YearMonth) MarshalText() ([]byte, error) {
	return []byte(ym.String()), nil
}

// UnmarshalText decodes a YYYY-MM month
func (ym *YearMonth) UnmarshalText(text []byte) error {
	parsed, err := ParseYearMonth(string(text))
	if err != nil {
		return err
	}
	*ym = parsed
	return nil
}

// CalendarDay is one cell of the month grid. Blank cells pad the first week
// so that the grid starts on a Monday; they carry a zero Date.
type CalendarDay struct {
	Date            CalendarDate `json:"date"`
	Blank           bool         `json:"blank"`
	IsPast          bool         `json:"is_past"`
	IsToday         bool         `json:"is_today"`
	HasAvailability bool         `json:"has_availability"`
	IsSelected      bool         `json:"is_selected"`
}

// Selectable reports whether clicking the cell selects a date
func (c CalendarDay) Selectable() bool {
	return !c.Blank && !c.IsPast
}
