package calendar

import (
	"errors"
	"fmt"
	"time"
)

const layout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

// DateError is returned for a date that does not exist in the Gregorian
// calendar or whose year is not written with 4 digits.
type DateError struct {
	Year   int
	Month  time.Month
	Day    int
	Reason string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("%v: %04d-%02d-%02d: %s", ErrInvalidDate, e.Year, int(e.Month), e.Day, e.Reason)
}

func (e *DateError) Unwrap() error {
	return ErrInvalidDate
}

func IsDateError(err error) *DateError {
	if err == nil {
		return nil
	}

	var dateErr *DateError

	if errors.As(err, &dateErr) {
		return dateErr
	}

	return nil
}

// Date is a calendar day without time of day or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) (Date, error) {
	d := Date{Year: year, Month: month, Day: day}
	if err := d.Validate(); err != nil {
		return Date{}, err
	}

	return d, nil
}

// Validate reports whether (year, month, day) names a real day with a 4-digit year.
func Validate(year int, month time.Month, day int) error {
	if year < 1000 || year > 9999 {
		return &DateError{Year: year, Month: month, Day: day, Reason: "year must have 4 digits"}
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return &DateError{Year: year, Month: month, Day: day, Reason: "no such day"}
	}

	return nil
}

func (d Date) Validate() error {
	return Validate(d.Year, d.Month, d.Day)
}

func FromTime(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func Parse(s string) (Date, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse %q: %w", s, ErrInvalidDate)
	}

	d := FromTime(t)
	if err := d.Validate(); err != nil {
		return Date{}, err
	}

	return d, nil
}

func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	return FromTime(d.Time().AddDate(0, 0, n))
}

func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

func (d Date) After(other Date) bool {
	return d.Time().After(other.Time())
}

func (d Date) String() string {
	return d.Time().Format(layout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}

	*d = parsed

	return nil
}

// probeDates lets a single day be checked against a Range with Overlaps.
func (d Date) probeDates() []Date {
	return []Date{d}
}
