package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidNights = errors.New("nights must not be negative")

// Period is either a Range or a single Date.
type Period interface {
	probeDates() []Date
}

// Range is a stay: the start day plus the nights that follow it.
// The last day of the range is the checkout day, which is never occupied.
type Range struct {
	start  Date
	nights int
}

func NewRange(start Date, nights int) (Range, error) {
	if err := start.Validate(); err != nil {
		return Range{}, err
	}

	if nights < 0 {
		return Range{}, fmt.Errorf("%w: got %d", ErrInvalidNights, nights)
	}

	return Range{start: start, nights: nights}, nil
}

// SingleDay is a range without nights. It occupies nothing.
func SingleDay(start Date) (Range, error) {
	return NewRange(start, 0)
}

func (r Range) Start() Date {
	return r.start
}

func (r Range) Nights() int {
	return r.nights
}

// Dates returns start, start+1, ..., start+nights.
func (r Range) Dates() []Date {
	dates := make([]Date, 0, r.nights+1)
	for i := 0; i <= r.nights; i++ {
		dates = append(dates, r.start.AddDays(i))
	}

	return dates
}

func (r Range) Checkout() Date {
	return r.start.AddDays(r.nights)
}

// Includes reports whether date is an occupied night of the range.
func (r Range) Includes(date Date) bool {
	return !date.Before(r.start) && date.Before(r.Checkout())
}

// Overlaps reports whether p claims any night r occupies. For a Range only
// its occupied nights count, so back-to-back stays do not overlap.
// A nil Period, including a nil *Date or *Range, overlaps nothing.
func (r Range) Overlaps(p Period) bool {
	switch v := p.(type) {
	case nil:
		return false
	case *Date:
		if v == nil {
			return false
		}
	case *Range:
		if v == nil {
			return false
		}
	}

	for _, d := range p.probeDates() {
		if r.Includes(d) {
			return true
		}
	}

	return false
}

func (r Range) probeDates() []Date {
	dates := r.Dates()

	return dates[:len(dates)-1]
}

func (r Range) IsZero() bool {
	return r == Range{}
}

func (r Range) String() string {
	return fmt.Sprintf("%v..%v (%d nights)", r.start, r.Checkout(), r.nights)
}

type rangeJSON struct {
	Start    Date `json:"start"`
	Nights   int  `json:"nights"`
	Checkout Date `json:"checkout"`
}

func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal(rangeJSON{Start: r.start, Nights: r.nights, Checkout: r.Checkout()})
}
