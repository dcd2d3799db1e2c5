package hotel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/avstrong/hotel/internal/calendar"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrNoAvailability  = errors.New("no availability")
	ErrNextID          = errors.New("get next id from generator")
	ErrRecordNotFound  = errors.New("record not found")
	ErrIdempotencyKey  = errors.New("idempotency key not found")
)

type AvailabilityError struct {
	errors []string
}

func newAvailabilityError() *AvailabilityError {
	//nolint:exhaustruct
	return &AvailabilityError{}
}

func IsAvailabilityError(err error) *AvailabilityError {
	if err == nil {
		return nil
	}

	var availabilityError *AvailabilityError

	if errors.As(err, &availabilityError) {
		return availabilityError
	}

	return nil
}

func (e *AvailabilityError) addUnavailableRoom(roomNumber int, reason string) {
	e.errors = append(e.errors, fmt.Sprintf("room %d is unavailable: %s", roomNumber, reason))
}

func (e *AvailabilityError) addUnavailableDate(date calendar.Date) {
	e.errors = append(e.errors, fmt.Sprintf("no room is available on %v", date))
}

func (e *AvailabilityError) Error() string {
	return fmt.Sprintf("%v: %s", ErrNoAvailability, strings.Join(e.errors, "; "))
}

func (e *AvailabilityError) Unwrap() error {
	return ErrNoAvailability
}

func (e *AvailabilityError) Fields() []string {
	return e.errors
}

func (e *AvailabilityError) UnavailableCount() int {
	return len(e.errors)
}

type InputError struct {
	fields map[string][]string
}

func newInputError() *InputError {
	return &InputError{
		fields: make(map[string][]string),
	}
}

func IsInputError(err error) *InputError {
	if err == nil {
		return nil
	}

	var inputError *InputError

	if errors.As(err, &inputError) {
		return inputError
	}

	return nil
}

func (ie *InputError) fieldsCount() int {
	return len(ie.fields)
}

func (ie *InputError) addError(field, msg string) {
	ie.fields[field] = append(ie.fields[field], msg)
}

// orNil keeps call sites returning a plain error nil when nothing was added.
func (ie *InputError) orNil() error {
	if ie.fieldsCount() > 0 {
		return ie
	}

	return nil
}

func (ie *InputError) Error() string {
	return fmt.Sprintf("%v: %+v", ErrInvalidArgument, ie.fields)
}

func (ie *InputError) Unwrap() error {
	return ErrInvalidArgument
}

func (ie *InputError) Fields() map[string][]string {
	return ie.fields
}

func invalidArgument(field, msg string) error {
	ie := newInputError()
	ie.addError(field, msg)

	return ie
}
