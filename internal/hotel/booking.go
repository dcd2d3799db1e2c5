package hotel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/avstrong/hotel/internal/calendar"
)

// ReserveRoom books the first free room for nights starting at start.
// A request carrying an idempotency key that was already used returns the
// reservation created by the first request.
func (h *Hotel) ReserveRoom(ctx context.Context, start calendar.Date, nights int) (_ *Reservation, err error) {
	ctx, span := h.startSpan(ctx, "ReserveRoom", attribute.String("hotel.start", start.String()), attribute.Int("hotel.nights", nights))
	defer func() { endSpan(span, err) }()

	if err := start.Validate(); err != nil {
		return nil, err
	}

	if nights < 0 {
		return nil, invalidArgument("nights", "nights must not be negative")
	}

	stay, err := calendar.NewRange(start, nights)
	if err != nil {
		return nil, fmt.Errorf("build stay: %w", err)
	}

	reservation, event, err := h.reserveRoom(ctx, stay)
	if err != nil {
		return nil, err
	}

	h.publish(ctx, event)

	return reservation, nil
}

// reserveRoom returns a nil event when the request replays an idempotency key.
func (h *Hotel) reserveRoom(ctx context.Context, stay calendar.Range) (*Reservation, *Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	existing, err := h.reservationByIdempotencyKey(ctx, func(r *Reservation) bool {
		return !r.FromBlock() && r.Stay == stay
	})
	if existing != nil || err != nil {
		return existing, nil, err
	}

	r, err := h.findAvailableRoom(ctx, searchPeriod(stay), stay.Start())
	if err != nil {
		return nil, nil, err
	}

	id, err := h.reservationIDs.GetID(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrNextID, err)
	}

	//nolint:exhaustruct
	reservation := &Reservation{
		ID:         id,
		RoomNumber: r.number,
		Stay:       stay,
		Rate:       h.standardRate,
		CreatedAt:  h.now(),
	}

	event, err := h.buildEvent(ctx, EventReservationCreated, reservation.ID, 0, []int{r.number})
	if err != nil {
		return nil, nil, fmt.Errorf("build event for reservation %d: %w", reservation.ID, err)
	}

	err = h.inTransaction(ctx, func(ctx context.Context) error {
		if err := h.storage.SaveReservation(ctx, reservation); err != nil {
			return fmt.Errorf("save reservation to storage: %w", err)
		}

		if err := h.storage.SaveEvent(ctx, event); err != nil {
			return fmt.Errorf("save event to storage: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	r.reservationIDs = append(r.reservationIDs, reservation.ID)

	h.l.WithContext(ctx).LogInfo("Reservation %d: room %d, %v", reservation.ID, r.number, stay)

	return reservation, event, nil
}

// searchPeriod is the set of days a new stay must find free. A stay without
// nights occupies nothing, so its start day is checked instead.
func searchPeriod(stay calendar.Range) calendar.Period {
	if stay.Nights() == 0 {
		return stay.Start()
	}

	return stay
}

// reservationByIdempotencyKey returns the reservation committed under the
// context's key. Reusing a key for a different request is rejected instead
// of replaying the stored reservation.
func (h *Hotel) reservationByIdempotencyKey(ctx context.Context, matches func(*Reservation) bool) (*Reservation, error) {
	if _, ok := IdempotencyKeyFromContext(ctx); !ok {
		return nil, nil
	}

	reservation, err := h.storage.GetReservationByIdempotencyKey(ctx)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("get reservation by idempotency key: %w", err)
	}

	if !matches(reservation) {
		return nil, invalidArgument(
			"idempotencyKey",
			fmt.Sprintf("key was already used for reservation %d, a different request", reservation.ID),
		)
	}

	return reservation, nil
}

// ReservationsByDate returns the reservations occupying date, in id order.
func (h *Hotel) ReservationsByDate(ctx context.Context, date calendar.Date) (_ []*Reservation, err error) {
	ctx, span := h.startSpan(ctx, "ReservationsByDate")
	defer func() { endSpan(span, err) }()

	if err := date.Validate(); err != nil {
		return nil, err
	}

	all, err := h.storage.ListReservations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	result := make([]*Reservation, 0)

	for _, reservation := range all {
		if reservation.Stay.Includes(date) {
			result = append(result, reservation)
		}
	}

	return result, nil
}

func (h *Hotel) Reservations(ctx context.Context) ([]*Reservation, error) {
	reservations, err := h.storage.ListReservations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	return reservations, nil
}

func (h *Hotel) Reservation(ctx context.Context, id int) (*Reservation, error) {
	if id < 1 {
		return nil, invalidArgument("reservationID", "reservation id must be a positive integer")
	}

	reservation, err := h.storage.GetReservation(ctx, id)
	if err != nil {
		return nil, notFound(err, "reservation", id)
	}

	return reservation, nil
}

// RoomReservations returns the reservations of one room, oldest first.
func (h *Hotel) RoomReservations(ctx context.Context, roomNumber int) ([]*Reservation, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, err := h.knownRoom(roomNumber)
	if err != nil {
		return nil, err
	}

	reservations := make([]*Reservation, 0, len(r.reservationIDs))

	for _, id := range r.reservationIDs {
		reservation, err := h.storage.GetReservation(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get reservation %d of room %d: %w", id, r.number, err)
		}

		reservations = append(reservations, reservation)
	}

	return reservations, nil
}
