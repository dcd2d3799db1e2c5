package hotel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/avstrong/hotel/internal/calendar"
	"github.com/avstrong/hotel/internal/idgen/simple"
	"github.com/avstrong/hotel/internal/logger"
)

const DefaultStandardRate = 200.0

type idGenerator interface {
	GetID(ctx context.Context) (int, error)
}

type storageReader interface {
	GetReservation(ctx context.Context, id int) (*Reservation, error)
	GetBlock(ctx context.Context, id int) (*Block, error)
	ListReservations(ctx context.Context) ([]*Reservation, error)
	ListBlocks(ctx context.Context) ([]*Block, error)
	GetReservationByIdempotencyKey(ctx context.Context) (*Reservation, error)
}

type storageWriter interface {
	BeginTransaction(ctx context.Context, level string) (context.Context, error)
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error
	SaveReservation(ctx context.Context, reservation *Reservation) error
	SaveBlock(ctx context.Context, block *Block) error
	SaveEvent(ctx context.Context, event *Event) error
}

type storage interface {
	storageReader
	storageWriter
}

// Publisher receives every event after it has been committed.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

type Config struct {
	L              *logger.Logger
	Tracer         trace.Tracer
	Storage        storage
	ReservationIDs idGenerator
	BlockIDs       idGenerator
	EventIDs       idGenerator
	Publisher      Publisher
	RoomCount      int
	StandardRate   float64
	Now            func() time.Time
}

// Hotel allocates a fixed room inventory to reservations and blocks.
// All methods are safe for concurrent use: every operation runs under one lock,
// so the search-then-book sequence is atomic.
type Hotel struct {
	mu             sync.Mutex
	l              *logger.Logger
	tracer         trace.Tracer
	storage        storage
	reservationIDs idGenerator
	blockIDs       idGenerator
	eventIDs       idGenerator
	publisher      Publisher
	standardRate   float64
	now            func() time.Time
	rooms          []*room
}

func New(conf Config) (*Hotel, error) {
	inputErr := newInputError()

	if conf.Storage == nil {
		inputErr.addError("storage", "provide storage")
	}

	if conf.RoomCount < 1 {
		inputErr.addError("roomCount", "room count must be a positive integer")
	}

	if conf.StandardRate < 0 {
		inputErr.addError("standardRate", "standard rate must not be negative")
	}

	if err := inputErr.orNil(); err != nil {
		return nil, err
	}

	h := &Hotel{
		l:              conf.L,
		tracer:         conf.Tracer,
		storage:        conf.Storage,
		reservationIDs: conf.ReservationIDs,
		blockIDs:       conf.BlockIDs,
		eventIDs:       conf.EventIDs,
		publisher:      conf.Publisher,
		standardRate:   conf.StandardRate,
		now:            conf.Now,
	}

	if h.l == nil {
		h.l = logger.Discard()
	}

	h.l = h.l.With("hotel")

	if h.tracer == nil {
		h.tracer = noop.NewTracerProvider().Tracer("hotel")
	}

	if h.reservationIDs == nil {
		h.reservationIDs = simple.New()
	}

	if h.blockIDs == nil {
		h.blockIDs = simple.New()
	}

	if h.eventIDs == nil {
		h.eventIDs = simple.New()
	}

	if h.standardRate == 0 {
		h.standardRate = DefaultStandardRate
	}

	if h.now == nil {
		h.now = func() time.Time { return time.Now().UTC() }
	}

	h.addRooms(conf.RoomCount)

	return h, nil
}

func (h *Hotel) StandardRate() float64 {
	return h.standardRate
}

// AddRooms appends count rooms numbered after the current highest number.
func (h *Hotel) AddRooms(ctx context.Context, count int) (err error) {
	_, span := h.startSpan(ctx, "AddRooms", attribute.Int("hotel.count", count))
	defer func() { endSpan(span, err) }()

	if count < 1 {
		return invalidArgument("count", "room count must be a positive integer")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.addRooms(count)

	h.l.LogInfo("Added %d rooms, inventory is now %d", count, len(h.rooms))

	return nil
}

func (h *Hotel) addRooms(count int) {
	next := len(h.rooms) + 1
	for i := 0; i < count; i++ {
		//nolint:exhaustruct
		h.rooms = append(h.rooms, &room{number: next + i})
	}
}

func (h *Hotel) Rooms() []Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms := make([]Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, Room{Number: r.number})
	}

	return rooms
}

// FindRoom reports whether a room with that number exists. An unknown number
// is a normal outcome, not an error.
func (h *Hotel) FindRoom(number int) (Room, bool, error) {
	if number < 1 {
		return Room{}, false, invalidArgument("roomNumber", "room number must be a positive integer")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.findRoom(number)
	if r == nil {
		return Room{}, false, nil
	}

	return Room{Number: r.number}, true, nil
}

// findRoom relies on rooms being numbered 1..N in slice order.
func (h *Hotel) findRoom(number int) *room {
	if number < 1 || number > len(h.rooms) {
		return nil
	}

	return h.rooms[number-1]
}

func (h *Hotel) knownRoom(number int) (*room, error) {
	if number < 1 {
		return nil, invalidArgument("roomNumber", "room number must be a positive integer")
	}

	r := h.findRoom(number)
	if r == nil {
		return nil, invalidArgument("roomNumber", fmt.Sprintf("room %d does not exist", number))
	}

	return r, nil
}

// IsRoomReserved reports whether the room has a reservation occupying date.
func (h *Hotel) IsRoomReserved(ctx context.Context, roomNumber int, date calendar.Date) (_ bool, err error) {
	ctx, span := h.startSpan(ctx, "IsRoomReserved", attribute.Int("hotel.room", roomNumber))
	defer func() { endSpan(span, err) }()

	if err := date.Validate(); err != nil {
		return false, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	r, err := h.knownRoom(roomNumber)
	if err != nil {
		return false, err
	}

	return h.isReserved(ctx, r, date)
}

// FindAvailableRoom returns the lowest numbered room that is neither reserved
// nor held by a block on date.
func (h *Hotel) FindAvailableRoom(ctx context.Context, date calendar.Date) (_ Room, err error) {
	ctx, span := h.startSpan(ctx, "FindAvailableRoom")
	defer func() { endSpan(span, err) }()

	if err := date.Validate(); err != nil {
		return Room{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	r, err := h.findAvailableRoom(ctx, date, date)
	if err != nil {
		return Room{}, err
	}

	return Room{Number: r.number}, nil
}

// AvailableRoomsByDate lists every room free on date. The result is empty,
// not an error, when the hotel is full.
func (h *Hotel) AvailableRoomsByDate(ctx context.Context, date calendar.Date) (_ []Room, err error) {
	ctx, span := h.startSpan(ctx, "AvailableRoomsByDate")
	defer func() { endSpan(span, err) }()

	if err := date.Validate(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	rooms := make([]Room, 0)

	for _, r := range h.rooms {
		free, err := h.isFree(ctx, r, date)
		if err != nil {
			return nil, err
		}

		if free {
			rooms = append(rooms, Room{Number: r.number})
		}
	}

	return rooms, nil
}

func (h *Hotel) findAvailableRoom(ctx context.Context, period calendar.Period, date calendar.Date) (*room, error) {
	for _, r := range h.rooms {
		free, err := h.isFree(ctx, r, period)
		if err != nil {
			return nil, err
		}

		if free {
			return r, nil
		}
	}

	availabilityErr := newAvailabilityError()
	availabilityErr.addUnavailableDate(date)

	return nil, availabilityErr
}

func (h *Hotel) isFree(ctx context.Context, r *room, period calendar.Period) (bool, error) {
	reserved, err := h.isReserved(ctx, r, period)
	if err != nil || reserved {
		return false, err
	}

	held, err := h.isHeld(ctx, r, period)
	if err != nil || held {
		return false, err
	}

	return true, nil
}

func (h *Hotel) isReserved(ctx context.Context, r *room, period calendar.Period) (bool, error) {
	for _, id := range r.reservationIDs {
		reservation, err := h.storage.GetReservation(ctx, id)
		if err != nil {
			return false, fmt.Errorf("get reservation %d of room %d: %w", id, r.number, err)
		}

		if reservation.Stay.Overlaps(period) {
			return true, nil
		}
	}

	return false, nil
}

// isHeld counts claimed block rooms too: the claim covers the same window.
func (h *Hotel) isHeld(ctx context.Context, r *room, period calendar.Period) (bool, error) {
	for _, id := range r.blockIDs {
		block, err := h.storage.GetBlock(ctx, id)
		if err != nil {
			return false, fmt.Errorf("get block %d of room %d: %w", id, r.number, err)
		}

		if block.Stay.Overlaps(period) {
			return true, nil
		}
	}

	return false, nil
}

func (h *Hotel) buildEvent(ctx context.Context, kind EventKind, reservationID, blockID int, rooms []int) (*Event, error) {
	id, err := h.eventIDs.GetID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNextID, err)
	}

	return &Event{
		ID:            id,
		Kind:          kind,
		ReservationID: reservationID,
		BlockID:       blockID,
		RoomNumbers:   rooms,
		CreatedAt:     h.now(),
	}, nil
}

func (h *Hotel) inTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	ctx, err = h.storage.BeginTransaction(ctx, "SERIALIZABLE")
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := h.storage.RollbackTransaction(ctx); rbErr != nil {
				h.l.LogErrorf("Could not rollback transaction after panic %v: %v", p, rbErr.Error())
			}

			panic(p)
		}

		if err != nil {
			if rbErr := h.storage.RollbackTransaction(ctx); rbErr != nil {
				h.l.LogErrorf("Could not rollback transaction after error %v: %v", err.Error(), rbErr.Error())
			}

			h.l.WithContext(ctx).LogWarnf("Transaction has been rolled back after error: %v", err.Error())

			return
		}

		if err = h.storage.CommitTransaction(ctx); err != nil {
			err = fmt.Errorf("commit transaction: %w", err)
		}
	}()

	return fn(ctx)
}

func (h *Hotel) publish(ctx context.Context, event *Event) {
	if h.publisher == nil || event == nil {
		return
	}

	if err := h.publisher.Publish(ctx, event); err != nil {
		h.l.WithContext(ctx).LogErrorf("Could not publish event %d (%s): %v", event.ID, event.Kind, err.Error())
	}
}

func (h *Hotel) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return h.tracer.Start(ctx, "hotel."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}

	span.End()
}

func notFound(err error, what string, id int) error {
	if errors.Is(err, ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}

	return fmt.Errorf("get %s %d: %w", what, id, err)
}
