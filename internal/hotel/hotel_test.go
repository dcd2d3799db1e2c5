package hotel_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstrong/hotel/internal/calendar"
	"github.com/avstrong/hotel/internal/hotel"
	"github.com/avstrong/hotel/internal/storage/memory"
)

var errBroken = errors.New("broken")

func day(year int, month time.Month, d int) calendar.Date {
	return calendar.Date{Year: year, Month: month, Day: d}
}

func newHotel(t *testing.T, rooms int) (*hotel.Hotel, *memory.DB) {
	t.Helper()

	db := memory.New(memory.Config{})

	//nolint:exhaustruct
	h, err := hotel.New(hotel.Config{Storage: db, RoomCount: rooms})
	require.NoError(t, err)

	return h, db
}

func reserveN(t *testing.T, h *hotel.Hotel, n int, start calendar.Date, nights int) {
	t.Helper()

	for i := 0; i < n; i++ {
		_, err := h.ReserveRoom(context.Background(), start, nights)
		require.NoError(t, err)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*hotel.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event *hotel.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return p.err
}

// reentrantPublisher reads the hotel from inside Publish, the way a relay
// enriching events with room data would.
type reentrantPublisher struct {
	hotel *hotel.Hotel
	seen  []int
}

func (p *reentrantPublisher) Publish(_ context.Context, _ *hotel.Event) error {
	p.seen = append(p.seen, len(p.hotel.Rooms()))

	return nil
}

// failingStorage breaks every event write, so each transaction rolls back.
type failingStorage struct {
	*memory.DB
}

func (failingStorage) SaveEvent(context.Context, *hotel.Event) error {
	return errBroken
}

func TestNew(t *testing.T) {
	h, _ := newHotel(t, 20)

	rooms := h.Rooms()
	require.Len(t, rooms, 20)

	for i, r := range rooms {
		assert.Equal(t, i+1, r.Number)
	}

	assert.InDelta(t, hotel.DefaultStandardRate, h.StandardRate(), 0)
}

func TestNew_InvalidConfig(t *testing.T) {
	db := memory.New(memory.Config{})

	tests := []struct {
		name  string
		conf  hotel.Config
		field string
	}{
		//nolint:exhaustruct
		{name: "no rooms", conf: hotel.Config{Storage: db}, field: "roomCount"},
		//nolint:exhaustruct
		{name: "negative rooms", conf: hotel.Config{Storage: db, RoomCount: -3}, field: "roomCount"},
		//nolint:exhaustruct
		{name: "no storage", conf: hotel.Config{RoomCount: 20}, field: "storage"},
		//nolint:exhaustruct
		{name: "negative rate", conf: hotel.Config{Storage: db, RoomCount: 20, StandardRate: -1}, field: "standardRate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := hotel.New(tt.conf)
			require.ErrorIs(t, err, hotel.ErrInvalidArgument)

			inputErr := hotel.IsInputError(err)
			require.NotNil(t, inputErr)
			assert.Contains(t, inputErr.Fields(), tt.field)
		})
	}
}

func TestAddRooms(t *testing.T) {
	h, _ := newHotel(t, 20)

	require.NoError(t, h.AddRooms(context.Background(), 3))

	rooms := h.Rooms()
	require.Len(t, rooms, 23)
	assert.Equal(t, 23, rooms[22].Number)

	assert.ErrorIs(t, h.AddRooms(context.Background(), 0), hotel.ErrInvalidArgument)
	assert.ErrorIs(t, h.AddRooms(context.Background(), -1), hotel.ErrInvalidArgument)
	assert.Len(t, h.Rooms(), 23)
}

func TestFindRoom(t *testing.T) {
	h, _ := newHotel(t, 20)

	r, ok, err := h.FindRoom(19)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 19, r.Number)

	_, ok, err = h.FindRoom(25)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = h.FindRoom(0)
	assert.ErrorIs(t, err, hotel.ErrInvalidArgument)
}

func TestIsRoomReserved(t *testing.T) {
	h, _ := newHotel(t, 20)
	ctx := context.Background()

	reserveN(t, h, 3, day(2019, 12, 5), 4)

	tests := []struct {
		name string
		room int
		date calendar.Date
		want bool
	}{
		{name: "free room", room: 19, date: day(2019, 12, 5), want: false},
		{name: "reserved night", room: 1, date: day(2019, 12, 7), want: true},
		{name: "first night", room: 3, date: day(2019, 12, 5), want: true},
		{name: "checkout day", room: 1, date: day(2019, 12, 9), want: false},
		{name: "day before", room: 1, date: day(2019, 12, 4), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.IsRoomReserved(ctx, tt.room, tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := h.IsRoomReserved(ctx, 1, day(2019, 2, 30))
	require.ErrorIs(t, err, calendar.ErrInvalidDate)

	_, err = h.IsRoomReserved(ctx, 21, day(2019, 12, 5))
	require.ErrorIs(t, err, hotel.ErrInvalidArgument)

	_, err = h.IsRoomReserved(ctx, -1, day(2019, 12, 5))
	require.ErrorIs(t, err, hotel.ErrInvalidArgument)
}

func TestFindAvailableRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("empty hotel returns room 1", func(t *testing.T) {
		h, _ := newHotel(t, 20)

		r, err := h.FindAvailableRoom(ctx, day(2019, 1, 2))
		require.NoError(t, err)
		assert.Equal(t, 1, r.Number)
	})

	t.Run("full hotel", func(t *testing.T) {
		h, _ := newHotel(t, 20)
		reserveN(t, h, 20, day(2019, 7, 4), 5)

		for _, d := range []calendar.Date{day(2019, 7, 4), day(2019, 7, 6), day(2019, 7, 8)} {
			_, err := h.FindAvailableRoom(ctx, d)
			require.ErrorIs(t, err, hotel.ErrNoAvailability, d.String())
			assert.NotNil(t, hotel.IsAvailabilityError(err))
		}

		r, err := h.FindAvailableRoom(ctx, day(2019, 7, 9))
		require.NoError(t, err)
		assert.Equal(t, 1, r.Number)
	})

	t.Run("invalid date", func(t *testing.T) {
		h, _ := newHotel(t, 20)

		_, err := h.FindAvailableRoom(ctx, day(19, 7, 4))
		require.ErrorIs(t, err, calendar.ErrInvalidDate)
	})
}

func TestReserveRoom_SequentialIDs(t *testing.T) {
	h, _ := newHotel(t, 20)
	ctx := context.Background()

	for want := 1; want <= 20; want++ {
		res, err := h.ReserveRoom(ctx, day(2019, 12, 5), 4)
		require.NoError(t, err)
		assert.Equal(t, want, res.ID)
		assert.Equal(t, want, res.RoomNumber)
		assert.False(t, res.FromBlock())
	}

	_, err := h.ReserveRoom(ctx, day(2019, 12, 6), 1)
	require.ErrorIs(t, err, hotel.ErrNoAvailability)

	all, err := h.Reservations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 20)

	res, err := h.ReserveRoom(ctx, day(2020, 1, 1), 1)
	require.NoError(t, err)
	assert.Equal(t, 21, res.ID, "failed booking must not consume an id")
}

func TestReserveRoom_CheckoutDayTurnover(t *testing.T) {
	h, _ := newHotel(t, 20)
	ctx := context.Background()

	reserveN(t, h, 20, day(2019, 12, 5), 4)

	res, err := h.ReserveRoom(ctx, day(2019, 12, 9), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RoomNumber)

	reserved, err := h.IsRoomReserved(ctx, 1, day(2019, 12, 10))
	require.NoError(t, err)
	assert.True(t, reserved)

	own, err := h.RoomReservations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, own, 2)
	assert.Equal(t, 1, own[0].ID)
	assert.Equal(t, 21, own[1].ID)
}

func TestReserveRoom_ChecksEveryNight(t *testing.T) {
	h, _ := newHotel(t, 2)
	ctx := context.Background()

	first, err := h.ReserveRoom(ctx, day(2019, 12, 7), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, first.RoomNumber)

	second, err := h.ReserveRoom(ctx, day(2019, 12, 5), 4)
	require.NoError(t, err)
	assert.Equal(t, 2, second.RoomNumber, "room 1 is taken on later nights of the stay")

	_, err = h.ReserveRoom(ctx, day(2019, 12, 1), 10)
	require.ErrorIs(t, err, hotel.ErrNoAvailability)
}

func TestReserveRoom_ZeroNights(t *testing.T) {
	h, _ := newHotel(t, 1)
	ctx := context.Background()

	res, err := h.ReserveRoom(ctx, day(2019, 12, 5), 0)
	require.NoError(t, err)
	assert.Equal(t, res.Stay.Start(), res.Stay.Checkout())
	assert.InDelta(t, 0, res.Cost(), 0)

	reserved, err := h.IsRoomReserved(ctx, 1, day(2019, 12, 5))
	require.NoError(t, err)
	assert.False(t, reserved, "a stay without nights occupies nothing")

	again, err := h.ReserveRoom(ctx, day(2019, 12, 5), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, again.RoomNumber)
}

func TestReserveRoom_InvalidInput(t *testing.T) {
	h, _ := newHotel(t, 1)
	ctx := context.Background()

	_, err := h.ReserveRoom(ctx, day(2019, 2, 30), 2)
	require.ErrorIs(t, err, calendar.ErrInvalidDate)
	assert.NotNil(t, calendar.IsDateError(err))

	_, err = h.ReserveRoom(ctx, day(2019, 2, 3), -2)
	require.ErrorIs(t, err, hotel.ErrInvalidArgument)

	all, err := h.Reservations(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReserveRoom_Cost(t *testing.T) {
	h, _ := newHotel(t, 1)

	res, err := h.ReserveRoom(context.Background(), day(2019, 12, 5), 4)
	require.NoError(t, err)
	assert.InDelta(t, 200, res.Rate, 0)
	assert.InDelta(t, 800, res.Cost(), 0)
}

func TestReserveRoom_Idempotent(t *testing.T) {
	h, _ := newHotel(t, 20)
	ctx := hotel.NewContextWithIdempotencyKey(context.Background(), hotel.NewIdempotencyKey())

	first, err := h.ReserveRoom(ctx, day(2019, 12, 5), 4)
	require.NoError(t, err)

	second, err := h.ReserveRoom(ctx, day(2019, 12, 5), 4)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := h.ReserveRoom(context.Background(), day(2019, 12, 5), 4)
	require.NoError(t, err)
	assert.Equal(t, 2, other.ID)
	assert.Equal(t, 2, other.RoomNumber)
}

func TestReserveRoom_RollbackOnStorageFailure(t *testing.T) {
	db := memory.New(memory.Config{})
	publisher := &recordingPublisher{}

	//nolint:exhaustruct
	h, err := hotel.New(hotel.Config{Storage: failingStorage{DB: db}, RoomCount: 2, Publisher: publisher})
	require.NoError(t, err)

	ctx := context.Background()

	_, err = h.ReserveRoom(ctx, day(2019, 12, 5), 4)
	require.ErrorIs(t, err, errBroken)

	all, err := db.ListReservations(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	own, err := h.RoomReservations(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, own)

	free, err := h.AvailableRoomsByDate(ctx, day(2019, 12, 6))
	require.NoError(t, err)
	assert.Len(t, free, 2)
	assert.Empty(t, publisher.events)
}

func TestReserveRoom_PublishesEvents(t *testing.T) {
	db := memory.New(memory.Config{})
	publisher := &recordingPublisher{err: errBroken}

	//nolint:exhaustruct
	h, err := hotel.New(hotel.Config{Storage: db, RoomCount: 2, Publisher: publisher})
	require.NoError(t, err)

	ctx := context.Background()

	res, err := h.ReserveRoom(ctx, day(2019, 12, 5), 4)
	require.NoError(t, err, "publish failures must not fail the booking")

	require.Len(t, publisher.events, 1)
	assert.Equal(t, hotel.EventReservationCreated, publisher.events[0].Kind)
	assert.Equal(t, res.ID, publisher.events[0].ReservationID)
	assert.Equal(t, []int{1}, publisher.events[0].RoomNumbers)

	journal, err := db.ListEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, publisher.events, journal)
}

func TestReserveRoom_Concurrent(t *testing.T) {
	h, _ := newHotel(t, 20)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures int
		rooms    = make(map[int]struct{})
	)

	for i := 0; i < 25; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			res, err := h.ReserveRoom(context.Background(), day(2019, 7, 4), 3)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				assert.ErrorIs(t, err, hotel.ErrNoAvailability)

				failures++

				return
			}

			rooms[res.RoomNumber] = struct{}{}
		}()
	}

	wg.Wait()

	assert.Len(t, rooms, 20)
	assert.Equal(t, 5, failures)
}

func TestReservationsByDate(t *testing.T) {
	h, _ := newHotel(t, 20)
	ctx := context.Background()

	reserveN(t, h, 3, day(2019, 12, 5), 4)
	reserveN(t, h, 1, day(2019, 12, 9), 2)

	got, err := h.ReservationsByDate(ctx, day(2019, 12, 5))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].ID)

	got, err = h.ReservationsByDate(ctx, day(2019, 12, 9))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].ID)

	got, err = h.ReservationsByDate(ctx, day(2020, 12, 9))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = h.ReservationsByDate(ctx, day(2019, 2, 30))
	require.ErrorIs(t, err, calendar.ErrInvalidDate)
}

func TestAvailableRoomsByDate(t *testing.T) {
	h, _ := newHotel(t, 20)
	ctx := context.Background()

	reserveN(t, h, 3, day(2019, 12, 5), 4)

	free, err := h.AvailableRoomsByDate(ctx, day(2019, 12, 6))
	require.NoError(t, err)
	require.Len(t, free, 17)
	assert.Equal(t, 4, free[0].Number)

	free, err = h.AvailableRoomsByDate(ctx, day(2019, 12, 9))
	require.NoError(t, err)
	assert.Len(t, free, 20)

	reserveN(t, h, 17, day(2019, 12, 5), 4)

	free, err = h.AvailableRoomsByDate(ctx, day(2019, 12, 6))
	require.NoError(t, err)
	assert.NotNil(t, free)
	assert.Empty(t, free)

	_, err = h.AvailableRoomsByDate(ctx, day(2019, 13, 6))
	require.ErrorIs(t, err, calendar.ErrInvalidDate)
}

func TestReservation_NotFound(t *testing.T) {
	h, _ := newHotel(t, 1)
	ctx := context.Background()

	_, err := h.Reservation(ctx, 1)
	require.ErrorIs(t, err, hotel.ErrNotFound)

	_, err = h.Reservation(ctx, 0)
	require.ErrorIs(t, err, hotel.ErrInvalidArgument)

	res, err := h.ReserveRoom(ctx, day(2019, 12, 5), 1)
	require.NoError(t, err)

	got, err := h.Reservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res, got)
}

func TestPublish_OutsideHotelLock(t *testing.T) {
	tests := []struct {
		name string
		call func(ctx context.Context, h *hotel.Hotel) error
	}{
		{
			name: "reserve room",
			call: func(ctx context.Context, h *hotel.Hotel) error {
				_, err := h.ReserveRoom(ctx, day(2019, 12, 5), 2)
				return err
			},
		},
		{
			name: "create block and claim a room",
			call: func(ctx context.Context, h *hotel.Hotel) error {
				r, err := calendar.NewRange(day(2019, 12, 5), 2)
				if err != nil {
					return err
				}

				block, err := h.CreateBlock(ctx, r, []int{1, 2}, 150)
				if err != nil {
					return err
				}

				_, err = h.ReserveBlockRoom(ctx, 1, block.ID)

				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher := &reentrantPublisher{}

			//nolint:exhaustruct
			h, err := hotel.New(hotel.Config{Storage: memory.New(memory.Config{}), RoomCount: 3, Publisher: publisher})
			require.NoError(t, err)

			publisher.hotel = h

			done := make(chan error, 1)

			go func() {
				done <- tt.call(context.Background(), h)
			}()

			select {
			case err := <-done:
				require.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("publisher blocked on the hotel lock")
			}

			require.NotEmpty(t, publisher.seen)

			for _, n := range publisher.seen {
				assert.Equal(t, 3, n)
			}
		})
	}
}
