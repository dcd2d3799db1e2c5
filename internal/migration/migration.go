package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/avstrong/hotel/internal/calendar"
	"github.com/avstrong/hotel/internal/hotel"
	"github.com/avstrong/hotel/internal/logger"
)

const (
	// blockRoomsFrom leaves the lowest numbered rooms to the seeded stays.
	blockRoomsFrom = 4
	blockRoomsMax  = 3
	blockRate      = 150
	blockNights    = 5
)

type booker interface {
	Rooms() []hotel.Room
	ReserveRoom(ctx context.Context, start calendar.Date, nights int) (*hotel.Reservation, error)
	CreateBlock(ctx context.Context, stay calendar.Range, roomNumbers []int, rate float64) (*hotel.Block, error)
	ReserveBlockRoom(ctx context.Context, roomNumber, blockID int) (*hotel.Reservation, error)
}

type seedStay struct {
	start  calendar.Date
	nights int
}

// Up seeds demo bookings around from: three stays, a block of up to three
// rooms and one claimed block room. Reservations are made under fixed
// idempotency keys. Bookings the inventory cannot hold are skipped with a
// warning.
func Up(ctx context.Context, l *logger.Logger, h booker, from calendar.Date) error {
	stays := []seedStay{
		{start: from, nights: 4},
		{start: from, nights: 2},
		{start: from.AddDays(4), nights: 3},
	}

	for i, s := range stays {
		keyed := hotel.NewContextWithIdempotencyKey(ctx, fmt.Sprintf("migration-stay-%d", i+1))

		res, err := h.ReserveRoom(keyed, s.start, s.nights)
		if errors.Is(err, hotel.ErrNoAvailability) {
			l.LogWarnf("Skipped seed stay %v+%d: %v", s.start, s.nights, err)

			continue
		}

		if err != nil {
			return fmt.Errorf("seed stay %v+%d: %w", s.start, s.nights, err)
		}

		l.LogInfo("Seeded reservation %d in room %d", res.ID, res.RoomNumber)
	}

	rooms := blockRooms(h.Rooms())
	if len(rooms) == 0 {
		l.LogWarnf("Skipped seed block: no rooms numbered %d or above", blockRoomsFrom)

		return nil
	}

	blockStay, err := calendar.NewRange(from.AddDays(1), blockNights)
	if err != nil {
		return fmt.Errorf("build block stay: %w", err)
	}

	block, err := h.CreateBlock(ctx, blockStay, rooms, blockRate)
	if errors.Is(err, hotel.ErrNoAvailability) {
		l.LogWarnf("Skipped seed block on rooms %v: %v", rooms, err)

		return nil
	}

	if err != nil {
		return fmt.Errorf("seed block: %w", err)
	}

	keyed := hotel.NewContextWithIdempotencyKey(ctx, "migration-block-claim")

	res, err := h.ReserveBlockRoom(keyed, rooms[0], block.ID)
	if err != nil {
		return fmt.Errorf("seed block claim: %w", err)
	}

	l.LogInfo("Seeded block %d with rooms %v, claimed room %d", block.ID, block.RoomNumbers, res.RoomNumber)

	return nil
}

func blockRooms(inventory []hotel.Room) []int {
	rooms := make([]int, 0, blockRoomsMax)

	for _, r := range inventory {
		if r.Number < blockRoomsFrom {
			continue
		}

		rooms = append(rooms, r.Number)

		if len(rooms) == blockRoomsMax {
			break
		}
	}

	return rooms
}
