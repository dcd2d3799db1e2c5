package hotel

import (
	"slices"
	"time"

	"github.com/avstrong/hotel/internal/calendar"
)

// MaxBlockRooms is the largest number of rooms a block may hold.
const MaxBlockRooms = 5

type Room struct {
	Number int `json:"number"`
}

// Reservation is immutable once stored.
type Reservation struct {
	ID         int            `json:"id"`
	RoomNumber int            `json:"room_number"`
	Stay       calendar.Range `json:"stay"`
	Rate       float64        `json:"rate"`
	BlockID    int            `json:"block_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (r *Reservation) FromBlock() bool {
	return r.BlockID != 0
}

// Cost is the flat price of the stay: nights times the nightly rate.
func (r *Reservation) Cost() float64 {
	return float64(r.Stay.Nights()) * r.Rate
}

// Block sets rooms aside for a date range at a special rate. Stored blocks
// are never modified in place; claiming a room saves a new copy.
type Block struct {
	ID             int            `json:"id"`
	Stay           calendar.Range `json:"stay"`
	RoomNumbers    []int          `json:"room_numbers"`
	AvailableRooms []int          `json:"available_rooms"`
	Rate           float64        `json:"rate"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (b *Block) IsAvailable(roomNumber int) bool {
	return slices.Contains(b.AvailableRooms, roomNumber)
}

func (b *Block) Holds(roomNumber int) bool {
	return slices.Contains(b.RoomNumbers, roomNumber)
}

func (b *Block) claim(roomNumber int) *Block {
	c := *b
	c.RoomNumbers = slices.Clone(b.RoomNumbers)
	c.AvailableRooms = slices.DeleteFunc(slices.Clone(b.AvailableRooms), func(n int) bool {
		return n == roomNumber
	})

	return &c
}

type EventKind string

const (
	EventReservationCreated EventKind = "reservation.created"
	EventBlockCreated       EventKind = "block.created"
	EventBlockRoomClaimed   EventKind = "block.room_claimed"
)

type Event struct {
	ID            int       `json:"id"`
	Kind          EventKind `json:"kind"`
	ReservationID int       `json:"reservation_id,omitempty"`
	BlockID       int       `json:"block_id,omitempty"`
	RoomNumbers   []int     `json:"room_numbers"`
	CreatedAt     time.Time `json:"created_at"`
}

// room is the inventory unit. It keeps ids into the storage arena so that
// "is this room free on date D" never scans every reservation.
type room struct {
	number         int
	reservationIDs []int
	blockIDs       []int
}
