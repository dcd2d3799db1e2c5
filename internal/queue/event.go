// Package queue relays committed booking events to RabbitMQ.
package queue

import (
	"time"

	"github.com/avstrong/hotel/internal/hotel"
)

// BookingEvent is the message body published for every hotel event.
type BookingEvent struct {
	ID            int    `json:"id"`
	Kind          string `json:"kind"`
	ReservationID int    `json:"reservation_id,omitempty"`
	BlockID       int    `json:"block_id,omitempty"`
	RoomNumbers   []int  `json:"room_numbers"`
	OccurredAt    string `json:"occurred_at"`
}

func NewBookingEvent(e *hotel.Event) BookingEvent {
	return BookingEvent{
		ID:            e.ID,
		Kind:          string(e.Kind),
		ReservationID: e.ReservationID,
		BlockID:       e.BlockID,
		RoomNumbers:   e.RoomNumbers,
		OccurredAt:    e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
