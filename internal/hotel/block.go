package hotel

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"github.com/avstrong/hotel/internal/calendar"
)

func validateBlockInput(stay calendar.Range, roomNumbers []int, rate float64) error {
	if err := stay.Start().Validate(); err != nil {
		return err
	}

	inputErr := newInputError()

	switch {
	case len(roomNumbers) == 0:
		inputErr.addError("roomNumbers", "provide at least one room")
	case len(roomNumbers) > MaxBlockRooms:
		inputErr.addError("roomNumbers", fmt.Sprintf("a block holds at most %d rooms", MaxBlockRooms))
	}

	seen := make(map[int]struct{}, len(roomNumbers))

	for _, n := range roomNumbers {
		if n < 1 {
			inputErr.addError("roomNumbers", fmt.Sprintf("room number %d must be a positive integer", n))

			continue
		}

		if _, ok := seen[n]; ok {
			inputErr.addError("roomNumbers", fmt.Sprintf("room %d is listed twice", n))
		}

		seen[n] = struct{}{}
	}

	if rate <= 0 {
		inputErr.addError("rate", "rate must be positive")
	}

	return inputErr.orNil()
}

// CreateBlock holds roomNumbers for stay at rate. Either every room is free
// for the whole stay and the block is stored, or nothing changes.
func (h *Hotel) CreateBlock(ctx context.Context, stay calendar.Range, roomNumbers []int, rate float64) (_ *Block, err error) {
	ctx, span := h.startSpan(ctx, "CreateBlock", attribute.IntSlice("hotel.rooms", roomNumbers))
	defer func() { endSpan(span, err) }()

	if err := validateBlockInput(stay, roomNumbers, rate); err != nil {
		return nil, err
	}

	block, event, err := h.createBlock(ctx, stay, roomNumbers, rate)
	if err != nil {
		return nil, err
	}

	h.publish(ctx, event)

	return block, nil
}

func (h *Hotel) createBlock(ctx context.Context, stay calendar.Range, roomNumbers []int, rate float64) (*Block, *Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms := make([]*room, 0, len(roomNumbers))

	for _, n := range roomNumbers {
		r := h.findRoom(n)
		if r == nil {
			return nil, nil, fmt.Errorf("room %d: %w", n, ErrNotFound)
		}

		rooms = append(rooms, r)
	}

	availabilityErr := newAvailabilityError()

	for _, r := range rooms {
		reserved, err := h.isReserved(ctx, r, stay)
		if err != nil {
			return nil, nil, err
		}

		if reserved {
			availabilityErr.addUnavailableRoom(r.number, fmt.Sprintf("reserved during %v", stay))

			continue
		}

		held, err := h.isHeld(ctx, r, stay)
		if err != nil {
			return nil, nil, err
		}

		if held {
			availabilityErr.addUnavailableRoom(r.number, fmt.Sprintf("held by another block during %v", stay))
		}
	}

	if availabilityErr.UnavailableCount() > 0 {
		return nil, nil, availabilityErr
	}

	id, err := h.blockIDs.GetID(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrNextID, err)
	}

	block := &Block{
		ID:             id,
		Stay:           stay,
		RoomNumbers:    slices.Clone(roomNumbers),
		AvailableRooms: slices.Clone(roomNumbers),
		Rate:           rate,
		CreatedAt:      h.now(),
	}

	event, err := h.buildEvent(ctx, EventBlockCreated, 0, block.ID, slices.Clone(roomNumbers))
	if err != nil {
		return nil, nil, fmt.Errorf("build event for block %d: %w", block.ID, err)
	}

	err = h.inTransaction(ctx, func(ctx context.Context) error {
		if err := h.storage.SaveBlock(ctx, block); err != nil {
			return fmt.Errorf("save block to storage: %w", err)
		}

		if err := h.storage.SaveEvent(ctx, event); err != nil {
			return fmt.Errorf("save event to storage: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for _, r := range rooms {
		r.blockIDs = append(r.blockIDs, block.ID)
	}

	h.l.WithContext(ctx).LogInfo("Block %d: rooms %v, %v at %.2f", block.ID, roomNumbers, stay, rate)
	return block, event, nil
}

// ReserveBlockRoom claims one of the block's unclaimed rooms as a reservation
// at the block rate for the block's stay.
func (h *Hotel) ReserveBlockRoom(ctx context.Context, roomNumber, blockID int) (_ *Reservation, err error) {
	ctx, span := h.startSpan(ctx, "ReserveBlockRoom", attribute.Int("hotel.room", roomNumber), attribute.Int("hotel.block", blockID))
	defer func() { endSpan(span, err) }()

	inputErr := newInputError()

	if roomNumber < 1 {
		inputErr.addError("roomNumber", "room number must be a positive integer")
	}

	if blockID < 1 {
		inputErr.addError("blockID", "block id must be a positive integer")
	}

	if err := inputErr.orNil(); err != nil {
		return nil, err
	}

	reservation, event, err := h.reserveBlockRoom(ctx, roomNumber, blockID)
	if err != nil {
		return nil, err
	}

	h.publish(ctx, event)

	return reservation, nil
}

// reserveBlockRoom returns a nil event when the request replays an idempotency key.
func (h *Hotel) reserveBlockRoom(ctx context.Context, roomNumber, blockID int) (*Reservation, *Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	existing, err := h.reservationByIdempotencyKey(ctx, func(r *Reservation) bool {
		return r.BlockID == blockID && r.RoomNumber == roomNumber
	})
	if existing != nil || err != nil {
		return existing, nil, err
	}

	block, err := h.storage.GetBlock(ctx, blockID)
	if err != nil {
		return nil, nil, notFound(err, "block", blockID)
	}

	if !block.IsAvailable(roomNumber) {
		reason := fmt.Sprintf("not part of block %d", blockID)
		if block.Holds(roomNumber) {
			reason = fmt.Sprintf("already claimed from block %d", blockID)
		}

		availabilityErr := newAvailabilityError()
		availabilityErr.addUnavailableRoom(roomNumber, reason)

		return nil, nil, availabilityErr
	}

	r := h.findRoom(roomNumber)
	if r == nil {
		return nil, nil, fmt.Errorf("room %d of block %d: %w", roomNumber, blockID, ErrNotFound)
	}

	id, err := h.reservationIDs.GetID(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrNextID, err)
	}

	reservation := &Reservation{
		ID:         id,
		RoomNumber: roomNumber,
		Stay:       block.Stay,
		Rate:       block.Rate,
		BlockID:    block.ID,
		CreatedAt:  h.now(),
	}

	claimed := block.claim(roomNumber)

	event, err := h.buildEvent(ctx, EventBlockRoomClaimed, reservation.ID, block.ID, []int{roomNumber})
	if err != nil {
		return nil, nil, fmt.Errorf("build event for reservation %d: %w", reservation.ID, err)
	}

	err = h.inTransaction(ctx, func(ctx context.Context) error {
		if err := h.storage.SaveBlock(ctx, claimed); err != nil {
			return fmt.Errorf("save block to storage: %w", err)
		}

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

	h.l.WithContext(ctx).LogInfo(
		"Reservation %d: room %d claimed from block %d, %d rooms left",
		reservation.ID, roomNumber, block.ID, len(claimed.AvailableRooms),
	)
	return reservation, event, nil
}

func (h *Hotel) Block(ctx context.Context, id int) (*Block, error) {
	if id < 1 {
		return nil, invalidArgument("blockID", "block id must be a positive integer")
	}

	block, err := h.storage.GetBlock(ctx, id)
	if err != nil {
		return nil, notFound(err, "block", id)
	}

	return block, nil
}

func (h *Hotel) Blocks(ctx context.Context) ([]*Block, error) {
	blocks, err := h.storage.ListBlocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}

	return blocks, nil
}

// BlockAvailableRooms lists the block's unclaimed rooms in ascending order.
func (h *Hotel) BlockAvailableRooms(ctx context.Context, blockID int) ([]Room, error) {
	block, err := h.Block(ctx, blockID)
	if err != nil {
		return nil, err
	}

	numbers := slices.Clone(block.AvailableRooms)
	slices.Sort(numbers)

	rooms := make([]Room, 0, len(numbers))
	for _, n := range numbers {
		rooms = append(rooms, Room{Number: n})
	}

	return rooms, nil
}
