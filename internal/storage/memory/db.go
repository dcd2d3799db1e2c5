package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/avstrong/hotel/internal/hotel"
	"github.com/avstrong/hotel/internal/logger"
)

type contextKey string

const transactionKey contextKey = "hotelStorageTransactionID"

type Config struct {
	L *logger.Logger
}

// transaction stages writes; nothing reaches the DB before commit.
type transaction struct {
	id           string
	reservations map[int]*hotel.Reservation
	blocks       map[int]*hotel.Block
	events       map[int]*hotel.Event
}

type DB struct {
	mu                         sync.Mutex
	l                          *logger.Logger
	reservations               map[int]*hotel.Reservation
	blocks                     map[int]*hotel.Block
	events                     map[int]*hotel.Event
	transactions               map[string]*transaction
	nextTrxID                  int64
	reservationIdempotencyKeys map[string]*hotel.Reservation
}

func New(conf Config) *DB {
	l := conf.L
	if l == nil {
		l = logger.Discard()
	}

	//nolint:exhaustruct
	return &DB{
		l:                          l.With("storage"),
		reservations:               make(map[int]*hotel.Reservation),
		blocks:                     make(map[int]*hotel.Block),
		events:                     make(map[int]*hotel.Event),
		transactions:               make(map[string]*transaction),
		reservationIdempotencyKeys: make(map[string]*hotel.Reservation),
	}
}

func (db *DB) BeginTransaction(ctx context.Context, _ string) (context.Context, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	trxID := fmt.Sprintf("trx-%d", db.nextTrxID)
	db.nextTrxID++

	db.transactions[trxID] = &transaction{
		id:           trxID,
		reservations: make(map[int]*hotel.Reservation),
		blocks:       make(map[int]*hotel.Block),
		events:       make(map[int]*hotel.Event),
	}

	return withTransactionID(ctx, trxID), nil
}

func withTransactionID(ctx context.Context, trxID string) context.Context {
	return context.WithValue(ctx, transactionKey, trxID)
}

func transactionIDFromContext(ctx context.Context) (string, bool) {
	trxID, ok := ctx.Value(transactionKey).(string)

	return trxID, ok
}

func (db *DB) transaction(ctx context.Context) (*transaction, error) {
	trxID, ok := transactionIDFromContext(ctx)
	if !ok || trxID == "" {
		return nil, ErrTransactionIDNotFoundInCtx
	}

	trx, exists := db.transactions[trxID]
	if !exists {
		return nil, fmt.Errorf("transaction %s not found: %w", trxID, ErrTransactionNotFound)
	}

	return trx, nil
}

func (db *DB) CommitTransaction(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	idempotencyKey, hasKey := hotel.IdempotencyKeyFromContext(ctx)

	for _, reservation := range trx.reservations {
		if _, exists := db.reservations[reservation.ID]; exists {
			delete(db.transactions, trx.id)

			return fmt.Errorf("reservation %d: %w", reservation.ID, ErrDuplicateID)
		}
	}

	for id, reservation := range trx.reservations {
		db.reservations[id] = reservation

		if hasKey {
			db.reservationIdempotencyKeys[idempotencyKey] = reservation
		}
	}

	for id, block := range trx.blocks {
		db.blocks[id] = block
	}

	for id, event := range trx.events {
		db.events[id] = event
	}

	delete(db.transactions, trx.id)

	return nil
}

func (db *DB) RollbackTransaction(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	db.l.LogInfo("Discarding %s: %d reservations, %d blocks, %d events",
		trx.id, len(trx.reservations), len(trx.blocks), len(trx.events))

	delete(db.transactions, trx.id)

	return nil
}

func (db *DB) SaveReservation(ctx context.Context, reservation *hotel.Reservation) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	if _, ok := trx.reservations[reservation.ID]; ok {
		return nil
	}

	trx.reservations[reservation.ID] = reservation

	return nil
}

// SaveBlock inserts a block or replaces the stored version with the same id.
func (db *DB) SaveBlock(ctx context.Context, block *hotel.Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	trx.blocks[block.ID] = block

	return nil
}

func (db *DB) SaveEvent(ctx context.Context, event *hotel.Event) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	if _, ok := trx.events[event.ID]; ok {
		return nil
	}

	trx.events[event.ID] = event

	return nil
}

func (db *DB) GetReservation(_ context.Context, id int) (*hotel.Reservation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	reservation, ok := db.reservations[id]
	if !ok {
		return nil, hotel.ErrRecordNotFound
	}

	return reservation, nil
}

func (db *DB) GetBlock(_ context.Context, id int) (*hotel.Block, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	block, ok := db.blocks[id]
	if !ok {
		return nil, hotel.ErrRecordNotFound
	}

	return block, nil
}

// ListReservations returns reservations ordered by id.
func (db *DB) ListReservations(_ context.Context) ([]*hotel.Reservation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return sortedByID(db.reservations), nil
}

func (db *DB) ListBlocks(_ context.Context) ([]*hotel.Block, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return sortedByID(db.blocks), nil
}

func (db *DB) ListEvents(_ context.Context) ([]*hotel.Event, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return sortedByID(db.events), nil
}

func (db *DB) GetReservationByIdempotencyKey(ctx context.Context) (*hotel.Reservation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	key, ok := hotel.IdempotencyKeyFromContext(ctx)
	if !ok {
		return nil, hotel.ErrIdempotencyKey
	}

	reservation, exists := db.reservationIdempotencyKeys[key]
	if exists {
		return reservation, nil
	}

	return nil, hotel.ErrRecordNotFound
}

func sortedByID[T any](m map[int]T) []T {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	result := make([]T, 0, len(ids))
	for _, id := range ids {
		result = append(result, m[id])
	}

	return result
}
