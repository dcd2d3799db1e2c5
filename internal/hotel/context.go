package hotel

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const idempotencyKey contextKey = "idempotencyKey"

// NewIdempotencyKey returns a random key for callers that have none of their own.
func NewIdempotencyKey() string {
	return uuid.NewString()
}

func NewContextWithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey, key)
}

// IdempotencyKeyFromContext reports false for a missing or empty key.
func IdempotencyKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyKey).(string)

	return key, ok && key != ""
}
