package ports

import (
	"context"
	"time"
)

// Store is durable key/value storage for session state.
// Get returns core.ErrNotFound for a missing or expired key.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}
