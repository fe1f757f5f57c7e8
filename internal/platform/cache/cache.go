package cache

import (
	"context"
	"time"
)

// Store is the small key-value surface used for lockout counters and token revocations.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Incr increments key and returns the new value. The TTL applies when the key is created.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
