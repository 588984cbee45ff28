package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("cache key not found")

// Store is the short-lived key/value state shared between request handlers:
// lock records, rate windows and cached remote responses. Implementations
// must treat a zero ttl as "no expiry".
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}
