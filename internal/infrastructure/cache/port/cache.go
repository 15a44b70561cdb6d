package port

import (
	"context"
	"time"
)

// Cache defines the minimal contract for a key-value cache used by the application.
// Implementations should be concurrency-safe.
//
// Values are stored as strings to keep the port free of serialization concerns.
type Cache interface {
	// Get returns ("", ErrMiss) when the key is absent.
	Get(ctx context.Context, key string) (string, error)

	// MGet fetches several keys in one round-trip. Missing keys are absent from
	// the returned map.
	MGet(ctx context.Context, keys ...string) (map[string]string, error)

	// Set stores value at key with the provided TTL. Zero or negative TTL means
	// no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Del removes one or more keys and returns the number of keys removed.
	Del(ctx context.Context, keys ...string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// ErrMiss signals a cache miss in a typed way, so callers can tell misses
// from transport errors.
var ErrMiss = errMiss{}

type errMiss struct{}

func (e errMiss) Error() string { return "cache: miss" }
