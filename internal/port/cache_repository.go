package port

import (
	"context"
	"time"
)

// CacheRepository is a derived, disposable key/value view. It is never
// authoritative: callers must behave correctly when it returns only misses.
type CacheRepository interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key with a TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes the given keys.
	Delete(ctx context.Context, keys ...string) error

	// DeleteByPattern removes every key matching a glob pattern,
	// e.g. "products:list:*".
	DeleteByPattern(ctx context.Context, pattern string) error
}
