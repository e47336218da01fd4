package port

import (
	"context"
	"time"
)

// LockRepository grants short-lived, tokenized mutual-exclusion leases over
// named resource keys in a shared coordination store.
type LockRepository interface {
	// AcquireLock atomically sets the lock for key if absent, with the given
	// TTL, and returns a fresh token. Returns "" when another holder is live.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error)

	// ReleaseLock deletes the lock for key only if its current value equals
	// token, and reports whether the release actually occurred.
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
}
