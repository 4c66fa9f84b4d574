package repository

import (
	"context"
	"time"
)

// RunLock guarantees a single crawl at a time against the competitor site.
type RunLock interface {
	// Acquire takes the lock for owner or returns ErrRunInProgress.
	Acquire(ctx context.Context, owner string, ttl time.Duration) error
	// Extend resets the lock TTL while owner still holds it, otherwise it
	// returns ErrLockLost.
	Extend(ctx context.Context, owner string, ttl time.Duration) error
	// Release frees the lock if owner still holds it.
	Release(ctx context.Context, owner string) error
}
