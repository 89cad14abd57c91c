package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned when the key is held by someone else.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker serializes work on a key across callers.
type Locker interface {
	// Acquire blocks until the lock is held, ctx is done or wait elapses.
	// The returned function releases the lock.
	Acquire(ctx context.Context, key string, ttl, wait time.Duration) (release func(), err error)
}
