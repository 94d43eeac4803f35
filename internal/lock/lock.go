// Package lock serializes critical sections by name, across processes when
// redis is configured and within the process otherwise.
package lock

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEmptyKey    = errors.New("lock key is empty")
	ErrInvalidTTL  = errors.New("lock ttl must be positive")
	ErrNotAcquired = errors.New("lock not acquired")
)

// Release gives the lock back. It is safe to call more than once.
type Release func()

type Locker interface {
	// Acquire blocks until key is held or ctx ends. ttl bounds how long a
	// crashed holder can keep the key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}
