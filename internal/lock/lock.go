// Package lock provides per-key mutual exclusion used to serialize all
// balance-affecting operations on a single user. Two implementations exist:
// an in-process one for single-instance deployments and tests, and a
// Redis-backed one for multi-instance deployments.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired indicates the lock stayed busy for the whole wait budget.
var ErrNotAcquired = errors.New("lock not acquired")

const (
	// DefaultTTL bounds how long a crashed holder can keep a key locked.
	DefaultTTL = 5 * time.Second
	// acquireRetryDelay is the poll interval while waiting for a busy key.
	acquireRetryDelay = 25 * time.Millisecond
	// DefaultWait bounds how long Acquire blocks on a busy key.
	DefaultWait = 3 * time.Second
)

// Locker grants exclusive ownership of a string key. Acquire blocks until the
// key is free, the wait budget runs out or ctx is done. The returned release
// function must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
