// Package lock provides named, time-bounded mutual exclusion shared by every
// replica of the service (Redis) or by one process (memory).
package lock

import (
	"context"
	"time"
)

// Locker acquires named locks. Acquire waits at most timeout and fails with
// an apperr.ErrLockTimeout error when the lock stays busy.
type Locker interface {
	Acquire(ctx context.Context, name string, timeout time.Duration) (Guard, error)
}

// Guard is a held lock.
type Guard interface {
	Release(ctx context.Context) error
}
