package lock

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/sigdesk/internal/apperr"
)

// MemoryLocker implements Locker inside one process.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]chan struct{})}
}

func (l *MemoryLocker) slot(name string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[name]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[name] = ch
	}
	return ch
}

// Acquire blocks until the name is free, ctx is done or timeout elapses.
func (l *MemoryLocker) Acquire(ctx context.Context, name string, timeout time.Duration) (Guard, error) {
	ch := l.slot(name)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return &memoryGuard{ch: ch}, nil
	case <-timer.C:
		return nil, apperr.Errorf(apperr.ErrLockTimeout,
			"timed out after %s waiting for lock %s", timeout, name)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type memoryGuard struct {
	once sync.Once
	ch   chan struct{}
}

func (g *memoryGuard) Release(context.Context) error {
	g.once.Do(func() { <-g.ch })
	return nil
}
