package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/sigdesk/internal/lock"
	"github.com/MrSnakeDoc/sigdesk/internal/logger"
	"github.com/MrSnakeDoc/sigdesk/internal/metrics"
)

// ComputeFunc produces the blob for a cache miss.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Guarded serialises the computation of a missing entry across callers so
// that each key is computed at most once per TTL.
type Guarded struct {
	store       Store
	locker      lock.Locker
	lockTimeout time.Duration
	log         logger.Logger
}

// NewGuarded creates a guarded cache. lockTimeout bounds the wait for a
// concurrent computation.
func NewGuarded(store Store, locker lock.Locker, lockTimeout time.Duration, log logger.Logger) *Guarded {
	return &Guarded{store: store, locker: locker, lockTimeout: lockTimeout, log: log}
}

// GetOrCompute returns the cached blob for key, computing and storing it under
// lockName on a miss. The cache is checked again once the lock is held.
func (g *Guarded) GetOrCompute(ctx context.Context, key, lockName string, ttl time.Duration, compute ComputeFunc) ([]byte, error) {
	if blob, ok := g.lookup(ctx, key); ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return blob, nil
	}

	guard, err := g.locker.Acquire(ctx, lockName, g.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer func() {
		// Release must outlive a cancelled request.
		if err := guard.Release(context.WithoutCancel(ctx)); err != nil {
			g.log.Warn("lock release failed", logger.String("lock", lockName), logger.Error(err))
		}
	}()

	if blob, ok := g.lookup(ctx, key); ok {
		metrics.CacheLookups.WithLabelValues("hit_after_wait").Inc()
		return blob, nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	blob, err := compute(ctx)
	if err != nil {
		return nil, fmt.Errorf("compute %s: %w", key, err)
	}
	if err := g.store.Save(ctx, key, blob, ttl); err != nil {
		g.log.Error("cache save failed", logger.String("key", key), logger.Error(err))
	}
	return blob, nil
}

// lookup treats read failures as misses.
func (g *Guarded) lookup(ctx context.Context, key string) ([]byte, bool) {
	blob, ok, err := g.store.Get(ctx, key)
	if err != nil {
		g.log.Warn("cache read failed, treating as miss", logger.String("key", key), logger.Error(err))
		return nil, false
	}
	return blob, ok
}
