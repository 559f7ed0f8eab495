// Package cache stores immutable, content-addressed blobs.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/MrSnakeDoc/sigdesk/internal/logger"
)

// Store is a TTL blob cache. A miss is (nil, false, nil).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, blob []byte, ttl time.Duration) error
}

// Local is an in-process expirable LRU. Every entry shares the TTL given at
// construction.
type Local struct {
	lru *expirable.LRU[string, []byte]
}

// NewLocal creates an LRU holding up to size blobs for ttl.
func NewLocal(size int, ttl time.Duration) *Local {
	return &Local{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (l *Local) Get(_ context.Context, key string) ([]byte, bool, error) {
	blob, ok := l.lru.Get(key)
	return blob, ok, nil
}

func (l *Local) Save(_ context.Context, key string, blob []byte, _ time.Duration) error {
	l.lru.Add(key, blob)
	return nil
}

// Layered reads the local tier first and fills it from the shared tier.
// Entries never change once written, so the local copy cannot go stale.
type Layered struct {
	local  *Local
	shared Store
	log    logger.Logger
}

// NewLayered puts local in front of shared.
func NewLayered(local *Local, shared Store, log logger.Logger) *Layered {
	return &Layered{local: local, shared: shared, log: log}
}

func (c *Layered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if blob, ok, _ := c.local.Get(ctx, key); ok {
		return blob, true, nil
	}
	blob, ok, err := c.shared.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = c.local.Save(ctx, key, blob, 0)
	return blob, true, nil
}

func (c *Layered) Save(ctx context.Context, key string, blob []byte, ttl time.Duration) error {
	_ = c.local.Save(ctx, key, blob, ttl)
	if err := c.shared.Save(ctx, key, blob, ttl); err != nil {
		c.log.Warn("shared cache write failed", logger.String("key", key), logger.Error(err))
		return err
	}
	return nil
}
