package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultCacheTTL is the default TTL for cached blobs (24 hours)
	DefaultCacheTTL = 24 * time.Hour
)

// BlobCache stores opaque blobs under a namespace with a TTL
type BlobCache struct {
	client    *redis.Client
	namespace string
}

// NewBlobCache creates a cache for the given namespace (ex: "al_ui.signature")
func NewBlobCache(client *redis.Client, namespace string) *BlobCache {
	return &BlobCache{client: client, namespace: namespace}
}

// Save stores a blob; a zero ttl falls back to DefaultCacheTTL
func (c *BlobCache) Save(ctx context.Context, key string, blob []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if err := c.client.Set(ctx, CacheKey(c.namespace, key), blob, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache blob: %w", err)
	}
	return nil
}

// Get retrieves a cached blob
func (c *BlobCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	blob, err := c.client.Get(ctx, CacheKey(c.namespace, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // Cache miss
		}
		return nil, false, fmt.Errorf("failed to get cached blob: %w", err)
	}
	return blob, true, nil
}
