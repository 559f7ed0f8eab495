package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"
)

// Store keeps JSON documents in Redis: one string key per document plus a
// set of IDs per collection. Documents never expire.
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// Get retrieves a document by ID
func (s *Store) Get(ctx context.Context, collection, id string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, DocKey(collection, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get document: %w", err)
	}
	return data, true, nil
}

// MGet retrieves several documents in one round trip; missing ones are nil
func (s *Store) MGet(ctx context.Context, collection string, ids []string) ([][]byte, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = DocKey(collection, id)
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}

	out := make([][]byte, len(vals))
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[i] = []byte(str)
		}
	}
	return out, nil
}

// Put stores a document and registers its ID in the collection set
func (s *Store) Put(ctx context.Context, collection, id string, data []byte) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, DocKey(collection, id), data, 0)
	pipe.SAdd(ctx, AllDocsKey(collection), id)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// Delete removes a document and its ID from the collection set
func (s *Store) Delete(ctx context.Context, collection, id string) (bool, error) {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, DocKey(collection, id))
	pipe.SRem(ctx, AllDocsKey(collection), id)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}
	return del.Val() > 0, nil
}

// IDs returns the sorted IDs of a collection
func (s *Store) IDs(ctx context.Context, collection string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, AllDocsKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get document IDs: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}
