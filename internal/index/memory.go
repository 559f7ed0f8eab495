package index

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryIndex keeps raw JSON documents in memory, grouped by collection.
// It backs the "memory" datastore mode and the tests.
type MemoryIndex struct {
	mu        sync.RWMutex
	docs      map[string]map[string][]byte // collection -> ID -> document
	lastWrite time.Time                    // Timestamp of last mutation
}

// NewMemoryIndex creates a new memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		docs: make(map[string]map[string][]byte),
	}
}

// Get retrieves a document by ID
func (idx *MemoryIndex) Get(_ context.Context, collection, id string) ([]byte, bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	data, ok := idx.docs[collection][id]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(data), true, nil
}

// MGet retrieves several documents; missing ones come back as nil
func (idx *MemoryIndex) MGet(_ context.Context, collection string, ids []string) ([][]byte, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([][]byte, len(ids))
	for i, id := range ids {
		if data, ok := idx.docs[collection][id]; ok {
			out[i] = slices.Clone(data)
		}
	}
	return out, nil
}

// Put adds or replaces a single document
func (idx *MemoryIndex) Put(_ context.Context, collection, id string, data []byte) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	docs, ok := idx.docs[collection]
	if !ok {
		docs = make(map[string][]byte)
		idx.docs[collection] = docs
	}
	docs[id] = slices.Clone(data)
	idx.lastWrite = time.Now()
	return nil
}

// Delete removes a document from the index
func (idx *MemoryIndex) Delete(_ context.Context, collection, id string) (bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.docs[collection][id]; !ok {
		return false, nil
	}
	delete(idx.docs[collection], id)
	idx.lastWrite = time.Now()
	return true, nil
}

// IDs returns the sorted IDs of a collection
func (idx *MemoryIndex) IDs(_ context.Context, collection string) ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ids := make([]string, 0, len(idx.docs[collection]))
	for id := range idx.docs[collection] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// GetLastWrite returns the timestamp of the last mutation
func (idx *MemoryIndex) GetLastWrite() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastWrite
}
