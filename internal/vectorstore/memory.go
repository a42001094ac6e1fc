package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory vector store using brute-force inner product
// search. Collections here are short-lived and bounded by fetched web
// content, so exact scan is fast enough and avoids an external service.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryIndex
}

type memoryIndex struct {
	dimensions int
	mu         sync.RWMutex
	ids        []string
	pos        map[string]int
	vectors    [][]float32
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryIndex)}
}

// CreateCollection registers a collection for vectors of the given dimension.
func (s *MemoryStore) CreateCollection(ctx context.Context, collection string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.collections[collection]; ok {
		if existing.dimensions != dimensions {
			return fmt.Errorf("collection %q exists with dimension %d, requested %d",
				collection, existing.dimensions, dimensions)
		}
		return nil
	}
	s.collections[collection] = &memoryIndex{
		dimensions: dimensions,
		pos:        make(map[string]int),
	}
	return nil
}

func (s *MemoryStore) index(collection string) (*memoryIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	return idx, nil
}

// Upsert adds vectors, replacing any existing entry with the same chunk ID.
func (s *MemoryStore) Upsert(ctx context.Context, collection string, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	idx, err := s.index(collection)
	if err != nil {
		return err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i, id := range ids {
		if len(vectors[i]) != idx.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), idx.dimensions)
		}
		vec := make([]float32, idx.dimensions)
		copy(vec, vectors[i])
		if p, ok := idx.pos[id]; ok {
			idx.vectors[p] = vec
			continue
		}
		idx.pos[id] = len(idx.ids)
		idx.ids = append(idx.ids, id)
		idx.vectors = append(idx.vectors, vec)
	}
	return nil
}

// Query scans the collection and returns the top-k hits by inner product.
// Vectors are expected to be normalized, so this equals cosine similarity.
func (s *MemoryStore) Query(ctx context.Context, collection string, vector []float32, k int) ([]Hit, error) {
	idx, err := s.index(collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != idx.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(vector), idx.dimensions)
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if k <= 0 || len(idx.ids) == 0 {
		return nil, nil
	}

	hits := make([]Hit, len(idx.ids))
	for i, vec := range idx.vectors {
		var dot float64
		for j := range vec {
			dot += float64(vector[j] * vec[j])
		}
		hits[i] = Hit{ChunkID: idx.ids[i], Score: dot}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// DeleteCollection drops the collection. Dropping an unknown collection is
// a no-op.
func (s *MemoryStore) DeleteCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, collection)
	return nil
}

// Size reports the vector count for a collection, zero when unknown.
func (s *MemoryStore) Size(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	idx, ok := s.collections[collection]
	s.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.ids), nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error { return nil }
