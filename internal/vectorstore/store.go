// Package vectorstore provides per-collection vector storage with cosine
// similarity search, plus a keyword index sidecar for hybrid retrieval.
package vectorstore

import "context"

// Hit is a single similarity or keyword search result.
type Hit struct {
	ChunkID string
	Score   float64
}

// VectorStore stores chunk embeddings grouped by collection. Collections are
// independent: creating, querying, or dropping one never affects another.
type VectorStore interface {
	// CreateCollection prepares a collection for vectors of the given
	// dimension. Creating an existing collection is a no-op.
	CreateCollection(ctx context.Context, collection string, dimensions int) error
	// Upsert adds or replaces vectors by chunk ID.
	Upsert(ctx context.Context, collection string, ids []string, vectors [][]float32) error
	// Query returns the top-k hits by cosine similarity, best first.
	Query(ctx context.Context, collection string, vector []float32, k int) ([]Hit, error)
	// DeleteCollection drops a collection and all its vectors.
	DeleteCollection(ctx context.Context, collection string) error
	// Size reports the number of vectors in a collection.
	Size(ctx context.Context, collection string) (int, error)
	Close() error
}
