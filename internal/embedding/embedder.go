// Package embedding provides text embedding via an OpenAI-compatible API,
// with LRU caching.
package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable reports that the embedding service could not be reached or
// refused the request. Callers may degrade to keyword-only retrieval when
// they see this error.
var ErrUnavailable = errors.New("embedding service unavailable")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Close() error
}
