// Package storage defines persistence for collections, documents and chunks.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/shiraberu/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Storage persists collection metadata and the documents and chunks that
// belong to each collection. Chunk text lives here so retrieval can resolve
// vector and keyword hits back to passages.
type Storage interface {
	// Collection metadata
	SaveCollection(ctx context.Context, col *models.Collection) error
	GetCollection(ctx context.Context, name string) (*models.Collection, error)
	ListCollections(ctx context.Context) ([]*models.Collection, error)
	// ExpiredCollections returns names of collections whose expiry is at
	// or before now.
	ExpiredCollections(ctx context.Context, now time.Time) ([]string, error)
	// DeleteCollection removes the collection and all its documents and
	// chunks.
	DeleteCollection(ctx context.Context, name string) error

	// Content
	SaveDocuments(ctx context.Context, collection string, docs []*models.Document) error
	SaveChunks(ctx context.Context, collection string, chunks []models.Chunk) error
	// GetChunks resolves chunk IDs to chunks. Unknown IDs are omitted.
	GetChunks(ctx context.Context, collection string, ids []string) (map[string]models.Chunk, error)
	// ListChunks returns every chunk in the collection ordered by source
	// URL then chunk index.
	ListChunks(ctx context.Context, collection string) ([]models.Chunk, error)

	Close() error
}
