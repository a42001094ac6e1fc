package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/hyperjump/shiraberu/internal/models"
)

// KeywordStore holds one in-memory Bleve index per collection for the BM25
// side of hybrid retrieval. Collections are ephemeral, so nothing persists
// to disk.
type KeywordStore struct {
	mu      sync.RWMutex
	indexes map[string]bleve.Index
}

type keywordDoc struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// NewKeywordStore creates an empty keyword store.
func NewKeywordStore() *KeywordStore {
	return &KeywordStore{indexes: make(map[string]bleve.Index)}
}

// Standard analyzer (lowercase + tokenize, no stemming) so query terms match
// the exact words that appear in fetched pages.
func keywordMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textField)
	docMapping.AddFieldMappingsAt("title", textField)
	im.DefaultMapping = docMapping
	return im
}

// CreateCollection prepares an index for the collection if absent.
func (s *KeywordStore) CreateCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[collection]; ok {
		return nil
	}
	idx, err := bleve.NewMemOnly(keywordMapping())
	if err != nil {
		return fmt.Errorf("create keyword index: %w", err)
	}
	s.indexes[collection] = idx
	return nil
}

// Has reports whether an index exists in memory for the collection.
func (s *KeywordStore) Has(collection string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indexes[collection]
	return ok
}

func (s *KeywordStore) index(collection string) (bleve.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	return idx, nil
}

// IndexChunks indexes chunks by chunk ID in a single batch.
func (s *KeywordStore) IndexChunks(ctx context.Context, collection string, chunks []models.Chunk) error {
	idx, err := s.index(collection)
	if err != nil {
		return err
	}
	batch := idx.NewBatch()
	for _, ch := range chunks {
		if err := batch.Index(ch.ID, keywordDoc{Title: ch.Title, Text: ch.Text}); err != nil {
			return fmt.Errorf("index chunk %s: %w", ch.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return fmt.Errorf("keyword batch: %w", err)
	}
	return nil
}

// Search runs a match query over text and title and returns up to limit
// hits, best first.
func (s *KeywordStore) Search(ctx context.Context, collection, query string, limit int) ([]Hit, error) {
	idx, err := s.index(collection)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	hits := make([]Hit, len(res.Hits))
	for i, h := range res.Hits {
		hits[i] = Hit{ChunkID: h.ID, Score: h.Score}
	}
	return hits, nil
}

// DeleteCollection closes and drops the collection's index.
func (s *KeywordStore) DeleteCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	idx, ok := s.indexes[collection]
	delete(s.indexes, collection)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if err := idx.Close(); err != nil {
		return fmt.Errorf("close keyword index: %w", err)
	}
	return nil
}

// Close closes every index.
func (s *KeywordStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for name, idx := range s.indexes {
		if err := idx.Close(); err != nil && first == nil {
			first = fmt.Errorf("close keyword index %s: %w", name, err)
		}
		delete(s.indexes, name)
	}
	return first
}
