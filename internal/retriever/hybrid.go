// Package retriever ranks stored chunks against a query by combining
// semantic and keyword scores.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/hyperjump/shiraberu/internal/embedding"
	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/internal/storage"
	"github.com/hyperjump/shiraberu/internal/vectorstore"
	"github.com/hyperjump/shiraberu/pkg/utils"
)

const defaultTopKCandidates = 50

// HybridRetriever scores chunks with both cosine similarity and BM25, then
// merges the two rankings with a configurable weight.
type HybridRetriever struct {
	embedder       embedding.Embedder
	vectors        vectorstore.VectorStore
	keywords       *vectorstore.KeywordStore
	store          storage.Storage
	topKCandidates int
	logger         *zap.Logger
}

// NewHybridRetriever creates a retriever. topKCandidates bounds how many
// hits each side contributes before merging.
func NewHybridRetriever(embedder embedding.Embedder, vectors vectorstore.VectorStore,
	keywords *vectorstore.KeywordStore, store storage.Storage,
	topKCandidates int, logger *zap.Logger) *HybridRetriever {
	if topKCandidates <= 0 {
		topKCandidates = defaultTopKCandidates
	}
	return &HybridRetriever{
		embedder:       embedder,
		vectors:        vectors,
		keywords:       keywords,
		store:          store,
		topKCandidates: topKCandidates,
		logger:         logger,
	}
}

// Retrieve returns the top-k passages for query from the collection.
// alpha weights the semantic side: 1 is pure semantic, 0 pure keyword.
// When the embedding service is down, retrieval degrades to keyword-only
// instead of failing.
func (r *HybridRetriever) Retrieve(ctx context.Context, collection, query string, k int, alpha float64) ([]models.RetrievedPassage, error) {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}

	semantic := map[string]float64{}
	if alpha > 0 {
		var err error
		semantic, err = r.semanticScores(ctx, collection, query)
		if errors.Is(err, embedding.ErrUnavailable) {
			r.logger.Warn("embedding unavailable, falling back to keyword-only retrieval",
				zap.String("collection", collection))
			alpha = 0
			semantic = map[string]float64{}
		} else if err != nil {
			return nil, err
		}
	}

	keyword := map[string]float64{}
	if alpha < 1 {
		hits, err := r.keywords.Search(ctx, collection, query, r.topKCandidates)
		if err != nil {
			return nil, fmt.Errorf("keyword search: %w", err)
		}
		for _, h := range hits {
			keyword[h.ChunkID] = h.Score
		}
	}

	semNorm := utils.MinMaxNormalize(semantic)
	kwNorm := utils.MinMaxNormalize(keyword)

	ids := make([]string, 0, len(semNorm)+len(kwNorm))
	seen := make(map[string]bool, len(semNorm)+len(kwNorm))
	for id := range semNorm {
		seen[id] = true
		ids = append(ids, id)
	}
	for id := range kwNorm {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	chunks, err := r.store.GetChunks(ctx, collection, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve chunks: %w", err)
	}

	passages := make([]models.RetrievedPassage, 0, len(ids))
	for _, id := range ids {
		chunk, ok := chunks[id]
		if !ok {
			r.logger.Warn("hit references unknown chunk", zap.String("chunk_id", id))
			continue
		}
		sem := semNorm[id]
		kw := kwNorm[id]
		passages = append(passages, models.RetrievedPassage{
			Chunk:         chunk,
			Score:         alpha*sem + (1-alpha)*kw,
			SemanticScore: sem,
			KeywordScore:  kw,
			SourceURL:     chunk.SourceURL,
			Title:         chunk.Title,
		})
	}

	// Equal scores rank the earlier chunk of a page first so assembled
	// context reads in document order.
	sort.SliceStable(passages, func(i, j int) bool {
		if passages[i].Score != passages[j].Score {
			return passages[i].Score > passages[j].Score
		}
		if passages[i].SourceURL != passages[j].SourceURL {
			return passages[i].SourceURL < passages[j].SourceURL
		}
		return passages[i].Chunk.Index < passages[j].Chunk.Index
	})

	if k > 0 && k < len(passages) {
		passages = passages[:k]
	}
	return passages, nil
}

func (r *HybridRetriever) semanticScores(ctx context.Context, collection, query string) (map[string]float64, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	utils.NormalizeL2(vec)
	hits, err := r.vectors.Query(ctx, collection, vec, r.topKCandidates)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		scores[h.ChunkID] = h.Score
	}
	return scores, nil
}
