package retriever

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shiraberu/internal/embedding"
	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/internal/storage"
	"github.com/hyperjump/shiraberu/internal/vectorstore"
	"github.com/hyperjump/shiraberu/pkg/utils"
)

// downEmbedder simulates an unreachable embedding service.
type downEmbedder struct{}

func (downEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, embedding.ErrUnavailable
}
func (downEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, embedding.ErrUnavailable
}
func (downEmbedder) Dimensions() int   { return 8 }
func (downEmbedder) ModelName() string { return "down" }
func (downEmbedder) Close() error      { return nil }

type fixture struct {
	embedder embedding.Embedder
	vectors  *vectorstore.MemoryStore
	keywords *vectorstore.KeywordStore
	store    *storage.SQLiteStorage
}

func setupCollection(t *testing.T, embedder embedding.Embedder, texts map[string]string) fixture {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	vectors := vectorstore.NewMemoryStore()
	keywords := vectorstore.NewKeywordStore()
	t.Cleanup(func() {
		store.Close()
		keywords.Close()
	})

	now := time.Now().UTC()
	col := &models.Collection{Name: "col", QueryFingerprint: "col", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := store.SaveCollection(ctx, col); err != nil {
		t.Fatalf("save collection: %v", err)
	}
	if err := vectors.CreateCollection(ctx, "col", embedder.Dimensions()); err != nil {
		t.Fatalf("create vectors: %v", err)
	}
	if err := keywords.CreateCollection(ctx, "col"); err != nil {
		t.Fatalf("create keywords: %v", err)
	}

	mock := embedding.NewMockEmbedder(embedder.Dimensions())
	var chunks []models.Chunk
	var ids []string
	var vecs [][]float32
	for id, text := range texts {
		chunks = append(chunks, models.Chunk{
			ID: id, SourceURL: "https://example.com/" + id, Index: 0, TotalChunks: 1,
			Text: text, CharOffsetEnd: len(text), Title: id, CreatedAt: now,
		})
		vec, _ := mock.Embed(ctx, text)
		utils.NormalizeL2(vec)
		ids = append(ids, id)
		vecs = append(vecs, vec)
	}
	if err := store.SaveChunks(ctx, "col", chunks); err != nil {
		t.Fatalf("save chunks: %v", err)
	}
	if err := vectors.Upsert(ctx, "col", ids, vecs); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := keywords.IndexChunks(ctx, "col", chunks); err != nil {
		t.Fatalf("index: %v", err)
	}
	return fixture{embedder: embedder, vectors: vectors, keywords: keywords, store: store}
}

var corpus = map[string]string{
	"c1": "Paris is the capital of France and its largest city.",
	"c2": "Berlin is the capital of Germany.",
	"c3": "A simple recipe for onion soup with butter and broth.",
}

func TestRetrievePureSemantic(t *testing.T) {
	mock := embedding.NewMockEmbedder(32)
	f := setupCollection(t, mock, corpus)
	r := NewHybridRetriever(f.embedder, f.vectors, f.keywords, f.store, 50, zap.NewNop())

	passages, err := r.Retrieve(context.Background(), "col", corpus["c1"], 3, 1.0)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(passages) == 0 {
		t.Fatal("no passages")
	}
	if passages[0].Chunk.ID != "c1" {
		t.Errorf("top passage = %s, want c1", passages[0].Chunk.ID)
	}
	if passages[0].Score != passages[0].SemanticScore {
		t.Errorf("alpha=1 score %f != semantic %f", passages[0].Score, passages[0].SemanticScore)
	}
}

func TestRetrievePureKeyword(t *testing.T) {
	// A broken embedder proves alpha=0 never touches the semantic side.
	f := setupCollection(t, downEmbedder{}, corpus)
	r := NewHybridRetriever(f.embedder, f.vectors, f.keywords, f.store, 50, zap.NewNop())

	passages, err := r.Retrieve(context.Background(), "col", "capital France Paris", 3, 0)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(passages) == 0 {
		t.Fatal("no passages")
	}
	if passages[0].Chunk.ID != "c1" {
		t.Errorf("top passage = %s, want c1", passages[0].Chunk.ID)
	}
	if passages[0].Score != passages[0].KeywordScore {
		t.Errorf("alpha=0 score %f != keyword %f", passages[0].Score, passages[0].KeywordScore)
	}
}

func TestRetrieveDegradesWhenEmbeddingDown(t *testing.T) {
	f := setupCollection(t, downEmbedder{}, corpus)
	r := NewHybridRetriever(f.embedder, f.vectors, f.keywords, f.store, 50, zap.NewNop())

	passages, err := r.Retrieve(context.Background(), "col", "capital of France", 3, 0.7)
	if err != nil {
		t.Fatalf("expected keyword fallback, got error: %v", err)
	}
	if len(passages) == 0 {
		t.Fatal("fallback returned no passages")
	}
	for _, p := range passages {
		if p.SemanticScore != 0 {
			t.Errorf("semantic score leaked into fallback: %+v", p)
		}
	}
}

func TestRetrieveRespectsK(t *testing.T) {
	mock := embedding.NewMockEmbedder(32)
	f := setupCollection(t, mock, corpus)
	r := NewHybridRetriever(f.embedder, f.vectors, f.keywords, f.store, 50, zap.NewNop())

	passages, err := r.Retrieve(context.Background(), "col", "capital", 1, 0.5)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(passages) > 1 {
		t.Errorf("k=1 returned %d passages", len(passages))
	}
}

func TestRetrieveUnknownCollection(t *testing.T) {
	mock := embedding.NewMockEmbedder(32)
	f := setupCollection(t, mock, corpus)
	r := NewHybridRetriever(f.embedder, f.vectors, f.keywords, f.store, 50, zap.NewNop())

	if _, err := r.Retrieve(context.Background(), "nope", "anything", 3, 0.5); err == nil {
		t.Error("expected error for unknown collection")
	}
}
