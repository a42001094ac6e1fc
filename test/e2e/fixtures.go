// Package e2e exercises the full HTTP stack: provider fan-out, content
// loading, chunking, embedding, storage, retrieval, and context assembly
// behind the real router.
package e2e

import (
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shiraberu/internal/assembler"
	"github.com/hyperjump/shiraberu/internal/chunker"
	"github.com/hyperjump/shiraberu/internal/collections"
	"github.com/hyperjump/shiraberu/internal/config"
	"github.com/hyperjump/shiraberu/internal/embedding"
	"github.com/hyperjump/shiraberu/internal/llm"
	"github.com/hyperjump/shiraberu/internal/loader"
	"github.com/hyperjump/shiraberu/internal/pipeline"
	"github.com/hyperjump/shiraberu/internal/provider"
	"github.com/hyperjump/shiraberu/internal/querygen"
	"github.com/hyperjump/shiraberu/internal/retriever"
	"github.com/hyperjump/shiraberu/internal/server"
	"github.com/hyperjump/shiraberu/internal/storage"
	"github.com/hyperjump/shiraberu/internal/vectorstore"
	"github.com/hyperjump/shiraberu/internal/websearch"
)

// stack is the full service wired with a scripted provider and completer.
type stack struct {
	API       *httptest.Server
	Provider  *provider.MockProvider
	Completer *llm.MockCompleter
}

// newStack builds the whole service behind an httptest server. loadMode
// selects snippet-only or full-content loading for built collections.
func newStack(t *testing.T, mock *provider.MockProvider, completer *llm.MockCompleter, loadMode string) *stack {
	t.Helper()
	logger := zap.NewNop()

	cfg := &config.Config{}
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "e2e.db")
	config.ApplyDefaults(cfg)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	vectors := vectorstore.NewMemoryStore()
	keywords := vectorstore.NewKeywordStore()
	t.Cleanup(func() {
		store.Close()
		keywords.Close()
	})

	embedder := embedding.NewMockEmbedder(32)
	registry := collections.NewRegistry(store, vectors, keywords, embedder, time.Hour, time.Minute, logger)
	ret := retriever.NewHybridRetriever(embedder, vectors, keywords, store, 50, logger)
	generator := querygen.NewGenerator(completer, logger)
	filter := websearch.NewDomainFilter(nil, nil)

	p := pipeline.New(pipeline.Deps{
		Generator: generator,
		Executor:  websearch.NewExecutor(filter, 2*time.Second, logger),
		Chain:     []provider.SearchProvider{mock},
		Loader:    loader.NewLoader(loader.Options{FetchTimeout: 2 * time.Second, Logger: logger}),
		Chunker:   chunker.NewChunker(400, 50),
		Embedder:  embedder,
		Vectors:   vectors,
		Keywords:  keywords,
		Store:     store,
		Registry:  registry,
		Retriever: ret,
		Assembler: assembler.NewAssembler(8000, 2),
		Logger:    logger,
	}, pipeline.Options{
		LoadMode: loadMode,
		Alpha:    0.5,
		DefaultK: 5,
	})

	srv := server.NewServer(p, registry, generator, filter, cfg, logger)
	api := httptest.NewServer(srv.Router())
	t.Cleanup(api.Close)

	return &stack{API: api, Provider: mock, Completer: completer}
}
