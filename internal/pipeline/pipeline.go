// Package pipeline orchestrates the search-to-context flow: query
// generation, provider fan-out, content loading, chunking, embedding,
// retrieval and assembly.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/hyperjump/shiraberu/internal/assembler"
	"github.com/hyperjump/shiraberu/internal/chunker"
	"github.com/hyperjump/shiraberu/internal/collections"
	"github.com/hyperjump/shiraberu/internal/embedding"
	"github.com/hyperjump/shiraberu/internal/llm"
	"github.com/hyperjump/shiraberu/internal/loader"
	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/internal/provider"
	"github.com/hyperjump/shiraberu/internal/querygen"
	"github.com/hyperjump/shiraberu/internal/retriever"
	"github.com/hyperjump/shiraberu/internal/storage"
	"github.com/hyperjump/shiraberu/internal/vectorstore"
	"github.com/hyperjump/shiraberu/internal/websearch"
	"github.com/hyperjump/shiraberu/pkg/utils"
)

// State names the pipeline stages. Transitions are strictly forward; a
// stage that yields zero usable items short-circuits to Assembled with an
// empty result rather than Failed.
type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateSearching  State = "searching"
	StateLoading    State = "loading"
	StateChunking   State = "chunking"
	StateEmbedding  State = "embedding"
	StateRetrieving State = "retrieving"
	StateAssembled  State = "assembled"
	StateFailed     State = "failed"
)

// Options holds the pipeline tunables taken from configuration.
type Options struct {
	ResultsPerQuery int
	MaxQueries      int
	MaxConcurrency  int
	LoadMode        string
	Alpha           float64
	DefaultK        int
	CacheSize       int
	CacheTTL        time.Duration
}

// Pipeline wires the stages together. One Pipeline serves all requests;
// collection-level serialization happens through the registry.
type Pipeline struct {
	generator *querygen.Generator
	executor  *websearch.Executor
	chain     []provider.SearchProvider
	loader    *loader.Loader
	chunker   *chunker.Chunker
	embedder  embedding.Embedder
	vectors   vectorstore.VectorStore
	keywords  *vectorstore.KeywordStore
	store     storage.Storage
	registry  *collections.Registry
	retriever *retriever.HybridRetriever
	assembler *assembler.Assembler

	// cache fast-paths fingerprint hits without touching storage. Entries
	// expire well before the collection TTL so a stale hit is re-checked
	// against the registry anyway.
	cache *expirable.LRU[string, string]

	opts   Options
	logger *zap.Logger
}

// Deps bundles the collaborators a Pipeline needs.
type Deps struct {
	Generator *querygen.Generator
	Executor  *websearch.Executor
	Chain     []provider.SearchProvider
	Loader    *loader.Loader
	Chunker   *chunker.Chunker
	Embedder  embedding.Embedder
	Vectors   vectorstore.VectorStore
	Keywords  *vectorstore.KeywordStore
	Store     storage.Storage
	Registry  *collections.Registry
	Retriever *retriever.HybridRetriever
	Assembler *assembler.Assembler
	Logger    *zap.Logger
}

// New creates a pipeline.
func New(deps Deps, opts Options) *Pipeline {
	if opts.ResultsPerQuery <= 0 {
		opts.ResultsPerQuery = 3
	}
	if opts.MaxQueries <= 0 {
		opts.MaxQueries = 3
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	if opts.DefaultK <= 0 {
		opts.DefaultK = 5
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 128
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 15 * time.Minute
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		generator: deps.Generator,
		executor:  deps.Executor,
		chain:     deps.Chain,
		loader:    deps.Loader,
		chunker:   deps.Chunker,
		embedder:  deps.Embedder,
		vectors:   deps.Vectors,
		keywords:  deps.Keywords,
		store:     deps.Store,
		registry:  deps.Registry,
		retriever: deps.Retriever,
		assembler: deps.Assembler,
		cache:     expirable.NewLRU[string, string](opts.CacheSize, nil, opts.CacheTTL),
		opts:      opts,
		logger:    logger,
	}
}

// BuildResult reports the outcome of building (or reusing) a collection.
type BuildResult struct {
	State           State
	Collection      *models.Collection
	CacheHit        bool
	Failovers       int
	DocumentsLoaded int
	ChunksStored    int
	// PublishedDates maps source URLs to publication dates discovered
	// while loading; empty on cache hits.
	PublishedDates map[string]time.Time
}

// BuildCollection runs Searching through Embedding for a query set. When a
// live collection for the same fingerprint already exists the middle stages
// are skipped and the existing collection is reused.
func (p *Pipeline) BuildCollection(ctx context.Context, queries []models.SearchQuery, searchType models.SearchType, name string) (*BuildResult, error) {
	queries = nonEmpty(queries)
	if len(queries) == 0 {
		return &BuildResult{State: StateAssembled}, nil
	}
	fingerprint := collections.Fingerprint(queries)
	if name == "" {
		name = fingerprint
	}

	// Fast path before taking the collection lock.
	if _, ok := p.cache.Get(name); ok {
		if col, err := p.registry.Lookup(ctx, name); err == nil && col != nil {
			return &BuildResult{State: StateRetrieving, Collection: col, CacheHit: true}, nil
		}
		p.cache.Remove(name)
	}

	release := p.registry.Acquire(name)
	defer release()

	// Another writer may have built the collection while we waited.
	col, err := p.registry.Lookup(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("collection lookup: %w", err)
	}
	if col != nil {
		p.cache.Add(name, fingerprint)
		return &BuildResult{State: StateRetrieving, Collection: col, CacheHit: true}, nil
	}

	p.logger.Info("building collection",
		zap.String("collection", name),
		zap.Int("queries", len(queries)),
		zap.String("search_type", string(searchType)))

	// Searching
	report, err := p.executor.Execute(ctx, queries, p.chain, searchType, p.opts.ResultsPerQuery, p.opts.MaxConcurrency)
	if err != nil {
		return &BuildResult{State: StateFailed}, err
	}
	if len(report.Results) == 0 {
		if report.ExhaustedQueries == len(queries) {
			return &BuildResult{State: StateFailed, Failovers: report.Failovers},
				&ExhaustedError{Queries: len(queries), Failovers: report.Failovers}
		}
		return &BuildResult{State: StateAssembled, Failovers: report.Failovers}, nil
	}

	// Loading
	docs := p.loader.Load(ctx, report.Results, p.opts.LoadMode)
	if len(docs) == 0 {
		return &BuildResult{State: StateAssembled, Failovers: report.Failovers}, nil
	}

	// Chunking
	var chunks []models.Chunk
	dates := make(map[string]time.Time)
	for i := range docs {
		chunks = append(chunks, p.chunker.Split(&docs[i])...)
		if docs[i].PublishedDate != nil {
			dates[docs[i].SourceURL] = *docs[i].PublishedDate
		}
	}
	if len(chunks) == 0 {
		return &BuildResult{State: StateAssembled, Failovers: report.Failovers}, nil
	}

	col, err = p.registry.Create(ctx, name, fingerprint, p.embedder.Dimensions())
	if err != nil {
		return &BuildResult{State: StateFailed}, fmt.Errorf("create collection: %w", err)
	}

	docPtrs := make([]*models.Document, len(docs))
	for i := range docs {
		docPtrs[i] = &docs[i]
	}
	if err := p.store.SaveDocuments(ctx, name, docPtrs); err != nil {
		return &BuildResult{State: StateFailed}, fmt.Errorf("save documents: %w", err)
	}
	if err := p.store.SaveChunks(ctx, name, chunks); err != nil {
		return &BuildResult{State: StateFailed}, fmt.Errorf("save chunks: %w", err)
	}
	if err := p.keywords.IndexChunks(ctx, name, chunks); err != nil {
		return &BuildResult{State: StateFailed}, fmt.Errorf("index chunks: %w", err)
	}

	// Embedding. A dead embedding service is absorbed: the keyword side
	// is already indexed, so retrieval degrades instead of the whole
	// build failing.
	if err := p.embedChunks(ctx, name, chunks); err != nil {
		if !errors.Is(err, embedding.ErrUnavailable) {
			return &BuildResult{State: StateFailed}, fmt.Errorf("embed chunks: %w", err)
		}
		p.logger.Warn("embedding unavailable, collection is keyword-only", zap.String("collection", name))
	}

	col.DocumentCount = len(docs)
	col.ChunkCount = len(chunks)
	if err := p.registry.Update(ctx, col); err != nil {
		return &BuildResult{State: StateFailed}, fmt.Errorf("update collection: %w", err)
	}
	p.cache.Add(name, fingerprint)

	p.logger.Info("collection built",
		zap.String("collection", name),
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.Int("failovers", report.Failovers))

	return &BuildResult{
		State:           StateRetrieving,
		Collection:      col,
		Failovers:       report.Failovers,
		DocumentsLoaded: len(docs),
		ChunksStored:    len(chunks),
		PublishedDates:  dates,
	}, nil
}

func (p *Pipeline) embedChunks(ctx context.Context, name string, chunks []models.Chunk) error {
	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
		ids[i] = ch.ID
	}
	vecs, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		// Retry once in halves; a half that still fails leaves its
		// chunks keyword-only.
		if len(texts) < 2 {
			return err
		}
		mid := len(texts) / 2
		okIDs := make([]string, 0, len(ids))
		okVecs := make([][]float32, 0, len(ids))
		for _, r := range [][2]int{{0, mid}, {mid, len(texts)}} {
			half, halfErr := p.embedder.EmbedBatch(ctx, texts[r[0]:r[1]])
			if halfErr != nil {
				p.logger.Warn("embed retry failed, chunks stay keyword-only",
					zap.String("collection", name),
					zap.Int("chunks", r[1]-r[0]),
					zap.Error(halfErr))
				continue
			}
			okIDs = append(okIDs, ids[r[0]:r[1]]...)
			okVecs = append(okVecs, half...)
		}
		if len(okIDs) == 0 {
			return err
		}
		ids, vecs = okIDs, okVecs
	}
	for _, v := range vecs {
		utils.NormalizeL2(v)
	}
	return p.vectors.Upsert(ctx, name, ids, vecs)
}

// Retrieve runs hybrid retrieval against an existing collection. The
// collection must be live; expired or unknown names return an error.
func (p *Pipeline) Retrieve(ctx context.Context, req *models.RetrieveRequest) ([]models.RetrievedPassage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	col, err := p.registry.Lookup(ctx, req.CollectionName)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return nil, fmt.Errorf("collection %s: %w", req.CollectionName, storage.ErrNotFound)
	}
	alpha := p.opts.Alpha
	if req.Alpha != nil {
		alpha = *req.Alpha
	}
	k := req.K
	if k <= 0 {
		k = p.opts.DefaultK
	}
	return p.retriever.Retrieve(ctx, req.CollectionName, req.Query, k, alpha)
}

// GroundResult is the outcome of a full prompt-to-context run.
type GroundResult struct {
	State          State                `json:"state"`
	SearchNeeded   bool                 `json:"search_needed"`
	Queries        []models.SearchQuery `json:"queries,omitempty"`
	CollectionName string               `json:"collection_name,omitempty"`
	Context        string               `json:"context"`
	Citations      []models.Citation    `json:"citations,omitempty"`
	CacheHit       bool                 `json:"cache_hit,omitempty"`
}

// Ground runs the whole pipeline for a conversational prompt: decide whether
// to search, generate queries, build or reuse the collection, retrieve and
// assemble cited context. An empty result is success, not failure; the
// caller can still answer without web context.
func (p *Pipeline) Ground(ctx context.Context, history []llm.Message, prompt string) (*GroundResult, error) {
	// Generating
	decision := p.generator.DecideSearch(ctx, history, prompt)
	if !decision.Needed {
		return &GroundResult{State: StateAssembled, SearchNeeded: false}, nil
	}
	queries := p.generator.Generate(ctx, history, prompt, p.opts.MaxQueries, "")

	build, err := p.BuildCollection(ctx, queries, decision.SearchType, "")
	if err != nil {
		return &GroundResult{State: StateFailed, SearchNeeded: true, Queries: queries}, err
	}
	if build.Collection == nil {
		return &GroundResult{State: StateAssembled, SearchNeeded: true, Queries: queries}, nil
	}

	// Retrieving
	passages, err := p.retriever.Retrieve(ctx, build.Collection.Name, prompt, p.opts.DefaultK, p.opts.Alpha)
	if err != nil {
		return &GroundResult{State: StateFailed, SearchNeeded: true, Queries: queries}, err
	}

	assembled := p.assembler.Assemble(passages, build.PublishedDates)
	return &GroundResult{
		State:          StateAssembled,
		SearchNeeded:   true,
		Queries:        queries,
		CollectionName: build.Collection.Name,
		Context:        assembled.Text,
		Citations:      assembled.Citations,
		CacheHit:       build.CacheHit,
	}, nil
}

// DeleteCollection drops a collection from every store and the cache.
func (p *Pipeline) DeleteCollection(ctx context.Context, name string) error {
	p.cache.Remove(name)
	return p.registry.Delete(ctx, name)
}

func nonEmpty(queries []models.SearchQuery) []models.SearchQuery {
	out := queries[:0:0]
	for _, q := range queries {
		q.Text = strings.TrimSpace(q.Text)
		if q.Text != "" {
			out = append(out, q)
		}
	}
	return out
}
