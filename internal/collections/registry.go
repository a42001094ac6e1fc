package collections

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shiraberu/internal/embedding"
	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/internal/storage"
	"github.com/hyperjump/shiraberu/internal/vectorstore"
	"github.com/hyperjump/shiraberu/pkg/utils"
)

// Registry owns collection lifecycle: creation, reuse by fingerprint, TTL
// expiry and deletion across all three stores (metadata, vectors, keyword
// index). A per-collection lock serializes writers and keeps the sweeper
// from reaping a collection while a pipeline run is still filling it.
type Registry struct {
	store    storage.Storage
	vectors  vectorstore.VectorStore
	keywords *vectorstore.KeywordStore
	embedder embedding.Embedder
	logger   *zap.Logger

	ttl           time.Duration
	sweepInterval time.Duration

	mu    sync.Mutex
	locks map[string]*collectionLock

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

type collectionLock struct {
	mu   sync.Mutex
	refs int
}

// NewRegistry creates a registry. The embedder restores vector indexes when
// a live collection outlasts the process (see Lookup). Call Start to begin
// background sweeping.
func NewRegistry(store storage.Storage, vectors vectorstore.VectorStore, keywords *vectorstore.KeywordStore,
	embedder embedding.Embedder, ttl, sweepInterval time.Duration, logger *zap.Logger) *Registry {
	return &Registry{
		store:         store,
		vectors:       vectors,
		keywords:      keywords,
		embedder:      embedder,
		logger:        logger,
		ttl:           ttl,
		sweepInterval: sweepInterval,
		locks:         make(map[string]*collectionLock),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Acquire locks the named collection and returns its release function.
// Holders may create, fill, or delete the collection without racing other
// writers or the sweeper.
func (r *Registry) Acquire(name string) func() {
	r.mu.Lock()
	l, ok := r.locks[name]
	if !ok {
		l = &collectionLock{}
		r.locks[name] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, name)
		}
		r.mu.Unlock()
	}
}

// TTL reports the configured collection lifetime.
func (r *Registry) TTL() time.Duration { return r.ttl }

// Lookup returns the live collection with the given name, or nil when it is
// unknown or expired. Expired collections are deleted on the spot so a stale
// hit never serves old content.
func (r *Registry) Lookup(ctx context.Context, name string) (*models.Collection, error) {
	col, err := r.store.GetCollection(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if col.Expired(time.Now()) {
		r.logger.Info("collection expired on lookup", zap.String("collection", name))
		if err := r.deleteLocked(ctx, name); err != nil {
			r.logger.Warn("failed to delete expired collection", zap.String("collection", name), zap.Error(err))
		}
		return nil, nil
	}
	if err := r.ensureIndexes(ctx, col); err != nil {
		return nil, err
	}
	return col, nil
}

// ensureIndexes rebuilds the in-memory keyword and vector indexes from
// persisted chunks when a live collection outlasts the process. Index
// writes are idempotent, so concurrent rebuilds of the same collection
// duplicate work but stay consistent.
func (r *Registry) ensureIndexes(ctx context.Context, col *models.Collection) error {
	if r.keywords.Has(col.Name) {
		return nil
	}
	r.logger.Info("restoring collection indexes from storage", zap.String("collection", col.Name))
	chunks, err := r.store.ListChunks(ctx, col.Name)
	if err != nil {
		return err
	}
	if err := r.keywords.CreateCollection(ctx, col.Name); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := r.keywords.IndexChunks(ctx, col.Name, chunks); err != nil {
		return err
	}
	if r.embedder == nil {
		return nil
	}
	// A persistent vector backend (qdrant) still holds the embeddings;
	// only re-embed when the collection is gone from the vector side too.
	if n, err := r.vectors.Size(ctx, col.Name); err == nil && n > 0 {
		return nil
	}
	if err := r.vectors.CreateCollection(ctx, col.Name, r.embedder.Dimensions()); err != nil {
		return err
	}
	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
		ids[i] = ch.ID
	}
	vecs, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		if errors.Is(err, embedding.ErrUnavailable) {
			r.logger.Warn("embedding unavailable, restored collection is keyword-only",
				zap.String("collection", col.Name))
			return nil
		}
		return err
	}
	for _, v := range vecs {
		utils.NormalizeL2(v)
	}
	return r.vectors.Upsert(ctx, col.Name, ids, vecs)
}

// Create registers a new collection with the registry TTL and prepares its
// vector and keyword stores. Callers must hold the collection lock.
func (r *Registry) Create(ctx context.Context, name, fingerprint string, dimensions int) (*models.Collection, error) {
	now := time.Now().UTC()
	col := &models.Collection{
		Name:             name,
		QueryFingerprint: fingerprint,
		CreatedAt:        now,
		ExpiresAt:        now.Add(r.ttl),
	}
	if err := r.vectors.CreateCollection(ctx, name, dimensions); err != nil {
		return nil, err
	}
	if err := r.keywords.CreateCollection(ctx, name); err != nil {
		return nil, err
	}
	if err := r.store.SaveCollection(ctx, col); err != nil {
		return nil, err
	}
	return col, nil
}

// Update persists refreshed collection metadata (counts). Callers must hold
// the collection lock.
func (r *Registry) Update(ctx context.Context, col *models.Collection) error {
	return r.store.SaveCollection(ctx, col)
}

// Delete removes the collection from every store.
func (r *Registry) Delete(ctx context.Context, name string) error {
	release := r.Acquire(name)
	defer release()
	return r.deleteLocked(ctx, name)
}

func (r *Registry) deleteLocked(ctx context.Context, name string) error {
	var errs []error
	if err := r.vectors.DeleteCollection(ctx, name); err != nil {
		errs = append(errs, err)
	}
	if err := r.keywords.DeleteCollection(ctx, name); err != nil {
		errs = append(errs, err)
	}
	if err := r.store.DeleteCollection(ctx, name); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// List returns all known collections.
func (r *Registry) List(ctx context.Context) ([]*models.Collection, error) {
	return r.store.ListCollections(ctx)
}

// Start launches the background sweeper that reaps expired collections.
func (r *Registry) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()
	go r.sweepLoop()
}

func (r *Registry) sweepLoop() {
	defer close(r.done)
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.Sweep(context.Background())
		}
	}
}

// Sweep deletes every expired collection and reports how many were removed.
func (r *Registry) Sweep(ctx context.Context) int {
	names, err := r.store.ExpiredCollections(ctx, time.Now())
	if err != nil {
		r.logger.Warn("sweep query failed", zap.Error(err))
		return 0
	}
	removed := 0
	for _, name := range names {
		if err := r.Delete(ctx, name); err != nil {
			r.logger.Warn("sweep delete failed", zap.String("collection", name), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		r.logger.Info("swept expired collections", zap.Int("removed", removed))
	}
	return removed
}

// Stop halts the sweeper and waits for it to exit. Safe to call when Start
// was never called.
func (r *Registry) Stop() {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	r.stopOnce.Do(func() { close(r.stop) })
	if started {
		<-r.done
	}
}
