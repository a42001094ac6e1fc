package collections

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shiraberu/internal/embedding"
	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/internal/storage"
	"github.com/hyperjump/shiraberu/internal/vectorstore"
)

func newTestRegistry(t *testing.T, ttl time.Duration) *Registry {
	t.Helper()
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
	embedder := embedding.NewMockEmbedder(8)
	return NewRegistry(store, vectors, keywords, embedder, ttl, time.Minute, zap.NewNop())
}

func TestRegistryCreateLookupDelete(t *testing.T) {
	r := newTestRegistry(t, time.Hour)
	ctx := context.Background()

	release := r.Acquire("abc")
	col, err := r.Create(ctx, "abc", "abc", 4)
	release()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if col.ExpiresAt.Sub(col.CreatedAt) != time.Hour {
		t.Errorf("ttl not applied: %+v", col)
	}

	got, err := r.Lookup(ctx, "abc")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got == nil || got.Name != "abc" {
		t.Fatalf("lookup returned %+v", got)
	}

	if err := r.Delete(ctx, "abc"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = r.Lookup(ctx, "abc")
	if err != nil {
		t.Fatalf("lookup after delete: %v", err)
	}
	if got != nil {
		t.Errorf("deleted collection still visible: %+v", got)
	}
}

func TestRegistryLookupExpiredDeletes(t *testing.T) {
	r := newTestRegistry(t, -time.Minute)
	ctx := context.Background()

	release := r.Acquire("old")
	_, err := r.Create(ctx, "old", "old", 4)
	release()
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := r.Lookup(ctx, "old")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != nil {
		t.Errorf("expired collection served: %+v", got)
	}
	// The expired entry was reaped, not just hidden.
	cols, err := r.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cols) != 0 {
		t.Errorf("expired collection still stored: %v", cols)
	}
}

func TestRegistrySweep(t *testing.T) {
	r := newTestRegistry(t, -time.Minute)
	ctx := context.Background()

	for _, name := range []string{"a", "b"} {
		release := r.Acquire(name)
		if _, err := r.Create(ctx, name, name, 4); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		release()
	}

	if removed := r.Sweep(ctx); removed != 2 {
		t.Errorf("sweep removed %d, want 2", removed)
	}
}

func TestRegistryAcquireSerializesWriters(t *testing.T) {
	r := newTestRegistry(t, time.Hour)

	var order []int
	var mu sync.Mutex
	release := r.Acquire("col")

	done := make(chan struct{})
	go func() {
		release2 := r.Acquire("col")
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		release2()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	order = append(order, 1)
	mu.Unlock()
	release()
	<-done

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("lock did not serialize: %v", order)
	}
}

func TestRegistryLookupRestoresIndexesAfterRestart(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	embedder := embedding.NewMockEmbedder(8)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	first := NewRegistry(store, vectorstore.NewMemoryStore(), vectorstore.NewKeywordStore(),
		embedder, time.Hour, time.Minute, zap.NewNop())

	release := first.Acquire("col")
	col, err := first.Create(ctx, "col", "fp", 8)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	chunks := []models.Chunk{{
		ID:          "c_0000",
		SourceURL:   "https://a.example/paris",
		TotalChunks: 1,
		Text:        "Paris is the capital of France.",
		CreatedAt:   time.Now().UTC(),
	}}
	if err := store.SaveChunks(ctx, "col", chunks); err != nil {
		t.Fatalf("save chunks: %v", err)
	}
	col.ChunkCount = 1
	if err := first.Update(ctx, col); err != nil {
		t.Fatalf("update: %v", err)
	}
	release()
	store.Close()

	// Same database, fresh process: all in-memory indexes are gone.
	store2, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("reopen storage: %v", err)
	}
	vectors := vectorstore.NewMemoryStore()
	keywords := vectorstore.NewKeywordStore()
	t.Cleanup(func() {
		store2.Close()
		keywords.Close()
	})
	r := NewRegistry(store2, vectors, keywords, embedder, time.Hour, time.Minute, zap.NewNop())

	got, err := r.Lookup(ctx, "col")
	if err != nil {
		t.Fatalf("lookup after restart: %v", err)
	}
	if got == nil {
		t.Fatal("collection not live after restart")
	}

	hits, err := keywords.Search(ctx, "col", "capital", 5)
	if err != nil {
		t.Fatalf("keyword search after restart: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("keyword index empty after restart")
	}
	n, err := vectors.Size(ctx, "col")
	if err != nil {
		t.Fatalf("vector size after restart: %v", err)
	}
	if n != 1 {
		t.Errorf("vector index holds %d entries after restart, want 1", n)
	}
}
