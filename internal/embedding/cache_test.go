package embedding

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestCachedEmbedderReusesVectors(t *testing.T) {
	mock := NewMockEmbedder(8)
	cached := NewCachedEmbedder(mock, 16)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	second, err := cached.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if mock.Calls() != 1 {
		t.Errorf("expected 1 inner call, got %d", mock.Calls())
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached vector differs at %d", i)
		}
	}
}

func TestCachedEmbedderBatchPartialHit(t *testing.T) {
	mock := NewMockEmbedder(8)
	cached := NewCachedEmbedder(mock, 16)
	ctx := context.Background()

	if _, err := cached.Embed(ctx, "a"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	vecs, err := cached.EmbedBatch(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vecs))
	}
	// Only "b" and "c" should have reached the embedder.
	if mock.Calls() != 3 {
		t.Errorf("expected 3 inner calls total, got %d", mock.Calls())
	}
	want, _ := mock.Embed(ctx, "b")
	for i := range want {
		if vecs[1][i] != want[i] {
			t.Fatalf("batch result for miss differs at %d", i)
		}
	}
}

func TestCachedEmbedderEviction(t *testing.T) {
	mock := NewMockEmbedder(4)
	cached := NewCachedEmbedder(mock, 2)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three", "one"} {
		if _, err := cached.Embed(ctx, text); err != nil {
			t.Fatalf("embed %q: %v", text, err)
		}
	}
	// "one" was evicted by "three", so it is recomputed.
	if mock.Calls() != 4 {
		t.Errorf("expected 4 inner calls, got %d", mock.Calls())
	}
}

func TestOpenAIEmbedderBatchOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		// Respond out of order; the client must reorder by index.
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"index":1,"embedding":[0.0,1.0]},
			{"index":0,"embedding":[1.0,0.0]}
		]}`))
	}))
	defer srv.Close()

	emb, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL, Model: "test-model"}, zap.NewNop())
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}
	vecs, err := emb.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if vecs[0][0] != 1.0 || vecs[1][1] != 1.0 {
		t.Errorf("vectors not reordered by index: %v", vecs)
	}
	if emb.Dimensions() != 2 {
		t.Errorf("dimensions = %d, want 2", emb.Dimensions())
	}
}

func TestOpenAIEmbedderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	emb, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL, Model: "test-model"}, zap.NewNop())
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}
	_, err = emb.Embed(context.Background(), "text")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestMockEmbedderDeterministicUnit(t *testing.T) {
	mock := NewMockEmbedder(16)
	ctx := context.Background()
	a, _ := mock.Embed(ctx, "same text")
	b, _ := mock.Embed(ctx, "same text")
	c, _ := mock.Embed(ctx, "other text")

	var norm float64
	same, diff := true, false
	for i := range a {
		norm += float64(a[i] * a[i])
		same = same && a[i] == b[i]
		diff = diff || a[i] != c[i]
	}
	if !same {
		t.Error("same text produced different vectors")
	}
	if !diff {
		t.Error("different texts produced identical vectors")
	}
	if norm < 0.99 || norm > 1.01 {
		t.Errorf("vector not unit length: %f", norm)
	}
}
