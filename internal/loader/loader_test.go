package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/shiraberu/internal/config"
	"github.com/hyperjump/shiraberu/internal/models"
)

const samplePage = `<!DOCTYPE html>
<html lang="en-US">
<head><title>Paris &amp; France</title>
<meta property="article:published_time" content="2024-03-15T10:00:00Z">
<style>body { color: red; }</style>
</head>
<body>
<nav><a href="/">Home</a><a href="/about">About</a></nav>
<article>
<h1>Paris</h1>
<p>Paris is the capital of France.</p>
<p>It is known for the Eiffel Tower.</p>
</article>
<footer>Copyright 2024</footer>
<script>trackVisit();</script>
</body>
</html>`

func TestLoadSnippetOnly(t *testing.T) {
	results := []models.SearchResult{
		{Link: "https://a.example/paris", Title: "Paris", Snippet: "Paris is the capital of France."},
		{Link: "https://b.example/empty", Title: "Empty"},
	}
	l := NewLoader(Options{})

	docs := l.Load(context.Background(), results, config.LoadModeSnippetOnly)
	if len(docs) != 1 {
		t.Fatalf("expected 1 document (empty snippet dropped), got %d", len(docs))
	}
	d := docs[0]
	if !d.FromSnippet {
		t.Error("snippet mode document should be marked FromSnippet")
	}
	if d.CleanedContent != "Paris is the capital of France." {
		t.Errorf("cleaned content: got %q", d.CleanedContent)
	}
	if d.SourceURL != "https://a.example/paris" {
		t.Errorf("source url: got %q", d.SourceURL)
	}
}

func TestLoadFullContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	l := NewLoader(Options{FetchTimeout: 2 * time.Second, Concurrency: 2, SSLVerify: true})
	docs := l.Load(context.Background(), []models.SearchResult{{Link: srv.URL, Title: "fallback"}}, config.LoadModeFullContent)
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	d := docs[0]
	if d.Title != "Paris & France" {
		t.Errorf("title: got %q", d.Title)
	}
	if d.Language != "en" {
		t.Errorf("language: got %q", d.Language)
	}
	if d.PublishedDate == nil || d.PublishedDate.Year() != 2024 {
		t.Errorf("published date: got %v", d.PublishedDate)
	}
	if d.FromSnippet {
		t.Error("fetched document should not be marked FromSnippet")
	}
	if strings.Contains(d.CleanedContent, "trackVisit") || strings.Contains(d.CleanedContent, "Copyright") {
		t.Errorf("boilerplate not stripped: %q", d.CleanedContent)
	}
	if !strings.Contains(d.CleanedContent, "Paris is the capital of France.") {
		t.Errorf("body text missing: %q", d.CleanedContent)
	}
}

func TestLoadPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/ok") {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(samplePage))
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	results := []models.SearchResult{
		{Link: srv.URL + "/bad", Title: "Bad", Snippet: "snippet for the bad page"},
		{Link: srv.URL + "/ok", Title: "Good"},
	}
	l := NewLoader(Options{FetchTimeout: 2 * time.Second, Concurrency: 2, SSLVerify: true})
	docs := l.Load(context.Background(), results, config.LoadModeFullContent)

	if len(docs) != 2 {
		t.Fatalf("partial failure must not empty the batch: got %d docs", len(docs))
	}
	if !docs[0].FromSnippet {
		t.Error("failed fetch should degrade to snippet document")
	}
	if docs[0].CleanedContent != "snippet for the bad page" {
		t.Errorf("degraded content: got %q", docs[0].CleanedContent)
	}
	if docs[1].FromSnippet {
		t.Error("successful fetch should be a full document")
	}
}

func TestCleanHTMLParagraphs(t *testing.T) {
	cleaned := CleanHTML("<p>first para</p><p>second para</p>")
	if !strings.Contains(cleaned, "first para\n\nsecond para") {
		t.Errorf("paragraph boundaries should survive cleaning: %q", cleaned)
	}
}

func TestExtractPublishedDateFormats(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{"rfc3339", `<meta property="article:published_time" content="2024-03-15T10:00:00Z">`, true},
		{"date only", `<meta name="date" content="2024-03-15">`, true},
		{"reversed attrs", `<meta content="2024-03-15" name="date">`, true},
		{"absent", `<meta name="viewport" content="width=device-width">`, false},
		{"garbage", `<meta name="date" content="tomorrow">`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractPublishedDate(tt.html)
			if (got != nil) != tt.want {
				t.Errorf("ExtractPublishedDate = %v, want present=%v", got, tt.want)
			}
		})
	}
}
