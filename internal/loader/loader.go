// Package loader fetches and cleans page content for search results.
package loader

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/shiraberu/internal/config"
	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/pkg/utils"
)

// maxBodyBytes caps how much of a page is read; pages beyond this are
// truncated rather than rejected.
const maxBodyBytes = 2 << 20

// userAgent identifies fetches to origin servers.
const userAgent = "shiraberu/1.0 (+https://github.com/hyperjump/shiraberu)"

// Loader turns search results into Documents, either from snippets alone or
// by fetching full page content with bounded concurrency.
type Loader struct {
	client       *http.Client
	fetchTimeout time.Duration
	concurrency  int
	logger       *zap.Logger
}

// Options configures a Loader.
type Options struct {
	FetchTimeout time.Duration
	Concurrency  int
	SSLVerify    bool
	Logger       *zap.Logger
}

// NewLoader creates a content loader.
func NewLoader(opts Options) *Loader {
	if opts.FetchTimeout == 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !opts.SSLVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Loader{
		client:       &http.Client{Transport: transport, Timeout: opts.FetchTimeout},
		fetchTimeout: opts.FetchTimeout,
		concurrency:  opts.Concurrency,
		logger:       opts.Logger,
	}
}

// Load produces one Document per search result. In snippet-only mode no
// network calls are made. In full-content mode pages are fetched
// concurrently and a failed fetch degrades that one result to its snippet;
// partial success is expected and normal. Results with neither content nor
// snippet are dropped.
func (l *Loader) Load(ctx context.Context, results []models.SearchResult, mode string) []models.Document {
	if mode != config.LoadModeFullContent {
		docs := make([]models.Document, 0, len(results))
		for _, r := range results {
			if doc, ok := snippetDocument(r); ok {
				docs = append(docs, doc)
			}
		}
		return docs
	}

	docs := make([]*models.Document, len(results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, r := range results {
		g.Go(func() error {
			doc, err := l.fetchDocument(gctx, r)
			if err != nil {
				l.logger.Warn("fetch failed, degrading to snippet",
					zap.String("url", r.Link), zap.Error(err))
				if snippet, ok := snippetDocument(r); ok {
					docs[i] = &snippet
				}
				return nil
			}
			docs[i] = doc
			return nil
		})
	}
	// Workers only return nil; Wait just joins them.
	_ = g.Wait()

	out := make([]models.Document, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out
}

func (l *Loader) fetchDocument(ctx context.Context, r models.SearchResult) (*models.Document, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, l.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, r.Link, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") && !strings.Contains(ct, "text/plain") {
		return nil, fmt.Errorf("fetch: unsupported content type %q", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	raw := string(body)
	cleaned := CleanHTML(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("no readable content")
	}

	return &models.Document{
		SourceURL:      r.Link,
		Title:          ExtractTitle(raw, r.Title),
		RawContent:     raw,
		CleanedContent: cleaned,
		Language:       ExtractLanguage(raw),
		PublishedDate:  ExtractPublishedDate(raw),
		FetchedAt:      time.Now().UTC(),
	}, nil
}

// snippetDocument synthesizes a Document from a result's snippet.
func snippetDocument(r models.SearchResult) (models.Document, bool) {
	snippet := utils.NormalizeWhitespace(r.Snippet)
	if snippet == "" {
		return models.Document{}, false
	}
	return models.Document{
		SourceURL:      r.Link,
		Title:          r.Title,
		RawContent:     r.Snippet,
		CleanedContent: snippet,
		FetchedAt:      time.Now().UTC(),
		FromSnippet:    true,
	}, true
}
