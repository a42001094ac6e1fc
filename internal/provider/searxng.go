package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperjump/shiraberu/internal/models"
)

// SearxNG is a SearchProvider backed by a self-hosted SearxNG instance's
// JSON API. It needs no API key, which makes it a common failover target.
type SearxNG struct {
	baseURL string
	client  *http.Client
}

// NewSearxNG creates a SearxNG adapter for the instance at baseURL.
func NewSearxNG(baseURL string, timeout time.Duration) (*SearxNG, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("searxng: base URL is required")
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &SearxNG{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// ID returns the provider identifier.
func (s *SearxNG) ID() string { return "searxng" }

type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search queries the SearxNG JSON API and returns up to count results.
func (s *SearxNG) Search(ctx context.Context, query string, searchType models.SearchType, count int) ([]models.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	if searchType == models.SearchTypeNews {
		params.Set("categories", "news")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, &Error{Provider: s.ID(), Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &Error{Provider: s.ID(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Provider: s.ID(), Status: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}

	var body searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &Error{Provider: s.ID(), Err: fmt.Errorf("decode response: %w", err)}
	}

	results := make([]models.SearchResult, 0, count)
	for _, r := range body.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, models.SearchResult{
			Link:     r.URL,
			Title:    r.Title,
			Snippet:  r.Content,
			Provider: s.ID(),
		})
		if len(results) >= count {
			break
		}
	}
	return results, nil
}
