package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hyperjump/shiraberu/internal/models"
)

const (
	braveWebEndpoint  = "https://api.search.brave.com/res/v1/web/search"
	braveNewsEndpoint = "https://api.search.brave.com/res/v1/news/search"
	braveAPIVersion   = "2023-10-11"
)

// Brave is a SearchProvider backed by the Brave Search API. News-type
// queries go to the news endpoint, everything else to web search.
type Brave struct {
	apiKey       string
	country      string
	searchLang   string
	webEndpoint  string
	newsEndpoint string
	client       *http.Client
}

// BraveOptions configures the Brave adapter.
type BraveOptions struct {
	APIKey     string
	Country    string
	SearchLang string
	Timeout    time.Duration
}

// NewBrave creates a Brave Search adapter.
func NewBrave(opts BraveOptions) (*Brave, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("brave: API key is required")
	}
	if opts.Country == "" {
		opts.Country = "us"
	}
	if opts.SearchLang == "" {
		opts.SearchLang = "en"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Brave{
		apiKey:       opts.APIKey,
		country:      opts.Country,
		searchLang:   opts.SearchLang,
		webEndpoint:  braveWebEndpoint,
		newsEndpoint: braveNewsEndpoint,
		client:       &http.Client{Timeout: opts.Timeout},
	}, nil
}

// ID returns the provider identifier.
func (b *Brave) ID() string { return "brave" }

type braveResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type braveWebResponse struct {
	Web struct {
		Results []braveResult `json:"results"`
	} `json:"web"`
}

type braveNewsResponse struct {
	Results []braveResult `json:"results"`
}

// Search queries Brave and returns results in Brave's relevance order.
func (b *Brave) Search(ctx context.Context, query string, searchType models.SearchType, count int) ([]models.SearchResult, error) {
	endpoint := b.webEndpoint
	if searchType == models.SearchTypeNews {
		endpoint = b.newsEndpoint
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))
	params.Set("country", b.country)
	params.Set("search_lang", b.searchLang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &Error{Provider: b.ID(), Err: err}
	}
	// Accept-Encoding is left to the transport so it transparently
	// decompresses gzip responses.
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)
	req.Header.Set("Api-Version", braveAPIVersion)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &Error{Provider: b.ID(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Provider: b.ID(), Status: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}

	var raw []braveResult
	if searchType == models.SearchTypeNews {
		var body braveNewsResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, &Error{Provider: b.ID(), Err: fmt.Errorf("decode response: %w", err)}
		}
		raw = body.Results
	} else {
		var body braveWebResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, &Error{Provider: b.ID(), Err: fmt.Errorf("decode response: %w", err)}
		}
		raw = body.Web.Results
	}

	results := make([]models.SearchResult, 0, len(raw))
	for _, r := range raw {
		if r.URL == "" {
			continue
		}
		results = append(results, models.SearchResult{
			Link:     r.URL,
			Title:    r.Title,
			Snippet:  r.Description,
			Provider: b.ID(),
		})
	}
	return results, nil
}
