package models

import "fmt"

// SearchQuery is one optimized search string sent to providers.
type SearchQuery struct {
	Text string `json:"text"`
}

// SearchType distinguishes news-style from general web searches.
type SearchType string

const (
	SearchTypeGeneral SearchType = "general"
	SearchTypeNews    SearchType = "news"
)

// SearchResult is one hit from a provider. Order within a provider's
// response is that provider's relevance rank.
type SearchResult struct {
	Link    string `json:"link"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	// Provider records which adapter produced the hit (for logging and
	// failover accounting).
	Provider string `json:"provider,omitempty"`
}

// RetrieveRequest is a retrieval call against an existing collection.
type RetrieveRequest struct {
	CollectionName string   `json:"collection_name"`
	Query          string   `json:"query"`
	K              int      `json:"k,omitempty"`
	Alpha          *float64 `json:"alpha,omitempty"`
}

// Validate normalizes the retrieve request and rejects unusable ones.
func (r *RetrieveRequest) Validate() error {
	if r.CollectionName == "" {
		return fmt.Errorf("collection_name cannot be empty")
	}
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if r.K <= 0 {
		r.K = 5
	}
	if r.K > 100 {
		r.K = 100
	}
	if r.Alpha != nil && (*r.Alpha < 0 || *r.Alpha > 1) {
		return fmt.Errorf("alpha must be in [0,1]")
	}
	return nil
}
