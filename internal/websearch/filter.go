// Package websearch fans queries out to search providers with failover,
// rate limiting, and URL-level deduplication.
package websearch

import (
	"net/url"
	"strings"
	"sync"

	"github.com/hyperjump/shiraberu/internal/models"
)

// NormalizeURL canonicalizes a URL for deduplication: lowercased scheme and
// host, default ports and fragments stripped, trailing slash removed.
// Invalid URLs normalize to themselves so they still dedup exactly.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndex(u.Host, ":")]
	}
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

// DomainFilter applies allow/deny rules to result hosts. An empty allow list
// admits every domain not denied. Matching is by exact host or subdomain
// suffix ("example.com" matches "news.example.com").
type DomainFilter struct {
	mu      sync.RWMutex
	allowed []string
	blocked []string
}

// NewDomainFilter creates a filter from allow and deny lists.
func NewDomainFilter(allowed, blocked []string) *DomainFilter {
	f := &DomainFilter{}
	f.Update(allowed, blocked)
	return f
}

// Update replaces both lists. Safe for concurrent use with Admit, so config
// hot-reload can swap lists without restarting the pipeline.
func (f *DomainFilter) Update(allowed, blocked []string) {
	norm := func(ds []string) []string {
		out := make([]string, 0, len(ds))
		for _, d := range ds {
			d = strings.ToLower(strings.TrimSpace(d))
			if d != "" {
				out = append(out, d)
			}
		}
		return out
	}
	f.mu.Lock()
	f.allowed = norm(allowed)
	f.blocked = norm(blocked)
	f.mu.Unlock()
}

// Admit reports whether the result's host passes the filter.
func (f *DomainFilter) Admit(result models.SearchResult) bool {
	u, err := url.Parse(result.Link)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, d := range f.blocked {
		if hostMatches(host, d) {
			return false
		}
	}
	if len(f.allowed) == 0 {
		return true
	}
	for _, d := range f.allowed {
		if hostMatches(host, d) {
			return true
		}
	}
	return false
}

func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// DedupByURL removes results whose normalized URL was already seen,
// preserving first-seen order (per-provider relevance rank survives).
func DedupByURL(results []models.SearchResult) []models.SearchResult {
	seen := make(map[string]struct{}, len(results))
	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		key := NormalizeURL(r.Link)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
