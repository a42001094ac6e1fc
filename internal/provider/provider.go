// Package provider defines the search provider capability and its adapters.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/shiraberu/internal/models"
)

// SearchProvider is the uniform contract over one external search API.
// Result order within a response is the provider's relevance rank.
type SearchProvider interface {
	ID() string
	Search(ctx context.Context, query string, searchType models.SearchType, count int) ([]models.SearchResult, error)
}

// Error is a transport, rate-limit, or auth failure from one provider.
// It triggers failover to the next provider in the chain and is never
// fatal on its own.
type Error struct {
	Provider string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrCapacityExceeded is returned when a provider's shared rate limiter is
// saturated beyond its wait budget. Callers back off and retry with jitter.
var ErrCapacityExceeded = errors.New("provider rate limit capacity exceeded")

// Registry holds provider adapters by ID.
type Registry struct {
	providers map[string]SearchProvider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]SearchProvider)}
}

// Register adds a provider; later registrations with the same ID replace earlier ones.
func (r *Registry) Register(p SearchProvider) {
	r.providers[p.ID()] = p
}

// Get returns the provider with the given ID.
func (r *Registry) Get(id string) (SearchProvider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// Chain resolves an ordered list of provider IDs into adapters, skipping
// unknown IDs. An empty result means no usable provider is configured.
func (r *Registry) Chain(ids []string) []SearchProvider {
	chain := make([]SearchProvider, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.providers[id]; ok {
			chain = append(chain, p)
		}
	}
	return chain
}
