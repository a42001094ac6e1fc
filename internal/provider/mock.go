package provider

import (
	"context"
	"sync"

	"github.com/hyperjump/shiraberu/internal/models"
)

// MockProvider is a scripted provider for tests. Results and errors are
// keyed by query text; the zero value for a query yields no results.
type MockProvider struct {
	Name    string
	Results map[string][]models.SearchResult
	Errs    map[string]error
	// FailAll makes every Search call return a provider error.
	FailAll bool

	mu    sync.Mutex
	calls []string
}

// ID returns the mock's configured name, or "mock" when unset.
func (m *MockProvider) ID() string {
	if m.Name == "" {
		return "mock"
	}
	return m.Name
}

// Search replays the scripted results for query and records the call.
func (m *MockProvider) Search(ctx context.Context, query string, searchType models.SearchType, count int) ([]models.SearchResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, query)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.FailAll {
		return nil, &Error{Provider: m.ID(), Err: context.DeadlineExceeded}
	}
	if err, ok := m.Errs[query]; ok {
		return nil, err
	}
	results := m.Results[query]
	if len(results) > count {
		results = results[:count]
	}
	out := make([]models.SearchResult, len(results))
	copy(out, results)
	for i := range out {
		if out[i].Provider == "" {
			out[i].Provider = m.ID()
		}
	}
	return out, nil
}

// Calls returns the queries this mock has seen, in order.
func (m *MockProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
