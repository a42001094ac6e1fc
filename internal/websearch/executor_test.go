package websearch

import (
	"context"
	"testing"
	"time"

	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/internal/provider"
)

func queries(texts ...string) []models.SearchQuery {
	qs := make([]models.SearchQuery, len(texts))
	for i, t := range texts {
		qs[i] = models.SearchQuery{Text: t}
	}
	return qs
}

func TestExecuteFailover(t *testing.T) {
	p1 := &provider.MockProvider{Name: "p1", FailAll: true}
	p2 := &provider.MockProvider{Name: "p2", Results: map[string][]models.SearchResult{
		"x": {
			{Link: "https://a.example/1", Title: "one"},
			{Link: "https://a.example/2", Title: "two"},
			{Link: "https://a.example/3", Title: "three"},
		},
	}}
	e := NewExecutor(nil, time.Second, nil)

	report, err := e.Execute(context.Background(), queries("x"), []provider.SearchProvider{p1, p2}, models.SearchTypeGeneral, 10, 4)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(report.Results) != 3 {
		t.Fatalf("expected p2's 3 results, got %d", len(report.Results))
	}
	if report.Failovers != 1 {
		t.Errorf("expected 1 failover event, got %d", report.Failovers)
	}
	if report.ExhaustedQueries != 0 {
		t.Errorf("query should not be exhausted, got %d", report.ExhaustedQueries)
	}
	for i, want := range []string{"one", "two", "three"} {
		if report.Results[i].Title != want {
			t.Errorf("result %d: got %q, want %q (provider order must be preserved)", i, report.Results[i].Title, want)
		}
	}
}

func TestExecuteChainExhausted(t *testing.T) {
	p1 := &provider.MockProvider{Name: "p1", FailAll: true}
	p2 := &provider.MockProvider{Name: "p2", FailAll: true}
	e := NewExecutor(nil, time.Second, nil)

	report, err := e.Execute(context.Background(), queries("x", "y"), []provider.SearchProvider{p1, p2}, models.SearchTypeGeneral, 5, 2)
	if err != nil {
		t.Fatalf("chain exhaustion must not fail the call: %v", err)
	}
	if len(report.Results) != 0 {
		t.Errorf("expected no results, got %d", len(report.Results))
	}
	if report.ExhaustedQueries != 2 {
		t.Errorf("expected 2 exhausted queries, got %d", report.ExhaustedQueries)
	}
}

func TestExecuteDedupAcrossQueries(t *testing.T) {
	p := &provider.MockProvider{Name: "p", Results: map[string][]models.SearchResult{
		"a": {{Link: "https://site.example/page", Title: "from a"}},
		"b": {{Link: "https://site.example/page/", Title: "from b"}, {Link: "https://other.example/x", Title: "other"}},
	}}
	e := NewExecutor(nil, time.Second, nil)

	report, err := e.Execute(context.Background(), queries("a", "b"), []provider.SearchProvider{p}, models.SearchTypeGeneral, 5, 2)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(report.Results) != 2 {
		t.Fatalf("expected trailing-slash duplicate removed, got %d results", len(report.Results))
	}
	if report.Results[0].Title != "from a" {
		t.Errorf("first-seen result should win dedup, got %q", report.Results[0].Title)
	}
}

func TestExecuteDomainFilter(t *testing.T) {
	p := &provider.MockProvider{Name: "p", Results: map[string][]models.SearchResult{
		"q": {
			{Link: "https://good.example/1"},
			{Link: "https://spam.example/2"},
			{Link: "https://sub.spam.example/3"},
		},
	}}
	filter := NewDomainFilter(nil, []string{"spam.example"})
	e := NewExecutor(filter, time.Second, nil)

	report, err := e.Execute(context.Background(), queries("q"), []provider.SearchProvider{p}, models.SearchTypeGeneral, 5, 1)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(report.Results) != 1 || report.Results[0].Link != "https://good.example/1" {
		t.Errorf("blocked domains should be filtered: %v", report.Results)
	}
}

func TestExecuteNoProviders(t *testing.T) {
	e := NewExecutor(nil, time.Second, nil)
	report, err := e.Execute(context.Background(), queries("x"), nil, models.SearchTypeGeneral, 5, 1)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.ExhaustedQueries != 1 {
		t.Errorf("empty chain should exhaust all queries, got %d", report.ExhaustedQueries)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://Example.COM/Path/", "https://example.com/Path"},
		{"https://example.com:443/x", "https://example.com/x"},
		{"http://example.com:80/x", "http://example.com/x"},
		{"https://example.com/x#frag", "https://example.com/x"},
		{"  https://example.com/x  ", "https://example.com/x"},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDomainFilterAllowList(t *testing.T) {
	f := NewDomainFilter([]string{"example.com"}, nil)
	if !f.Admit(models.SearchResult{Link: "https://docs.example.com/a"}) {
		t.Error("subdomain of allowed domain should be admitted")
	}
	if f.Admit(models.SearchResult{Link: "https://example.org/a"}) {
		t.Error("domain outside allow list should be rejected")
	}

	// Hot-reload path: lists swap atomically.
	f.Update(nil, []string{"example.com"})
	if f.Admit(models.SearchResult{Link: "https://example.com/a"}) {
		t.Error("updated block list should apply")
	}
}
