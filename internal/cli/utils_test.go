package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/internal/pipeline"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxLen   int
		expected string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"truncated with ellipsis", "hello world", 5, "hello..."},
		{"zero max returns unchanged", "hello", 0, "hello"},
		{"empty string", "", 5, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.s, tt.maxLen); got != tt.expected {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.expected)
			}
		})
	}
}

func TestWritePassagesText(t *testing.T) {
	passages := []Passage{
		{Content: "Paris is the capital of France.", SourceURL: "https://a.example/paris", Title: "Paris", Score: 0.92},
		{Content: "Berlin is the capital of Germany.", SourceURL: "https://b.example/berlin", Score: 0.41},
	}
	var buf bytes.Buffer
	if err := WritePassages(&buf, passages, OutputText); err != nil {
		t.Fatalf("WritePassages() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Found 2 passage(s)") {
		t.Errorf("output missing count header:\n%s", out)
	}
	if !strings.Contains(out, "Title: Paris") {
		t.Errorf("output missing title:\n%s", out)
	}
	if !strings.Contains(out, "URL: https://b.example/berlin") {
		t.Errorf("output missing URL:\n%s", out)
	}
}

func TestWritePassagesJSON(t *testing.T) {
	passages := []Passage{
		{Content: "text", SourceURL: "https://a.example", Score: 0.5},
	}
	var buf bytes.Buffer
	if err := WritePassages(&buf, passages, OutputJSON); err != nil {
		t.Fatalf("WritePassages() error = %v", err)
	}
	var decoded struct {
		Passages []Passage `json:"passages"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded.Passages) != 1 || decoded.Passages[0].SourceURL != "https://a.example" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteGroundResultText(t *testing.T) {
	result := &pipeline.GroundResult{
		State:          pipeline.StateAssembled,
		SearchNeeded:   true,
		Queries:        []models.SearchQuery{{Text: "capital of France"}},
		CollectionName: "abc123",
		Context:        "[1] Paris\nURL: https://a.example/paris\nParis is the capital of France.",
		Citations:      []models.Citation{{Title: "Paris", URL: "https://a.example/paris"}},
		CacheHit:       true,
	}
	var buf bytes.Buffer
	if err := WriteGroundResult(&buf, result, OutputText); err != nil {
		t.Fatalf("WriteGroundResult() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Queries: capital of France",
		"Collection: abc123 (cached)",
		"Paris is the capital of France.",
		"[1] Paris (https://a.example/paris)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteGroundResultNoSearch(t *testing.T) {
	result := &pipeline.GroundResult{State: pipeline.StateAssembled, SearchNeeded: false}
	var buf bytes.Buffer
	if err := WriteGroundResult(&buf, result, OutputText); err != nil {
		t.Fatalf("WriteGroundResult() error = %v", err)
	}
	if !strings.Contains(buf.String(), "No web search needed") {
		t.Errorf("output = %q", buf.String())
	}
}
