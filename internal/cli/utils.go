// Package cli provides CLI output utilities for Shiraberu.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/shiraberu/internal/pipeline"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// Passage is one retrieved passage as returned by the retrieve API.
type Passage struct {
	Content   string  `json:"content"`
	SourceURL string  `json:"source_url"`
	Title     string  `json:"title,omitempty"`
	Score     float64 `json:"score"`
}

// WritePassages writes retrieved passages to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WritePassages(w io.Writer, passages []Passage, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"passages": passages})
	default:
		writePassagesText(w, passages)
		return nil
	}
}

func writePassagesText(w io.Writer, passages []Passage) {
	fmt.Fprintf(w, "\nFound %d passage(s)\n\n", len(passages))
	for i, p := range passages {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "[%d] Score: %.4f\n", i+1, p.Score)
		if p.Title != "" {
			fmt.Fprintf(w, "Title: %s\n", p.Title)
		}
		fmt.Fprintf(w, "URL: %s\n", p.SourceURL)
		fmt.Fprintf(w, "\n%s\n", Truncate(p.Content, 300))
		fmt.Fprintln(w)
	}
}

// WriteGroundResult writes a grounding result to w in the given format.
func WriteGroundResult(w io.Writer, result *pipeline.GroundResult, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		writeGroundResultText(w, result)
		return nil
	}
}

func writeGroundResultText(w io.Writer, result *pipeline.GroundResult) {
	if !result.SearchNeeded {
		fmt.Fprintln(w, "No web search needed for this prompt.")
		return
	}
	if len(result.Queries) > 0 {
		texts := make([]string, len(result.Queries))
		for i, q := range result.Queries {
			texts[i] = q.Text
		}
		fmt.Fprintf(w, "Queries: %s\n", strings.Join(texts, "; "))
	}
	if result.CollectionName != "" {
		fmt.Fprintf(w, "Collection: %s", result.CollectionName)
		if result.CacheHit {
			fmt.Fprintf(w, " (cached)")
		}
		fmt.Fprintln(w)
	}
	if result.Context == "" {
		fmt.Fprintln(w, "\nNo context found.")
		return
	}
	fmt.Fprintf(w, "\n%s\n", result.Context)
	if len(result.Citations) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, c := range result.Citations {
			if c.Title != "" {
				fmt.Fprintf(w, "  [%d] %s (%s)\n", i+1, c.Title, c.URL)
			} else {
				fmt.Fprintf(w, "  [%d] %s\n", i+1, c.URL)
			}
		}
	}
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
