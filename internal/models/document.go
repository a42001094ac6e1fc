// Package models defines core data structures for queries, search results,
// documents, chunks, and collections.
package models

import "time"

// Document is one fetched (or snippet-synthesized) web page after
// deduplication by normalized URL.
type Document struct {
	SourceURL      string     `json:"source_url" db:"source_url"`
	Title          string     `json:"title" db:"title"`
	RawContent     string     `json:"-" db:"raw_content"`
	CleanedContent string     `json:"cleaned_content" db:"cleaned_content"`
	Language       string     `json:"language,omitempty" db:"language"`
	PublishedDate  *time.Time `json:"published_date,omitempty" db:"published_date"`
	FetchedAt      time.Time  `json:"fetched_at" db:"fetched_at"`
	// FromSnippet marks documents synthesized from a result snippet,
	// either by snippet-only mode or by a failed full-content fetch.
	FromSnippet bool `json:"from_snippet,omitempty" db:"from_snippet"`
}

// Chunk is a bounded, overlapping segment of one document's cleaned content.
// Chunk IDs are deterministic so re-chunking the same document yields the
// same IDs (required for collection reuse).
type Chunk struct {
	ID              string    `json:"id" db:"id"`
	SourceURL       string    `json:"source_url" db:"source_url"`
	Index           int       `json:"index" db:"chunk_index"`
	TotalChunks     int       `json:"total_chunks" db:"total_chunks"`
	Text            string    `json:"text" db:"text"`
	CharOffsetStart int       `json:"char_offset_start" db:"char_offset_start"`
	CharOffsetEnd   int       `json:"char_offset_end" db:"char_offset_end"`
	Title           string    `json:"title,omitempty" db:"title"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Embedding pairs a chunk with its vector. Dimensionality is fixed per
// embedder configuration and must match between stored chunks and queries.
type Embedding struct {
	ChunkID string    `json:"chunk_id"`
	Vector  []float32 `json:"vector"`
}
