package models

import "time"

// Collection is an ephemeral, fingerprint-keyed namespace of chunks and
// embeddings built for one query set. Identical query sets map to the same
// collection and reuse its contents until it expires.
type Collection struct {
	Name             string    `json:"name"`
	QueryFingerprint string    `json:"query_fingerprint"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	DocumentCount    int       `json:"document_count"`
	ChunkCount       int       `json:"chunk_count"`
}

// Expired reports whether the collection's TTL has passed at now.
func (c *Collection) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
