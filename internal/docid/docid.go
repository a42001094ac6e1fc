// Package docid provides deterministic document and chunk IDs from source URLs.
package docid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const prefix = "url:"

// URLDocID returns a stable document ID for the given source URL.
// Same URL always yields the same ID, so re-chunking a document in a reused
// collection produces the same chunk IDs instead of duplicates.
func URLDocID(sourceURL string) string {
	normalized := strings.TrimSpace(sourceURL)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:16])
}

// ChunkID returns the deterministic ID for chunk index of the document at sourceURL.
func ChunkID(sourceURL string, index int) string {
	return fmt.Sprintf("%s_%04d", URLDocID(sourceURL), index)
}
