// Package collections manages collection naming and lifecycle.
package collections

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/hyperjump/shiraberu/internal/models"
)

// maxNameLen keeps collection names safe for external stores that bound
// identifier length.
const maxNameLen = 63

// Fingerprint derives a stable collection name from a set of search
// queries. The same queries in any order always produce the same name, so a
// repeated search reuses its collection instead of re-fetching the web.
func Fingerprint(queries []models.SearchQuery) string {
	texts := make([]string, 0, len(queries))
	seen := make(map[string]bool, len(queries))
	for _, q := range queries {
		text := strings.TrimSpace(q.Text)
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		texts = append(texts, text)
	}
	sort.Strings(texts)

	sum := sha256.Sum256([]byte(strings.Join(texts, "\x00")))
	name := hex.EncodeToString(sum[:])
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	return name
}
