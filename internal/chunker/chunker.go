// Package chunker splits cleaned documents into overlapping passages.
package chunker

import (
	"strings"
	"time"

	"github.com/hyperjump/shiraberu/internal/docid"
	"github.com/hyperjump/shiraberu/internal/models"
)

// Chunker splits text into overlapping chunks of at most chunkSize
// characters, cutting on paragraph, then sentence, then word boundaries.
// Splitting is deterministic: the same document and parameters always yield
// byte-identical chunk sequences, which collection reuse depends on.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Split chunks a document's cleaned content. Offsets index into the cleaned
// content so chunk text always equals content[start:end].
func (c *Chunker) Split(doc *models.Document) []models.Chunk {
	text := doc.CleanedContent
	spans := c.spans(text)
	if len(spans) == 0 {
		return nil
	}

	now := time.Now().UTC()
	chunks := make([]models.Chunk, 0, len(spans))
	for _, s := range spans {
		start, end := trimSpan(text, s[0], s[1])
		if start >= end {
			continue
		}
		chunks = append(chunks, models.Chunk{
			ID:              docid.ChunkID(doc.SourceURL, len(chunks)),
			SourceURL:       doc.SourceURL,
			Index:           len(chunks),
			Text:            text[start:end],
			CharOffsetStart: start,
			CharOffsetEnd:   end,
			Title:           doc.Title,
			CreatedAt:       now,
		})
	}
	for i := range chunks {
		chunks[i].TotalChunks = len(chunks)
	}
	return chunks
}

// spans computes the raw [start,end) windows before trimming. Consecutive
// spans overlap by roughly chunkOverlap characters; coverage of the whole
// text is contiguous so stripping overlaps reconstructs the original.
func (c *Chunker) spans(text string) [][2]int {
	n := len(text)
	if n == 0 {
		return nil
	}
	if n <= c.chunkSize {
		return [][2]int{{0, n}}
	}

	var spans [][2]int
	start := 0
	for start < n {
		if start+c.chunkSize >= n {
			spans = append(spans, [2]int{start, n})
			break
		}
		cut := findCut(text, start, start+c.chunkSize)
		spans = append(spans, [2]int{start, cut})

		next := wordBoundaryBack(text, cut-c.chunkOverlap)
		if next <= start {
			next = cut
		}
		start = next
	}
	return spans
}

// findCut picks the best boundary in (start, limit]: last paragraph break,
// else last sentence end, else last space. A window with no whitespace at
// all (one huge token) extends forward to the next space or end of text.
func findCut(text string, start, limit int) int {
	window := text[start:limit]

	if i := strings.LastIndex(window, "\n\n"); i > 0 {
		return start + i + 2
	}
	cut := -1
	for _, sep := range []string{". ", "! ", "? ", "\n"} {
		if i := strings.LastIndex(window, sep); i > 0 && start+i+len(sep) > cut {
			cut = start + i + len(sep)
		}
	}
	if cut > start {
		return cut
	}
	if i := strings.LastIndexByte(window, ' '); i > 0 {
		return start + i + 1
	}
	// No whitespace inside the window; never split inside a word.
	if i := strings.IndexAny(text[limit:], " \n"); i >= 0 {
		return limit + i + 1
	}
	return len(text)
}

// wordBoundaryBack moves pos back to the start of the word containing it so
// overlap regions never begin mid-word.
func wordBoundaryBack(text string, pos int) int {
	if pos <= 0 {
		return 0
	}
	if pos >= len(text) {
		return len(text)
	}
	for pos > 0 && !isSpace(text[pos-1]) {
		pos--
	}
	return pos
}

// trimSpan shrinks [start,end) past leading/trailing whitespace.
func trimSpan(text string, start, end int) (int, int) {
	for start < end && isSpace(text[start]) {
		start++
	}
	for end > start && isSpace(text[end-1]) {
		end--
	}
	return start, end
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}
