// Package assembler formats retrieved passages into a cited context block.
package assembler

import (
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/shiraberu/internal/models"
)

// Assembler selects passages under a character budget and renders them with
// numbered source citations.
type Assembler struct {
	maxContextChars      int
	maxPassagesPerSource int
}

// NewAssembler creates an assembler. maxContextChars bounds the formatted
// output; maxPassagesPerSource keeps a single page from crowding out the
// rest.
func NewAssembler(maxContextChars, maxPassagesPerSource int) *Assembler {
	if maxContextChars <= 0 {
		maxContextChars = 8000
	}
	if maxPassagesPerSource <= 0 {
		maxPassagesPerSource = 2
	}
	return &Assembler{
		maxContextChars:      maxContextChars,
		maxPassagesPerSource: maxPassagesPerSource,
	}
}

// Assemble greedily accepts passages in the given order (callers pass them
// score-descending) until the budget would be exceeded. dates optionally
// maps source URLs to publication dates for the source headers; nil is fine.
// Citations are numbered by first appearance in the formatted text.
func (a *Assembler) Assemble(passages []models.RetrievedPassage, dates map[string]time.Time) models.AssembledContext {
	var b strings.Builder
	var citations []models.Citation
	citationNum := make(map[string]int)
	perSource := make(map[string]int)

	for _, p := range passages {
		if perSource[p.SourceURL] >= a.maxPassagesPerSource {
			continue
		}

		num, known := citationNum[p.SourceURL]
		if !known {
			num = len(citations) + 1
		}
		block := formatPassage(p, num, dates)
		if b.Len()+len(block) > a.maxContextChars {
			break
		}

		b.WriteString(block)
		perSource[p.SourceURL]++
		if !known {
			citationNum[p.SourceURL] = num
			citations = append(citations, models.Citation{Title: p.Title, URL: p.SourceURL})
		}
	}

	return models.AssembledContext{
		Text:      strings.TrimRight(b.String(), "\n"),
		Citations: citations,
	}
}

func formatPassage(p models.RetrievedPassage, num int, dates map[string]time.Time) string {
	var b strings.Builder
	title := p.Title
	if title == "" {
		title = p.SourceURL
	}
	fmt.Fprintf(&b, "[%d] %s\nURL: %s\n", num, title, p.SourceURL)
	if d, ok := dates[p.SourceURL]; ok && !d.IsZero() {
		fmt.Fprintf(&b, "Published: %s\n", d.Format("2006-01-02"))
	}
	b.WriteString(p.Chunk.Text)
	b.WriteString("\n\n")
	return b.String()
}
