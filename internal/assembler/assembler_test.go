package assembler

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/shiraberu/internal/models"
)

func passage(url, title, text string, score float64) models.RetrievedPassage {
	return models.RetrievedPassage{
		Chunk:     models.Chunk{Text: text, SourceURL: url, Title: title},
		Score:     score,
		SourceURL: url,
		Title:     title,
	}
}

func TestAssembleCitationOrder(t *testing.T) {
	a := NewAssembler(8000, 2)
	passages := []models.RetrievedPassage{
		passage("https://b.example", "B", "from b", 0.9),
		passage("https://a.example", "A", "from a", 0.8),
		passage("https://b.example", "B", "more from b", 0.7),
	}
	out := a.Assemble(passages, nil)

	if len(out.Citations) != 2 {
		t.Fatalf("got %d citations, want 2", len(out.Citations))
	}
	if out.Citations[0].URL != "https://b.example" || out.Citations[1].URL != "https://a.example" {
		t.Errorf("citation order wrong: %+v", out.Citations)
	}
	// Both b passages share citation [1].
	if strings.Count(out.Text, "[1] B") != 2 {
		t.Errorf("expected two [1] B headers:\n%s", out.Text)
	}
	if !strings.Contains(out.Text, "[2] A") {
		t.Errorf("missing [2] A header:\n%s", out.Text)
	}
	if strings.Index(out.Text, "[1]") > strings.Index(out.Text, "[2]") {
		t.Error("citation numbers do not follow first appearance")
	}
}

func TestAssembleBudget(t *testing.T) {
	a := NewAssembler(200, 5)
	var passages []models.RetrievedPassage
	for i := 0; i < 10; i++ {
		passages = append(passages,
			passage(fmt.Sprintf("https://s%d.example", i), "T", strings.Repeat("x", 80), 1.0-float64(i)*0.01))
	}
	out := a.Assemble(passages, nil)
	if len(out.Text) > 200 {
		t.Errorf("context length %d exceeds budget 200", len(out.Text))
	}
	if len(out.Text) == 0 {
		t.Error("budget admitted nothing")
	}
}

func TestAssemblePerSourceCap(t *testing.T) {
	a := NewAssembler(8000, 1)
	passages := []models.RetrievedPassage{
		passage("https://a.example", "A", "first", 0.9),
		passage("https://a.example", "A", "second", 0.8),
		passage("https://b.example", "B", "other", 0.7),
	}
	out := a.Assemble(passages, nil)
	if strings.Contains(out.Text, "second") {
		t.Errorf("per-source cap not enforced:\n%s", out.Text)
	}
	if !strings.Contains(out.Text, "other") {
		t.Errorf("capped source blocked a different source:\n%s", out.Text)
	}
	if len(out.Citations) != 2 {
		t.Errorf("citations = %+v, want two sources", out.Citations)
	}
}

func TestAssemblePublishedDate(t *testing.T) {
	a := NewAssembler(8000, 2)
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	out := a.Assemble(
		[]models.RetrievedPassage{passage("https://a.example", "A", "text", 1)},
		map[string]time.Time{"https://a.example": date},
	)
	if !strings.Contains(out.Text, "Published: 2024-03-15") {
		t.Errorf("missing published date:\n%s", out.Text)
	}
}

func TestAssembleEmpty(t *testing.T) {
	a := NewAssembler(100, 2)
	out := a.Assemble(nil, nil)
	if out.Text != "" || len(out.Citations) != 0 {
		t.Errorf("empty input produced output: %+v", out)
	}
}
