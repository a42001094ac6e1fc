// Package querygen turns conversation context into optimized search queries
// via the injected model capability.
package querygen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/shiraberu/internal/llm"
	"github.com/hyperjump/shiraberu/internal/models"
)

const generateSystemPrompt = `You are a search query optimizer. Analyze the conversation history and the user's prompt, then produce optimized web search queries that will surface the most relevant information. Focus on key concepts and search terms. Respond with a JSON object ONLY in this format:
{"queries": ["...", "..."]}
Do not include any explanation or extra text.`

const decideSystemPrompt = `You determine whether a web search is needed to answer the user's latest question, and which kind. Current events, recent releases, real-time data, and post-cutoff facts require a search; general knowledge, math, and creative tasks do not. Respond with a JSON object ONLY in this format:
{"needed": true|false, "search_type": "news"|"general"|null}
Do not include any explanation or extra text.`

// Generator produces search queries from conversation context. Generation
// never blocks the pipeline: any model failure falls back to the user's
// prompt verbatim.
type Generator struct {
	completer llm.Completer
	logger    *zap.Logger
}

// NewGenerator creates a query generator using the given completer.
func NewGenerator(completer llm.Completer, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{completer: completer, logger: logger}
}

// Decision is the outcome of the search-needed check.
type Decision struct {
	Needed     bool
	SearchType models.SearchType
}

// Generate returns between 1 and maxQueries optimized queries. maxQueries is
// clamped to [1,3]. model overrides the completer's configured model when
// non-empty. On model error or malformed output the user prompt is returned
// as the single query.
func (g *Generator) Generate(ctx context.Context, history []llm.Message, userPrompt string, maxQueries int, model string) []models.SearchQuery {
	if maxQueries < 1 {
		maxQueries = 1
	}
	if maxQueries > 3 {
		maxQueries = 3
	}
	fallback := []models.SearchQuery{{Text: userPrompt}}

	prompt := fmt.Sprintf("Based on our conversation history, create up to %d optimized search queries for: %q", maxQueries, userPrompt)
	raw, err := g.completer.Complete(ctx, llm.Request{
		System:   generateSystemPrompt,
		Messages: history,
		Prompt:   prompt,
		JSONMode: true,
		Model:    model,
	})
	if err != nil {
		g.logger.Warn("query generation failed, using prompt verbatim", zap.Error(err))
		return fallback
	}

	var parsed struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		g.logger.Warn("query generation returned malformed JSON, using prompt verbatim",
			zap.String("output", raw), zap.Error(err))
		return fallback
	}

	queries := make([]models.SearchQuery, 0, maxQueries)
	for _, q := range parsed.Queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		queries = append(queries, models.SearchQuery{Text: q})
		if len(queries) == maxQueries {
			break
		}
	}
	if len(queries) == 0 {
		return fallback
	}
	return queries
}

// DecideSearch asks the model whether a web search is needed and which type.
// On any failure it defaults to a general search so a broken decision step
// never suppresses grounding.
func (g *Generator) DecideSearch(ctx context.Context, history []llm.Message, userPrompt string) Decision {
	def := Decision{Needed: true, SearchType: models.SearchTypeGeneral}

	prompt := fmt.Sprintf("Does the following query require a web search to answer accurately? Query: %q", userPrompt)
	raw, err := g.completer.Complete(ctx, llm.Request{
		System:   decideSystemPrompt,
		Messages: history,
		Prompt:   prompt,
		JSONMode: true,
	})
	if err != nil {
		g.logger.Warn("search decision failed, defaulting to general search", zap.Error(err))
		return def
	}

	var parsed struct {
		Needed     bool    `json:"needed"`
		SearchType *string `json:"search_type"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		g.logger.Warn("search decision returned malformed JSON, defaulting to general search",
			zap.String("output", raw), zap.Error(err))
		return def
	}

	d := Decision{Needed: parsed.Needed, SearchType: models.SearchTypeGeneral}
	if parsed.SearchType != nil && *parsed.SearchType == string(models.SearchTypeNews) {
		d.SearchType = models.SearchTypeNews
	}
	return d
}

// extractJSON strips text around the outermost JSON object. Models sometimes
// wrap structured output in prose or code fences despite instructions.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
