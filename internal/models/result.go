package models

// RetrievedPassage is a ranked chunk produced for a single retrieval call.
type RetrievedPassage struct {
	Chunk         Chunk   `json:"chunk"`
	Score         float64 `json:"score"`
	SemanticScore float64 `json:"semantic_score"`
	KeywordScore  float64 `json:"keyword_score"`
	SourceURL     string  `json:"source_url"`
	Title         string  `json:"title,omitempty"`
}

// Citation is one numbered source reference in assembled context.
type Citation struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

// AssembledContext is formatted, citeable context ready for prompt injection.
type AssembledContext struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
}
