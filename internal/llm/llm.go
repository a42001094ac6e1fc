// Package llm defines the injected text-generation capability.
package llm

import "context"

// Message is one turn of conversation context passed to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one completion call. When JSONMode is set the model is asked
// for a JSON object response (structured output).
type Request struct {
	System   string
	Messages []Message
	Prompt   string
	JSONMode bool
	// Model overrides the client's configured model when non-empty.
	Model string
}

// Completer generates text given prompt plus context. Implementations are
// injected; the pipeline never constructs model clients itself.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}
