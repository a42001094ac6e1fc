package vectorstore

import "fmt"

// Backend identifies a vector store implementation.
type Backend string

const (
	// BackendMemory uses in-process brute-force search. The default; fine
	// for the collection sizes produced by a handful of web pages.
	BackendMemory Backend = "memory"
	// BackendQdrant uses an external Qdrant instance over gRPC.
	BackendQdrant Backend = "qdrant"
)

// New creates a vector store for the configured backend.
func New(backend string, qdrantHost string, qdrantPort int) (VectorStore, error) {
	switch Backend(backend) {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendQdrant:
		return NewQdrantStore(qdrantHost, qdrantPort)
	default:
		return nil, fmt.Errorf("unknown vector store backend: %s (supported: memory, qdrant)", backend)
	}
}
