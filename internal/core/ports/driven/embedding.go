package driven

import "context"

// Embedder generates vector embeddings from text batches.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Any OpenAI-compatible inference server
//
// Caching is layered on top as a decorator (see adapters/driven/embedding/cached),
// not built into providers.
type Embedder interface {
	// EmbedBatch generates one embedding per input text.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName returns the name of the embedding model being used.
	// It participates in cache key derivation.
	ModelName() string
}

// FlushingEmbedder is an Embedder whose bookkeeping writes may be
// deferred. A run is complete only after Flush returns.
type FlushingEmbedder interface {
	Embedder

	// Flush waits for all pending background writes.
	Flush(ctx context.Context) error
}
