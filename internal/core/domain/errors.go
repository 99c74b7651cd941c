package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDocMissing indicates the document directory does not exist.
	// Index requests for missing documents are rejected before any work
	// is queued.
	ErrDocMissing = errors.New("document path does not exist")

	// ErrEmbedderUnavailable indicates the embedding service is not
	// configured. Indexing cannot proceed without embeddings.
	ErrEmbedderUnavailable = errors.New("embedding service unavailable")

	// ErrRerankUnavailable indicates no rerank model is configured.
	// The query pipeline degrades to truncating the pre-rerank pool.
	ErrRerankUnavailable = errors.New("rerank service unavailable")

	// ErrRerankEmpty indicates the rerank service returned no results.
	// Treated the same as ErrRerankUnavailable by the pipeline.
	ErrRerankEmpty = errors.New("rerank returned no results")

	// ErrSummariserUnavailable indicates no contextual enrichment model
	// is configured. Chunks are indexed without enrichment.
	ErrSummariserUnavailable = errors.New("summariser unavailable")

	// ErrRetriesExhausted indicates a queued task failed after all
	// retry attempts.
	ErrRetriesExhausted = errors.New("retries exhausted")
)
