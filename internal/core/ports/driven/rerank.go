package driven

import "context"

// Reranker performs second-pass relevance scoring of a candidate pool by
// a cross-encoder model. This is an optional service - when nil, the
// query pipeline truncates the pre-rerank pool instead.
type Reranker interface {
	// Rerank scores documents against the query and returns the top k.
	// Results reference documents by their input index.
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)

	// ModelName returns the rerank model identifier.
	ModelName() string
}

// RerankResult is one reranked document reference.
type RerankResult struct {
	// Index is the position of the document in the submitted slice.
	Index int

	// RelevanceScore is the cross-encoder relevance score.
	RelevanceScore float64
}
