package driven

import (
	"context"

	"github.com/nullmastermind/nullgpt-indexer/internal/core/domain"
)

// VectorIndex provides nearest-neighbour search over indexed chunks.
// How vectors are stored and searched is the adapter's concern; the
// services consume this narrow interface only.
type VectorIndex interface {
	// Add embeds and stores the given chunks.
	Add(ctx context.Context, chunks []domain.Chunk) error

	// Search returns up to k candidates nearest to the query, with raw
	// similarity distances. The distance metric is adapter-defined;
	// callers normalise before comparing against thresholds.
	Search(ctx context.Context, query string, k int) ([]VectorHit, error)

	// Save persists the index to its backing directory.
	Save(ctx context.Context) error

	// Close releases resources without persisting.
	Close() error
}

// VectorHit is one raw similarity result.
type VectorHit struct {
	// Candidate carries the matched content and metadata.
	Candidate domain.RetrievalCandidate

	// Distance is the raw metric value returned by the index.
	Distance float64
}
