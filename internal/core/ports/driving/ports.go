// Package driving provides interfaces for application entry points
// (primary/inbound ports). The HTTP adapter depends on these interfaces
// only.
package driving

import (
	"context"

	"github.com/nullmastermind/nullgpt-indexer/internal/core/domain"
)

// IndexService ingests document directories into the vector index.
type IndexService interface {
	// Index enumerates, chunks, embeds and indexes every matching file
	// of the document. Best effort across files: a single file's failure
	// is surfaced in logs, not returned.
	Index(ctx context.Context, docID string, extensions []string) (*domain.IndexSummary, error)
}

// QueryService serves ranked retrieval queries against an indexed
// document.
type QueryService interface {
	// Query runs the retrieval pipeline for query (including any
	// embedded `@sub-query` terms) and returns a flat ranked list.
	Query(ctx context.Context, docID, query string, opts domain.QueryOptions) (*domain.QueryResult, error)
}

// DocumentService manages document directories and their artifacts.
type DocumentService interface {
	// List returns all known documents, most recently indexed first.
	List(ctx context.Context) ([]domain.Document, error)

	// Add creates the document's directory.
	Add(ctx context.Context, docID string) error

	// Remove deletes the document's index artifacts, or failing that its
	// source directory.
	Remove(ctx context.Context, docID string) error

	// UpdateAlias replaces the document's alias file content.
	UpdateAlias(ctx context.Context, docID, content string) error

	// Manifest lists the document's files and alias entries.
	Manifest(ctx context.Context, docID string) ([]domain.ManagedFile, error)

	// GitPull runs git pull in every git root the document references
	// and returns the combined output.
	GitPull(ctx context.Context, docID string) (string, error)
}
