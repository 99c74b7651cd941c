package domain

import "time"

// Document represents one indexable directory of source files.
// A document is identified by its doc_id, which is also the name of its
// directory under the configured docs root.
type Document struct {
	// ID is the unique document identifier (directory name).
	ID string

	// Extensions is the set of file extensions included on index runs.
	Extensions []string

	// IndexedAt is when the document was last indexed.
	IndexedAt time.Time

	// IsIndexed reports whether index artifacts exist for this document.
	IsIndexed bool
}

// Chunk is a bounded slice of a file's text submitted for embedding.
// Chunks are immutable once produced by the splitter.
type Chunk struct {
	// Content is the chunk text, possibly prefixed with enrichment context.
	Content string

	// SourcePath is the path of the file the chunk came from.
	SourcePath string

	// ContentHash is the digest of Content, used for dedup and cache keys.
	ContentHash string

	// GroupHash is the digest of the whole file's chunk set, used for
	// file-level dedup.
	GroupHash string

	// LineFrom and LineTo delimit the chunk within its file (1-based).
	// Zero when line tracking is unavailable.
	LineFrom int
	LineTo   int
}

// IndexSummary reports the outcome of one indexing run.
type IndexSummary struct {
	DocID        string    `json:"docId"`
	FilesIndexed int       `json:"filesIndexed"`
	NewHashes    int       `json:"newHashes"`
	Timestamp    time.Time `json:"timestamp"`
}

// ManagedFile describes one entry shown by the document manager:
// either a file inside the document directory or an alias entry
// pointing outside it.
type ManagedFile struct {
	Path     string `json:"f"`
	Editable bool   `json:"editable"`
	Exists   bool   `json:"exists"`
	GitRoot  string `json:"git,omitempty"`
}
