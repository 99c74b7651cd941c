package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nullmastermind/nullgpt-indexer/internal/core/domain"
	"github.com/nullmastermind/nullgpt-indexer/internal/core/ports/driven"
	"github.com/nullmastermind/nullgpt-indexer/internal/core/ports/driving"
	"github.com/nullmastermind/nullgpt-indexer/internal/ledger"
	"github.com/nullmastermind/nullgpt-indexer/internal/logger"
	"github.com/nullmastermind/nullgpt-indexer/internal/registry"
	"github.com/nullmastermind/nullgpt-indexer/internal/splitter"
	"github.com/nullmastermind/nullgpt-indexer/internal/workqueue"
)

// IndexerDeps wires the indexer's collaborators.
type IndexerDeps struct {
	// DocsDir is the root holding one directory per document.
	DocsDir string

	// Store memoises per-document metadata (extensions, index time).
	Store driven.KeyValueStore

	// Registry provides rebuild slots and serves the committed index.
	Registry *registry.Registry

	// Lister enumerates a document's matching files.
	Lister driven.FileLister

	// Queue runs per-file tasks with bounded concurrency and retry.
	Queue *workqueue.Queue

	// SplitterFor returns the chunk splitter for one document's run.
	// Per-document because contextual enrichment is memoised under the
	// owning document's ID.
	SplitterFor func(docID string) *splitter.Splitter

	// EmbedderFor returns the document's embedder, whose deferred cache
	// writes must be flushed before a run is declared complete. May be
	// nil when no flushing is needed.
	EmbedderFor func(docID string) driven.FlushingEmbedder

	// Collector sweeps the embedding cache after a run. Optional.
	Collector *Collector
}

// Indexer rebuilds a document's vector index from its source files.
type Indexer struct {
	deps IndexerDeps
}

var _ driving.IndexService = (*Indexer)(nil)

// NewIndexer creates the indexing service.
func NewIndexer(deps IndexerDeps) *Indexer {
	return &Indexer{deps: deps}
}

// fileOutcome reports what one file task contributed.
type fileOutcome struct {
	// newGroup is true when the file's content group was first claimed
	// by this task. Identical files yield exactly one claim.
	newGroup bool
}

// Index rebuilds docID's index from every file under its directory that
// matches extensions. Files are processed concurrently on the work
// queue; a single file's failure is logged and excluded from the
// summary, never fatal to the run. The rebuilt index replaces the live
// one atomically only when at least one file indexed successfully.
func (ix *Indexer) Index(ctx context.Context, docID string, extensions []string) (*domain.IndexSummary, error) {
	docDir := filepath.Join(ix.deps.DocsDir, docID)
	if info, err := os.Stat(docDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", domain.ErrDocMissing, docDir)
	}

	if err := ix.deps.Store.Set(ctx, docID+":extensions", extensions); err != nil {
		logger.Warn("recording extensions for %s: %v", docID, err)
	}

	logger.Info("indexing %s...", docID)

	ledgerPath := filepath.Join(ix.deps.Registry.Dir(docID), ledger.FileName)
	led := ledger.Load(ledgerPath)

	rebuild, err := ix.deps.Registry.BeginRebuild(docID)
	if err != nil {
		return nil, fmt.Errorf("starting rebuild for %s: %w", docID, err)
	}

	paths, err := ix.deps.Lister.List(ctx, docDir, extensions)
	if err != nil {
		rebuild.Abort()
		return nil, fmt.Errorf("listing files for %s: %w", docID, err)
	}

	split := ix.deps.SplitterFor(docID)

	results := make([]<-chan workqueue.Result, 0, len(paths))
	for _, path := range paths {
		path := path
		results = append(results, ix.deps.Queue.Submit(ctx, func(ctx context.Context) (any, error) {
			return ix.indexFile(ctx, rebuild.Index, led, split, path)
		}))
	}

	summary := &domain.IndexSummary{DocID: docID, Timestamp: time.Now()}
	for i, ch := range results {
		res := <-ch
		if res.Err != nil {
			logger.Warn("indexing %s: %v", paths[i], res.Err)
			continue
		}
		summary.FilesIndexed++
		if out, ok := res.Value.(fileOutcome); ok && out.newGroup {
			summary.NewHashes++
		}
		logger.Debug("indexed: %s", paths[i])
	}

	if summary.FilesIndexed > 0 {
		if err := rebuild.Commit(ctx); err != nil {
			return nil, fmt.Errorf("committing index for %s: %w", docID, err)
		}
		if err := led.Persist(ledgerPath); err != nil {
			logger.Warn("persisting ledger for %s: %v", docID, err)
		}
		if ix.deps.EmbedderFor != nil {
			if emb := ix.deps.EmbedderFor(docID); emb != nil {
				if err := emb.Flush(ctx); err != nil {
					logger.Warn("flushing embedding cache for %s: %v", docID, err)
				}
			}
		}
	} else {
		rebuild.Abort()
	}

	if err := ix.deps.Store.Set(ctx, docID+":indexAt", time.Now()); err != nil {
		logger.Warn("recording index time for %s: %v", docID, err)
	}

	if ix.deps.Collector != nil {
		go func() {
			removed, err := ix.deps.Collector.Sweep(context.Background(), docID)
			if err != nil {
				logger.Warn("cache sweep for %s: %v", docID, err)
				return
			}
			if removed > 0 {
				logger.Debug("cache sweep for %s removed %d entries", docID, removed)
			}
		}()
	}

	logger.Info("indexed %s: %d files, %d new", docID, summary.FilesIndexed, summary.NewHashes)
	return summary, nil
}

// indexFile chunks one file and adds its chunks to the rebuilt index.
// The group hash is claimed atomically before the add: of several
// identical files racing, exactly one observes a new group. A failed
// add releases the claim so the queue's retry sees fresh state.
func (ix *Indexer) indexFile(ctx context.Context, idx driven.VectorIndex, led *ledger.Ledger, split *splitter.Splitter, path string) (fileOutcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileOutcome{}, fmt.Errorf("reading %s: %w", path, err)
	}

	chunks, err := split.Split(ctx, path, string(data))
	if err != nil {
		return fileOutcome{}, fmt.Errorf("splitting %s: %w", path, err)
	}
	if len(chunks) == 0 {
		return fileOutcome{}, nil
	}

	group := chunks[0].GroupHash
	claimed := led.MarkIfNew(group)

	if err := idx.Add(ctx, chunks); err != nil {
		if claimed {
			led.Unmark(group)
		}
		return fileOutcome{}, fmt.Errorf("adding chunks of %s: %w", path, err)
	}

	for _, c := range chunks {
		led.MarkSeen(c.ContentHash)
	}
	return fileOutcome{newGroup: claimed}, nil
}
