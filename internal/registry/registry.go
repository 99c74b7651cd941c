// Package registry keeps one open vector index per document and
// invalidates them when document definitions change on disk.
package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/nullmastermind/nullgpt-indexer/internal/core/ports/driven"
	"github.com/nullmastermind/nullgpt-indexer/internal/logger"
)

// OpenFunc opens the vector index stored under dir for a document.
type OpenFunc func(dir, docID string) (driven.VectorIndex, error)

// Registry caches open vector indexes by document ID. Indexes live
// under indexDir/<docID>/; rebuilds happen in throwaway slots that are
// swapped in atomically on commit.
type Registry struct {
	indexDir string
	open     OpenFunc

	mu      sync.Mutex
	indexes map[string]driven.VectorIndex
}

// New creates a registry rooted at indexDir.
func New(indexDir string, open OpenFunc) *Registry {
	return &Registry{
		indexDir: indexDir,
		open:     open,
		indexes:  make(map[string]driven.VectorIndex),
	}
}

// Dir returns the index directory for a document.
func (r *Registry) Dir(docID string) string {
	return filepath.Join(r.indexDir, docID)
}

// Get returns the open index for docID, opening it on first use.
func (r *Registry) Get(docID string) (driven.VectorIndex, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx, ok := r.indexes[docID]; ok {
		return idx, nil
	}

	idx, err := r.open(r.Dir(docID), docID)
	if err != nil {
		return nil, fmt.Errorf("opening index for %s: %w", docID, err)
	}
	r.indexes[docID] = idx
	return idx, nil
}

// Evict closes and drops the cached index for docID. The next Get
// reopens from disk.
func (r *Registry) Evict(docID string) {
	r.mu.Lock()
	idx, ok := r.indexes[docID]
	delete(r.indexes, docID)
	r.mu.Unlock()

	if ok {
		if err := idx.Close(); err != nil {
			logger.Warn("closing index for %s: %v", docID, err)
		}
	}
}

// Rebuild is an in-progress index rebuild in a temporary slot.
type Rebuild struct {
	// Index is the fresh, initially empty index to populate.
	Index driven.VectorIndex

	registry *Registry
	docID    string
	slotDir  string
	done     bool
}

// BeginRebuild opens a fresh index in a temporary slot. The live index
// for docID keeps serving queries until Commit swaps the slot in.
func (r *Registry) BeginRebuild(docID string) (*Rebuild, error) {
	slotDir := filepath.Join(r.indexDir, ".rebuild-"+uuid.NewString())
	if err := os.MkdirAll(slotDir, 0700); err != nil {
		return nil, fmt.Errorf("creating rebuild slot: %w", err)
	}

	idx, err := r.open(slotDir, docID)
	if err != nil {
		os.RemoveAll(slotDir)
		return nil, fmt.Errorf("opening rebuild slot for %s: %w", docID, err)
	}

	return &Rebuild{
		Index:    idx,
		registry: r,
		docID:    docID,
		slotDir:  slotDir,
	}, nil
}

// Commit persists the slot and swaps it in as the document's index.
func (b *Rebuild) Commit(ctx context.Context) error {
	if b.done {
		return fmt.Errorf("rebuild for %s already finished", b.docID)
	}
	b.done = true

	if err := b.Index.Save(ctx); err != nil {
		b.cleanup()
		return fmt.Errorf("saving rebuilt index: %w", err)
	}
	if err := b.Index.Close(); err != nil {
		logger.Warn("closing rebuilt index for %s: %v", b.docID, err)
	}

	final := b.registry.Dir(b.docID)
	if err := os.RemoveAll(final); err != nil {
		b.cleanup()
		return fmt.Errorf("clearing old index: %w", err)
	}
	if err := os.Rename(b.slotDir, final); err != nil {
		b.cleanup()
		return fmt.Errorf("promoting rebuilt index: %w", err)
	}

	b.registry.Evict(b.docID)
	return nil
}

// Abort discards the slot, leaving the live index untouched.
func (b *Rebuild) Abort() {
	if b.done {
		return
	}
	b.done = true
	if err := b.Index.Close(); err != nil {
		logger.Debug("closing aborted rebuild for %s: %v", b.docID, err)
	}
	b.cleanup()
}

func (b *Rebuild) cleanup() {
	if err := os.RemoveAll(b.slotDir); err != nil {
		logger.Warn("removing rebuild slot %s: %v", b.slotDir, err)
	}
}

// Watch evicts cached indexes when document definitions under docsDir
// change, so external edits take effect without a restart. It blocks
// until ctx is cancelled.
func (r *Registry) Watch(ctx context.Context, docsDir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(docsDir); err != nil {
		return fmt.Errorf("watching %s: %w", docsDir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			docID := docIDFromPath(event.Name)
			if docID == "" {
				continue
			}
			logger.Debug("document %s changed on disk, evicting index", docID)
			r.Evict(docID)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error: %v", err)
		}
	}
}

// docIDFromPath maps a changed path inside the docs directory to the
// owning document ID. Hidden and temporary entries yield "".
func docIDFromPath(path string) string {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Close closes every cached index.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for docID, idx := range r.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing index for %s: %w", docID, err)
		}
	}
	r.indexes = make(map[string]driven.VectorIndex)
	return firstErr
}
