// Package ledger tracks the content hashes a document has already had
// embedded and indexed. The ledger is loaded once per indexing run,
// mutated in memory by concurrent file tasks, and persisted atomically
// when the run succeeds.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nullmastermind/nullgpt-indexer/internal/logger"
)

// FileName is the ledger side-file written next to a document's index.
const FileName = "indexedHash.json"

// Ledger is a concurrency-safe set of content hashes. Marking a hash
// twice is a no-op, so concurrent file tasks need no coordination beyond
// the internal lock.
type Ledger struct {
	mu     sync.RWMutex
	hashes map[string]bool
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{hashes: make(map[string]bool)}
}

// Load reads a ledger from path. A missing or corrupt file loads as an
// empty ledger: re-embedding is always safe, losing the skip list only
// costs recomputation.
func Load(path string) *Ledger {
	l := New()

	data, err := os.ReadFile(path)
	if err != nil {
		return l
	}
	if err := json.Unmarshal(data, &l.hashes); err != nil {
		logger.Warn("corrupt ledger %s, starting empty: %v", path, err)
		l.hashes = make(map[string]bool)
	}
	return l
}

// Has reports whether hash has been seen.
func (l *Ledger) Has(hash string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hashes[hash]
}

// MarkSeen records hash as indexed.
func (l *Ledger) MarkSeen(hash string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hashes[hash] = true
}

// MarkIfNew records hash and reports whether it was absent before. The
// check and the insert are one atomic step, so concurrent tasks racing
// on the same hash see exactly one true.
func (l *Ledger) MarkIfNew(hash string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hashes[hash] {
		return false
	}
	l.hashes[hash] = true
	return true
}

// Unmark removes hash, releasing a claim taken by MarkIfNew when the
// work it guarded failed and will be retried.
func (l *Ledger) Unmark(hash string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hashes, hash)
}

// Merge records every hash of other. Set union is commutative, so the
// order tasks merge in does not matter.
func (l *Ledger) Merge(other *Ledger) {
	other.mu.RLock()
	defer other.mu.RUnlock()
	l.mu.Lock()
	defer l.mu.Unlock()
	for h := range other.hashes {
		l.hashes[h] = true
	}
}

// Len returns the number of recorded hashes.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.hashes)
}

// Snapshot returns a copy of the recorded hashes.
func (l *Ledger) Snapshot() map[string]bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]bool, len(l.hashes))
	for h := range l.hashes {
		out[h] = true
	}
	return out
}

// Persist writes the ledger to path atomically: the content lands in a
// temp file first and is renamed over the target, so a crash mid-write
// never leaves a truncated ledger.
func (l *Ledger) Persist(path string) error {
	l.mu.RLock()
	data, err := json.Marshal(l.hashes)
	l.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, FileName+".*")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close ledger: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
