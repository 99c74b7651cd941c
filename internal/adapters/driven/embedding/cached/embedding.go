// Package cached decorates an Embedder with durable per-text
// memoisation so re-indexing unchanged content never re-embeds it.
package cached

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nullmastermind/nullgpt-indexer/internal/core/ports/driven"
	"github.com/nullmastermind/nullgpt-indexer/internal/hashutil"
	"github.com/nullmastermind/nullgpt-indexer/internal/logger"
)

var _ driven.FlushingEmbedder = (*Embedder)(nil)

// Embedder caches each text's vector under a digest of the model name
// and the text. Cache hits skip the inner embedder entirely; a batch
// with partial hits only sends the misses upstream.
//
// Liveness markers ({key}:updatedAt, {key}:doc_id) are written in the
// background so the hot path never waits on bookkeeping. Flush must be
// called before the owning run is considered complete.
type Embedder struct {
	inner      driven.Embedder
	store      driven.KeyValueStore
	ownerDocID string

	pending sync.WaitGroup
}

// New wraps inner with caching backed by store. ownerDocID is recorded
// on every touched key so the garbage collector can attribute entries.
func New(inner driven.Embedder, store driven.KeyValueStore, ownerDocID string) *Embedder {
	return &Embedder{
		inner:      inner,
		store:      store,
		ownerDocID: ownerDocID,
	}
}

// Key derives the cache key for one text under the given model.
func Key(model, text string) string {
	return hashutil.Sum(model + "\x00" + text)
}

// EmbedBatch returns one vector per text, serving from the cache where
// possible and embedding only the misses.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := e.inner.ModelName()
	vectors := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missIdx []int
	for i, text := range texts {
		keys[i] = Key(model, text)

		var cached []float32
		hit, err := e.store.Get(ctx, keys[i], &cached)
		if err != nil {
			return nil, fmt.Errorf("reading embedding cache: %w", err)
		}
		if hit {
			vectors[i] = cached
			e.touch(keys[i])
			continue
		}
		missIdx = append(missIdx, i)
	}

	if len(missIdx) > 0 {
		missTexts := make([]string, len(missIdx))
		for j, i := range missIdx {
			missTexts[j] = texts[i]
		}

		fresh, err := e.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(fresh) != len(missTexts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missTexts))
		}

		for j, i := range missIdx {
			vectors[i] = fresh[j]
			if err := e.store.Set(ctx, keys[i], fresh[j]); err != nil {
				logger.Warn("caching embedding %s: %v", keys[i], err)
			}
			e.touch(keys[i])
		}
	}

	return vectors, nil
}

// touch schedules the liveness-marker writes for key. Failures only
// shorten the entry's lifetime, so they are logged and dropped.
func (e *Embedder) touch(key string) {
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()

		ctx := context.Background()
		if err := e.store.Set(ctx, key+":updatedAt", time.Now()); err != nil {
			logger.Debug("touch %s: %v", key, err)
		}
		if err := e.store.Set(ctx, key+":doc_id", e.ownerDocID); err != nil {
			logger.Debug("touch %s: %v", key, err)
		}
	}()
}

// Flush blocks until all scheduled marker writes have finished or ctx
// is cancelled.
func (e *Embedder) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ModelName reports the inner embedder's model.
func (e *Embedder) ModelName() string {
	return e.inner.ModelName()
}

// Provider hands out one cached embedder per document, so the registry
// and the indexer share the same instance and Flush covers every write
// scheduled during a run.
type Provider struct {
	inner driven.Embedder
	store driven.KeyValueStore

	mu        sync.Mutex
	embedders map[string]*Embedder
}

// NewProvider creates a provider over one upstream embedder.
func NewProvider(inner driven.Embedder, store driven.KeyValueStore) *Provider {
	return &Provider{
		inner:     inner,
		store:     store,
		embedders: make(map[string]*Embedder),
	}
}

// For returns the cached embedder owned by docID.
func (p *Provider) For(docID string) *Embedder {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.embedders[docID]; ok {
		return e
	}
	e := New(p.inner, p.store, docID)
	p.embedders[docID] = e
	return e
}
