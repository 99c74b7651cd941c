// Package memory provides an in-memory vector index with JSON
// persistence. Search is brute-force cosine similarity, which is exact
// and fast enough for per-document corpora of tens of thousands of
// chunks.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/nullmastermind/nullgpt-indexer/internal/core/domain"
	"github.com/nullmastermind/nullgpt-indexer/internal/core/ports/driven"
)

// FileName is the persisted index file inside a document's index
// directory.
const FileName = "vectors.json"

var _ driven.VectorIndex = (*Index)(nil)

// entry pairs a retrieval candidate with its embedding.
type entry struct {
	Vector    []float32                 `json:"vector"`
	Candidate domain.RetrievalCandidate `json:"candidate"`
}

// indexFile is the on-disk representation.
type indexFile struct {
	Model   string  `json:"model"`
	Entries []entry `json:"entries"`
}

// Index is a brute-force vector index over one document's chunks. It is
// safe for concurrent use.
type Index struct {
	dir      string
	embedder driven.Embedder

	mu      sync.RWMutex
	entries []entry
}

// Open loads the index persisted under dir, or starts empty when no
// index file exists yet. An index persisted by a different embedding
// model is discarded rather than searched with incompatible vectors.
func Open(dir string, embedder driven.Embedder) (*Index, error) {
	idx := &Index{dir: dir, embedder: embedder}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}

	var file indexFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding index: %w", err)
	}
	if file.Model != embedder.ModelName() {
		// Stale vectors from another model; rebuild from scratch.
		return idx, nil
	}

	idx.entries = file.Entries
	return idx, nil
}

// Add embeds and stores the given chunks.
func (x *Index) Add(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := x.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	fresh := make([]entry, len(chunks))
	for i, c := range chunks {
		fresh[i] = entry{
			Vector: normalise(vectors[i]),
			Candidate: domain.RetrievalCandidate{
				Content: c.Content,
				Metadata: domain.CandidateMetadata{
					Source:    c.SourcePath,
					Hash:      c.ContentHash,
					GroupHash: c.GroupHash,
					LineFrom:  c.LineFrom,
				},
			},
		}
	}

	x.mu.Lock()
	x.entries = append(x.entries, fresh...)
	x.mu.Unlock()
	return nil
}

// Search returns up to k candidates nearest to the query. Distance is
// cosine similarity, so higher is closer.
func (x *Index) Search(ctx context.Context, query string, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}

	vectors, err := x.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("got %d vectors for query", len(vectors))
	}
	q := normalise(vectors[0])

	x.mu.RLock()
	hits := make([]driven.VectorHit, 0, len(x.entries))
	for _, e := range x.entries {
		hits = append(hits, driven.VectorHit{
			Candidate: e.Candidate,
			Distance:  dot(q, e.Vector),
		})
	}
	x.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance > hits[j].Distance
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Save persists the index atomically to its backing directory.
func (x *Index) Save(_ context.Context) error {
	x.mu.RLock()
	file := indexFile{
		Model:   x.embedder.ModelName(),
		Entries: x.entries,
	}
	data, err := json.Marshal(file)
	x.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}

	if err := os.MkdirAll(x.dir, 0700); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	tmp := filepath.Join(x.dir, FileName+".tmp")
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(x.dir, FileName)); err != nil {
		return fmt.Errorf("replacing index: %w", err)
	}
	return nil
}

// Len reports the number of indexed chunks.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Close releases resources without persisting.
func (x *Index) Close() error {
	x.mu.Lock()
	x.entries = nil
	x.mu.Unlock()
	return nil
}

// normalise scales v to unit length so dot products are cosine
// similarities. A zero vector is returned unchanged.
func normalise(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))

	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = f / norm
	}
	return out
}

// dot computes the inner product over the shared prefix of a and b.
func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
