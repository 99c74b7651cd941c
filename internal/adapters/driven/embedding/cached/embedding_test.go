package cached

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullmastermind/nullgpt-indexer/internal/adapters/driven/storage/memory"
)

// countingEmbedder returns a deterministic vector per text and records
// what it was asked to embed.
type countingEmbedder struct {
	calls   int
	batches [][]string
}

func (f *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func (f *countingEmbedder) ModelName() string { return "test-model" }

func TestEmbedBatchCachesPerText(t *testing.T) {
	inner := &countingEmbedder{}
	store := memory.NewKVStore()
	e := New(inner, store, "doc-1")
	ctx := context.Background()

	first, err := e.EmbedBatch(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 1, inner.calls)

	second, err := e.EmbedBatch(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls, "full cache hit must not re-embed")
}

func TestEmbedBatchOnlySendsMisses(t *testing.T) {
	inner := &countingEmbedder{}
	e := New(inner, memory.NewKVStore(), "doc-1")
	ctx := context.Background()

	_, err := e.EmbedBatch(ctx, []string{"alpha"})
	require.NoError(t, err)

	vectors, err := e.EmbedBatch(ctx, []string{"alpha", "gamma"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)

	require.Equal(t, 2, inner.calls)
	assert.Equal(t, []string{"gamma"}, inner.batches[1])
	assert.Equal(t, []float32{5, 1}, vectors[0])
	assert.Equal(t, []float32{5, 1}, vectors[1])
}

func TestKeyVariesByModelAndText(t *testing.T) {
	assert.NotEqual(t, Key("m1", "text"), Key("m2", "text"))
	assert.NotEqual(t, Key("m1", "text"), Key("m1", "other"))
	assert.Equal(t, Key("m1", "text"), Key("m1", "text"))
}

func TestFlushWaitsForMarkerWrites(t *testing.T) {
	store := memory.NewKVStore()
	e := New(&countingEmbedder{}, store, "doc-9")
	ctx := context.Background()

	_, err := e.EmbedBatch(ctx, []string{"alpha"})
	require.NoError(t, err)
	require.NoError(t, e.Flush(ctx))

	var owner string
	var sawUpdatedAt bool
	err = store.EachKey(ctx, func(key string) error {
		if strings.HasSuffix(key, ":updatedAt") {
			sawUpdatedAt = true
		}
		if strings.HasSuffix(key, ":doc_id") {
			hit, gerr := store.Get(ctx, key, &owner)
			require.NoError(t, gerr)
			require.True(t, hit)
		}
		return nil
	})
	require.NoError(t, err)
	assert.True(t, sawUpdatedAt)
	assert.Equal(t, "doc-9", owner)
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	e := New(&countingEmbedder{}, memory.NewKVStore(), "doc-1")
	vectors, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestProviderReturnsOneEmbedderPerDocument(t *testing.T) {
	p := NewProvider(&countingEmbedder{}, memory.NewKVStore())

	a := p.For("doc-1")
	b := p.For("doc-1")
	c := p.For("doc-2")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}
