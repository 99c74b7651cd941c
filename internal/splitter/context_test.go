package splitter

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullmastermind/nullgpt-indexer/internal/adapters/driven/storage/memory"
	"github.com/nullmastermind/nullgpt-indexer/internal/core/ports/driven"
)

// fakeSummariser records calls and returns a canned summary.
type fakeSummariser struct {
	calls    int
	lastUser string
}

func (f *fakeSummariser) Complete(_ context.Context, messages []driven.ChatMessage) (string, error) {
	f.calls++
	f.lastUser = messages[len(messages)-1].Content
	return "situating summary", nil
}

func (f *fakeSummariser) ModelName() string { return "fake-model" }

func TestEnrichMemoisesByMessagesAndModel(t *testing.T) {
	sum := &fakeSummariser{}
	memoStore := memory.NewKVStore()
	e := NewEnricher(sum, memoStore, wordCounter, 16000, "doc-1")
	ctx := context.Background()

	first, err := e.Enrich(ctx, "main.go", "package main\nfunc main() {}", "func main() {}")
	require.NoError(t, err)
	assert.Equal(t, "situating summary", first)
	assert.Equal(t, 1, sum.calls)

	// Identical triple never re-calls the model.
	second, err := e.Enrich(ctx, "main.go", "package main\nfunc main() {}", "func main() {}")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, sum.calls)

	// Different chunk is a different key.
	_, err = e.Enrich(ctx, "main.go", "package main\nfunc main() {}", "package main")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.calls)
}

func TestEnrichWritesLivenessMarkers(t *testing.T) {
	memoStore := memory.NewKVStore()
	e := NewEnricher(&fakeSummariser{}, memoStore, wordCounter, 16000, "doc-7")

	_, err := e.Enrich(context.Background(), "a.md", "some document text here", "document text")
	require.NoError(t, err)

	var owner string
	found := false
	err = memoStore.EachKey(context.Background(), func(key string) error {
		if strings.HasSuffix(key, ":doc_id") {
			hit, gerr := memoStore.Get(context.Background(), key, &owner)
			require.NoError(t, gerr)
			require.True(t, hit)
			found = true
		}
		return nil
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "doc-7", owner)
}

func TestEnrichDownsamplesLargeFiles(t *testing.T) {
	sum := &fakeSummariser{}
	e := NewEnricher(sum, memory.NewKVStore(), wordCounter, 600, "doc-1")

	// ~4000 words, way over a 600 token window.
	file := strings.Repeat("filler words for a very long file body\n", 500)
	chunk := "filler words for a very long file body"

	_, err := e.Enrich(context.Background(), "big.txt", file, chunk)
	require.NoError(t, err)
	assert.Contains(t, sum.lastUser, "\n...\n")
	assert.Less(t, len(sum.lastUser), len(file))
}

func TestSplitWithEnricherPrefixesContext(t *testing.T) {
	sum := &fakeSummariser{}
	e := NewEnricher(sum, memory.NewKVStore(), wordCounter, 16000, "doc-1")
	s := New(wordCounter, DefaultBudget(), WithEnricher(e))

	chunks, err := s.Split(context.Background(), "x.go", "package x\n\nfunc F() int { return 1 }")
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.True(t, strings.HasPrefix(chunks[0].Content, "situating summary\n---\n"))
	// The hash digests the raw chunk, not the enriched content.
	raw := strings.SplitN(chunks[0].Content, "\n---\n", 2)[1]
	assert.NotEmpty(t, raw)
	assert.NotContains(t, raw, "situating summary")
}

func TestDownsampleKeepsHeadAndTail(t *testing.T) {
	content := strings.Repeat("H", 1000) + strings.Repeat("M", 8000) + strings.Repeat("T", 1000)
	out := downsample(content, strings.Repeat("M", 100), 4000)

	assert.Less(t, len(out), len(content))
	assert.True(t, strings.HasPrefix(out, "H"))
	assert.True(t, strings.HasSuffix(out, "T"))
	assert.Contains(t, out, "M")
}

func TestDownsampleNeverSplitsRunes(t *testing.T) {
	// Multi-byte content stresses every cut point: head end, middle
	// window bounds, and tail start.
	content := strings.Repeat("héllo wörld ", 1000)
	for _, maxBytes := range []int{100, 500, 3000, 9000} {
		out := downsample(content, "wörld", maxBytes)
		assert.True(t, utf8.ValidString(out), "maxBytes %d", maxBytes)
	}

	// Degenerate budget path.
	out := downsample(strings.Repeat("日本語テキスト", 500), "テキスト", 80)
	assert.True(t, utf8.ValidString(out))
}
