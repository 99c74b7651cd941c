package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullmastermind/nullgpt-indexer/internal/core/domain"
	"github.com/nullmastermind/nullgpt-indexer/internal/core/ports/driven"
)

// stubIndex records lifecycle calls and persists a marker file on Save.
type stubIndex struct {
	dir    string
	docID  string
	closed bool
	saved  bool
}

func (s *stubIndex) Add(context.Context, []domain.Chunk) error { return nil }

func (s *stubIndex) Search(context.Context, string, int) ([]driven.VectorHit, error) {
	return nil, nil
}

func (s *stubIndex) Save(context.Context) error {
	s.saved = true
	return os.WriteFile(filepath.Join(s.dir, "marker"), []byte(s.docID), 0600)
}

func (s *stubIndex) Close() error {
	s.closed = true
	return nil
}

// stubOpener tracks every index it opened.
type stubOpener struct {
	opened []*stubIndex
}

func (o *stubOpener) open(dir, docID string) (driven.VectorIndex, error) {
	idx := &stubIndex{dir: dir, docID: docID}
	o.opened = append(o.opened, idx)
	return idx, nil
}

func TestGetCachesPerDocument(t *testing.T) {
	opener := &stubOpener{}
	r := New(t.TempDir(), opener.open)

	first, err := r.Get("doc-1")
	require.NoError(t, err)
	again, err := r.Get("doc-1")
	require.NoError(t, err)
	other, err := r.Get("doc-2")
	require.NoError(t, err)

	assert.Same(t, first, again)
	assert.NotSame(t, first, other)
	assert.Len(t, opener.opened, 2)
}

func TestEvictClosesAndReopens(t *testing.T) {
	opener := &stubOpener{}
	r := New(t.TempDir(), opener.open)

	_, err := r.Get("doc-1")
	require.NoError(t, err)
	r.Evict("doc-1")
	assert.True(t, opener.opened[0].closed)

	_, err = r.Get("doc-1")
	require.NoError(t, err)
	assert.Len(t, opener.opened, 2)
}

func TestEvictUnknownDocIsANoOp(t *testing.T) {
	r := New(t.TempDir(), (&stubOpener{}).open)
	r.Evict("never-opened")
}

func TestRebuildCommitPromotesSlot(t *testing.T) {
	indexDir := t.TempDir()
	opener := &stubOpener{}
	r := New(indexDir, opener.open)
	ctx := context.Background()

	// A live index exists before the rebuild.
	_, err := r.Get("doc-1")
	require.NoError(t, err)

	rebuild, err := r.BeginRebuild("doc-1")
	require.NoError(t, err)
	require.NoError(t, rebuild.Commit(ctx))

	// The slot was persisted, promoted to the final path, and the
	// stale cached index evicted.
	data, err := os.ReadFile(filepath.Join(r.Dir("doc-1"), "marker"))
	require.NoError(t, err)
	assert.Equal(t, "doc-1", string(data))
	assert.True(t, opener.opened[0].closed)

	entries, err := os.ReadDir(indexDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "doc-1", entries[0].Name())
}

func TestRebuildAbortLeavesLiveIndexAlone(t *testing.T) {
	indexDir := t.TempDir()
	opener := &stubOpener{}
	r := New(indexDir, opener.open)

	live, err := r.Get("doc-1")
	require.NoError(t, err)

	rebuild, err := r.BeginRebuild("doc-1")
	require.NoError(t, err)
	rebuild.Abort()

	cached, err := r.Get("doc-1")
	require.NoError(t, err)
	assert.Same(t, live, cached)

	entries, err := os.ReadDir(indexDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "abort must remove the slot directory")
}

func TestRebuildCommitTwiceFails(t *testing.T) {
	r := New(t.TempDir(), (&stubOpener{}).open)
	ctx := context.Background()

	rebuild, err := r.BeginRebuild("doc-1")
	require.NoError(t, err)
	require.NoError(t, rebuild.Commit(ctx))
	assert.Error(t, rebuild.Commit(ctx))
}

func TestCloseClosesAllIndexes(t *testing.T) {
	opener := &stubOpener{}
	r := New(t.TempDir(), opener.open)

	_, err := r.Get("doc-1")
	require.NoError(t, err)
	_, err = r.Get("doc-2")
	require.NoError(t, err)

	require.NoError(t, r.Close())
	for _, idx := range opener.opened {
		assert.True(t, idx.closed)
	}
}

func TestDocIDFromPath(t *testing.T) {
	assert.Equal(t, "my-doc", docIDFromPath("/data/docs/my-doc"))
	assert.Equal(t, "my-doc", docIDFromPath("/data/docs/my-doc.json"))
	assert.Equal(t, "", docIDFromPath("/data/docs/.my-doc.swp"))
}
