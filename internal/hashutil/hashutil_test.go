package hashutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumDeterministic(t *testing.T) {
	a := Sum("hello world")
	b := Sum("hello world")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, Sum("hello worlds"))
}

func TestSumStringsMatchesConcatenation(t *testing.T) {
	assert.Equal(t, Sum("abc"), SumStrings([]string{"a", "b", "c"}))
	assert.NotEqual(t, SumStrings([]string{"ab", "c"}), SumStrings([]string{"c", "ab"}))
}

func TestSumJSONCanonical(t *testing.T) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	first, err := SumJSON([]msg{{Role: "system", Content: "x"}})
	require.NoError(t, err)
	second, err := SumJSON([]msg{{Role: "system", Content: "x"}})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	changed, err := SumJSON([]msg{{Role: "user", Content: "x"}})
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)
}

func TestIsDigest(t *testing.T) {
	assert.True(t, IsDigest(Sum("anything")))
	assert.False(t, IsDigest("doc-1:extensions"))
	assert.False(t, IsDigest(Sum("anything")+":updatedAt"))
	assert.False(t, IsDigest("ABCDEF0123456789ABCDEF0123456789"))
}
