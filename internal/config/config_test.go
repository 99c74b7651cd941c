package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 3456, cfg.ServerPort)
	assert.Equal(t, 10, cfg.Concurrency)
	assert.Equal(t, 10, cfg.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.RetryDelay)
	assert.Equal(t, 7*24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 0.3, cfg.RerankMinScore)
	assert.Equal(t, 800, cfg.ChunkMaxTokens)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INDEXER_CONCURRENCY", "25")
	t.Setenv("RETRY_DELAY", "9")
	t.Setenv("CACHE_TTL_DAYS", "3")
	t.Setenv("RERANK_MIN_SCORE", "0.55")
	t.Setenv("VERBOSE", "true")
	t.Setenv("EMBEDDING_MODEL", "text-embedding-3-large")

	cfg := Default()
	cfg.applyEnv()

	assert.Equal(t, 25, cfg.Concurrency)
	assert.Equal(t, 9*time.Second, cfg.RetryDelay)
	assert.Equal(t, 3*24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 0.55, cfg.RerankMinScore)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "text-embedding-3-large", cfg.EmbeddingModel)
}

func TestEnvIgnoresMalformed(t *testing.T) {
	t.Setenv("INDEXER_CONCURRENCY", "lots")
	t.Setenv("CHUNK_MIN_RATIO", "not-a-float")

	cfg := Default()
	cfg.applyEnv()

	assert.Equal(t, 10, cfg.Concurrency)
	assert.Equal(t, 0.05, cfg.ChunkMinRatio)
}

func TestTOMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.toml"
	err := os.WriteFile(path, []byte("concurrency = 42\nembedding_model = \"local-model\"\n"), 0o600)
	assert.NoError(t, err)

	cfg := Default()
	cfg.applyFile(path)

	assert.Equal(t, 42, cfg.Concurrency)
	assert.Equal(t, "local-model", cfg.EmbeddingModel)
}
