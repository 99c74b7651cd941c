// Package config assembles the service configuration from defaults, an
// optional config.toml, and environment variables, in that order of
// precedence. A .env file in the working directory is loaded first so
// that deployments can keep all knobs in one place.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/nullmastermind/nullgpt-indexer/internal/logger"
)

// Config holds every knob the indexing and retrieval pipeline reads.
type Config struct {
	// ServerPort is the HTTP listen port.
	ServerPort int `toml:"server_port"`

	// DocsDir is the root holding one directory per document.
	DocsDir string `toml:"docs_dir"`

	// IndexDir is the root holding per-document index artifacts and the
	// key-value store.
	IndexDir string `toml:"index_dir"`

	// Concurrency bounds in-flight file tasks on the work queue.
	Concurrency int `toml:"concurrency"`

	// MaxRetries is the per-task retry bound.
	MaxRetries int `toml:"max_retries"`

	// RetryDelay is the fixed delay between retry attempts.
	RetryDelay time.Duration `toml:"-"`

	// RateLimitTokens external calls are admitted per RateLimitInterval.
	RateLimitTokens   int           `toml:"rate_limit_tokens"`
	RateLimitInterval time.Duration `toml:"-"`

	// Chunk splitting budgets.
	ChunkMinTokens   int     `toml:"chunk_min_tokens"`
	ChunkMaxTokens   int     `toml:"chunk_max_tokens"`
	TargetChunkCount int     `toml:"target_chunk_count"`
	ChunkMinRatio    float64 `toml:"chunk_min_ratio"`

	// Embedding service.
	EmbeddingModel string `toml:"embedding_model"`
	OpenAIAPIKey   string `toml:"-"`
	OpenAIBaseURL  string `toml:"openai_base_url"`

	// Contextual enrichment. Enabled when ContextualModel is non-empty.
	ContextualModel     string `toml:"contextual_model"`
	ContextualMaxTokens int    `toml:"contextual_max_tokens"`

	// Rerank service. Enabled when RerankModel and VoyageAPIKey are set.
	RerankModel         string  `toml:"rerank_model"`
	VoyageAPIKey        string  `toml:"-"`
	RerankContextLength int     `toml:"rerank_context_length"`
	RerankMinScore      float64 `toml:"rerank_min_score"`

	// CacheTTL ages out cache entries on the post-index sweep.
	CacheTTL time.Duration `toml:"-"`

	// Verbose enables debug logging.
	Verbose bool `toml:"verbose"`
}

// Default returns the built-in configuration.
func Default() Config {
	cwd, _ := os.Getwd()
	return Config{
		ServerPort:          3456,
		DocsDir:             filepath.Join(cwd, "docs"),
		IndexDir:            filepath.Join(cwd, "indexes"),
		Concurrency:         10,
		MaxRetries:          10,
		RetryDelay:          5 * time.Second,
		RateLimitTokens:     60,
		RateLimitInterval:   time.Minute,
		ChunkMinTokens:      200,
		ChunkMaxTokens:      800,
		TargetChunkCount:    60,
		ChunkMinRatio:       0.05,
		EmbeddingModel:      "text-embedding-3-small",
		ContextualMaxTokens: 16000,
		RerankContextLength: 8000,
		RerankMinScore:      0.3,
		CacheTTL:            7 * 24 * time.Hour,
	}
}

// Load builds the effective configuration: defaults, then config.toml
// (next to the working directory, if present), then environment.
func Load() Config {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	cfg := Default()
	cfg.applyFile("config.toml")
	cfg.applyEnv()
	return cfg
}

// applyFile overlays values from a TOML file. A missing file is ignored;
// a malformed one is logged and skipped.
func (c *Config) applyFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if err := toml.Unmarshal(data, c); err != nil {
		logger.Warn("ignoring malformed %s: %v", path, err)
	}
}

func (c *Config) applyEnv() {
	envInt("SERVER_PORT", &c.ServerPort)
	envStr("DOCS_DIR", &c.DocsDir)
	envStr("INDEX_DIR", &c.IndexDir)
	envInt("INDEXER_CONCURRENCY", &c.Concurrency)
	envInt("MAX_RETRIES", &c.MaxRetries)
	envSeconds("RETRY_DELAY", &c.RetryDelay)
	envInt("RATE_LIMIT_TOKENS", &c.RateLimitTokens)
	envSeconds("RATE_LIMIT_INTERVAL", &c.RateLimitInterval)
	envInt("CHUNK_MIN_TOKENS", &c.ChunkMinTokens)
	envInt("CHUNK_MAX_TOKENS", &c.ChunkMaxTokens)
	envInt("TARGET_CHUNK_COUNT", &c.TargetChunkCount)
	envFloat("CHUNK_MIN_RATIO", &c.ChunkMinRatio)
	envStr("EMBEDDING_MODEL", &c.EmbeddingModel)
	envStr("OPENAI_API_KEY", &c.OpenAIAPIKey)
	envStr("OPENAI_BASE_URL", &c.OpenAIBaseURL)
	envStr("CONTEXTUAL_MODEL_NAME", &c.ContextualModel)
	envInt("CONTEXTUAL_MAX_TOKENS", &c.ContextualMaxTokens)
	envStr("VOYAGE_RERANK_MODEL", &c.RerankModel)
	envStr("VOYAGE_API_KEY", &c.VoyageAPIKey)
	envInt("VOYAGE_RERANK_MODEL_CONTEXT_LENGTH", &c.RerankContextLength)
	envFloat("RERANK_MIN_SCORE", &c.RerankMinScore)
	envDays("CACHE_TTL_DAYS", &c.CacheTTL)
	envBool("VERBOSE", &c.Verbose)
}

func envStr(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			*dst = f
		}
	}
}

func envBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}

func envSeconds(key string, dst *time.Duration) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			*dst = time.Duration(n) * time.Second
		}
	}
}

func envDays(key string, dst *time.Duration) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			*dst = time.Duration(n) * 24 * time.Hour
		}
	}
}
