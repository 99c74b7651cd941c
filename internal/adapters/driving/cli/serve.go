package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/nullmastermind/nullgpt-indexer/internal/adapters/driven/embedding/cached"
	"github.com/nullmastermind/nullgpt-indexer/internal/adapters/driven/embedding/openai"
	"github.com/nullmastermind/nullgpt-indexer/internal/adapters/driven/files"
	openaillm "github.com/nullmastermind/nullgpt-indexer/internal/adapters/driven/llm/openai"
	"github.com/nullmastermind/nullgpt-indexer/internal/adapters/driven/rerank/voyage"
	"github.com/nullmastermind/nullgpt-indexer/internal/adapters/driven/storage/sqlite"
	vectormem "github.com/nullmastermind/nullgpt-indexer/internal/adapters/driven/vector/memory"
	"github.com/nullmastermind/nullgpt-indexer/internal/adapters/driving/httpapi"
	"github.com/nullmastermind/nullgpt-indexer/internal/config"
	"github.com/nullmastermind/nullgpt-indexer/internal/core/domain"
	"github.com/nullmastermind/nullgpt-indexer/internal/core/ports/driven"
	"github.com/nullmastermind/nullgpt-indexer/internal/core/services"
	"github.com/nullmastermind/nullgpt-indexer/internal/logger"
	"github.com/nullmastermind/nullgpt-indexer/internal/registry"
	"github.com/nullmastermind/nullgpt-indexer/internal/splitter"
	"github.com/nullmastermind/nullgpt-indexer/internal/tokens"
	"github.com/nullmastermind/nullgpt-indexer/internal/workqueue"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the indexing and retrieval HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	logger.SetVerbose(cfg.Verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("starting server: %w", domain.ErrEmbedderUnavailable)
	}

	store, err := sqlite.NewStore(cfg.IndexDir)
	if err != nil {
		return fmt.Errorf("opening cache store: %w", err)
	}
	defer store.Close()

	embedder, err := openai.NewEmbedder(openai.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.EmbeddingModel,
	})
	if err != nil {
		return fmt.Errorf("configuring embedder: %w", err)
	}
	provider := cached.NewProvider(embedder, store)

	counter := tokens.Counter()

	var summariser driven.Summariser
	if cfg.ContextualModel != "" {
		summariser, err = openaillm.NewSummariser(openaillm.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.ContextualModel,
		})
		if err != nil {
			return fmt.Errorf("configuring summariser: %w", err)
		}
		logger.Info("contextual enrichment enabled (%s)", cfg.ContextualModel)
	}

	var reranker driven.Reranker
	if cfg.RerankModel != "" && cfg.VoyageAPIKey != "" {
		reranker, err = voyage.NewReranker(voyage.Config{
			APIKey: cfg.VoyageAPIKey,
			Model:  cfg.RerankModel,
		})
		if err != nil {
			return fmt.Errorf("configuring reranker: %w", err)
		}
		logger.Info("reranking enabled (%s)", cfg.RerankModel)
	}

	reg := registry.New(cfg.IndexDir, func(dir, docID string) (driven.VectorIndex, error) {
		return vectormem.Open(dir, provider.For(docID))
	})
	defer reg.Close()

	go func() {
		if err := reg.Watch(ctx, cfg.DocsDir); err != nil && ctx.Err() == nil {
			logger.Warn("docs watcher stopped: %v", err)
		}
	}()

	rateTokens := cfg.RateLimitTokens
	if rateTokens <= 0 {
		rateTokens = 1
	}
	queue := workqueue.New(workqueue.Config{
		Concurrency: cfg.Concurrency,
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
		Limiter:     rate.NewLimiter(rate.Every(cfg.RateLimitInterval/time.Duration(rateTokens)), rateTokens),
	})
	defer queue.Close()

	budget := splitter.Budget{
		MinTokens:   cfg.ChunkMinTokens,
		MaxTokens:   cfg.ChunkMaxTokens,
		TargetCount: cfg.TargetChunkCount,
		MinRatio:    cfg.ChunkMinRatio,
	}
	splitterFor := func(docID string) *splitter.Splitter {
		opts := []splitter.Option{}
		if summariser != nil {
			enricher := splitter.NewEnricher(summariser, store, counter, cfg.ContextualMaxTokens, docID)
			opts = append(opts, splitter.WithEnricher(enricher))
		}
		return splitter.New(counter, budget, opts...)
	}

	lister := files.NewLister()

	indexer := services.NewIndexer(services.IndexerDeps{
		DocsDir:     cfg.DocsDir,
		Store:       store,
		Registry:    reg,
		Lister:      lister,
		Queue:       queue,
		SplitterFor: splitterFor,
		EmbedderFor: func(docID string) driven.FlushingEmbedder {
			return provider.For(docID)
		},
		Collector: services.NewCollector(store, cfg.CacheTTL),
	})

	querier := services.NewQuerier(reg, reranker, counter, services.QueryConfig{
		RerankContextLength: cfg.RerankContextLength,
		MinScore:            cfg.RerankMinScore,
	})

	documents := services.NewDocuments(services.DocumentsDeps{
		DocsDir:  cfg.DocsDir,
		IndexDir: cfg.IndexDir,
		Store:    store,
		Registry: reg,
		Git:      lister,
	})

	server := httpapi.NewServer(indexer, querier, documents, version)
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	if err := server.ListenAndServe(ctx, addr); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}
