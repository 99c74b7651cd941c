// Package services implements the application core: indexing documents,
// answering retrieval queries, managing document directories, and aging
// the embedding cache. Services depend on the driven ports only; every
// adapter is injected.
package services

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/nullmastermind/nullgpt-indexer/internal/core/domain"
	"github.com/nullmastermind/nullgpt-indexer/internal/core/ports/driven"
	"github.com/nullmastermind/nullgpt-indexer/internal/core/ports/driving"
	"github.com/nullmastermind/nullgpt-indexer/internal/logger"
	"github.com/nullmastermind/nullgpt-indexer/internal/registry"
)

// Query pipeline defaults.
const (
	// DefaultK is the result cap when the caller does not set one.
	DefaultK = 20

	// DefaultMinScore is the rerank relevance floor.
	DefaultMinScore = 0.3

	// minScanLimit is the smallest candidate pool fetched from the vector
	// index, so lexical rescoring and reranking see enough material even
	// for small k.
	minScanLimit = 150

	// subqueryK caps per-subquery results, and the main query's results
	// when subqueries are present.
	subqueryK = 3

	// rerankBudgetMargin is reserved out of the rerank context window.
	rerankBudgetMargin = 128

	// minRerankBudget is the floor of the rerank token budget.
	minRerankBudget = 512
)

// subqueryRe extracts backtick-quoted @sub-query terms from a query.
var subqueryRe = regexp.MustCompile("`@(.*?)`")

// QueryConfig tunes the Querier beyond per-request options.
type QueryConfig struct {
	// RerankContextLength is the reranker's model context window in
	// tokens. The per-document budget is derived from it.
	RerankContextLength int

	// MinScore is the rerank relevance floor applied when a request does
	// not set its own.
	MinScore float64

	// Weights blends normalised similarity with the lexical rescore.
	Weights domain.RankWeights
}

// Querier answers retrieval queries by running the ranking pipeline
// against a document's vector index.
type Querier struct {
	registry *registry.Registry
	reranker driven.Reranker
	counter  driven.TokenCounter
	cfg      QueryConfig
}

var _ driving.QueryService = (*Querier)(nil)

// NewQuerier creates the query service. reranker may be nil, in which
// case the pipeline truncates the blended pool instead of reranking.
func NewQuerier(reg *registry.Registry, reranker driven.Reranker, counter driven.TokenCounter, cfg QueryConfig) *Querier {
	if cfg.RerankContextLength <= 0 {
		cfg.RerankContextLength = 8000
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = DefaultMinScore
	}
	if cfg.Weights == (domain.RankWeights{}) {
		cfg.Weights = domain.DefaultRankWeights()
	}
	return &Querier{
		registry: reg,
		reranker: reranker,
		counter:  counter,
		cfg:      cfg,
	}
}

// Query runs every embedded sub-query and then the main query, merges
// the result sets with first-occurrence dedup, and returns the flat
// ranked list plus the token total of the contributing sets.
func (q *Querier) Query(ctx context.Context, docID, query string, opts domain.QueryOptions) (*domain.QueryResult, error) {
	if opts.K <= 0 {
		opts.K = DefaultK
	}
	if opts.MinScore <= 0 {
		opts.MinScore = q.cfg.MinScore
	}

	idx, err := q.registry.Get(docID)
	if err != nil {
		return nil, fmt.Errorf("getting index for %s: %w", docID, err)
	}

	subqueries := extractSubqueries(query)
	mainK := opts.K
	if len(subqueries) > 0 && mainK > subqueryK {
		mainK = subqueryK
	}

	sets := make([]*domain.QueryResult, 0, len(subqueries)+1)
	for _, sub := range subqueries {
		k := opts.K
		if k > subqueryK {
			k = subqueryK
		}
		set, err := q.runSingle(ctx, idx, sub, k, opts)
		if err != nil {
			return nil, fmt.Errorf("running sub-query %q: %w", sub, err)
		}
		sets = append(sets, set)
	}

	main, err := q.runSingle(ctx, idx, query, mainK, opts)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	sets = append(sets, main)

	return mergeResultSets(sets), nil
}

// extractSubqueries returns the non-empty `@...` terms embedded in the
// query, in order of appearance.
func extractSubqueries(query string) []string {
	var subs []string
	for _, m := range subqueryRe.FindAllStringSubmatch(query, -1) {
		term := strings.TrimSpace(m[1])
		if term != "" {
			subs = append(subs, term)
		}
	}
	return subs
}

// runSingle runs the full pipeline for one query string: fetch, score
// normalisation, lexical rescore, rerank or truncate, source grouping.
func (q *Querier) runSingle(ctx context.Context, idx driven.VectorIndex, query string, k int, opts domain.QueryOptions) (*domain.QueryResult, error) {
	scanLimit := k
	if scanLimit < minScanLimit {
		scanLimit = minScanLimit
	}

	hits, err := idx.Search(ctx, query, scanLimit+len(opts.IgnoreHashes))
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	ignored := make(map[string]struct{}, len(opts.IgnoreHashes))
	for _, h := range opts.IgnoreHashes {
		ignored[h] = struct{}{}
	}

	pool := make([]domain.ScoredCandidate, 0, len(hits))
	for _, hit := range hits {
		hash := hit.Candidate.Metadata.Hash
		if hash == "" {
			continue
		}
		if _, skip := ignored[hash]; skip {
			continue
		}
		pool = append(pool, domain.ScoredCandidate{
			Candidate: hit.Candidate,
			Score:     normalizeScore(hit.Distance),
		})
	}
	if len(pool) == 0 {
		return &domain.QueryResult{}, nil
	}

	q.blendLexical(query, pool)
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Score > pool[j].Score
	})

	kept := q.rerank(ctx, query, pool, k, opts.MinScore)
	grouped := groupBySource(kept)

	tokens := 0
	for _, c := range grouped {
		tokens += q.counter.Count(c.Candidate.Content)
	}
	return &domain.QueryResult{Data: grouped, Tokens: tokens}, nil
}

// normalizeScore maps a raw similarity distance into (-1, 1) with a
// bounded, monotonic transform, so scores from different index backends
// are comparable to the configured thresholds.
func normalizeScore(distance float64) float64 {
	return (2.0 / math.Pi) * math.Atan(distance)
}

// blendLexical rescores the pool with BM25 against the query and blends
// it into each candidate's normalised similarity score.
func (q *Querier) blendLexical(query string, pool []domain.ScoredCandidate) {
	docs := make([]string, len(pool))
	for i := range pool {
		docs[i] = pool[i].Candidate.Content
	}
	lexical := lexicalScores(query, docs)
	for i := range pool {
		pool[i].Score = q.cfg.Weights.Similarity*pool[i].Score +
			q.cfg.Weights.Lexical*lexical[i]
	}
}

// rerank submits the pool prefix that fits the reranker's token budget
// and keeps results at or above minScore, replacing each candidate's
// score with the cross-encoder relevance. Without a reranker, and on
// any rerank failure, the blended pool is truncated to k instead.
func (q *Querier) rerank(ctx context.Context, query string, pool []domain.ScoredCandidate, k int, minScore float64) []domain.ScoredCandidate {
	if q.reranker == nil {
		return truncate(pool, k)
	}

	budget := q.cfg.RerankContextLength - rerankBudgetMargin
	if budget < minRerankBudget {
		budget = minRerankBudget
	}

	var (
		docs    []string
		sources []domain.ScoredCandidate
		used    int
	)
	for _, c := range pool {
		content := trimLines(c.Candidate.Content)
		cost := q.counter.Count(content)
		if used+cost > budget {
			break
		}
		used += cost
		docs = append(docs, content)
		sources = append(sources, c)
	}
	if len(docs) == 0 {
		return truncate(pool, k)
	}

	results, err := q.reranker.Rerank(ctx, query, docs, k)
	if err != nil {
		logger.Warn("rerank failed, falling back to similarity order: %v", err)
		return truncate(pool, k)
	}

	var kept []domain.ScoredCandidate
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(sources) {
			logger.Warn("rerank returned out-of-range index %d", r.Index)
			return truncate(pool, k)
		}
		if r.RelevanceScore < minScore {
			continue
		}
		c := sources[r.Index]
		c.Score = r.RelevanceScore
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return truncate(pool, k)
	}
	return kept
}

func truncate(pool []domain.ScoredCandidate, k int) []domain.ScoredCandidate {
	if len(pool) > k {
		pool = pool[:k]
	}
	return pool
}

// trimLines trims surrounding whitespace from every line, shrinking the
// reranker's token cost without changing the chunk's meaning.
func trimLines(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}

// groupBySource reorders kept candidates so chunks of the same file sit
// together in ascending line order, with files appearing in the order
// of their best-ranked chunk. Grouped candidates are flagged so callers
// can render per-file context blocks.
func groupBySource(kept []domain.ScoredCandidate) []domain.ScoredCandidate {
	if len(kept) == 0 {
		return kept
	}

	var order []string
	groups := make(map[string][]domain.ScoredCandidate)
	for _, c := range kept {
		src := c.Candidate.Metadata.Source
		if _, seen := groups[src]; !seen {
			order = append(order, src)
		}
		groups[src] = append(groups[src], c)
	}

	out := make([]domain.ScoredCandidate, 0, len(kept))
	for _, src := range order {
		group := groups[src]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Candidate.Metadata.LineFrom < group[j].Candidate.Metadata.LineFrom
		})
		for _, c := range group {
			c.Candidate.Metadata.Summary = true
			out = append(out, c)
		}
	}
	return out
}

// mergeResultSets concatenates the sets, keeping the first occurrence
// of each candidate identity. Token totals are summed over the sets
// that contributed at least one novel candidate.
func mergeResultSets(sets []*domain.QueryResult) *domain.QueryResult {
	merged := &domain.QueryResult{}
	seen := make(map[string]struct{})
	for _, set := range sets {
		contributed := false
		for _, c := range set.Data {
			key := c.Candidate.Metadata.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged.Data = append(merged.Data, c)
			contributed = true
		}
		if contributed {
			merged.Tokens += set.Tokens
		}
	}
	return merged
}
