// Package splitter turns a file's raw text into an ordered sequence of
// token-bounded chunks, optionally enriched with a short situating
// summary produced by an external model.
package splitter

import (
	"context"
	"fmt"
	"strings"

	"github.com/nullmastermind/nullgpt-indexer/internal/core/domain"
	"github.com/nullmastermind/nullgpt-indexer/internal/core/ports/driven"
	"github.com/nullmastermind/nullgpt-indexer/internal/hashutil"
)

// Budget bounds the per-chunk token count.
type Budget struct {
	// MinTokens is the floor for the recommended chunk size.
	MinTokens int

	// MaxTokens caps the recommended chunk size.
	MaxTokens int

	// TargetCount is the preferred number of chunks per file.
	TargetCount int

	// MinRatio keeps chunks at least this fraction of the file.
	MinRatio float64
}

// DefaultBudget mirrors the service defaults.
func DefaultBudget() Budget {
	return Budget{MinTokens: 200, MaxTokens: 800, TargetCount: 60, MinRatio: 0.05}
}

// Splitter splits file content by token budget. It is safe for
// concurrent use.
type Splitter struct {
	counter  driven.TokenCounter
	budget   Budget
	enricher *Enricher
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithEnricher attaches contextual enrichment. When set, every chunk is
// prefixed with a situating summary before hashing downstream consumers
// see it.
func WithEnricher(e *Enricher) Option {
	return func(s *Splitter) { s.enricher = e }
}

// New creates a splitter with the given token counter and budget.
func New(counter driven.TokenCounter, budget Budget, opts ...Option) *Splitter {
	if budget.MinTokens <= 0 {
		budget.MinTokens = DefaultBudget().MinTokens
	}
	if budget.MaxTokens < budget.MinTokens {
		budget.MaxTokens = budget.MinTokens
	}
	if budget.TargetCount <= 0 {
		budget.TargetCount = DefaultBudget().TargetCount
	}

	s := &Splitter{counter: counter, budget: budget}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecommendedTokens computes the per-chunk budget for a file of
// totalTokens:
//
//	clamp(max(total/targetCount, total*minRatio, minTokens), maxTokens)
func (s *Splitter) RecommendedTokens(totalTokens int) int {
	rec := totalTokens / s.budget.TargetCount
	if byRatio := int(float64(totalTokens) * s.budget.MinRatio); byRatio > rec {
		rec = byRatio
	}
	if s.budget.MinTokens > rec {
		rec = s.budget.MinTokens
	}
	if rec > s.budget.MaxTokens {
		rec = s.budget.MaxTokens
	}
	return rec
}

// OverlapTokens derives the overlap for a recommended chunk size.
// Larger chunks overlap proportionally more.
func OverlapTokens(recommended int) int {
	if recommended > 400 {
		return int(float64(recommended) * 0.3)
	}
	return int(float64(recommended) * 0.2)
}

// Split produces the ordered chunk sequence for one file. Zero-token
// input yields no chunks. When an enricher is configured each chunk's
// Content is prefixed with its situating context; ContentHash always
// digests the raw, un-enriched chunk so dedup is stable across
// enrichment model changes.
func (s *Splitter) Split(ctx context.Context, sourcePath, content string) ([]domain.Chunk, error) {
	total := s.counter.Count(content)
	if total == 0 {
		return nil, nil
	}

	recommended := s.RecommendedTokens(total)
	overlap := OverlapTokens(recommended)

	pieces := s.splitByLines(content, recommended, overlap)
	pieces = filterIndexable(pieces)
	if len(pieces) == 0 {
		return nil, nil
	}

	raws := make([]string, len(pieces))
	for i, p := range pieces {
		raws[i] = p.text
	}
	groupHash, err := hashutil.SumJSON(raws)
	if err != nil {
		return nil, fmt.Errorf("group hash: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(pieces))
	for _, p := range pieces {
		chunk := domain.Chunk{
			Content:     p.text,
			SourcePath:  sourcePath,
			ContentHash: hashutil.Sum(p.text),
			GroupHash:   groupHash,
			LineFrom:    p.lineFrom,
			LineTo:      p.lineTo,
		}

		if s.enricher != nil {
			enriched, err := s.enricher.Enrich(ctx, sourcePath, content, p.text)
			if err != nil {
				return nil, fmt.Errorf("enrich chunk at %s:%d: %w", sourcePath, p.lineFrom, err)
			}
			chunk.Content = enriched + "\n---\n" + p.text
		}

		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// piece is a raw chunk with its line range.
type piece struct {
	text     string
	lineFrom int
	lineTo   int
}

// splitByLines accumulates whole lines until the token budget is hit,
// then starts the next chunk with roughly overlap tokens of trailing
// lines repeated. Line-based splitting keeps line ranges exact for the
// grouped result ordering at query time.
func (s *Splitter) splitByLines(content string, budgetTokens, overlapTokens int) []piece {
	lines := strings.Split(content, "\n")

	var pieces []piece
	var current []string
	currentTokens := 0
	startLine := 1

	flush := func(endLine int) {
		if len(current) == 0 {
			return
		}
		pieces = append(pieces, piece{
			text:     strings.Join(current, "\n"),
			lineFrom: startLine,
			lineTo:   endLine,
		})
	}

	for i, line := range lines {
		lineTokens := s.counter.Count(line)

		// A single line over budget becomes its own chunk.
		if currentTokens+lineTokens > budgetTokens && len(current) > 0 {
			flush(i)

			// Carry trailing lines as overlap into the next chunk.
			keepTokens := 0
			keepFrom := len(current)
			for keepFrom > 0 && keepTokens < overlapTokens {
				keepFrom--
				keepTokens += s.counter.Count(current[keepFrom])
			}
			carried := current[keepFrom:]
			current = append([]string(nil), carried...)
			currentTokens = keepTokens
			startLine = i + 1 - len(carried)
		}

		current = append(current, line)
		currentTokens += lineTokens
	}
	flush(len(lines))

	return pieces
}

// filterIndexable drops chunks not worth embedding: blank content and
// single-token hash-like strings that would only pollute the index.
func filterIndexable(pieces []piece) []piece {
	kept := pieces[:0]
	for _, p := range pieces {
		trimmed := strings.TrimSpace(p.text)
		if trimmed == "" {
			continue
		}
		if !strings.ContainsAny(p.text, " \t;\n") {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}
