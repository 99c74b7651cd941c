package splitter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nullmastermind/nullgpt-indexer/internal/core/ports/driven"
	"github.com/nullmastermind/nullgpt-indexer/internal/hashutil"
	"github.com/nullmastermind/nullgpt-indexer/internal/logger"
)

// bytesPerToken converts token budgets to byte offsets when downsampling.
const bytesPerToken = 4

// Enricher produces situating summaries for chunks through an external
// summarisation model, memoised in the key-value store so identical
// (file, chunk, model) triples never re-call the model.
type Enricher struct {
	summariser driven.Summariser
	memo       driven.KeyValueStore
	counter    driven.TokenCounter
	maxTokens  int
	ownerDocID string
}

// NewEnricher wires an enricher for one document's indexing run.
// maxTokens bounds the full prompt sent to the model.
func NewEnricher(
	summariser driven.Summariser,
	memo driven.KeyValueStore,
	counter driven.TokenCounter,
	maxTokens int,
	ownerDocID string,
) *Enricher {
	if maxTokens <= 0 {
		maxTokens = 16000
	}
	return &Enricher{
		summariser: summariser,
		memo:       memo,
		counter:    counter,
		maxTokens:  maxTokens,
		ownerDocID: ownerDocID,
	}
}

// Enrich returns the situating context for chunk within fileContent.
func (e *Enricher) Enrich(ctx context.Context, sourcePath, fileContent, chunk string) (string, error) {
	strategy := StrategyFor(filepath.Ext(sourcePath))
	messages := e.buildMessages(strategy, fileContent, chunk)

	key, err := hashutil.SumJSON(struct {
		Messages []driven.ChatMessage `json:"messages"`
		Model    string               `json:"model"`
	}{messages, e.summariser.ModelName()})
	if err != nil {
		return "", err
	}

	var cached string
	if e.memo != nil {
		hit, err := e.memo.Get(ctx, key, &cached)
		if err == nil && hit {
			e.touch(ctx, key)
			return cached, nil
		}
	}

	summary, err := e.summariser.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("summarise: %w", err)
	}

	if e.memo != nil {
		if err := e.memo.Set(ctx, key, summary); err != nil {
			logger.Warn("memoise enrichment: %v", err)
		}
		e.touch(ctx, key)
	}
	return summary, nil
}

// touch refreshes the liveness markers the cache garbage collector
// reads. Failures only shorten the entry's lifetime.
func (e *Enricher) touch(ctx context.Context, key string) {
	if err := e.memo.Set(ctx, key+":updatedAt", time.Now()); err != nil {
		logger.Debug("touch %s: %v", key, err)
	}
	if err := e.memo.Set(ctx, key+":doc_id", e.ownerDocID); err != nil {
		logger.Debug("touch %s: %v", key, err)
	}
}

// buildMessages assembles the enrichment conversation, downsampling the
// file when it would blow the model's context window.
func (e *Enricher) buildMessages(strategy Strategy, fileContent, chunk string) []driven.ChatMessage {
	system := strategy.SystemPrompt()

	overheadTokens := e.counter.Count(system.Content) + e.counter.Count(chunk) + 128
	budget := e.maxTokens - overheadTokens
	if budget < 512 {
		budget = 512
	}

	doc := fileContent
	if e.counter.Count(fileContent) > budget {
		doc = downsample(fileContent, chunk, budget*bytesPerToken)
	}

	user := fmt.Sprintf(
		"<document>\n%s\n</document>\n\nHere is the chunk to situate within the document:\n<chunk>\n%s\n</chunk>",
		doc, chunk,
	)
	return []driven.ChatMessage{system, {Role: "user", Content: user}}
}

// downsample reduces content to a head/middle/tail composition: the
// first and last 10% plus a middle window centred on the chunk's
// location, bounded by maxBytes.
func downsample(content, chunk string, maxBytes int) string {
	if len(content) <= maxBytes {
		return content
	}

	headEnd := runeAligned(content, len(content)/10)
	tailStart := runeAligned(content, len(content)-len(content)/10)

	middleBudget := maxBytes - headEnd - (len(content) - tailStart)
	if middleBudget <= 0 {
		// Degenerate budget: keep proportional head and tail only.
		headEnd = runeAligned(content, maxBytes/2)
		tailStart = runeAligned(content, len(content)-maxBytes/2)
		return content[:headEnd] + "\n...\n" + content[tailStart:]
	}

	// Centre the middle window on the chunk.
	centre := len(content) / 2
	if at := strings.Index(content, chunk); at >= 0 {
		centre = at + len(chunk)/2
	}

	midFrom := centre - middleBudget/2
	if midFrom < headEnd {
		midFrom = headEnd
	}
	midTo := midFrom + middleBudget
	if midTo > tailStart {
		midTo = tailStart
		midFrom = midTo - middleBudget
		if midFrom < headEnd {
			midFrom = headEnd
		}
	}
	midFrom = runeAligned(content, midFrom)
	midTo = runeAligned(content, midTo)

	var b strings.Builder
	b.WriteString(content[:headEnd])
	if midFrom > headEnd {
		b.WriteString("\n...\n")
	}
	b.WriteString(content[midFrom:midTo])
	if midTo < tailStart {
		b.WriteString("\n...\n")
	}
	b.WriteString(content[tailStart:])
	return b.String()
}

// runeAligned snaps a byte offset back to the nearest rune start so the
// cuts never split a multi-byte character.
func runeAligned(content string, at int) int {
	if at <= 0 {
		return 0
	}
	if at >= len(content) {
		return len(content)
	}
	for at > 0 && !utf8.RuneStart(content[at]) {
		at--
	}
	return at
}
