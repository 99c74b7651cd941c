// Package tokens provides token counting backed by the cl100k_base
// encoding, with a byte-length heuristic fallback when the encoding
// cannot be loaded.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/nullmastermind/nullgpt-indexer/internal/core/ports/driven"
	"github.com/nullmastermind/nullgpt-indexer/internal/logger"
)

const encodingName = "cl100k_base"

var (
	once     sync.Once
	encoding *tiktoken.Tiktoken
)

// Counter returns the default token counter. The cl100k_base encoding is
// loaded once; if loading fails the heuristic estimator is used instead.
func Counter() driven.TokenCounter {
	once.Do(func() {
		enc, err := tiktoken.GetEncoding(encodingName)
		if err != nil {
			logger.Warn("token encoding %s unavailable, using estimator: %v", encodingName, err)
			return
		}
		encoding = enc
	})

	if encoding == nil {
		return driven.TokenCounterFunc(Estimate)
	}
	return driven.TokenCounterFunc(func(text string) int {
		return len(encoding.Encode(text, nil, nil))
	})
}

// Estimate approximates the token count at ~4 bytes per token.
func Estimate(text string) int {
	return (len(text) + 3) / 4
}
