package driven

// TokenCounter measures text length in model tokens. The splitter's
// budgets and the ranker's token accounting both go through this port.
type TokenCounter interface {
	// Count returns the number of tokens in text. Implementations
	// return 0 for text they cannot encode.
	Count(text string) int
}

// TokenCounterFunc adapts a plain function to the TokenCounter port.
type TokenCounterFunc func(text string) int

// Count implements TokenCounter.
func (f TokenCounterFunc) Count(text string) int { return f(text) }
