package driven

import "context"

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// Summariser produces short situating summaries used for contextual
// chunk enrichment. This is an optional service - when nil, chunks are
// indexed without enrichment.
type Summariser interface {
	// Complete runs a chat completion over the given messages and
	// returns the assistant's reply.
	Complete(ctx context.Context, messages []ChatMessage) (string, error)

	// ModelName returns the enrichment model identifier. It participates
	// in memo key derivation so model changes invalidate cached summaries.
	ModelName() string
}
