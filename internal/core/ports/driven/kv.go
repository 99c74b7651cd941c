package driven

import "context"

// KeyValueStore is a durable key-value store used both as an embedding
// cache and a generic memo store. Values are JSON-encoded by the
// implementation; callers pass any marshallable value.
//
// A read of a corrupt or missing row must behave as a miss (fail open),
// never as an error that stops an indexing run.
type KeyValueStore interface {
	// Get unmarshals the value stored under key into out and reports
	// whether the key was present.
	Get(ctx context.Context, key string, out any) (bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value any) error

	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// EachKey visits every key in the store. The visit function's error
	// aborts iteration.
	EachKey(ctx context.Context, visit func(key string) error) error

	// Close releases resources.
	Close() error
}
