// Package memory provides an in-memory KeyValueStore used by tests and
// as a fallback when no durable store is configured.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/nullmastermind/nullgpt-indexer/internal/core/ports/driven"
)

// Ensure KVStore implements the interface.
var _ driven.KeyValueStore = (*KVStore)(nil)

// KVStore is a concurrency-safe map-backed KeyValueStore. Values are
// stored JSON-encoded so Get/Set semantics match the durable store.
type KVStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewKVStore creates an empty store.
func NewKVStore() *KVStore {
	return &KVStore{data: make(map[string][]byte)}
}

// Get unmarshals the value stored under key into out.
func (s *KVStore) Get(_ context.Context, key string, out any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		// Corrupt rows read as misses.
		return false, nil
	}
	return true, nil
}

// Set stores value under key.
func (s *KVStore) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
	return nil
}

// Del removes key.
func (s *KVStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// EachKey visits all keys in a stable order.
func (s *KVStore) EachKey(_ context.Context, visit func(key string) error) error {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)

	for _, k := range keys {
		if err := visit(k); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op.
func (s *KVStore) Close() error { return nil }

// Len returns the number of stored keys. Test helper.
func (s *KVStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
