package services

import (
	"context"
	"time"

	"github.com/nullmastermind/nullgpt-indexer/internal/core/ports/driven"
	"github.com/nullmastermind/nullgpt-indexer/internal/hashutil"
	"github.com/nullmastermind/nullgpt-indexer/internal/logger"
)

// DefaultCacheTTL is how long an untouched cache entry survives.
const DefaultCacheTTL = 7 * 24 * time.Hour

// Collector removes stale embedding cache entries after an indexing
// run. Every cached vector carries two side keys: `<key>:updatedAt`
// (last touch) and `<key>:doc_id` (owning document). An entry without a
// timestamp is an orphan and goes immediately; an entry owned by the
// document just indexed goes once its timestamp ages past the TTL.
// Entries owned by other documents are never touched, so one document's
// sweep cannot evict another's warm cache.
type Collector struct {
	store driven.KeyValueStore
	ttl   time.Duration
	now   func() time.Time
}

// NewCollector creates a collector over store. ttl <= 0 falls back to
// DefaultCacheTTL.
func NewCollector(store driven.KeyValueStore, ttl time.Duration) *Collector {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Collector{store: store, ttl: ttl, now: time.Now}
}

// Sweep scans the store and removes expired entries owned by docID plus
// any orphans. Per-key failures are logged and skipped: a sweep is best
// effort and never fails an indexing run.
func (c *Collector) Sweep(ctx context.Context, docID string) (int, error) {
	var keys []string
	err := c.store.EachKey(ctx, func(key string) error {
		if hashutil.IsDigest(key) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range keys {
		var updatedAt time.Time
		found, err := c.store.Get(ctx, key+":updatedAt", &updatedAt)
		if err != nil {
			logger.Warn("sweep: reading timestamp for %s: %v", key, err)
			continue
		}

		if !found {
			// No timestamp means the entry predates touch bookkeeping.
			if err := c.store.Del(ctx, key); err != nil {
				logger.Warn("sweep: removing orphan %s: %v", key, err)
				continue
			}
			removed++
			continue
		}

		var owner string
		if found, err := c.store.Get(ctx, key+":doc_id", &owner); err != nil || !found {
			continue
		}
		if owner != docID {
			continue
		}
		if c.now().Sub(updatedAt) <= c.ttl {
			continue
		}

		if err := c.store.Del(ctx, key); err != nil {
			logger.Warn("sweep: removing expired %s: %v", key, err)
			continue
		}
		if err := c.store.Del(ctx, key+":doc_id"); err != nil {
			logger.Warn("sweep: removing %s:doc_id: %v", key, err)
		}
		if err := c.store.Del(ctx, key+":updatedAt"); err != nil {
			logger.Warn("sweep: removing %s:updatedAt: %v", key, err)
		}
		removed++
	}
	return removed, nil
}
