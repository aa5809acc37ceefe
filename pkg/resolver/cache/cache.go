package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/platinummonkey/envlink/pkg/resolver"
)

// ResultCache is an in-memory LRU cache of resolution results. Results are
// immutable once computed, so entries never need write-through semantics:
// a changed snapshot simply produces a different key.
type ResultCache struct {
	config  *Config
	cache   *lru.LRU[string, *resolver.Result]
	metrics *metrics
}

// New creates a result cache.
func New(config *Config) *ResultCache {
	if config == nil {
		config = DefaultConfig()
	}

	maxEntries := config.MaxEntries
	if maxEntries < 10 {
		maxEntries = 10 // Minimum 10 entries
	}

	return &ResultCache{
		config:  config,
		cache:   lru.NewLRU[string, *resolver.Result](maxEntries, nil, config.TTL),
		metrics: newMetrics(),
	}
}

// Get retrieves a cached resolution result.
func (c *ResultCache) Get(key Key) (*resolver.Result, error) {
	if key.Fingerprint == "" {
		return nil, ErrInvalidCacheKey
	}

	result, ok := c.cache.Get(key.String())
	if !ok {
		c.metrics.recordMiss()
		return nil, ErrCacheMiss
	}

	c.metrics.recordHit()
	return result, nil
}

// Set stores a resolution result.
func (c *ResultCache) Set(key Key, result *resolver.Result) error {
	if key.Fingerprint == "" {
		return ErrInvalidCacheKey
	}
	c.cache.Add(key.String(), result)
	return nil
}

// Resolve returns the cached result for the snapshot and scope, computing
// and storing it on a miss. Callers that already hold a snapshot should
// prefer this over Get/Set pairs.
func (c *ResultCache) Resolve(snap *resolver.Snapshot, scope resolver.Scope) *resolver.Result {
	key := NewKey(snap, scope)
	if result, err := c.Get(key); err == nil {
		return result
	}
	result := resolver.Resolve(snap, scope)
	c.cache.Add(key.String(), result)
	return result
}

// Purge removes every cached result.
func (c *ResultCache) Purge() {
	c.cache.Purge()
}

// Stats returns cache statistics
func (c *ResultCache) Stats() *Stats {
	stats := &Stats{
		Hits:      c.metrics.getHits(),
		Misses:    c.metrics.getMisses(),
		ItemCount: int64(c.cache.Len()),
	}

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// metrics tracks cache metrics
type metrics struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func newMetrics() *metrics {
	return &metrics{}
}

func (m *metrics) recordHit() {
	m.hits.Add(1)
}

func (m *metrics) recordMiss() {
	m.misses.Add(1)
}

func (m *metrics) getHits() int64 {
	return m.hits.Load()
}

func (m *metrics) getMisses() int64 {
	return m.misses.Load()
}
