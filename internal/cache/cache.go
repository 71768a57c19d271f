package cache

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bobmcallan/mitm-gateway/internal/models"
)

// entry wraps a cached result with expiry and insertion order tracking.
type entry struct {
	result    models.SearchResult
	version   uint64
	expiry    time.Time
	insertIdx int64
}

// SearchCache caches ranked search results so repeated queries skip the oracle.
// Keys carry the catalog version, so a catalog change makes older entries
// unreachable. Thread-safe with sync.RWMutex.
type SearchCache struct {
	mu         sync.RWMutex
	items      map[string]entry
	ttl        time.Duration
	maxEntries int
	nextIdx    int64
	now        func() time.Time
}

// New creates a SearchCache with the given TTL and max entry count.
// A non-positive maxEntries or ttl disables caching.
func New(ttl time.Duration, maxEntries int) *SearchCache {
	return &SearchCache{
		items:      make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// MakeKey builds a cache key from catalog version, limit and query.
// The query goes last so it may contain the delimiter without collisions.
func MakeKey(version uint64, query string, limit int) string {
	return strconv.FormatUint(version, 10) + ":" + strconv.Itoa(limit) + ":" + strings.TrimSpace(query)
}

func (c *SearchCache) enabled() bool {
	return c != nil && c.maxEntries > 0 && c.ttl > 0
}

// Get returns a copy of a cached result if found and not expired.
func (c *SearchCache) Get(key string) (models.SearchResult, bool) {
	if !c.enabled() {
		return models.SearchResult{}, false
	}

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return models.SearchResult{}, false
	}

	if c.now().After(e.expiry) {
		// Expired: remove lazily
		c.mu.Lock()
		if e2, ok2 := c.items[key]; ok2 && c.now().After(e2.expiry) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return models.SearchResult{}, false
	}

	return copyResult(e.result), true
}

// Set stores a result under key. Evicts the oldest entry if at capacity.
func (c *SearchCache) Set(key string, version uint64, result models.SearchResult) {
	if !c.enabled() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry{
		result:    copyResult(result),
		version:   version,
		expiry:    c.now().Add(c.ttl),
		insertIdx: c.nextIdx,
	}
	c.nextIdx++

	// If key already exists, update in place (no capacity change)
	if _, exists := c.items[key]; exists {
		c.items[key] = e
		return
	}

	if len(c.items) >= c.maxEntries {
		c.evictOldest()
	}

	c.items[key] = e
}

// Prune drops every entry built against a catalog version other than current.
func (c *SearchCache) Prune(current uint64) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.items {
		if e.version != current {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included.
func (c *SearchCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// evictOldest removes the entry with the lowest insertIdx. Must be called with mu held.
func (c *SearchCache) evictOldest() {
	var oldestKey string
	var oldestIdx int64 = -1

	for key, e := range c.items {
		if oldestIdx == -1 || e.insertIdx < oldestIdx {
			oldestIdx = e.insertIdx
			oldestKey = key
		}
	}

	if oldestIdx != -1 {
		delete(c.items, oldestKey)
	}
}

func copyResult(r models.SearchResult) models.SearchResult {
	out := models.SearchResult{
		Tools:            make([]models.ToolDefinition, len(r.Tools)),
		ConfidenceScores: make(map[string]float64, len(r.ConfidenceScores)),
	}
	for i, t := range r.Tools {
		out.Tools[i] = t.Clone()
	}
	for name, score := range r.ConfidenceScores {
		out.ConfidenceScores[name] = score
	}
	return out
}
