package geospatial

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sells-group/lease-match/internal/model"
)

// DensityCache is a concurrent-safe LRU cache of density scores with TTL
// expiration. Two writers racing on one key both store a fresh value; the
// last write wins.
type DensityCache struct {
	mu         sync.RWMutex
	entries    map[string]*densityCacheEntry
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	precision  int
	hits       atomic.Int64
	misses     atomic.Int64

	nowFunc func() time.Time
}

type densityCacheEntry struct {
	score     model.FederalDensityScore
	createdAt time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	TTLSecs    int     `json:"ttl_secs"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewDensityCache creates a cache with the given capacity, TTL and coordinate
// rounding precision (decimal places).
func NewDensityCache(maxEntries int, ttl time.Duration, precision int) *DensityCache {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	if precision < 0 {
		precision = 3
	}
	return &DensityCache{
		entries:    make(map[string]*densityCacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		precision:  precision,
		nowFunc:    time.Now,
	}
}

// Round snaps a coordinate to the cache precision.
func (c *DensityCache) Round(v float64) float64 {
	return roundTo(v, c.precision)
}

// Key builds the cache key for a point and radius.
func (c *DensityCache) Key(lat, lng, radiusMiles float64) string {
	return fmt.Sprintf("%.*f:%.*f:%.2f", c.precision, c.Round(lat), c.precision, c.Round(lng), radiusMiles)
}

// Get retrieves a cached score. Returns false on miss or expiration.
func (c *DensityCache) Get(lat, lng, radiusMiles float64) (model.FederalDensityScore, bool) {
	key := c.Key(lat, lng, radiusMiles)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return model.FederalDensityScore{}, false
	}

	if c.nowFunc().Sub(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return model.FederalDensityScore{}, false
	}

	// Move to back (most recently used).
	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return entry.score, true
}

// Put stores a score, evicting the least recently used entry at capacity.
func (c *DensityCache) Put(score model.FederalDensityScore) {
	key := c.Key(score.Latitude, score.Longitude, score.RadiusMiles)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &densityCacheEntry{score: score, createdAt: c.nowFunc()}
	if _, ok := c.entries[key]; ok {
		c.entries[key] = entry
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = entry
	c.order = append(c.order, key)
}

// Purge drops every entry. Called after the inventory changes.
func (c *DensityCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*densityCacheEntry)
	c.order = nil
}

// Entries returns a snapshot of the unexpired scores ordered by key.
func (c *DensityCache) Entries() []model.FederalDensityScore {
	now := c.nowFunc()

	c.mu.RLock()
	keys := make([]string, 0, len(c.entries))
	for k, e := range c.entries {
		if now.Sub(e.createdAt) <= c.ttl {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]model.FederalDensityScore, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.entries[k].score)
	}
	c.mu.RUnlock()

	return out
}

// Stats returns cache performance statistics.
func (c *DensityCache) Stats() CacheStats {
	c.mu.RLock()
	entries := len(c.entries)
	maxEntries := c.maxEntries
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:    entries,
		MaxEntries: maxEntries,
		TTLSecs:    int(c.ttl / time.Second),
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

// removeFromOrder removes a key from the LRU order slice.
func (c *DensityCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
