package geospatial

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lease-match/internal/model"
)

func densityAt(lat, lng, radius float64, score int) model.FederalDensityScore {
	return model.FederalDensityScore{Latitude: lat, Longitude: lng, RadiusMiles: radius, Score: score}
}

func TestDensityCache_BasicGetPut(t *testing.T) {
	cache := NewDensityCache(100, time.Hour, 3)

	_, ok := cache.Get(38.9, -77.03, 5)
	assert.False(t, ok)

	cache.Put(densityAt(38.9, -77.03, 5, 80))
	got, ok := cache.Get(38.9, -77.03, 5)
	require.True(t, ok)
	assert.Equal(t, 80, got.Score)

	// Different radius is a different key.
	_, ok = cache.Get(38.9, -77.03, 10)
	assert.False(t, ok)
}

func TestDensityCache_RoundedKeyShared(t *testing.T) {
	cache := NewDensityCache(100, time.Hour, 3)

	cache.Put(densityAt(38.8977, -77.0364, 5, 70))
	got, ok := cache.Get(38.89771, -77.03642, 5)
	require.True(t, ok)
	assert.Equal(t, 70, got.Score)
	assert.Equal(t, "38.898:-77.036:5.00", cache.Key(38.8977, -77.0364, 5))
}

func TestDensityCache_TTLExpiration(t *testing.T) {
	cache := NewDensityCache(100, 5*time.Minute, 3)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.nowFunc = func() time.Time { return now }

	cache.Put(densityAt(38.9, -77.0, 5, 50))
	_, ok := cache.Get(38.9, -77.0, 5)
	assert.True(t, ok)

	now = now.Add(6 * time.Minute)
	_, ok = cache.Get(38.9, -77.0, 5)
	assert.False(t, ok)

	// Expired entry should be removed from the map.
	cache.mu.RLock()
	_, exists := cache.entries[cache.Key(38.9, -77.0, 5)]
	cache.mu.RUnlock()
	assert.False(t, exists)
}

func TestDensityCache_LRUEviction_AccessOrder(t *testing.T) {
	cache := NewDensityCache(3, time.Hour, 3)

	cache.Put(densityAt(1, 1, 5, 1))
	cache.Put(densityAt(2, 2, 5, 2))
	cache.Put(densityAt(3, 3, 5, 3))

	// Access the first to move it to back; the second becomes the oldest.
	cache.Get(1, 1, 5)
	cache.Put(densityAt(4, 4, 5, 4))

	_, ok := cache.Get(1, 1, 5)
	assert.True(t, ok)
	_, ok = cache.Get(2, 2, 5)
	assert.False(t, ok)
	_, ok = cache.Get(4, 4, 5)
	assert.True(t, ok)
}

func TestDensityCache_UpdateExistingKey(t *testing.T) {
	cache := NewDensityCache(100, time.Hour, 3)

	cache.Put(densityAt(1, 1, 5, 10))
	cache.Put(densityAt(1, 1, 5, 20))

	got, ok := cache.Get(1, 1, 5)
	require.True(t, ok)
	assert.Equal(t, 20, got.Score)

	cache.mu.RLock()
	assert.Len(t, cache.entries, 1)
	cache.mu.RUnlock()
}

func TestDensityCache_EntriesSkipExpired(t *testing.T) {
	cache := NewDensityCache(100, time.Minute, 3)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.nowFunc = func() time.Time { return now }

	cache.Put(densityAt(1, 1, 5, 10))
	now = now.Add(2 * time.Minute)
	cache.Put(densityAt(2, 2, 5, 20))

	entries := cache.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 20, entries[0].Score)
}

func TestDensityCache_Purge(t *testing.T) {
	cache := NewDensityCache(100, time.Hour, 3)
	cache.Put(densityAt(1, 1, 5, 10))
	cache.Purge()
	_, ok := cache.Get(1, 1, 5)
	assert.False(t, ok)
	assert.Empty(t, cache.Entries())
}

func TestDensityCache_Stats(t *testing.T) {
	cache := NewDensityCache(100, time.Hour, 3)

	cache.Put(densityAt(1, 1, 5, 10))
	cache.Put(densityAt(2, 2, 5, 20))

	cache.Get(1, 1, 5) // hit
	cache.Get(2, 2, 5) // hit
	cache.Get(3, 3, 5) // miss

	stats := cache.Stats()
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 100, stats.MaxEntries)
	assert.Equal(t, 3600, stats.TTLSecs)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	require.InDelta(t, 0.6667, stats.HitRate, 0.01)
}

func TestDensityCache_ConcurrentAccess(t *testing.T) {
	cache := NewDensityCache(1000, time.Hour, 3)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			lat := float64(n) / 10
			cache.Put(densityAt(lat, 0, 5, n))
			cache.Get(lat, 0, 5)
			_ = cache.Entries()
		}(i)
	}
	wg.Wait()

	stats := cache.Stats()
	assert.LessOrEqual(t, stats.Entries, 1000)
	assert.True(t, stats.Hits+stats.Misses > 0)
}
