package server

import (
	"container/list"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/popdash/internal/density"
)

// LayerCache keeps encoded choropleth layers by year. A layer only depends on
// the loaded store and the year, so entries leave by LRU eviction or age.
type LayerCache struct {
	mu     sync.Mutex
	build  func(year int) density.Layer
	byYear map[int]*list.Element
	lru    *list.List // front is most recently used
	max    int
	ttl    time.Duration
	now    func() time.Time
	hits   int64
	misses int64
}

type cachedLayer struct {
	year    int
	payload []byte
	builtAt time.Time
}

// CacheStats reports layer cache usage.
type CacheStats struct {
	Years      []int   `json:"years"`
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewLayerCache creates a cache that builds missing layers with build and keeps
// at most maxYears of them for ttl. A zero ttl never expires.
func NewLayerCache(build func(year int) density.Layer, maxYears int, ttl time.Duration) *LayerCache {
	if maxYears < 1 {
		maxYears = 1
	}
	return &LayerCache{
		build:  build,
		byYear: make(map[int]*list.Element),
		lru:    list.New(),
		max:    maxYears,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Payload returns the JSON-encoded layer for year and whether it was served
// from the cache.
func (c *LayerCache) Payload(year int) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byYear[year]; ok {
		entry := el.Value.(*cachedLayer)
		if c.ttl <= 0 || c.now().Sub(entry.builtAt) <= c.ttl {
			c.lru.MoveToFront(el)
			c.hits++
			return entry.payload, true, nil
		}
		c.lru.Remove(el)
		delete(c.byYear, year)
	}
	c.misses++

	payload, err := json.Marshal(c.build(year))
	if err != nil {
		return nil, false, eris.Wrapf(err, "server: encode layer for %d", year)
	}

	for c.lru.Len() >= c.max {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.byYear, oldest.Value.(*cachedLayer).year)
	}
	c.byYear[year] = c.lru.PushFront(&cachedLayer{year: year, payload: payload, builtAt: c.now()})
	return payload, false, nil
}

// Stats returns the cached years, ascending, and the hit counters.
func (c *LayerCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	years := make([]int, 0, len(c.byYear))
	for y := range c.byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	stats := CacheStats{
		Years:      years,
		Entries:    len(years),
		MaxEntries: c.max,
		Hits:       c.hits,
		Misses:     c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}
