package eta

import (
	"fmt"
	"sync"
	"time"

	"ride-dispatch/internal/domain/geo"
)

// Cache is a small in-memory TTL cache for ETA lookups keyed by the
// coordinate pair rounded to six decimals.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	v  float64
	ts time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl}
}

func cacheKey(a, b geo.Location) string {
	return fmt.Sprintf("%.6f,%.6f->%.6f,%.6f", a.Lat, a.Lng, b.Lat, b.Lng)
}

// Get returns the cached value when present and not expired.
func (c *Cache) Get(a, b geo.Location) (float64, bool) {
	k := cacheKey(a, b)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return 0, false
	}
	return e.v, true
}

func (c *Cache) Set(a, b geo.Location, v float64) {
	c.mu.Lock()
	c.store[cacheKey(a, b)] = cacheEntry{v: v, ts: time.Now()}
	c.mu.Unlock()
}
