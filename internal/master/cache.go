package master

import "math"

// impulseCache keeps recently synthesized impulses keyed by decay length
// quantized to 0.1 s. Capacity-bounded, oldest-inserted-first eviction.
type impulseCache struct {
	entries []cacheEntry
	cap     int
}

type cacheEntry struct {
	key         float64
	left, right []float32
}

func newImpulseCache(capacity int) *impulseCache {
	return &impulseCache{cap: capacity}
}

// cacheKey quantizes a decay length to the cache granularity.
func cacheKey(decaySeconds float64) float64 {
	return math.Round(decaySeconds*10) / 10
}

func (c *impulseCache) get(key float64) ([]float32, []float32, bool) {
	for _, e := range c.entries {
		if e.key == key {
			return e.left, e.right, true
		}
	}
	return nil, nil, false
}

func (c *impulseCache) put(key float64, left, right []float32) {
	for i, e := range c.entries {
		if e.key == key {
			c.entries[i] = cacheEntry{key: key, left: left, right: right}
			return
		}
	}
	c.entries = append(c.entries, cacheEntry{key: key, left: left, right: right})
	if len(c.entries) > c.cap {
		c.entries = c.entries[1:]
	}
}

func (c *impulseCache) len() int { return len(c.entries) }
