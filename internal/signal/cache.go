package signal

import "sync"

type cacheKey struct {
	metric string
	scope  string
}

// LastValueCache keeps the most recent sample per (metric, scope).
type LastValueCache struct {
	mu      sync.Mutex
	samples map[cacheKey]Sample
}

// NewLastValueCache creates an empty cache.
func NewLastValueCache() *LastValueCache {
	return &LastValueCache{samples: make(map[cacheKey]Sample)}
}

// Swap stores s and returns the sample it replaced, or nil.
func (c *LastValueCache) Swap(s Sample) *Sample {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := cacheKey{s.Metric, s.Scope}
	prev, ok := c.samples[k]
	c.samples[k] = s
	if !ok {
		return nil
	}
	return &prev
}

// Get returns the last sample for (metric, scope).
func (c *LastValueCache) Get(metric, scope string) (Sample, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.samples[cacheKey{metric, scope}]
	return s, ok
}

// Restore loads samples without overwriting newer entries.
func (c *LastValueCache) Restore(samples []Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range samples {
		k := cacheKey{s.Metric, s.Scope}
		if cur, ok := c.samples[k]; ok && cur.Timestamp.After(s.Timestamp) {
			continue
		}
		c.samples[k] = s
	}
}

// Snapshot returns every cached sample.
func (c *LastValueCache) Snapshot() []Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sample, 0, len(c.samples))
	for _, s := range c.samples {
		out = append(out, s)
	}
	return out
}

// Len returns the number of cached (metric, scope) pairs.
func (c *LastValueCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}
