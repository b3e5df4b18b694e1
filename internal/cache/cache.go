// Package cache memoizes engine results per (ledger subset, parameters).
package cache

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
)

// Key identifies one simulation: the fingerprint of the ledger subset it ran
// on and the canonical encoding of its parameters. Changing either yields a
// different key.
type Key struct {
	Fingerprint string
	Params      string
}

// NewKey encodes params as JSON to build a Key.
func NewKey(fingerprint string, params any) (Key, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return Key{}, eris.Wrap(err, "cache: encode params")
	}
	return Key{Fingerprint: fingerprint, Params: string(b)}, nil
}

// Cache is a concurrent-safe LRU cache of values keyed by Key.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[Key]V
	order      []Key // front=oldest, back=newest
	maxEntries int
	hits       atomic.Int64
	misses     atomic.Int64
}

// Stats contains cache performance statistics.
type Stats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// New creates a cache holding at most maxEntries values. A non-positive
// capacity disables caching.
func New[V any](maxEntries int) *Cache[V] {
	return &Cache[V]{entries: make(map[Key]V), maxEntries: maxEntries}
}

// Get returns the value stored under k.
func (c *Cache[V]) Get(k Key) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries[k]
	if !ok {
		c.misses.Add(1)
		return v, false
	}
	c.touch(k)
	c.hits.Add(1)
	return v, true
}

// Put stores v under k, evicting the least recently used entry at capacity.
func (c *Cache[V]) Put(k Key, v V) {
	if c.maxEntries <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[k]; ok {
		c.entries[k] = v
		c.touch(k)
		return
	}
	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
	c.entries[k] = v
	c.order = append(c.order, k)
}

// GetOrCompute returns the cached value for k or computes and stores it.
// Errors are not cached. Concurrent misses on one key may compute twice.
func (c *Cache[V]) GetOrCompute(k Key, compute func() (V, error)) (V, bool, error) {
	if v, ok := c.Get(k); ok {
		return v, true, nil
	}
	v, err := compute()
	if err != nil {
		return v, false, err
	}
	c.Put(k, v)
	return v, false, nil
}

// Invalidate drops every entry computed on the given ledger fingerprint.
func (c *Cache[V]) Invalidate(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining := c.order[:0]
	for _, k := range c.order {
		if k.Fingerprint == fingerprint {
			delete(c.entries, k)
			continue
		}
		remaining = append(remaining, k)
	}
	c.order = remaining
}

// Stats returns cache performance statistics.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{Entries: entries, MaxEntries: c.maxEntries, Hits: hits, Misses: misses, HitRate: rate}
}

func (c *Cache[V]) touch(k Key) {
	for i, o := range c.order {
		if o == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, k)
}
