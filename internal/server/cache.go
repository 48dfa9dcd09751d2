package server

import (
	"sync"
	"time"

	"github.com/ogulcanaydogan/llm-audit-gate/pkg/types"
)

// maxCacheEntries bounds the cache; keys are derived from arbitrary request text.
const maxCacheEntries = 10000

type cacheEntry struct {
	verdict   types.Verdict
	expiresAt time.Time
}

type verdictCache struct {
	mu        sync.RWMutex
	ttl       time.Duration
	max       int
	lastSweep time.Time
	entries   map[string]cacheEntry
}

func newVerdictCache(ttl time.Duration) *verdictCache {
	if ttl <= 0 {
		return nil
	}
	return &verdictCache{
		ttl:     ttl,
		max:     maxCacheEntries,
		entries: make(map[string]cacheEntry),
	}
}

func (c *verdictCache) get(key string, now time.Time) (types.Verdict, bool) {
	if c == nil {
		return types.Verdict{}, false
	}
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return types.Verdict{}, false
	}
	if e.expiresAt.After(now) {
		return e.verdict, true
	}
	c.mu.Lock()
	if cur, ok := c.entries[key]; ok && !cur.expiresAt.After(now) {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return types.Verdict{}, false
}

// put stores v. Expired entries are swept at most once per TTL, or whenever
// the cache is full; a full cache with nothing expired drops the entry
// closest to expiry.
func (c *verdictCache) put(key string, v types.Verdict, now time.Time) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.entries[key]
	full := !exists && len(c.entries) >= c.max
	if full || now.Sub(c.lastSweep) >= c.ttl {
		c.sweep(now)
	}
	if !exists && len(c.entries) >= c.max {
		c.evictOldest()
	}
	c.entries[key] = cacheEntry{verdict: v, expiresAt: now.Add(c.ttl)}
}

func (c *verdictCache) sweep(now time.Time) {
	for k, e := range c.entries {
		if !e.expiresAt.After(now) {
			delete(c.entries, k)
		}
	}
	c.lastSweep = now
}

func (c *verdictCache) evictOldest() {
	var (
		oldest string
		at     time.Time
		found  bool
	)
	for k, e := range c.entries {
		if !found || e.expiresAt.Before(at) {
			oldest, at, found = k, e.expiresAt, true
		}
	}
	if found {
		delete(c.entries, oldest)
	}
}

func (c *verdictCache) size() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
