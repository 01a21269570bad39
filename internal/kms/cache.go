package kms

import (
	"sync"
)

// cache is the process-wide table of resident principal keys, keyed by
// database id.  The global scope key never enters it (it lives in the
// Kms's pinned slot).  There is no eviction: cardinality is bounded by the
// number of databases with an active principal key.
type cache struct {
	mu      sync.RWMutex
	entries map[uint32]*PrincipalKey
}

func newCache() *cache {
	return &cache{entries: make(map[uint32]*PrincipalKey)}
}

func (c *cache) lookup(databaseId uint32) *PrincipalKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[databaseId]
}

// insertOrGet stores k unless an entry is already resident for its
// database.  The resident entry always wins and is returned; the bool
// reports whether k was inserted.  When it was not, the caller still owns
// k and its destruction.
func (c *cache) insertOrGet(k *PrincipalKey) (*PrincipalKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	databaseId := k.Scope().DatabaseId
	if existing, ok := c.entries[databaseId]; ok {
		return existing, false
	}
	c.entries[databaseId] = k
	return k, true
}

// replace swaps the resident entry for k's database inside one critical
// section, destroying the previous entry.  A concurrent lookup observes
// the old key or the new one, never a gap.
func (c *cache) replace(k *PrincipalKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	databaseId := k.Scope().DatabaseId
	if old, ok := c.entries[databaseId]; ok {
		old.Destroy()
	}
	c.entries[databaseId] = k
}

func (c *cache) remove(databaseId uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[databaseId]; ok {
		old.Destroy()
		delete(c.entries, databaseId)
	}
}

func (c *cache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for databaseId, k := range c.entries {
		k.Destroy()
		delete(c.entries, databaseId)
	}
}
