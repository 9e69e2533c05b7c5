package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// memoryEntry pairs a cached value with its expiry deadline.
type memoryEntry struct {
	entry    Entry
	expireAt time.Time
}

// MemoryCache is the process-local cache: an LRU keyed by the full textual
// key, with per-entry TTL. It does no date filtering or merging; it is the
// trivial wrapper the facade uses for non-persistent lookups.
type MemoryCache struct {
	store   *lru.Cache
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewMemoryCache constructs a MemoryCache holding up to size entries. A zero
// ttl disables expiry.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 1024
	}
	store, _ := lru.New(size)
	return &MemoryCache{store: store, ttl: ttl, nowFunc: time.Now}
}

// SetTimeNowFunc overrides time.Now() for testing expiry.
func (c *MemoryCache) SetTimeNowFunc(f func() time.Time) { c.nowFunc = f }

// Get implements Cache. The date arguments are ignored: memory entries are
// keyed by the full request key, window included.
func (c *MemoryCache) Get(key, _, _ string) (*Entry, error) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, nil
	}
	me := v.(memoryEntry)
	if !me.expireAt.IsZero() && c.nowFunc().After(me.expireAt) {
		c.store.Remove(key)
		return nil, nil
	}
	entry := me.entry
	return &entry, nil
}

// Put implements Cache.
func (c *MemoryCache) Put(key string, entry Entry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	me := memoryEntry{entry: entry}
	if ttl > 0 {
		me.expireAt = c.nowFunc().Add(ttl)
	}
	c.store.Add(key, me)
	return nil
}

// Delete implements Cache.
func (c *MemoryCache) Delete(key string) error {
	c.store.Remove(key)
	return nil
}

// Clear implements Cache.
func (c *MemoryCache) Clear() error {
	c.store.Purge()
	return nil
}

// Close implements Cache.
func (c *MemoryCache) Close() error { return nil }

// Len returns the number of live entries, expired ones included.
func (c *MemoryCache) Len() int { return c.store.Len() }
