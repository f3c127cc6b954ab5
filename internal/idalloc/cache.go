package idalloc

import "time"

// Snapshot is the document state a Cache scans for identifiers.
type Snapshot interface {
	// Len is the document length; any change invalidates the cache.
	Len() int
	// Identifiers scans the document for every identifier in use.
	Identifiers() Set
}

// Cache memoizes the identifiers of one document between allocations.
// It is refreshed when the document length changes or the TTL elapses.
// A Cache is owned by a single caller and is not safe for concurrent use.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	ids      Set
	length   int
	loadedAt time.Time
	loaded   bool
}

// NewCache returns an empty cache. A non-positive ttl disables time-based
// expiry.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, now: time.Now}
}

// InUse returns the cached identifier set, rescanning doc if stale.
func (c *Cache) InUse(doc Snapshot) Set {
	if c.Stale(doc) {
		// Copied so Insert never writes into the snapshot's set.
		scanned := doc.Identifiers()
		c.ids = make(Set, len(scanned))
		for id := range scanned {
			c.ids.Add(id)
		}
		c.length = doc.Len()
		c.loadedAt = c.now()
		c.loaded = true
	}
	return c.ids
}

// Stale reports whether the next InUse call will rescan doc.
func (c *Cache) Stale(doc Snapshot) bool {
	if !c.loaded || doc.Len() != c.length {
		return true
	}
	return c.ttl > 0 && c.now().Sub(c.loadedAt) >= c.ttl
}

// Invalidate forces the next call to rescan.
func (c *Cache) Invalidate() {
	c.loaded = false
	c.ids = nil
}

// Insert records id as in use without a rescan. It is a no-op on an
// empty cache, which will pick the id up on its next scan.
func (c *Cache) Insert(id string) {
	if c.loaded {
		c.ids.Add(id)
	}
}

// Next allocates the next free identifier after seed and records it.
func (c *Cache) Next(doc Snapshot, seed string) string {
	id := Next(seed, c.InUse(doc))
	c.Insert(id)
	return id
}
