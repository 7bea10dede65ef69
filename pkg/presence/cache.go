package presence

import "sync"

// Cache holds the last-known snapshot for one feed and reports whether
// an incoming update actually changed it, so downstream recomputation
// can be skipped for no-op pushes.
type Cache struct {
	mu       sync.Mutex
	snapshot Snapshot
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{snapshot: Snapshot{}}
}

// Apply replaces the cached snapshot with the given entities,
// deduplicated by id (last one wins), and reports whether the new
// snapshot differs from the previous one by set equality. When nothing
// changed the previous snapshot reference is kept, so callers holding
// the old snapshot see the same object.
func (c *Cache) Apply(entities []Entity) (Snapshot, bool) {
	next := make(Snapshot, len(entities))
	for _, e := range entities {
		next[e.ID] = e
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot.Equal(next) {
		return c.snapshot, false
	}
	c.snapshot = next
	return next, true
}

// Current returns the current snapshot, empty if never populated or
// cleared. The returned snapshot must not be mutated.
func (c *Cache) Current() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Clear resets the cache to an empty snapshot. Used on stop and on
// destination or role change.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = Snapshot{}
}
