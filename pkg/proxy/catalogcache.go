package proxy

import (
	"container/list"
	"context"
	"sync"

	"github.com/filesetfs/filesetfs/pkg/catalog"
	"github.com/filesetfs/filesetfs/pkg/metrics"
)

// catalogCacheCapacity bounds the catalog handle cache. Few workloads
// touch more than a handful of catalogs at once, so a fixed bound is
// enough.
const catalogCacheCapacity = 100

// catalogLoader fetches a catalog handle on a cache miss.
type catalogLoader func(ctx context.Context, ident catalog.ResourceIdentifier) (catalog.CatalogHandle, error)

// catalogCache is a bounded LRU cache of catalog handles with
// single-flight miss handling: concurrent misses for the same catalog
// trigger exactly one load, and every waiter receives its result.
//
// Evicted handles are not closed: they hold no exclusive resource, only
// client cursors reused transparently.
type catalogCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[catalog.ResourceIdentifier]*catalogEntry
	lruList  *list.List // front = most recently used; values are identifiers
	loader   catalogLoader
	metrics  *metrics.ProxyMetrics
	closed   bool
}

// catalogEntry is one cache slot. done is closed once the load finishes;
// handle and err are written before done closes and read only after.
type catalogEntry struct {
	done    chan struct{}
	handle  catalog.CatalogHandle
	err     error
	lruNode *list.Element
}

func newCatalogCache(capacity int, loader catalogLoader, m *metrics.ProxyMetrics) *catalogCache {
	return &catalogCache{
		capacity: capacity,
		entries:  make(map[catalog.ResourceIdentifier]*catalogEntry),
		lruList:  list.New(),
		loader:   loader,
		metrics:  m,
	}
}

// get returns the cached handle for the catalog identifier, loading it
// on a miss. Failed loads are not cached; the next call retries.
func (c *catalogCache) get(ctx context.Context, ident catalog.ResourceIdentifier) (catalog.CatalogHandle, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, &ProxyError{Code: ErrClosed, Message: "proxy is closed"}
	}

	if entry, exists := c.entries[ident]; exists {
		if entry.lruNode != nil {
			c.lruList.MoveToFront(entry.lruNode)
		}
		c.mu.Unlock()
		c.metrics.CacheHit("catalog")

		<-entry.done
		return entry.handle, entry.err
	}

	// miss: install an in-flight entry so concurrent callers wait on it
	entry := &catalogEntry{done: make(chan struct{})}
	c.entries[ident] = entry
	c.mu.Unlock()
	c.metrics.CacheMiss("catalog")

	handle, err := c.loader(ctx, ident)
	if err == nil && handle == nil {
		err = &ProxyError{
			Code:    ErrNotFound,
			Message: "loaded catalog handle is nil",
			Path:    ident.String(),
		}
	}

	c.mu.Lock()
	if err != nil {
		entry.err = err
		delete(c.entries, ident)
	} else {
		entry.handle = handle
		entry.lruNode = c.lruList.PushFront(ident)
		c.evictOverCapacity()
	}
	c.mu.Unlock()
	close(entry.done)

	return entry.handle, entry.err
}

// evictOverCapacity drops least-recently-used loaded entries until the
// cache fits its bound. Must be called with c.mu held.
func (c *catalogCache) evictOverCapacity() {
	for c.lruList.Len() > c.capacity {
		oldest := c.lruList.Back()
		if oldest == nil {
			return
		}
		c.lruList.Remove(oldest)

		ident := oldest.Value.(catalog.ResourceIdentifier)
		delete(c.entries, ident)
		c.metrics.CacheEviction("catalog")
	}
}

// sweep exists for symmetry with the filesystem cache's periodic sweep.
// Catalog handles have no time-based expiry by default, so there is
// nothing to collect; the hook stays so an expiry policy can be added
// without touching the sweeper wiring.
func (c *catalogCache) sweep() int {
	return 0
}

// invalidateAll empties the cache and marks it closed.
func (c *catalogCache) invalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.entries = make(map[catalog.ResourceIdentifier]*catalogEntry)
	c.lruList = list.New()
}

// len reports the number of entries, including in-flight loads.
func (c *catalogCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
