package proxy

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/filesetfs/filesetfs/internal/logger"
	"github.com/filesetfs/filesetfs/pkg/driver"
	"github.com/filesetfs/filesetfs/pkg/metrics"
)

// fsCache is a bounded cache of physical filesystem drivers keyed by
// storage scheme, with single-flight construction and access-based
// expiry.
//
// Driver handles are expensive to construct (connection setup) and
// closeable; all filesets sharing a scheme share one handle. Entries not
// accessed within expireAfterAccess become eligible for eviction; a
// periodic sweep (driven by the owning proxy) closes them. Eviction by
// capacity pressure closes the evicted driver too. A close failure is
// logged and swallowed: it must never fail the call path that triggered
// the eviction.
type fsCache struct {
	mu                sync.Mutex
	capacity          int
	expireAfterAccess time.Duration
	entries           map[string]*fsEntry
	lruList           *list.List // front = most recently used; values are schemes
	registry          *driver.Registry
	metrics           *metrics.ProxyMetrics
	closed            bool
}

// fsEntry is one cache slot. done is closed once construction finishes;
// fs and err are written before done closes and read only after.
// lastAccess is guarded by the cache mutex.
type fsEntry struct {
	done       chan struct{}
	fs         driver.FileSystem
	err        error
	lruNode    *list.Element
	lastAccess time.Time
}

func newFSCache(capacity int, expireAfterAccess time.Duration, registry *driver.Registry, m *metrics.ProxyMetrics) *fsCache {
	return &fsCache{
		capacity:          capacity,
		expireAfterAccess: expireAfterAccess,
		entries:           make(map[string]*fsEntry),
		lruList:           list.New(),
		registry:          registry,
		metrics:           m,
	}
}

// get returns the cached driver for the scheme, constructing one on a
// miss. Construction failures are wrapped with scheme and URI context
// and are not cached, so a later call retries.
func (c *fsCache) get(ctx context.Context, scheme, uri string) (driver.FileSystem, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, &ProxyError{Code: ErrClosed, Message: "proxy is closed"}
	}

	if entry, exists := c.entries[scheme]; exists {
		entry.lastAccess = time.Now()
		if entry.lruNode != nil {
			c.lruList.MoveToFront(entry.lruNode)
		}
		c.mu.Unlock()
		c.metrics.CacheHit("filesystem")

		<-entry.done
		return entry.fs, entry.err
	}

	entry := &fsEntry{done: make(chan struct{}), lastAccess: time.Now()}
	c.entries[scheme] = entry
	c.mu.Unlock()
	c.metrics.CacheMiss("filesystem")

	fs, err := c.registry.New(ctx, scheme, uri)
	if err != nil {
		err = driverError(
			fmt.Sprintf("failed to construct filesystem driver for scheme %q", scheme),
			uri, err)
	}

	var evicted []closeTarget
	c.mu.Lock()
	if err != nil {
		entry.err = err
		delete(c.entries, scheme)
	} else {
		entry.fs = fs
		entry.lruNode = c.lruList.PushFront(scheme)
		evicted = c.evictOverCapacity()
	}
	c.mu.Unlock()
	close(entry.done)

	closeAll(evicted)
	return entry.fs, entry.err
}

// closeTarget pairs a driver with its scheme for eviction logging.
type closeTarget struct {
	scheme string
	fs     driver.FileSystem
}

// evictOverCapacity removes least-recently-used loaded entries beyond
// the capacity bound and returns them for closing outside the lock.
// Must be called with c.mu held.
func (c *fsCache) evictOverCapacity() []closeTarget {
	var evicted []closeTarget
	for c.lruList.Len() > c.capacity {
		oldest := c.lruList.Back()
		if oldest == nil {
			break
		}
		c.lruList.Remove(oldest)

		scheme := oldest.Value.(string)
		if entry, ok := c.entries[scheme]; ok {
			delete(c.entries, scheme)
			evicted = append(evicted, closeTarget{scheme: scheme, fs: entry.fs})
			c.metrics.CacheEviction("filesystem")
		}
	}
	return evicted
}

// sweep removes entries whose last access is older than the expiry
// window and closes their drivers. Returns the number of closed drivers.
//
// The sweep runs on a fixed period from the owning proxy rather than
// inline on the hot path, so eviction happens promptly instead of only
// on the next access.
func (c *fsCache) sweep() int {
	deadline := time.Now().Add(-c.expireAfterAccess)

	c.mu.Lock()
	var expired []closeTarget
	for scheme, entry := range c.entries {
		// entries still constructing have no lruNode and are never swept
		if entry.lruNode == nil {
			continue
		}
		if entry.lastAccess.Before(deadline) {
			c.lruList.Remove(entry.lruNode)
			delete(c.entries, scheme)
			expired = append(expired, closeTarget{scheme: scheme, fs: entry.fs})
			c.metrics.CacheEviction("filesystem")
		}
	}
	c.mu.Unlock()

	closeAll(expired)
	return len(expired)
}

// drain empties the cache, marks it closed, and closes every cached
// driver. Failures are logged and ignored so shutdown always completes.
func (c *fsCache) drain() {
	c.mu.Lock()
	c.closed = true
	var all []closeTarget
	for scheme, entry := range c.entries {
		if entry.lruNode != nil {
			all = append(all, closeTarget{scheme: scheme, fs: entry.fs})
		}
	}
	c.entries = make(map[string]*fsEntry)
	c.lruList = list.New()
	c.mu.Unlock()

	closeAll(all)
}

// len reports the number of entries, including in-flight constructions.
func (c *fsCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func closeAll(targets []closeTarget) {
	for _, t := range targets {
		if t.fs == nil {
			continue
		}
		if err := t.fs.Close(); err != nil {
			logger.Error("Failed to close filesystem driver for scheme %q: %v", t.scheme, err)
		} else {
			logger.Debug("Closed filesystem driver for scheme %q", t.scheme)
		}
	}
}
