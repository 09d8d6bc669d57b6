package proxy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/filesetfs/filesetfs/pkg/driver"
	"github.com/filesetfs/filesetfs/pkg/driver/memory"
)

// newTestRegistry registers a counting memory-driver factory for the
// given schemes and returns the registry with the construction counter.
func newTestRegistry(t *testing.T, schemes ...string) (*driver.Registry, *atomic.Int64) {
	t.Helper()

	var constructions atomic.Int64
	registry := driver.NewRegistry()
	for _, scheme := range schemes {
		err := registry.Register(scheme, func(ctx context.Context, uri string) (driver.FileSystem, error) {
			constructions.Add(1)
			return memory.New(), nil
		})
		if err != nil {
			t.Fatalf("Failed to register %q: %v", scheme, err)
		}
	}
	return registry, &constructions
}

func TestFSCache_SecondGetIsAHit(t *testing.T) {
	registry, constructions := newTestRegistry(t, "memory")
	cache := newFSCache(10, time.Hour, registry, nil)

	ctx := context.Background()
	first, err := cache.get(ctx, "memory", "memory://c/s/f")
	if err != nil {
		t.Fatalf("Expected driver, got error: %v", err)
	}
	second, err := cache.get(ctx, "memory", "memory://c/s/f/other")
	if err != nil {
		t.Fatalf("Expected driver, got error: %v", err)
	}

	if first != second {
		t.Error("Expected both gets to share one driver handle")
	}
	if got := constructions.Load(); got != 1 {
		t.Errorf("Expected exactly 1 construction, got %d", got)
	}
}

func TestFSCache_ConcurrentMissesConstructOnce(t *testing.T) {
	var constructions atomic.Int64
	release := make(chan struct{})

	registry := driver.NewRegistry()
	_ = registry.Register("memory", func(ctx context.Context, uri string) (driver.FileSystem, error) {
		constructions.Add(1)
		<-release
		return memory.New(), nil
	})
	cache := newFSCache(10, time.Hour, registry, nil)

	const workers = 16
	var wg sync.WaitGroup
	drivers := make([]driver.FileSystem, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			drivers[i], _ = cache.get(context.Background(), "memory", "memory://c/s/f")
		}(i)
	}

	close(release)
	wg.Wait()

	if got := constructions.Load(); got != 1 {
		t.Fatalf("Expected exactly 1 construction across %d concurrent gets, got %d", workers, got)
	}
	for i := 0; i < workers; i++ {
		if drivers[i] != drivers[0] {
			t.Errorf("Worker %d got a different driver handle", i)
		}
	}
}

func TestFSCache_ConstructionFailureNotCached(t *testing.T) {
	var attempts atomic.Int64
	registry := driver.NewRegistry()
	_ = registry.Register("flaky", func(ctx context.Context, uri string) (driver.FileSystem, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("connection refused")
		}
		return memory.New(), nil
	})
	cache := newFSCache(10, time.Hour, registry, nil)

	ctx := context.Background()
	_, err := cache.get(ctx, "flaky", "flaky://host/f")
	if err == nil {
		t.Fatal("Expected construction error")
	}
	if !IsCode(err, ErrDriverConstruction) {
		t.Errorf("Expected ErrDriverConstruction, got: %v", err)
	}
	if cache.len() != 0 {
		t.Errorf("Expected failure not cached, got %d entries", cache.len())
	}

	if _, err := cache.get(ctx, "flaky", "flaky://host/f"); err != nil {
		t.Fatalf("Expected retry to succeed, got: %v", err)
	}
}

func TestFSCache_UnknownSchemeIsDriverError(t *testing.T) {
	registry, _ := newTestRegistry(t, "memory")
	cache := newFSCache(10, time.Hour, registry, nil)

	_, err := cache.get(context.Background(), "gopher", "gopher://x/y")
	if !IsCode(err, ErrDriverConstruction) {
		t.Errorf("Expected ErrDriverConstruction for unregistered scheme, got: %v", err)
	}
}

func TestFSCache_CapacityEvictionClosesDriver(t *testing.T) {
	registry, _ := newTestRegistry(t, "a", "b", "c")
	cache := newFSCache(2, time.Hour, registry, nil)

	ctx := context.Background()
	first, err := cache.get(ctx, "a", "a://x")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := cache.get(ctx, "b", "b://x"); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.get(ctx, "c", "c://x"); err != nil {
		t.Fatal(err)
	}

	if cache.len() != 2 {
		t.Fatalf("Expected capacity 2, got %d entries", cache.len())
	}
	if !first.(*memory.MemoryFileSystem).Closed() {
		t.Error("Expected the evicted driver to be closed")
	}
}

func TestFSCache_SweepClosesExpiredExactlyOnce(t *testing.T) {
	registry, constructions := newTestRegistry(t, "memory")
	cache := newFSCache(10, 30*time.Second, registry, nil)

	ctx := context.Background()
	fs, err := cache.get(ctx, "memory", "memory://c/s/f")
	if err != nil {
		t.Fatal(err)
	}

	// Backdate the entry past the expiry window.
	cache.mu.Lock()
	cache.entries["memory"].lastAccess = time.Now().Add(-time.Minute)
	cache.mu.Unlock()

	if closed := cache.sweep(); closed != 1 {
		t.Fatalf("Expected sweep to close 1 driver, got %d", closed)
	}
	if !fs.(*memory.MemoryFileSystem).Closed() {
		t.Error("Expected the expired driver to be closed")
	}
	if closed := cache.sweep(); closed != 0 {
		t.Errorf("Expected second sweep to close nothing, got %d", closed)
	}

	// A later access constructs a fresh driver rather than reusing the
	// closed one.
	replacement, err := cache.get(ctx, "memory", "memory://c/s/f")
	if err != nil {
		t.Fatal(err)
	}
	if replacement == fs {
		t.Error("Expected a fresh driver after expiry")
	}
	if got := constructions.Load(); got != 2 {
		t.Errorf("Expected 2 constructions, got %d", got)
	}
}

func TestFSCache_SweepSkipsRecentlyUsed(t *testing.T) {
	registry, _ := newTestRegistry(t, "memory")
	cache := newFSCache(10, time.Hour, registry, nil)

	if _, err := cache.get(context.Background(), "memory", "memory://c/s/f"); err != nil {
		t.Fatal(err)
	}

	if closed := cache.sweep(); closed != 0 {
		t.Errorf("Expected no eviction inside the expiry window, got %d", closed)
	}
	if cache.len() != 1 {
		t.Errorf("Expected entry retained, got %d entries", cache.len())
	}
}

func TestFSCache_DrainClosesEverything(t *testing.T) {
	registry, _ := newTestRegistry(t, "a", "b")
	cache := newFSCache(10, time.Hour, registry, nil)

	ctx := context.Background()
	fsA, _ := cache.get(ctx, "a", "a://x")
	fsB, _ := cache.get(ctx, "b", "b://x")

	cache.drain()

	if !fsA.(*memory.MemoryFileSystem).Closed() || !fsB.(*memory.MemoryFileSystem).Closed() {
		t.Error("Expected drain to close every cached driver")
	}
	if _, err := cache.get(ctx, "a", "a://x"); !IsCode(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after drain, got: %v", err)
	}
}
