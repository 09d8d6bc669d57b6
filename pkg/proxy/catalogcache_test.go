package proxy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/filesetfs/filesetfs/pkg/catalog"
	catalogtest "github.com/filesetfs/filesetfs/pkg/catalog/testing"
)

func ident(catalogName string) catalog.ResourceIdentifier {
	return catalog.ResourceIdentifier{Tenant: "t", Catalog: catalogName}
}

func TestCatalogCache_SecondGetIsAHit(t *testing.T) {
	var loads atomic.Int64
	cache := newCatalogCache(10, func(ctx context.Context, id catalog.ResourceIdentifier) (catalog.CatalogHandle, error) {
		loads.Add(1)
		return &catalogtest.FakeCatalog{}, nil
	}, nil)

	first, err := cache.get(context.Background(), ident("c1"))
	if err != nil {
		t.Fatalf("Expected handle, got error: %v", err)
	}
	second, err := cache.get(context.Background(), ident("c1"))
	if err != nil {
		t.Fatalf("Expected handle, got error: %v", err)
	}

	if first != second {
		t.Error("Expected both gets to return the same handle")
	}
	if got := loads.Load(); got != 1 {
		t.Errorf("Expected exactly 1 load, got %d", got)
	}
}

func TestCatalogCache_ConcurrentMissesLoadOnce(t *testing.T) {
	var loads atomic.Int64
	release := make(chan struct{})

	cache := newCatalogCache(10, func(ctx context.Context, id catalog.ResourceIdentifier) (catalog.CatalogHandle, error) {
		loads.Add(1)
		<-release
		return &catalogtest.FakeCatalog{}, nil
	}, nil)

	const workers = 16
	var wg sync.WaitGroup
	handles := make([]catalog.CatalogHandle, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = cache.get(context.Background(), ident("c1"))
		}(i)
	}

	close(release)
	wg.Wait()

	if got := loads.Load(); got != 1 {
		t.Fatalf("Expected exactly 1 load across %d concurrent gets, got %d", workers, got)
	}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("Worker %d got error: %v", i, errs[i])
		}
		if handles[i] != handles[0] {
			t.Errorf("Worker %d got a different handle", i)
		}
	}
}

func TestCatalogCache_FailedLoadNotCached(t *testing.T) {
	var loads atomic.Int64
	cache := newCatalogCache(10, func(ctx context.Context, id catalog.ResourceIdentifier) (catalog.CatalogHandle, error) {
		if loads.Add(1) == 1 {
			return nil, errors.New("metadata service unavailable")
		}
		return &catalogtest.FakeCatalog{}, nil
	}, nil)

	if _, err := cache.get(context.Background(), ident("c1")); err == nil {
		t.Fatal("Expected first load to fail")
	}
	if cache.len() != 0 {
		t.Errorf("Expected failed load to leave no entry, got %d", cache.len())
	}

	// The next call retries instead of replaying the cached failure.
	if _, err := cache.get(context.Background(), ident("c1")); err != nil {
		t.Fatalf("Expected retry to succeed, got: %v", err)
	}
	if got := loads.Load(); got != 2 {
		t.Errorf("Expected 2 loads, got %d", got)
	}
}

func TestCatalogCache_NilHandleIsNotFound(t *testing.T) {
	cache := newCatalogCache(10, func(ctx context.Context, id catalog.ResourceIdentifier) (catalog.CatalogHandle, error) {
		return nil, nil
	}, nil)

	_, err := cache.get(context.Background(), ident("missing"))
	if err == nil {
		t.Fatal("Expected not-found error for nil handle")
	}
	if !IsCode(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
	if cache.len() != 0 {
		t.Errorf("Expected nil handle not cached, got %d entries", cache.len())
	}
}

func TestCatalogCache_EvictsLeastRecentlyUsed(t *testing.T) {
	var loads atomic.Int64
	cache := newCatalogCache(2, func(ctx context.Context, id catalog.ResourceIdentifier) (catalog.CatalogHandle, error) {
		loads.Add(1)
		return &catalogtest.FakeCatalog{}, nil
	}, nil)

	ctx := context.Background()
	for _, name := range []string{"c1", "c2"} {
		if _, err := cache.get(ctx, ident(name)); err != nil {
			t.Fatalf("get(%s): %v", name, err)
		}
	}

	// Touch c1 so c2 is the LRU victim when c3 arrives.
	if _, err := cache.get(ctx, ident("c1")); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.get(ctx, ident("c3")); err != nil {
		t.Fatal(err)
	}

	if cache.len() != 2 {
		t.Fatalf("Expected capacity 2, got %d entries", cache.len())
	}

	before := loads.Load()
	if _, err := cache.get(ctx, ident("c2")); err != nil {
		t.Fatal(err)
	}
	if loads.Load() != before+1 {
		t.Error("Expected c2 to have been evicted and reloaded")
	}
}

func TestCatalogCache_ClosedRejectsGets(t *testing.T) {
	cache := newCatalogCache(10, func(ctx context.Context, id catalog.ResourceIdentifier) (catalog.CatalogHandle, error) {
		return &catalogtest.FakeCatalog{}, nil
	}, nil)

	cache.invalidateAll()

	_, err := cache.get(context.Background(), ident("c1"))
	if !IsCode(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after invalidateAll, got: %v", err)
	}
}

func TestCatalogCache_DistinctIdentifiersLoadSeparately(t *testing.T) {
	var loads atomic.Int64
	cache := newCatalogCache(10, func(ctx context.Context, id catalog.ResourceIdentifier) (catalog.CatalogHandle, error) {
		loads.Add(1)
		return &catalogtest.FakeCatalog{}, nil
	}, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("c%d", i)
		if _, err := cache.get(ctx, ident(name)); err != nil {
			t.Fatalf("get(%s): %v", name, err)
		}
	}

	if got := loads.Load(); got != 3 {
		t.Errorf("Expected 3 loads for 3 catalogs, got %d", got)
	}
}
