// Package testing provides an in-memory metadata client for unit tests.
//
// The fake keeps registered catalogs and filesets in maps and resolves
// contexts by joining the fileset's storage location with the sub-path,
// which is exactly the contract the proxy relies on. Load counters let
// tests assert single-flight behavior on the proxy's caches.
package testing

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/filesetfs/filesetfs/pkg/catalog"
)

// FakeClient implements catalog.Client backed by in-memory maps.
type FakeClient struct {
	mu       sync.RWMutex
	catalogs map[string]*FakeCatalog
	closed   atomic.Bool

	// LoadCount counts LoadCatalog invocations per catalog name.
	loadCount map[string]*atomic.Int64

	// LoadDelay, when set, is invoked at the start of every LoadCatalog.
	// Tests use it to hold concurrent loaders open.
	LoadDelay func()
}

// FakeCatalog implements catalog.CatalogHandle for one catalog.
type FakeCatalog struct {
	client *FakeClient
	name   string

	mu       sync.RWMutex
	filesets map[string]catalog.Fileset

	// RejectOps lists operations the fake rejects with a validation error
	RejectOps map[catalog.Operation]bool

	resolveCount atomic.Int64
}

// NewFakeClient creates an empty fake metadata client.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		catalogs:  make(map[string]*FakeCatalog),
		loadCount: make(map[string]*atomic.Int64),
	}
}

// AddFileset registers a fileset under catalog/schema, creating the
// catalog on first use. The fileset key is "schema/name".
func (f *FakeClient) AddFileset(catalogName, schema, name, storageLocation string) *FakeCatalog {
	f.mu.Lock()
	defer f.mu.Unlock()

	handle, ok := f.catalogs[catalogName]
	if !ok {
		handle = &FakeCatalog{
			client:    f,
			name:      catalogName,
			filesets:  make(map[string]catalog.Fileset),
			RejectOps: make(map[catalog.Operation]bool),
		}
		f.catalogs[catalogName] = handle
		f.loadCount[catalogName] = &atomic.Int64{}
	}

	handle.mu.Lock()
	handle.filesets[schema+"/"+name] = catalog.Fileset{
		Name:            name,
		StorageLocation: storageLocation,
	}
	handle.mu.Unlock()

	return handle
}

// LoadCatalog returns the registered handle, counting the call.
func (f *FakeClient) LoadCatalog(ctx context.Context, name string) (catalog.CatalogHandle, error) {
	if f.LoadDelay != nil {
		f.LoadDelay()
	}

	f.mu.RLock()
	handle, ok := f.catalogs[name]
	counter := f.loadCount[name]
	f.mu.RUnlock()

	if counter != nil {
		counter.Add(1)
	}
	if !ok {
		return nil, &catalog.ClientError{
			Code:     catalog.ErrNotFound,
			Message:  "catalog not found",
			Resource: name,
		}
	}
	return handle, nil
}

// LoadCount returns how many times LoadCatalog ran for the given name.
func (f *FakeClient) LoadCount(name string) int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if counter, ok := f.loadCount[name]; ok {
		return counter.Load()
	}
	return 0
}

// Close marks the client closed.
func (f *FakeClient) Close() error {
	f.closed.Store(true)
	return nil
}

// Closed reports whether Close has been called.
func (f *FakeClient) Closed() bool {
	return f.closed.Load()
}

// ResolveContext joins the fileset storage location with the sub-path.
func (c *FakeCatalog) ResolveContext(ctx context.Context, ident catalog.ResourceIdentifier, op catalog.Operation, subPath string) (*catalog.FilesetContext, error) {
	c.resolveCount.Add(1)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.RejectOps[op] {
		return nil, &catalog.ClientError{
			Code:     catalog.ErrValidation,
			Message:  "operation rejected",
			Resource: ident.String(),
		}
	}

	fileset, ok := c.filesets[ident.Schema+"/"+ident.Fileset]
	if !ok {
		return nil, &catalog.ClientError{
			Code:     catalog.ErrNotFound,
			Message:  "fileset not found",
			Resource: ident.String(),
		}
	}

	return &catalog.FilesetContext{
		Fileset:    fileset,
		ActualPath: fileset.StorageLocation + subPath,
	}, nil
}

// ResolveCount returns how many contexts this handle has resolved.
func (c *FakeCatalog) ResolveCount() int64 {
	return c.resolveCount.Load()
}
