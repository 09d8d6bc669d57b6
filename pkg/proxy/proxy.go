// Package proxy implements the FilesetFS virtual filesystem.
//
// Callers address data through logical paths naming a fileset by
// metadata identity ("/catalog/schema/fileset/sub/path"). Every
// operation resolves the logical path against the metadata service,
// delegates to a cached physical filesystem driver, and rewrites any
// returned physical paths back into logical form, so callers never
// observe the physical storage layout.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/filesetfs/filesetfs/internal/logger"
	"github.com/filesetfs/filesetfs/pkg/catalog"
	"github.com/filesetfs/filesetfs/pkg/driver"
	"github.com/filesetfs/filesetfs/pkg/metrics"
)

const (
	// DefaultCacheCapacity bounds the physical filesystem cache when the
	// configuration does not set one.
	DefaultCacheCapacity = 20

	// DefaultExpireAfterAccess is the driver cache access-expiry window.
	DefaultExpireAfterAccess = time.Hour

	// DefaultSweepInterval is the period of the background cache sweeps.
	DefaultSweepInterval = time.Minute
)

// Options configures a Proxy.
type Options struct {
	// Client is the connected metadata service client. Required.
	Client catalog.Client

	// Tenant is the tenant all resolved identifiers belong to. Required.
	Tenant string

	// Drivers maps storage schemes to driver factories. Required.
	Drivers *driver.Registry

	// CacheCapacity bounds the physical filesystem cache. Must be
	// positive; zero means DefaultCacheCapacity.
	CacheCapacity int

	// ExpireAfterAccess is how long an unused driver stays cached. Must
	// be positive; zero means DefaultExpireAfterAccess.
	ExpireAfterAccess time.Duration

	// SweepInterval is the background sweep period. Must be positive;
	// zero means DefaultSweepInterval.
	SweepInterval time.Duration

	// Metrics records proxy activity. Nil disables recording.
	Metrics *metrics.ProxyMetrics
}

// Proxy is the virtual filesystem. One instance owns its two caches,
// its background sweepers and the metadata client connection; Close
// releases all of them.
//
// Safe for concurrent use: operations do not serialize against each
// other, and concurrent cold misses on the same catalog or scheme incur
// exactly one load.
type Proxy struct {
	tenant  string
	client  catalog.Client
	metrics *metrics.ProxyMetrics

	catalogs    *catalogCache
	filesystems *fsCache

	// wdMu guards workingDir, the only mutable per-proxy operation state
	wdMu       sync.Mutex
	workingDir string

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New validates the options and returns a running proxy with both
// background sweepers started.
func New(opts Options) (*Proxy, error) {
	if opts.Client == nil {
		return nil, &ProxyError{Code: ErrConfiguration, Message: "metadata client is required"}
	}
	if strings.TrimSpace(opts.Tenant) == "" {
		return nil, &ProxyError{Code: ErrConfiguration, Message: "tenant name is required"}
	}
	if opts.Drivers == nil {
		return nil, &ProxyError{Code: ErrConfiguration, Message: "driver registry is required"}
	}
	if opts.CacheCapacity < 0 {
		return nil, &ProxyError{
			Code:    ErrConfiguration,
			Message: fmt.Sprintf("cache capacity must be positive, got %d", opts.CacheCapacity),
		}
	}
	if opts.ExpireAfterAccess < 0 {
		return nil, &ProxyError{
			Code:    ErrConfiguration,
			Message: fmt.Sprintf("cache access expiry must be positive, got %v", opts.ExpireAfterAccess),
		}
	}
	if opts.SweepInterval < 0 {
		return nil, &ProxyError{
			Code:    ErrConfiguration,
			Message: fmt.Sprintf("cache sweep interval must be positive, got %v", opts.SweepInterval),
		}
	}

	if opts.CacheCapacity == 0 {
		opts.CacheCapacity = DefaultCacheCapacity
	}
	if opts.ExpireAfterAccess == 0 {
		opts.ExpireAfterAccess = DefaultExpireAfterAccess
	}
	if opts.SweepInterval == 0 {
		opts.SweepInterval = DefaultSweepInterval
	}

	p := &Proxy{
		tenant:     opts.Tenant,
		client:     opts.Client,
		metrics:    opts.Metrics,
		workingDir: "/",
		stop:       make(chan struct{}),
	}

	p.catalogs = newCatalogCache(catalogCacheCapacity, func(ctx context.Context, ident catalog.ResourceIdentifier) (catalog.CatalogHandle, error) {
		return opts.Client.LoadCatalog(ctx, ident.Catalog)
	}, opts.Metrics)
	p.filesystems = newFSCache(opts.CacheCapacity, opts.ExpireAfterAccess, opts.Drivers, opts.Metrics)

	p.startSweeper("filesystem-cache", opts.SweepInterval, p.filesystems.sweep)
	p.startSweeper("catalog-cache", opts.SweepInterval, p.catalogs.sweep)

	logger.Info("Virtual filesystem proxy started: tenant=%s capacity=%d expire_after_access=%v",
		opts.Tenant, opts.CacheCapacity, opts.ExpireAfterAccess)

	return p, nil
}

// startSweeper runs sweepFn on a fixed period until Close. The sweepers
// never block shutdown: they exit as soon as the stop channel closes.
func (p *Proxy) startSweeper(name string, interval time.Duration, sweepFn func() int) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if closed := sweepFn(); closed > 0 {
					logger.Debug("Sweep of %s evicted %d expired entries", name, closed)
				}
			case <-p.stop:
				return
			}
		}
	}()
}

// resolution carries everything one operation needs after resolving a
// logical path.
type resolution struct {
	ident      catalog.ResourceIdentifier
	context    *catalog.FilesetContext
	fs         driver.FileSystem
	withScheme bool
}

// virtualPrefix is the logical location of the fileset root, in the
// same form (with or without scheme prefix) the caller used.
func (r *resolution) virtualPrefix() string {
	return virtualPrefixOf(r.ident, r.withScheme)
}

// resolve maps a logical path to a fileset context and physical driver
// for one operation: identifier extraction, cached catalog handle
// lookup, fresh context resolution, cached driver lookup.
func (p *Proxy) resolve(ctx context.Context, path string, op catalog.Operation) (*resolution, error) {
	ident, err := extractIdentifier(p.tenant, path)
	if err != nil {
		return nil, err
	}

	handle, err := p.catalogs.get(ctx, ident.CatalogIdentifier())
	if err != nil {
		return nil, err
	}

	fsCtx, err := handle.ResolveContext(ctx, ident, op, subPathOf(ident, path))
	if err != nil {
		return nil, err
	}

	scheme := schemeOf(fsCtx.ActualPath)
	fs, err := p.filesystems.get(ctx, scheme, fsCtx.ActualPath)
	if err != nil {
		return nil, err
	}

	return &resolution{
		ident:      ident,
		context:    fsCtx,
		fs:         fs,
		withScheme: strings.HasPrefix(path, SchemePrefix),
	}, nil
}

// schemeOf extracts the storage scheme from a physical path. Plain
// paths without a scheme run on the local driver.
func schemeOf(path string) string {
	if idx := strings.Index(path, "://"); idx >= 0 {
		return path[:idx]
	}
	return "file"
}

// Open opens the file at the logical path for reading.
func (p *Proxy) Open(ctx context.Context, path string) (rc io.ReadCloser, err error) {
	defer func() { p.metrics.Operation("open", err) }()

	r, err := p.resolve(ctx, path, catalog.OpOpen)
	if err != nil {
		return nil, err
	}
	return r.fs.Open(ctx, r.context.ActualPath)
}

// Create creates the file at the logical path for writing.
func (p *Proxy) Create(ctx context.Context, path string, overwrite bool) (wc io.WriteCloser, err error) {
	defer func() { p.metrics.Operation("create", err) }()

	r, err := p.resolve(ctx, path, catalog.OpCreate)
	if err != nil {
		return nil, err
	}
	return r.fs.Create(ctx, r.context.ActualPath, overwrite)
}

// Append opens the file at the logical path for appending.
func (p *Proxy) Append(ctx context.Context, path string) (wc io.WriteCloser, err error) {
	defer func() { p.metrics.Operation("append", err) }()

	r, err := p.resolve(ctx, path, catalog.OpAppend)
	if err != nil {
		return nil, err
	}
	return r.fs.Append(ctx, r.context.ActualPath)
}

// Rename moves src to dst. Both paths must resolve to the same fileset:
// the fileset's storage root is owned by the metadata service and must
// never move through a path operation.
func (p *Proxy) Rename(ctx context.Context, src, dst string) (err error) {
	defer func() { p.metrics.Operation("rename", err) }()

	srcIdent, err := extractIdentifier(p.tenant, src)
	if err != nil {
		return err
	}
	dstIdent, err := extractIdentifier(p.tenant, dst)
	if err != nil {
		return err
	}
	if srcIdent != dstIdent {
		return validationError(
			fmt.Sprintf("cannot rename across filesets: source %s, destination %s", srcIdent, dstIdent),
			src)
	}

	srcRes, err := p.resolve(ctx, src, catalog.OpRename)
	if err != nil {
		return err
	}
	dstRes, err := p.resolve(ctx, dst, catalog.OpRename)
	if err != nil {
		return err
	}
	return srcRes.fs.Rename(ctx, srcRes.context.ActualPath, dstRes.context.ActualPath)
}

// Delete removes the file or directory at the logical path.
func (p *Proxy) Delete(ctx context.Context, path string, recursive bool) (err error) {
	defer func() { p.metrics.Operation("delete", err) }()

	r, err := p.resolve(ctx, path, catalog.OpDelete)
	if err != nil {
		return err
	}
	return r.fs.Delete(ctx, r.context.ActualPath, recursive)
}

// Stat returns the status of the logical path, with the physical path
// rewritten back into logical form.
func (p *Proxy) Stat(ctx context.Context, path string) (info *driver.FileInfo, err error) {
	defer func() { p.metrics.Operation("stat", err) }()

	r, err := p.resolve(ctx, path, catalog.OpGetFileStatus)
	if err != nil {
		return nil, err
	}
	physical, err := r.fs.Stat(ctx, r.context.ActualPath)
	if err != nil {
		return nil, err
	}
	return toVirtualFileInfo(physical, r.context.Fileset.StorageLocation, r.virtualPrefix())
}

// List returns the children of the logical directory path, each entry
// rewritten into logical form.
func (p *Proxy) List(ctx context.Context, path string) (infos []*driver.FileInfo, err error) {
	defer func() { p.metrics.Operation("list", err) }()

	r, err := p.resolve(ctx, path, catalog.OpListStatus)
	if err != nil {
		return nil, err
	}
	physical, err := r.fs.List(ctx, r.context.ActualPath)
	if err != nil {
		return nil, err
	}

	infos = make([]*driver.FileInfo, 0, len(physical))
	for _, pi := range physical {
		vi, err := toVirtualFileInfo(pi, r.context.Fileset.StorageLocation, r.virtualPrefix())
		if err != nil {
			return nil, err
		}
		infos = append(infos, vi)
	}
	return infos, nil
}

// MkdirAll creates the logical directory path with any missing parents.
func (p *Proxy) MkdirAll(ctx context.Context, path string) (err error) {
	defer func() { p.metrics.Operation("mkdirs", err) }()

	r, err := p.resolve(ctx, path, catalog.OpMkdirs)
	if err != nil {
		return err
	}
	return r.fs.MkdirAll(ctx, r.context.ActualPath)
}

// Exists reports whether the logical path exists on physical storage.
func (p *Proxy) Exists(ctx context.Context, path string) (exists bool, err error) {
	defer func() { p.metrics.Operation("exists", err) }()

	r, err := p.resolve(ctx, path, catalog.OpExists)
	if err != nil {
		return false, err
	}
	if _, err := r.fs.Stat(ctx, r.context.ActualPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ReadFile reads the whole file at the logical path.
func (p *Proxy) ReadFile(ctx context.Context, path string) (data []byte, err error) {
	defer func() { p.metrics.Operation("cat", err) }()

	r, err := p.resolve(ctx, path, catalog.OpCatFile)
	if err != nil {
		return nil, err
	}
	reader, err := r.fs.Open(ctx, r.context.ActualPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()
	return io.ReadAll(reader)
}

// CopyFile copies src to dst within one fileset.
func (p *Proxy) CopyFile(ctx context.Context, src, dst string) (err error) {
	defer func() { p.metrics.Operation("copy", err) }()

	srcIdent, err := extractIdentifier(p.tenant, src)
	if err != nil {
		return err
	}
	dstIdent, err := extractIdentifier(p.tenant, dst)
	if err != nil {
		return err
	}
	if srcIdent != dstIdent {
		return validationError(
			fmt.Sprintf("cannot copy across filesets: source %s, destination %s", srcIdent, dstIdent),
			src)
	}

	srcRes, err := p.resolve(ctx, src, catalog.OpCopyFile)
	if err != nil {
		return err
	}
	dstRes, err := p.resolve(ctx, dst, catalog.OpCopyFile)
	if err != nil {
		return err
	}

	reader, err := srcRes.fs.Open(ctx, srcRes.context.ActualPath)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	writer, err := dstRes.fs.Create(ctx, dstRes.context.ActualPath, true)
	if err != nil {
		return err
	}
	if _, err := io.Copy(writer, reader); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

// DefaultReplication returns the replication factor of the storage
// backing the logical path.
func (p *Proxy) DefaultReplication(ctx context.Context, path string) (replication uint32, err error) {
	defer func() { p.metrics.Operation("default_replication", err) }()

	r, err := p.resolve(ctx, path, catalog.OpGetDefaultReplication)
	if err != nil {
		return 0, err
	}
	return r.fs.DefaultReplication(), nil
}

// DefaultBlockSize returns the block size of the storage backing the
// logical path.
func (p *Proxy) DefaultBlockSize(ctx context.Context, path string) (blockSize int64, err error) {
	defer func() { p.metrics.Operation("default_block_size", err) }()

	r, err := p.resolve(ctx, path, catalog.OpGetDefaultBlockSize)
	if err != nil {
		return 0, err
	}
	return r.fs.DefaultBlockSize(), nil
}

// WorkingDirectory returns the proxy's current working directory.
func (p *Proxy) WorkingDirectory() string {
	p.wdMu.Lock()
	defer p.wdMu.Unlock()
	return p.workingDir
}

// SetWorkingDirectory resolves the logical path, propagates it to the
// physical driver, and records it as the proxy's working directory.
func (p *Proxy) SetWorkingDirectory(ctx context.Context, path string) (err error) {
	defer func() { p.metrics.Operation("set_working_dir", err) }()

	p.wdMu.Lock()
	defer p.wdMu.Unlock()

	r, err := p.resolve(ctx, path, catalog.OpSetWorkingDir)
	if err != nil {
		return err
	}
	if err := r.fs.SetWorkingDirectory(r.context.ActualPath); err != nil {
		return err
	}
	p.workingDir = path
	return nil
}

// Close shuts the proxy down: closes every cached driver, invalidates
// both caches, closes the metadata client, and stops both background
// sweepers. All failures are logged and swallowed so shutdown always
// completes. Idempotent.
func (p *Proxy) Close() error {
	p.closeOnce.Do(func() {
		close(p.stop)
		p.wg.Wait()

		p.filesystems.drain()
		p.catalogs.invalidateAll()

		if err := p.client.Close(); err != nil {
			logger.Error("Failed to close metadata client: %v", err)
		}

		logger.Info("Virtual filesystem proxy closed")
	})
	return nil
}
