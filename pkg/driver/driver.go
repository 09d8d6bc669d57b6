// Package driver defines the physical filesystem capability set that
// FilesetFS proxies to.
//
// Every storage backend (local disk, S3, BadgerDB, memory) implements the
// FileSystem interface over physical paths. The proxy holds driver
// instances polymorphically over this interface and never depends on a
// concrete backend.
package driver

import (
	"context"
	"io"
	"time"
)

// FileSystem is the operation set a physical storage driver must provide.
//
// All paths are physical: full storage URIs or URI paths in the driver's
// own scheme. Implementations must be safe for concurrent use once
// constructed. Construction is expensive (connection setup), so the proxy
// caches one instance per scheme and shares it across callers.
type FileSystem interface {
	// Open opens the file at path for sequential reading.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Create creates the file at path for writing. When overwrite is
	// false and the file exists, Create fails.
	Create(ctx context.Context, path string, overwrite bool) (io.WriteCloser, error)

	// Append opens the existing file at path for appending.
	Append(ctx context.Context, path string) (io.WriteCloser, error)

	// Rename moves src to dst within the same driver.
	Rename(ctx context.Context, src, dst string) error

	// Delete removes the file or directory at path. Deleting a non-empty
	// directory requires recursive.
	Delete(ctx context.Context, path string, recursive bool) error

	// Stat returns the status of the file or directory at path.
	Stat(ctx context.Context, path string) (*FileInfo, error)

	// List returns the direct children of the directory at path.
	List(ctx context.Context, path string) ([]*FileInfo, error)

	// MkdirAll creates the directory at path along with any missing parents.
	MkdirAll(ctx context.Context, path string) error

	// DefaultReplication returns the driver's default replication factor.
	DefaultReplication() uint32

	// DefaultBlockSize returns the driver's default block size in bytes.
	DefaultBlockSize() int64

	// SetWorkingDirectory sets the driver's working directory. Drivers
	// without a working directory concept may treat this as a no-op.
	SetWorkingDirectory(path string) error

	// Close releases driver resources. The proxy closes a driver exactly
	// once, on cache eviction or shutdown.
	Close() error
}

// FileInfo describes one file or directory on physical storage.
//
// Path carries the physical path; the proxy rewrites it to logical form
// before results reach the caller. All other fields pass through
// untouched.
type FileInfo struct {
	// Path is the full path of the entry
	Path string

	// Size is the file size in bytes (0 for directories)
	Size int64

	// IsDir reports whether the entry is a directory
	IsDir bool

	// ModTime is the last modification time
	ModTime time.Time

	// Mode is the Unix permission mode
	Mode uint32

	// Replication is the storage replication factor (0 if not applicable)
	Replication uint32

	// BlockSize is the storage block size in bytes (0 if not applicable)
	BlockSize int64
}
