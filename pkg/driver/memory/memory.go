// Package memory provides an in-memory physical filesystem driver.
//
// The driver keys entries by their full physical path string, so it works
// with any URI scheme ("mem://bucket/dir/file"). Directories exist either
// explicitly (via MkdirAll) or implicitly as prefixes of stored files.
// Intended for tests and ephemeral storage.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/filesetfs/filesetfs/pkg/driver"
)

const (
	defaultBlockSize = 4 * 1024 * 1024
	defaultMode      = 0644
	defaultDirMode   = 0755
)

type entry struct {
	data    []byte
	isDir   bool
	modTime time.Time
	mode    uint32
}

// MemoryFileSystem implements driver.FileSystem backed by a map.
type MemoryFileSystem struct {
	mu      sync.RWMutex
	entries map[string]*entry
	closed  bool
}

// New creates an empty in-memory filesystem.
func New() *MemoryFileSystem {
	return &MemoryFileSystem{entries: make(map[string]*entry)}
}

// NewFactory returns a driver factory producing independent in-memory
// filesystems.
func NewFactory() driver.Factory {
	return func(ctx context.Context, uri string) (driver.FileSystem, error) {
		return New(), nil
	}
}

func normalize(path string) string {
	return strings.TrimRight(path, "/")
}

func (m *MemoryFileSystem) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[normalize(path)]
	if !ok || e.isDir {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	return io.NopCloser(bytes.NewReader(e.data)), nil
}

func (m *MemoryFileSystem) Create(ctx context.Context, path string, overwrite bool) (io.WriteCloser, error) {
	key := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, exists := m.entries[key]; exists {
		if e.isDir {
			return nil, &os.PathError{Op: "create", Path: path, Err: fmt.Errorf("is a directory")}
		}
		if !overwrite {
			return nil, &os.PathError{Op: "create", Path: path, Err: os.ErrExist}
		}
	}
	return &memWriter{fs: m, key: key}, nil
}

func (m *MemoryFileSystem) Append(ctx context.Context, path string) (io.WriteCloser, error) {
	key := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.isDir {
		return nil, &os.PathError{Op: "append", Path: path, Err: os.ErrNotExist}
	}
	return &memWriter{fs: m, key: key, buf: append([]byte(nil), e.data...)}, nil
}

func (m *MemoryFileSystem) Rename(ctx context.Context, src, dst string) error {
	srcKey, dstKey := normalize(src), normalize(dst)

	m.mu.Lock()
	defer m.mu.Unlock()

	moved := false
	for key, e := range m.entries {
		if key == srcKey {
			m.entries[dstKey] = e
			delete(m.entries, key)
			moved = true
		} else if strings.HasPrefix(key, srcKey+"/") {
			m.entries[dstKey+key[len(srcKey):]] = e
			delete(m.entries, key)
			moved = true
		}
	}
	if !moved {
		return &os.PathError{Op: "rename", Path: src, Err: os.ErrNotExist}
	}
	return nil
}

func (m *MemoryFileSystem) Delete(ctx context.Context, path string, recursive bool) error {
	key := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	var children []string
	for k := range m.entries {
		if strings.HasPrefix(k, key+"/") {
			children = append(children, k)
		}
	}

	_, exists := m.entries[key]
	if !exists && len(children) == 0 {
		return &os.PathError{Op: "delete", Path: path, Err: os.ErrNotExist}
	}
	if len(children) > 0 && !recursive {
		return &os.PathError{Op: "delete", Path: path, Err: fmt.Errorf("directory not empty")}
	}

	delete(m.entries, key)
	for _, k := range children {
		delete(m.entries, k)
	}
	return nil
}

func (m *MemoryFileSystem) Stat(ctx context.Context, path string) (*driver.FileInfo, error) {
	key := normalize(path)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if e, ok := m.entries[key]; ok {
		return m.infoFor(key, e), nil
	}
	// implicit directory: some entry lives underneath
	for k := range m.entries {
		if strings.HasPrefix(k, key+"/") {
			return &driver.FileInfo{
				Path:    key,
				IsDir:   true,
				Mode:    defaultDirMode,
				ModTime: time.Now(),
			}, nil
		}
	}
	return nil, &os.PathError{Op: "stat", Path: path, Err: os.ErrNotExist}
}

func (m *MemoryFileSystem) List(ctx context.Context, path string) ([]*driver.FileInfo, error) {
	key := normalize(path)

	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := key + "/"
	seen := make(map[string]*driver.FileInfo)
	for k, e := range m.entries {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := k[len(prefix):]
		if idx := strings.Index(rest, "/"); idx >= 0 {
			// deeper entry: surfaces as an implicit child directory
			child := prefix + rest[:idx]
			if _, ok := seen[child]; !ok {
				seen[child] = &driver.FileInfo{
					Path:    child,
					IsDir:   true,
					Mode:    defaultDirMode,
					ModTime: e.modTime,
				}
			}
			continue
		}
		seen[k] = m.infoFor(k, e)
	}

	if len(seen) == 0 {
		if e, ok := m.entries[key]; !ok || !e.isDir {
			if !ok {
				return nil, &os.PathError{Op: "list", Path: path, Err: os.ErrNotExist}
			}
			return nil, &os.PathError{Op: "list", Path: path, Err: fmt.Errorf("not a directory")}
		}
	}

	infos := make([]*driver.FileInfo, 0, len(seen))
	for _, info := range seen {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

func (m *MemoryFileSystem) MkdirAll(ctx context.Context, path string) error {
	key := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok && !e.isDir {
		return &os.PathError{Op: "mkdir", Path: path, Err: fmt.Errorf("not a directory")}
	}
	m.entries[key] = &entry{isDir: true, modTime: time.Now(), mode: defaultDirMode}
	return nil
}

func (m *MemoryFileSystem) DefaultReplication() uint32 { return 1 }

func (m *MemoryFileSystem) DefaultBlockSize() int64 { return defaultBlockSize }

func (m *MemoryFileSystem) SetWorkingDirectory(path string) error { return nil }

// Close marks the filesystem closed and drops all entries.
func (m *MemoryFileSystem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = make(map[string]*entry)
	return nil
}

// Closed reports whether Close has been called. Used by cache tests.
func (m *MemoryFileSystem) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *MemoryFileSystem) infoFor(key string, e *entry) *driver.FileInfo {
	info := &driver.FileInfo{
		Path:    key,
		IsDir:   e.isDir,
		ModTime: e.modTime,
		Mode:    e.mode,
	}
	if !e.isDir {
		info.Size = int64(len(e.data))
		info.Replication = 1
		info.BlockSize = defaultBlockSize
	}
	return info
}

// memWriter buffers writes and installs the entry on Close.
type memWriter struct {
	fs     *MemoryFileSystem
	key    string
	buf    []byte
	closed bool
}

func (w *memWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, os.ErrClosed
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *memWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	w.fs.entries[w.key] = &entry{
		data:    w.buf,
		modTime: time.Now(),
		mode:    defaultMode,
	}
	return nil
}
