// Package local provides a physical filesystem driver backed by the
// local disk. Physical paths map directly onto absolute OS paths; the
// "file://" scheme is accepted and mirrored back when the caller uses it.
package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/filesetfs/filesetfs/pkg/driver"
)

const (
	scheme           = "file://"
	defaultBlockSize = 32 * 1024 * 1024
)

// LocalFileSystem implements driver.FileSystem over the OS filesystem.
type LocalFileSystem struct {
	// root, when non-empty, confines all operations under this directory
	root string
}

// Config holds local driver options.
type Config struct {
	// Root confines all paths under this directory when set. Paths
	// escaping the root are rejected.
	Root string `mapstructure:"root"`
}

// New creates a local filesystem driver.
func New(cfg Config) *LocalFileSystem {
	return &LocalFileSystem{root: cfg.Root}
}

// NewFactory returns a driver factory for the "file" scheme.
func NewFactory(cfg Config) driver.Factory {
	return func(ctx context.Context, uri string) (driver.FileSystem, error) {
		return New(cfg), nil
	}
}

// osPath converts a "file://" URI to an OS path, enforcing the root jail.
func (l *LocalFileSystem) osPath(path string) (string, error) {
	p := strings.TrimPrefix(path, scheme)
	p = filepath.Clean(p)
	if l.root != "" {
		rel, err := filepath.Rel(l.root, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
			return "", fmt.Errorf("path %q escapes configured root %q", path, l.root)
		}
	}
	return p, nil
}

// reportPath echoes an OS path in the form the caller used: the
// "file://" prefix is restored only when the input path carried it, so
// path translation against a schemeless storage location still matches.
func reportPath(p string, withScheme bool) string {
	if withScheme {
		return scheme + p
	}
	return p
}

func (l *LocalFileSystem) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	p, err := l.osPath(path)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (l *LocalFileSystem) Create(ctx context.Context, path string, overwrite bool) (io.WriteCloser, error) {
	p, err := l.osPath(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return nil, err
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !overwrite {
		flags = os.O_CREATE | os.O_WRONLY | os.O_EXCL
	}
	return os.OpenFile(p, flags, 0644)
}

func (l *LocalFileSystem) Append(ctx context.Context, path string) (io.WriteCloser, error) {
	p, err := l.osPath(path)
	if err != nil {
		return nil, err
	}
	return os.OpenFile(p, os.O_WRONLY|os.O_APPEND, 0644)
}

func (l *LocalFileSystem) Rename(ctx context.Context, src, dst string) error {
	srcPath, err := l.osPath(src)
	if err != nil {
		return err
	}
	dstPath, err := l.osPath(dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	return os.Rename(srcPath, dstPath)
}

func (l *LocalFileSystem) Delete(ctx context.Context, path string, recursive bool) error {
	p, err := l.osPath(path)
	if err != nil {
		return err
	}
	if recursive {
		return os.RemoveAll(p)
	}
	return os.Remove(p)
}

func (l *LocalFileSystem) Stat(ctx context.Context, path string) (*driver.FileInfo, error) {
	p, err := l.osPath(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	return l.toFileInfo(p, strings.HasPrefix(path, scheme), info), nil
}

func (l *LocalFileSystem) List(ctx context.Context, path string) ([]*driver.FileInfo, error) {
	p, err := l.osPath(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, err
	}

	withScheme := strings.HasPrefix(path, scheme)
	infos := make([]*driver.FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			// entry vanished between ReadDir and Info
			continue
		}
		infos = append(infos, l.toFileInfo(filepath.Join(p, e.Name()), withScheme, info))
	}
	return infos, nil
}

func (l *LocalFileSystem) MkdirAll(ctx context.Context, path string) error {
	p, err := l.osPath(path)
	if err != nil {
		return err
	}
	return os.MkdirAll(p, 0755)
}

func (l *LocalFileSystem) DefaultReplication() uint32 { return 1 }

func (l *LocalFileSystem) DefaultBlockSize() int64 { return defaultBlockSize }

func (l *LocalFileSystem) SetWorkingDirectory(path string) error { return nil }

func (l *LocalFileSystem) Close() error { return nil }

func (l *LocalFileSystem) toFileInfo(p string, withScheme bool, info fs.FileInfo) *driver.FileInfo {
	fi := &driver.FileInfo{
		Path:    reportPath(p, withScheme),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
		Mode:    uint32(info.Mode().Perm()),
	}
	if !info.IsDir() {
		fi.Size = info.Size()
		fi.Replication = 1
		fi.BlockSize = defaultBlockSize
	}
	return fi
}
