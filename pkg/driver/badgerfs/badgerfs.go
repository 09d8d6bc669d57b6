// Package badgerfs implements a persistent local physical filesystem
// driver backed by BadgerDB.
//
// Physical paths use the "badger://" scheme and are stored under two key
// namespaces: "m:<path>" for entry metadata (JSON) and "c:<path>" for
// file content. Directory listings are range scans over the metadata
// namespace. Useful for single-node deployments that want crash-safe
// local storage without managing a directory tree.
package badgerfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/filesetfs/filesetfs/pkg/driver"
)

const (
	metaPrefix    = "m:"
	contentPrefix = "c:"

	defaultBlockSize = 4 * 1024 * 1024
)

// entryMeta is the JSON-encoded per-entry record.
type entryMeta struct {
	IsDir   bool      `json:"isDir"`
	Size    int64     `json:"size"`
	Mode    uint32    `json:"mode"`
	ModTime time.Time `json:"modTime"`
}

// Config holds badger driver options.
type Config struct {
	// DBPath is the BadgerDB directory. Required.
	DBPath string `mapstructure:"db_path"`
}

// BadgerFileSystem implements driver.FileSystem over one BadgerDB.
type BadgerFileSystem struct {
	db *badger.DB
}

// New opens (or creates) the BadgerDB at cfg.DBPath.
func New(cfg Config) (*BadgerFileSystem, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("badger driver: db_path is required")
	}

	opts := badger.DefaultOptions(cfg.DBPath)
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.DBPath, err)
	}
	return &BadgerFileSystem{db: db}, nil
}

// NewFactory returns a driver factory for the "badger" scheme.
// The database is opened lazily on first construction.
func NewFactory(cfg Config) driver.Factory {
	return func(ctx context.Context, uri string) (driver.FileSystem, error) {
		return New(cfg)
	}
}

func normalize(path string) string {
	return strings.TrimRight(path, "/")
}

func metaKey(path string) []byte    { return []byte(metaPrefix + normalize(path)) }
func contentKey(path string) []byte { return []byte(contentPrefix + normalize(path)) }

func (b *BadgerFileSystem) getMeta(txn *badger.Txn, path string) (*entryMeta, error) {
	item, err := txn.Get(metaKey(path))
	if err != nil {
		return nil, err
	}
	var meta entryMeta
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	}); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (b *BadgerFileSystem) setEntry(txn *badger.Txn, path string, meta *entryMeta, data []byte) error {
	encoded, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := txn.Set(metaKey(path), encoded); err != nil {
		return err
	}
	if !meta.IsDir {
		return txn.Set(contentKey(path), data)
	}
	return nil
}

func (b *BadgerFileSystem) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		meta, err := b.getMeta(txn, path)
		if err != nil {
			return err
		}
		if meta.IsDir {
			return fmt.Errorf("is a directory")
		}
		item, err := txn.Get(contentKey(path))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
		}
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *BadgerFileSystem) Create(ctx context.Context, path string, overwrite bool) (io.WriteCloser, error) {
	if !overwrite {
		exists := false
		err := b.db.View(func(txn *badger.Txn) error {
			if _, err := txn.Get(metaKey(path)); err == nil {
				exists = true
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, &os.PathError{Op: "create", Path: path, Err: os.ErrExist}
		}
	}
	return &badgerWriter{fs: b, path: normalize(path)}, nil
}

func (b *BadgerFileSystem) Append(ctx context.Context, path string) (io.WriteCloser, error) {
	reader, err := b.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	return &badgerWriter{fs: b, path: normalize(path), buf: data}, nil
}

func (b *BadgerFileSystem) Rename(ctx context.Context, src, dst string) error {
	srcKey, dstKey := normalize(src), normalize(dst)

	return b.db.Update(func(txn *badger.Txn) error {
		type moved struct {
			oldPath, newPath string
			meta             entryMeta
			data             []byte
		}

		// scan first with the iterator fully closed before any writes
		collect := func() ([]moved, error) {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()

			var moves []moved
			prefix := []byte(metaPrefix + srcKey)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				oldPath := strings.TrimPrefix(string(item.Key()), metaPrefix)
				if oldPath != srcKey && !strings.HasPrefix(oldPath, srcKey+"/") {
					continue
				}

				var meta entryMeta
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &meta)
				}); err != nil {
					return nil, err
				}

				m := moved{
					oldPath: oldPath,
					newPath: dstKey + oldPath[len(srcKey):],
					meta:    meta,
				}
				if !meta.IsDir {
					contentItem, err := txn.Get(contentKey(oldPath))
					if err != nil {
						return nil, err
					}
					if m.data, err = contentItem.ValueCopy(nil); err != nil {
						return nil, err
					}
				}
				moves = append(moves, m)
			}
			return moves, nil
		}

		moves, err := collect()
		if err != nil {
			return err
		}
		if len(moves) == 0 {
			return &os.PathError{Op: "rename", Path: src, Err: os.ErrNotExist}
		}

		for i := range moves {
			m := &moves[i]
			if err := b.setEntry(txn, m.newPath, &m.meta, m.data); err != nil {
				return err
			}
			if err := txn.Delete(metaKey(m.oldPath)); err != nil {
				return err
			}
			if !m.meta.IsDir {
				if err := txn.Delete(contentKey(m.oldPath)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (b *BadgerFileSystem) Delete(ctx context.Context, path string, recursive bool) error {
	key := normalize(path)

	return b.db.Update(func(txn *badger.Txn) error {
		collect := func() []string {
			it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
			defer it.Close()

			var targets []string
			prefix := []byte(metaPrefix + key)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				p := strings.TrimPrefix(string(it.Item().Key()), metaPrefix)
				if p == key || strings.HasPrefix(p, key+"/") {
					targets = append(targets, p)
				}
			}
			return targets
		}

		targets := collect()
		if len(targets) == 0 {
			return &os.PathError{Op: "delete", Path: path, Err: os.ErrNotExist}
		}
		if len(targets) > 1 && !recursive {
			return &os.PathError{Op: "delete", Path: path, Err: fmt.Errorf("directory not empty")}
		}

		for _, p := range targets {
			if err := txn.Delete(metaKey(p)); err != nil {
				return err
			}
			if err := txn.Delete(contentKey(p)); err != nil && err != badger.ErrKeyNotFound {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerFileSystem) Stat(ctx context.Context, path string) (*driver.FileInfo, error) {
	key := normalize(path)

	var info *driver.FileInfo
	err := b.db.View(func(txn *badger.Txn) error {
		meta, err := b.getMeta(txn, key)
		if err == nil {
			info = toFileInfo(key, meta)
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		// implicit directory check
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()
		prefix := []byte(metaPrefix + key + "/")
		it.Seek(prefix)
		if it.ValidForPrefix(prefix) {
			info = &driver.FileInfo{Path: key, IsDir: true, Mode: 0755, ModTime: time.Now()}
			return nil
		}
		return &os.PathError{Op: "stat", Path: path, Err: os.ErrNotExist}
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (b *BadgerFileSystem) List(ctx context.Context, path string) ([]*driver.FileInfo, error) {
	key := normalize(path)
	prefix := key + "/"

	seen := make(map[string]*driver.FileInfo)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		scan := []byte(metaPrefix + prefix)
		for it.Seek(scan); it.ValidForPrefix(scan); it.Next() {
			item := it.Item()
			p := strings.TrimPrefix(string(item.Key()), metaPrefix)
			rest := p[len(prefix):]
			if idx := strings.Index(rest, "/"); idx >= 0 {
				child := prefix + rest[:idx]
				if _, ok := seen[child]; !ok {
					seen[child] = &driver.FileInfo{
						Path: child, IsDir: true, Mode: 0755, ModTime: time.Now(),
					}
				}
				continue
			}
			var meta entryMeta
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				return err
			}
			seen[p] = toFileInfo(p, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	infos := make([]*driver.FileInfo, 0, len(seen))
	for _, info := range seen {
		infos = append(infos, info)
	}
	return infos, nil
}

func (b *BadgerFileSystem) MkdirAll(ctx context.Context, path string) error {
	key := normalize(path)
	return b.db.Update(func(txn *badger.Txn) error {
		meta := &entryMeta{IsDir: true, Mode: 0755, ModTime: time.Now()}
		return b.setEntry(txn, key, meta, nil)
	})
}

func (b *BadgerFileSystem) DefaultReplication() uint32 { return 1 }

func (b *BadgerFileSystem) DefaultBlockSize() int64 { return defaultBlockSize }

func (b *BadgerFileSystem) SetWorkingDirectory(path string) error { return nil }

// Close closes the underlying database.
func (b *BadgerFileSystem) Close() error {
	return b.db.Close()
}

func toFileInfo(path string, meta *entryMeta) *driver.FileInfo {
	info := &driver.FileInfo{
		Path:    path,
		IsDir:   meta.IsDir,
		ModTime: meta.ModTime,
		Mode:    meta.Mode,
	}
	if !meta.IsDir {
		info.Size = meta.Size
		info.Replication = 1
		info.BlockSize = defaultBlockSize
	}
	return info
}

// badgerWriter buffers writes and commits the entry on Close.
type badgerWriter struct {
	fs     *BadgerFileSystem
	path   string
	buf    []byte
	closed bool
}

func (w *badgerWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, os.ErrClosed
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *badgerWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	return w.fs.db.Update(func(txn *badger.Txn) error {
		meta := &entryMeta{
			Size:    int64(len(w.buf)),
			Mode:    0644,
			ModTime: time.Now(),
		}
		return w.fs.setEntry(txn, w.path, meta, w.buf)
	})
}
