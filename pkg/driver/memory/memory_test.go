package memory

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
)

func write(t *testing.T, fs *MemoryFileSystem, path, content string) {
	t.Helper()
	w, err := fs.Create(context.Background(), path, true)
	if err != nil {
		t.Fatalf("Create(%s): %v", path, err)
	}
	if _, err := io.WriteString(w, content); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func read(t *testing.T, fs *MemoryFileSystem, path string) string {
	t.Helper()
	r, err := fs.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open(%s): %v", path, err)
	}
	defer func() { _ = r.Close() }()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestMemory_WriteReadRoundTrip(t *testing.T) {
	fs := New()
	write(t, fs, "mem://b/dir/file", "hello")

	if got := read(t, fs, "mem://b/dir/file"); got != "hello" {
		t.Errorf("Expected 'hello', got %q", got)
	}
}

func TestMemory_ContentVisibleOnlyAfterClose(t *testing.T) {
	fs := New()
	ctx := context.Background()

	w, err := fs.Create(ctx, "mem://b/file", false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(w, "partial"); err != nil {
		t.Fatal(err)
	}

	if _, err := fs.Open(ctx, "mem://b/file"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist before writer close, got: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if got := read(t, fs, "mem://b/file"); got != "partial" {
		t.Errorf("Expected content after close, got %q", got)
	}
}

func TestMemory_CreateWithoutOverwriteRejectsExisting(t *testing.T) {
	fs := New()
	write(t, fs, "mem://b/file", "v1")

	if _, err := fs.Create(context.Background(), "mem://b/file", false); !errors.Is(err, os.ErrExist) {
		t.Errorf("Expected ErrExist, got: %v", err)
	}

	w, err := fs.Create(context.Background(), "mem://b/file", true)
	if err != nil {
		t.Fatalf("Expected overwrite to succeed, got: %v", err)
	}
	_, _ = io.WriteString(w, "v2")
	_ = w.Close()

	if got := read(t, fs, "mem://b/file"); got != "v2" {
		t.Errorf("Expected 'v2', got %q", got)
	}
}

func TestMemory_AppendRequiresExisting(t *testing.T) {
	fs := New()
	ctx := context.Background()

	if _, err := fs.Append(ctx, "mem://b/missing"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected ErrNotExist, got: %v", err)
	}

	write(t, fs, "mem://b/log", "a")
	w, err := fs.Append(ctx, "mem://b/log")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.WriteString(w, "b")
	_ = w.Close()

	if got := read(t, fs, "mem://b/log"); got != "ab" {
		t.Errorf("Expected 'ab', got %q", got)
	}
}

func TestMemory_RenameMovesSubtree(t *testing.T) {
	fs := New()
	ctx := context.Background()

	write(t, fs, "mem://b/src/a", "1")
	write(t, fs, "mem://b/src/deep/b", "2")

	if err := fs.Rename(ctx, "mem://b/src", "mem://b/dst"); err != nil {
		t.Fatal(err)
	}

	if got := read(t, fs, "mem://b/dst/a"); got != "1" {
		t.Errorf("Expected moved file, got %q", got)
	}
	if got := read(t, fs, "mem://b/dst/deep/b"); got != "2" {
		t.Errorf("Expected moved nested file, got %q", got)
	}
	if _, err := fs.Stat(ctx, "mem://b/src/a"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected source gone, got: %v", err)
	}
}

func TestMemory_DeleteNonRecursiveRejectsNonEmpty(t *testing.T) {
	fs := New()
	ctx := context.Background()
	write(t, fs, "mem://b/dir/file", "x")

	if err := fs.Delete(ctx, "mem://b/dir", false); err == nil {
		t.Fatal("Expected error deleting non-empty directory without recursive")
	}
	if err := fs.Delete(ctx, "mem://b/dir", true); err != nil {
		t.Fatalf("Expected recursive delete to succeed, got: %v", err)
	}
	if _, err := fs.Stat(ctx, "mem://b/dir/file"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected file gone, got: %v", err)
	}
}

func TestMemory_StatImplicitDirectory(t *testing.T) {
	fs := New()
	write(t, fs, "mem://b/dir/sub/file", "x")

	info, err := fs.Stat(context.Background(), "mem://b/dir")
	if err != nil {
		t.Fatalf("Expected implicit directory, got: %v", err)
	}
	if !info.IsDir {
		t.Error("Expected IsDir for implicit directory")
	}
}

func TestMemory_ListCollapsesDeepEntries(t *testing.T) {
	fs := New()
	write(t, fs, "mem://b/dir/a", "1")
	write(t, fs, "mem://b/dir/sub/deep", "2")

	infos, err := fs.List(context.Background(), "mem://b/dir")
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(infos))
	}

	// Sorted by path: a before sub
	if infos[0].Path != "mem://b/dir/a" || infos[0].IsDir {
		t.Errorf("Unexpected first entry: %+v", infos[0])
	}
	if infos[1].Path != "mem://b/dir/sub" || !infos[1].IsDir {
		t.Errorf("Expected implicit child directory, got: %+v", infos[1])
	}
}

func TestMemory_ListMissingPath(t *testing.T) {
	fs := New()
	if _, err := fs.List(context.Background(), "mem://b/nope"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected ErrNotExist, got: %v", err)
	}
}

func TestMemory_TrailingSlashNormalized(t *testing.T) {
	fs := New()
	write(t, fs, "mem://b/file", "x")

	if got := read(t, fs, "mem://b/file/"); got != "x" {
		t.Errorf("Expected trailing slash to address the same entry, got %q", got)
	}
}
