package proxy

import (
	"testing"
	"time"

	"github.com/filesetfs/filesetfs/pkg/driver"
)

func TestToVirtualPath_ReplacesStorageLocationPrefix(t *testing.T) {
	got, err := toVirtualPath(
		"s3://bucket/data/clicks/year=2024/part-0",
		"s3://bucket/data/clicks",
		"/sales/events/clicks")
	if err != nil {
		t.Fatalf("Expected translation, got error: %v", err)
	}
	if got != "/sales/events/clicks/year=2024/part-0" {
		t.Errorf("Unexpected virtual path: %q", got)
	}
}

func TestToVirtualPath_FilesetRoot(t *testing.T) {
	got, err := toVirtualPath("s3://bucket/data/clicks", "s3://bucket/data/clicks", "/a/b/c")
	if err != nil {
		t.Fatalf("Expected translation, got error: %v", err)
	}
	if got != "/a/b/c" {
		t.Errorf("Unexpected virtual path: %q", got)
	}
}

func TestToVirtualPath_ForeignPathRejected(t *testing.T) {
	// A physical path outside the fileset's storage location must never
	// be coerced into logical form.
	_, err := toVirtualPath("s3://other-bucket/elsewhere/f", "s3://bucket/data/clicks", "/a/b/c")
	if err == nil {
		t.Fatal("Expected validation error for foreign physical path")
	}
	if !IsCode(err, ErrValidation) {
		t.Errorf("Expected ErrValidation, got: %v", err)
	}
}

func TestToVirtualFileInfo_RewritesOnlyPath(t *testing.T) {
	modTime := time.Now()
	physical := &driver.FileInfo{
		Path:        "file:///srv/data/clicks/part-0",
		Size:        4096,
		IsDir:       false,
		ModTime:     modTime,
		Mode:        0644,
		Replication: 3,
		BlockSize:   1 << 20,
	}

	virtual, err := toVirtualFileInfo(physical, "file:///srv/data/clicks", "/a/b/c")
	if err != nil {
		t.Fatalf("Expected translation, got error: %v", err)
	}

	if virtual.Path != "/a/b/c/part-0" {
		t.Errorf("Unexpected virtual path: %q", virtual.Path)
	}
	if virtual.Size != 4096 || virtual.IsDir || !virtual.ModTime.Equal(modTime) ||
		virtual.Mode != 0644 || virtual.Replication != 3 || virtual.BlockSize != 1<<20 {
		t.Errorf("Expected all non-path fields preserved, got %+v", virtual)
	}

	// The original must not be mutated.
	if physical.Path != "file:///srv/data/clicks/part-0" {
		t.Errorf("Physical info mutated: %q", physical.Path)
	}
}
