package proxy

import (
	"testing"

	"github.com/filesetfs/filesetfs/pkg/catalog"
)

func TestExtractIdentifier_WithoutScheme(t *testing.T) {
	ident, err := extractIdentifier("tenant1", "/sales/events/clicks/year=2024/part-0")
	if err != nil {
		t.Fatalf("Expected identifier, got error: %v", err)
	}

	want := catalog.ResourceIdentifier{
		Tenant:  "tenant1",
		Catalog: "sales",
		Schema:  "events",
		Fileset: "clicks",
	}
	if ident != want {
		t.Errorf("Expected %v, got %v", want, ident)
	}
}

func TestExtractIdentifier_WithScheme(t *testing.T) {
	ident, err := extractIdentifier("tenant1", "fileset://vfs/sales/events/clicks/part-0")
	if err != nil {
		t.Fatalf("Expected identifier, got error: %v", err)
	}

	if ident.Catalog != "sales" || ident.Schema != "events" || ident.Fileset != "clicks" {
		t.Errorf("Unexpected identifier: %v", ident)
	}
}

func TestExtractIdentifier_ExactlyThreeSegments(t *testing.T) {
	// A path naming only the fileset root is valid, with and without a
	// trailing slash.
	for _, path := range []string{"/a/b/c", "/a/b/c/", "fileset://vfs/a/b/c"} {
		ident, err := extractIdentifier("t", path)
		if err != nil {
			t.Errorf("Expected %q to parse, got error: %v", path, err)
			continue
		}
		if ident.Fileset != "c" {
			t.Errorf("Expected fileset 'c' for %q, got %q", path, ident.Fileset)
		}
	}
}

func TestExtractIdentifier_Invalid(t *testing.T) {
	invalid := []string{
		"",
		"   ",
		"/",
		"/catalog",
		"/catalog/schema",
		"/catalog//fileset",
		"catalog/schema/fileset",
		"fileset://vfs",
		"fileset://vfs/catalog/schema",
		"s3://bucket/key",
	}

	for _, path := range invalid {
		if _, err := extractIdentifier("t", path); err == nil {
			t.Errorf("Expected format error for %q", path)
		} else if !IsCode(err, ErrFormat) {
			t.Errorf("Expected ErrFormat for %q, got: %v", path, err)
		}
	}
}

func TestSubPathOf_PreservesRemainder(t *testing.T) {
	ident := catalog.ResourceIdentifier{Tenant: "t", Catalog: "a", Schema: "b", Fileset: "c"}

	cases := []struct {
		path string
		want string
	}{
		{"/a/b/c", ""},
		{"/a/b/c/", "/"},
		{"/a/b/c/data/part-0", "/data/part-0"},
		{"fileset://vfs/a/b/c/data", "/data"},
	}

	for _, tc := range cases {
		if got := subPathOf(ident, tc.path); got != tc.want {
			t.Errorf("subPathOf(%q): expected %q, got %q", tc.path, tc.want, got)
		}
	}
}

func TestVirtualPrefixOf_MirrorsCallerForm(t *testing.T) {
	ident := catalog.ResourceIdentifier{Tenant: "t", Catalog: "a", Schema: "b", Fileset: "c"}

	if got := virtualPrefixOf(ident, false); got != "/a/b/c" {
		t.Errorf("Expected /a/b/c, got %q", got)
	}
	if got := virtualPrefixOf(ident, true); got != "fileset://vfs/a/b/c" {
		t.Errorf("Expected fileset://vfs/a/b/c, got %q", got)
	}
}
