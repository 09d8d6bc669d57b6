package proxy

import (
	"regexp"
	"strings"

	"github.com/filesetfs/filesetfs/pkg/catalog"
)

// SchemePrefix is the optional logical path prefix. Both of these
// address the same fileset:
//
//	fileset://vfs/sales/events/clicks/part-0
//	/sales/events/clicks/part-0
const SchemePrefix = "fileset://vfs"

// identifierPattern matches a logical path: the optional scheme prefix,
// then exactly three non-empty segments (catalog, schema, fileset), then
// any number of further segments forming the sub-path, with an optional
// trailing slash.
var identifierPattern = regexp.MustCompile(`^(?:fileset://vfs)?/([^/]+)/([^/]+)/([^/]+)(?:/[^/]+)*/?$`)

// extractIdentifier parses a logical path into the fileset identifier.
//
// Purely syntactic: no network access, no normalization beyond trailing
// slash handling in the pattern.
func extractIdentifier(tenant, path string) (catalog.ResourceIdentifier, error) {
	if strings.TrimSpace(path) == "" {
		return catalog.ResourceIdentifier{}, formatError("logical path must not be empty", path)
	}

	matches := identifierPattern.FindStringSubmatch(path)
	if matches == nil {
		return catalog.ResourceIdentifier{}, formatError("logical path does not contain a valid fileset identifier", path)
	}

	return catalog.ResourceIdentifier{
		Tenant:  tenant,
		Catalog: matches[1],
		Schema:  matches[2],
		Fileset: matches[3],
	}, nil
}

// subPathOf strips the identifying prefix (scheme prefix when present,
// plus the three identifying segments) from the logical path, preserving
// the remainder exactly, including a leading separator.
func subPathOf(ident catalog.ResourceIdentifier, path string) string {
	prefix := "/" + ident.Catalog + "/" + ident.Schema + "/" + ident.Fileset
	if strings.HasPrefix(path, SchemePrefix) {
		prefix = SchemePrefix + prefix
	}
	return path[len(prefix):]
}

// virtualPrefixOf builds the logical location of the fileset root,
// mirroring the form (with or without scheme prefix) the caller used.
func virtualPrefixOf(ident catalog.ResourceIdentifier, withScheme bool) string {
	prefix := "/" + ident.Catalog + "/" + ident.Schema + "/" + ident.Fileset
	if withScheme {
		return SchemePrefix + prefix
	}
	return prefix
}
