package catalog

import "fmt"

// ResourceIdentifier uniquely names one managed fileset within a tenant.
//
// The identifier is structural: two identifiers are equal when all four
// components are equal. It is used as a map key, so it must stay a plain
// comparable value type.
type ResourceIdentifier struct {
	Tenant  string
	Catalog string
	Schema  string
	Fileset string
}

// CatalogIdentifier returns the catalog-level subset of the identifier,
// used as the key for catalog handle caching.
func (r ResourceIdentifier) CatalogIdentifier() ResourceIdentifier {
	return ResourceIdentifier{Tenant: r.Tenant, Catalog: r.Catalog}
}

func (r ResourceIdentifier) String() string {
	if r.Schema == "" && r.Fileset == "" {
		return fmt.Sprintf("%s.%s", r.Tenant, r.Catalog)
	}
	return fmt.Sprintf("%s.%s.%s.%s", r.Tenant, r.Catalog, r.Schema, r.Fileset)
}

// Fileset describes a registered fileset as reported by the metadata service.
type Fileset struct {
	// Name is the fileset name within its schema
	Name string `json:"name"`

	// StorageLocation is the physical root the fileset is mounted on,
	// e.g. "s3://bucket/catalog/schema/fileset"
	StorageLocation string `json:"storageLocation"`

	// Comment is the optional registered description
	Comment string `json:"comment,omitempty"`

	// Properties carries service-defined fileset properties
	Properties map[string]string `json:"properties,omitempty"`
}

// FilesetContext is the per-operation resolution result: the physical path
// the operation should run against, plus the fileset it belongs to.
//
// Contexts are produced fresh for every operation and never cached, so
// authorization and location data stay current even though catalog handle
// lookups are cached.
type FilesetContext struct {
	// Fileset is the resolved fileset metadata
	Fileset Fileset `json:"fileset"`

	// ActualPath is the fully resolved physical path for the operation
	ActualPath string `json:"actualPath"`
}

// Operation identifies the kind of data operation being resolved.
// The metadata service may apply per-operation authorization, so every
// proxy call reports its operation kind when resolving a context.
type Operation string

const (
	OpListStatus            Operation = "LIST_STATUS"
	OpGetFileStatus         Operation = "GET_FILE_STATUS"
	OpExists                Operation = "EXISTS"
	OpRename                Operation = "RENAME"
	OpAppend                Operation = "APPEND"
	OpCreate                Operation = "CREATE"
	OpDelete                Operation = "DELETE"
	OpOpen                  Operation = "OPEN"
	OpMkdirs                Operation = "MKDIRS"
	OpGetDefaultReplication Operation = "GET_DEFAULT_REPLICATION"
	OpGetDefaultBlockSize   Operation = "GET_DEFAULT_BLOCK_SIZE"
	OpSetWorkingDir         Operation = "SET_WORKING_DIR"
	OpCopyFile              Operation = "COPY_FILE"
	OpCatFile               Operation = "CAT_FILE"
	OpUnknown               Operation = "UNKNOWN"
)
