// Package catalog defines the boundary to the remote metadata service.
//
// The service owns catalogs, schemas and filesets, and resolves logical
// sub-paths to physical storage paths per operation. This package exposes
// the two operations the proxy needs (load a catalog handle, resolve a
// fileset context) behind small interfaces so unit tests can substitute
// an in-memory implementation without a network dependency.
package catalog

import (
	"context"
	"fmt"
	"strings"
)

// Client is a connected metadata service client bound to one tenant.
//
// Implementations must be safe for concurrent use. Close releases the
// underlying connection; operations after Close return errors.
type Client interface {
	// LoadCatalog fetches a handle for the named catalog.
	//
	// Returns a ClientError with ErrNotFound if the catalog does not
	// exist. The returned handle is safe to share across goroutines and
	// across filesets within the catalog.
	LoadCatalog(ctx context.Context, name string) (CatalogHandle, error)

	// Close releases the client connection. Safe to call more than once.
	Close() error
}

// CatalogHandle is a proxy object bound to one catalog, capable of
// resolving fileset contexts. Handles are cheap to use but expensive to
// obtain (one network round trip), which is why the proxy caches them.
type CatalogHandle interface {
	// ResolveContext resolves the physical path for one data operation
	// on one fileset. The result is produced fresh per call.
	//
	// Returns a ClientError with ErrNotFound if the fileset does not
	// exist, or ErrValidation if the service rejects the request.
	ResolveContext(ctx context.Context, ident ResourceIdentifier, op Operation, subPath string) (*FilesetContext, error)
}

// AuthType selects the credential strategy used when connecting.
type AuthType string

const (
	// AuthSimple sends no credential; the service trusts the tenant name.
	AuthSimple AuthType = "simple"

	// AuthToken sends a static bearer token with every request.
	AuthToken AuthType = "token"

	// AuthKeytab authenticates as a principal backed by a keytab file
	// (or the ambient ticket cache when no file is configured).
	AuthKeytab AuthType = "keytab"
)

// ClientConfig carries everything needed to connect to the metadata service.
type ClientConfig struct {
	// ServerURI is the metadata service base address, e.g. "http://meta:8090"
	ServerURI string

	// Tenant is the tenant (metalake) all requests are scoped to
	Tenant string

	// Auth selects the credential strategy. Empty means AuthSimple.
	Auth AuthType

	// Token is the bearer token. Required when Auth is AuthToken.
	Token string

	// Principal is the client principal. Required when Auth is AuthKeytab.
	Principal string

	// KeytabPath is the keytab file location. Optional: when empty the
	// ambient ticket cache is used.
	KeytabPath string

	// RequestsPerSecond throttles outbound requests to the service.
	// Zero means unlimited.
	RequestsPerSecond uint

	// RequestBurst is the throttle burst capacity. Ignored when
	// RequestsPerSecond is zero.
	RequestBurst uint
}

// Validate checks that the configuration is complete for its strategy.
//
// Missing required parameters are configuration errors raised here, at
// connect time, not at first use.
func (c *ClientConfig) Validate() error {
	if strings.TrimSpace(c.ServerURI) == "" {
		return &ClientError{Code: ErrConfiguration, Message: "metadata server URI is not set"}
	}
	if strings.TrimSpace(c.Tenant) == "" {
		return &ClientError{Code: ErrConfiguration, Message: "tenant name is not set"}
	}

	switch c.Auth {
	case "", AuthSimple:
		// no parameters required
	case AuthToken:
		if strings.TrimSpace(c.Token) == "" {
			return &ClientError{
				Code:    ErrConfiguration,
				Message: "token must be set when auth type is \"token\"",
			}
		}
	case AuthKeytab:
		if strings.TrimSpace(c.Principal) == "" {
			return &ClientError{
				Code:    ErrConfiguration,
				Message: "principal must be set when auth type is \"keytab\"",
			}
		}
	default:
		return &ClientError{
			Code:    ErrConfiguration,
			Message: fmt.Sprintf("unsupported auth type: %q", c.Auth),
		}
	}

	return nil
}

// Connect validates the configuration and returns a connected client.
func Connect(cfg ClientConfig) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newRESTClient(cfg)
}
