package driver

import (
	"context"
	"fmt"
	"sync"
)

// Factory constructs a driver instance for one physical URI.
//
// The uri is the full physical location the first operation resolved to
// (e.g. "s3://bucket/catalog/schema/fileset/data"); factories typically
// only need its scheme and authority to set up a connection.
type Factory func(ctx context.Context, uri string) (FileSystem, error)

// Registry maps storage schemes to driver factories.
//
// The registry is populated once at startup from configuration and read
// concurrently by the proxy's filesystem cache on every cold miss.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for the given scheme.
// Returns an error if the scheme is already registered.
func (r *Registry) Register(scheme string, factory Factory) error {
	if scheme == "" {
		return fmt.Errorf("cannot register driver with empty scheme")
	}
	if factory == nil {
		return fmt.Errorf("cannot register nil driver factory for scheme %q", scheme)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[scheme]; exists {
		return fmt.Errorf("driver for scheme %q already registered", scheme)
	}

	r.factories[scheme] = factory
	return nil
}

// New constructs a driver for the given scheme and physical URI.
// Returns an error if no factory is registered for the scheme.
func (r *Registry) New(ctx context.Context, scheme, uri string) (FileSystem, error) {
	r.mu.RLock()
	factory, exists := r.factories[scheme]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("no driver registered for scheme %q", scheme)
	}
	return factory(ctx, uri)
}

// Schemes returns all registered scheme names.
// The returned slice is a copy and safe to modify.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemes := make([]string, 0, len(r.factories))
	for scheme := range r.factories {
		schemes = append(schemes, scheme)
	}
	return schemes
}
