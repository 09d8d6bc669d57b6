// Package metrics provides Prometheus metrics collection for FilesetFS.
//
// All metrics are optional: a nil *ProxyMetrics is a valid no-op
// receiver with zero overhead, so components take metrics without
// guarding every call site.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// registry is the global Prometheus registry for all FilesetFS metrics
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry. Safe to call
// multiple times; subsequent calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global registry, or nil when metrics are
// disabled (InitRegistry never called).
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether metrics collection is enabled.
func IsEnabled() bool {
	return GetRegistry() != nil
}

// ProxyMetrics tracks virtual filesystem proxy activity: operations by
// kind and cache behavior for the two proxy caches.
type ProxyMetrics struct {
	operationsTotal *prometheus.CounterVec
	operationErrors *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	cacheEvictions  *prometheus.CounterVec
}

// NewProxyMetrics creates proxy metrics registered on the global
// registry. Returns nil (the no-op instance) when metrics are disabled.
func NewProxyMetrics() *ProxyMetrics {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}

	return &ProxyMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filesetfs_operations_total",
				Help: "Total proxy operations by kind",
			},
			[]string{"operation"},
		),
		operationErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filesetfs_operation_errors_total",
				Help: "Failed proxy operations by kind",
			},
			[]string{"operation"},
		),
		cacheHits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filesetfs_cache_hits_total",
				Help: "Cache hits by cache (catalog, filesystem)",
			},
			[]string{"cache"},
		),
		cacheMisses: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filesetfs_cache_misses_total",
				Help: "Cache misses by cache (catalog, filesystem)",
			},
			[]string{"cache"},
		),
		cacheEvictions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filesetfs_cache_evictions_total",
				Help: "Cache evictions by cache (catalog, filesystem)",
			},
			[]string{"cache"},
		),
	}
}

// Operation records one proxy operation and whether it failed.
func (m *ProxyMetrics) Operation(kind string, err error) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(kind).Inc()
	if err != nil {
		m.operationErrors.WithLabelValues(kind).Inc()
	}
}

// CacheHit records a hit on the named cache.
func (m *ProxyMetrics) CacheHit(cache string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(cache).Inc()
}

// CacheMiss records a miss on the named cache.
func (m *ProxyMetrics) CacheMiss(cache string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// CacheEviction records an eviction from the named cache.
func (m *ProxyMetrics) CacheEviction(cache string) {
	if m == nil {
		return
	}
	m.cacheEvictions.WithLabelValues(cache).Inc()
}
