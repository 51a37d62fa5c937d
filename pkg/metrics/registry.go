// Package metrics provides Prometheus metrics collection for VaultFS
// components.
//
// All metrics are optional - if the registry is not initialized, components
// receive no-op implementations with zero overhead. This allows the library
// to run with or without metrics collection enabled.
//
// Usage:
//
//	// Initialize global registry (typically in the embedding application)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	dirMetrics := metrics.NewDirectoryMetrics()
//	contentMetrics := metrics.NewContentMetrics()
//
//	// Or pass nil for no-op behavior
//	store := directory.NewStore(backend, codec, nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry for all VaultFS metrics.
	// Protected by registryOnce for write-once, read-many access.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// This must be called before creating any metrics instances. It is safe to
// call multiple times - subsequent calls are ignored.
//
// If not called, GetRegistry returns nil and all metrics constructors
// return no-op implementations.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry, or nil if
// InitRegistry was never called. The embedding application exposes this
// through its own /metrics endpoint; this library has no HTTP surface.
func GetRegistry() *prometheus.Registry {
	return registry
}
