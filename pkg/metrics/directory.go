package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DirectoryMetrics tracks directory store activity: persists by outcome and
// how far upward propagation had to walk.
//
// A nil *DirectoryMetrics is valid and all methods are no-ops, so callers
// can thread the value through unconditionally.
type DirectoryMetrics struct {
	persistsTotal    *prometheus.CounterVec
	propagationDepth prometheus.Histogram
	versionsFetched  prometheus.Counter
}

// NewDirectoryMetrics creates directory store metrics registered with the
// global registry. Returns nil (no-op) if InitRegistry was never called.
func NewDirectoryMetrics() *DirectoryMetrics {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}

	m := &DirectoryMetrics{
		persistsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaultfs",
			Subsystem: "directory",
			Name:      "persists_total",
			Help:      "Directory snapshot persists by result (ok, conflict, error).",
		}, []string{"result"}),
		propagationDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vaultfs",
			Subsystem: "directory",
			Name:      "propagation_depth",
			Help:      "Number of ancestor listings re-persisted per persist call.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		}),
		versionsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vaultfs",
			Subsystem: "directory",
			Name:      "versions_fetched_total",
			Help:      "Historical snapshots fetched from the backend.",
		}),
	}

	reg.MustRegister(m.persistsTotal, m.propagationDepth, m.versionsFetched)
	return m
}

// RecordPersist counts one persist attempt with its outcome label.
func (m *DirectoryMetrics) RecordPersist(result string) {
	if m == nil {
		return
	}
	m.persistsTotal.WithLabelValues(result).Inc()
}

// ObservePropagation records how many ancestors one persist re-persisted.
func (m *DirectoryMetrics) ObservePropagation(depth int) {
	if m == nil {
		return
	}
	m.propagationDepth.Observe(float64(depth))
}

// RecordVersionFetch counts one historical snapshot fetch.
func (m *DirectoryMetrics) RecordVersionFetch() {
	if m == nil {
		return
	}
	m.versionsFetched.Inc()
}
