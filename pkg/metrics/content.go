package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ContentMetrics tracks content store traffic: bytes encoded/decoded and
// chunk-level deduplication hits.
//
// A nil *ContentMetrics is valid and all methods are no-ops.
type ContentMetrics struct {
	encodedBytes prometheus.Counter
	decodedBytes prometheus.Counter
	chunksStored prometheus.Counter
	chunksDeduped prometheus.Counter
}

// NewContentMetrics creates content store metrics registered with the
// global registry. Returns nil (no-op) if InitRegistry was never called.
func NewContentMetrics() *ContentMetrics {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}

	m := &ContentMetrics{
		encodedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vaultfs",
			Subsystem: "content",
			Name:      "encoded_bytes_total",
			Help:      "Logical bytes encoded into content references.",
		}),
		decodedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vaultfs",
			Subsystem: "content",
			Name:      "decoded_bytes_total",
			Help:      "Logical bytes decoded from content references.",
		}),
		chunksStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vaultfs",
			Subsystem: "content",
			Name:      "chunks_stored_total",
			Help:      "Chunks written to the backing store.",
		}),
		chunksDeduped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vaultfs",
			Subsystem: "content",
			Name:      "chunks_deduplicated_total",
			Help:      "Chunk writes skipped because the chunk already existed.",
		}),
	}

	reg.MustRegister(m.encodedBytes, m.decodedBytes, m.chunksStored, m.chunksDeduped)
	return m
}

// AddEncodedBytes records logical bytes turned into a reference.
func (m *ContentMetrics) AddEncodedBytes(n uint64) {
	if m == nil {
		return
	}
	m.encodedBytes.Add(float64(n))
}

// AddDecodedBytes records logical bytes reconstructed from a reference.
func (m *ContentMetrics) AddDecodedBytes(n uint64) {
	if m == nil {
		return
	}
	m.decodedBytes.Add(float64(n))
}

// RecordChunkStored counts a chunk written to the backing store.
func (m *ContentMetrics) RecordChunkStored() {
	if m == nil {
		return
	}
	m.chunksStored.Inc()
}

// RecordChunkDeduplicated counts a chunk write skipped by deduplication.
func (m *ContentMetrics) RecordChunkDeduplicated() {
	if m == nil {
		return
	}
	m.chunksDeduped.Inc()
}
