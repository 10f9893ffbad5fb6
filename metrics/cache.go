package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheReadStatus is the outcome of a local cache read.
type CacheReadStatus string

const (
	CacheReadStatusHit      CacheReadStatus = "hit"
	CacheReadStatusMiss     CacheReadStatus = "miss"
	CacheReadStatusBadValue CacheReadStatus = "bad_value" // Value in cache did not deserialize.
	CacheReadStatusError    CacheReadStatus = "error"     // Other internal error reading from cache.
)

// CacheMetrics instruments reads of the local caches (TTL and persistent).
type CacheMetrics struct {
	reads *prometheus.CounterVec
}

// NewCacheMetrics creates Prometheus metric instrumentation for cache reads.
func NewCacheMetrics(pkg string) *CacheMetrics {
	m := &CacheMetrics{
		reads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_cache_reads", pkg),
				Help: "Local cache reads, partitioned by cache name and outcome.",
			},
			[]string{"cache", "status"},
		),
	}
	prometheus.MustRegister(m.reads)
	return m
}

// CacheReads returns the counter for reads of the named cache with the given outcome.
func (m *CacheMetrics) CacheReads(cache string, status CacheReadStatus) prometheus.Counter {
	return m.reads.WithLabelValues(cache, string(status))
}
