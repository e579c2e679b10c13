package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheOperationsTotal counts get/set/delete operations per store kind
	CacheOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_cache_operations_total",
		Help: "The total number of store operations",
	}, []string{"store", "type", "status"})

	// CacheEvictionsTotal counts entries removed by expiry or capacity policy
	CacheEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_cache_evictions_total",
		Help: "The total number of entries evicted, by reason",
	}, []string{"store", "reason"})

	// SweepsTotal counts TTL sweeps
	SweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_sweeps_total",
		Help: "The total number of TTL sweeps",
	}, []string{"store"})

	// CleanupActionsTotal counts executed cleanup actions
	CleanupActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_cleanup_actions_total",
		Help: "The total number of cleanup actions run",
	}, []string{"status"})

	// LeakReportsTotal counts emitted leak reports
	LeakReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_leak_reports_total",
		Help: "The total number of leak reports",
	}, []string{"category", "severity"})

	// LiveScopes tracks scopes that have not been torn down
	LiveScopes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lifecycle_live_scopes",
		Help: "The number of scopes not yet torn down",
	})

	// HeapDeltaBytes is the latest heap delta seen by a leak detector
	HeapDeltaBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lifecycle_heap_delta_bytes",
		Help: "Heap growth since the start of the latest monitoring window",
	})

	// SweepDurationSeconds measures sweep latency
	SweepDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lifecycle_sweep_duration_seconds",
		Help:    "The latency of TTL sweeps",
		Buckets: prometheus.DefBuckets,
	}, []string{"store"})
)
