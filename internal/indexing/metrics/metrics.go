package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesProcessed tracks frames finished by workers, by outcome (hashed, failed)
	FramesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framehash_frames_processed_total",
			Help: "Total number of frames processed",
		},
		[]string{"outcome"},
	)

	// FetchFailures tracks frame fetches that failed after retries
	FetchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framehash_fetch_failures_total",
			Help: "Total number of frame fetches that failed",
		},
	)

	// FrameLatency tracks fetch plus compute time for one frame
	FrameLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "framehash_frame_latency_seconds",
			Help:    "Time to fetch and fingerprint one frame",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RetryAttempts tracks retries taken, by error kind
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framehash_retry_attempts_total",
			Help: "Total number of retries taken",
		},
		[]string{"kind"},
	)

	// RetryQuotaRemaining tracks the tokens left in the most recently updated quota
	RetryQuotaRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "framehash_retry_quota_remaining",
			Help: "Retry tokens remaining",
		},
	)

	// RetryExhausted tracks calls that stopped retrying, by reason (attempts, quota)
	RetryExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framehash_retry_exhausted_total",
			Help: "Total number of calls that ran out of retries",
		},
		[]string{"reason"},
	)

	// PassDuration tracks wall time of one processing pass
	PassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "framehash_pass_duration_seconds",
			Help:    "Processing pass duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	// PassesTotal tracks passes by result (completed, partial, failed)
	PassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framehash_passes_total",
			Help: "Total number of processing passes",
		},
		[]string{"result"},
	)

	// ManifestProgress tracks the percentage of processed frames per manifest
	ManifestProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "framehash_manifest_progress_percent",
			Help: "Percentage of frames processed in a manifest",
		},
		[]string{"manifest"},
	)

	// DBConnectionPoolUsage tracks the percentage of open database connections
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "framehash_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
