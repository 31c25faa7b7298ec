package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransformFailures tracks payloads kept raw because their transform errored
	TransformFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulkfetch_transform_failures_total",
			Help: "Total number of payloads kept raw after a transform error",
		},
	)

	// TransformDuration tracks per-payload transform time
	TransformDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bulkfetch_transform_duration_seconds",
			Help:    "Time spent transforming a single payload",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// ProcessedBytes tracks bytes written to disk after transform
	ProcessedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulkfetch_bytes_processed_total",
			Help: "Total bytes written to disk after transform",
		},
	)
)
