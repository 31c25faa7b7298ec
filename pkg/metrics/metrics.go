// Package metrics provides the centralized Prometheus metrics reference
// for the bulk downloader. All metrics are defined in their respective
// packages (ratelimit, fetch, pipeline, archive) to maintain modularity
// and avoid circular dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the downloader.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - bulkfetch_rate_limit_acquisitions_total (Counter): Grants issued by the limiter
//   - bulkfetch_rate_limit_wait_seconds (Histogram): Time callers spent waiting for a grant
//
// Request Metrics (pkg/fetch):
//   - bulkfetch_requests_total{status} (Counter): HTTP attempts by status code or failure kind
//   - bulkfetch_request_duration_seconds (Histogram): Per-attempt request duration
//   - bulkfetch_bytes_downloaded_total (Counter): Raw payload bytes fetched
//
// Retry Metrics (pkg/fetch):
//   - bulkfetch_retries_total{error_class} (Counter): Retried attempts by error class
//   - bulkfetch_retry_backoff_seconds (Histogram): Backoff delay before each retry
//   - bulkfetch_retry_exhausted_total{error_class} (Counter): Downloads that failed every attempt
//
// Pipeline Metrics (pkg/pipeline):
//   - bulkfetch_transform_failures_total (Counter): Transforms that returned an error
//   - bulkfetch_transform_duration_seconds (Histogram): Transform duration
//   - bulkfetch_bytes_processed_total (Counter): Transformed bytes written to disk
//
// Archive Metrics (pkg/archive):
//   - bulkfetch_archive_files_total (Counter): Files bundled into run archives
//   - bulkfetch_archive_bytes_total (Counter): Compressed archive bytes written
//
// Example Prometheus Queries:
//
//   # Download Throughput (bytes/s)
//   rate(bulkfetch_bytes_downloaded_total[5m])
//
//   # Request Failure Rate
//   sum(rate(bulkfetch_requests_total{status!~"2.."}[5m])) /
//   sum(rate(bulkfetch_requests_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(bulkfetch_request_duration_seconds_bucket[5m]))
//
//   # Time Spent Waiting on the Rate Limiter
//   rate(bulkfetch_rate_limit_wait_seconds_sum[5m])
//
//   # Exhausted Retries by Error Class
//   rate(bulkfetch_retry_exhausted_total[5m])
