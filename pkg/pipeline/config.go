package pipeline

import (
	"time"

	"github.com/edgar-tools/bulkfetch/pkg/fetch"
)

// DefaultUserAgent identifies the pipeline when the caller supplies no
// headers of their own.
const DefaultUserAgent = "bulkfetch/1.0"

// Transform converts a downloaded payload before it is written to disk.
// Transform workers share one function, so it must be safe for
// concurrent use.
type Transform func([]byte) ([]byte, error)

// Identity returns the payload unchanged. It is the default transform.
func Identity(payload []byte) ([]byte, error) {
	return payload, nil
}

// Config holds the pipeline configuration for one batch of URLs.
type Config struct {
	// URLs to download. Required.
	URLs []string

	// Dir receives the downloaded files, the run archive, and the
	// failure log. Created if missing.
	Dir string

	// ArchivePrefix names the run archive <prefix>.tar.gz.
	ArchivePrefix string

	// Transform converts each payload before writing (default: Identity).
	Transform Transform

	// Headers are added to every request (default: a bulkfetch User-Agent).
	Headers map[string]string

	// RateLimit is the global request ceiling in requests per second,
	// shared by all fetch workers (default: 10).
	RateLimit float64

	// FetchConcurrency is the number of download workers (default: 8).
	FetchConcurrency int

	// TransformWorkers is the number of transform workers
	// (default: runtime.NumCPU()).
	TransformWorkers int

	// QueueCapacity bounds the fetch-to-transform handoff queue. A full
	// queue backpressures the fetch workers (default: 2 * FetchConcurrency).
	QueueCapacity int

	// Timeout bounds each download attempt (default: 30s).
	Timeout time.Duration

	// Retry policy for failed attempts (default: 3 attempts, 1s backoff base).
	Retry fetch.RetryConfig
}
