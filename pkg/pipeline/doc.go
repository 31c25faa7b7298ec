// Package pipeline orchestrates bulk downloads as a two-stage worker
// pipeline.
//
// The first stage is a pool of fetch workers that download URLs through
// a shared rate limiter with retries. The second stage is a pool of
// transform workers that post-process each payload and write it to
// disk. The stages are joined by one bounded channel, so a slow
// transform stage backpressures the fetchers instead of buffering every
// payload in memory. After both stages drain, the run bundles all
// written files into a tar.gz archive and logs every failed URL to a
// timestamped failure log.
//
// # Basic Usage
//
//	p, err := pipeline.New(pipeline.Config{
//		URLs:          urls,
//		Dir:           "downloads",
//		ArchivePrefix: "filings_2024Q1",
//		Headers:       edgar.Headers("research@example.com"),
//		RateLimit:     edgar.DefaultRateLimit,
//	})
//	if err != nil {
//		return err
//	}
//
//	result, err := p.Run(ctx)
//	if err != nil {
//		return err
//	}
//
//	fmt.Printf("downloaded %d of %d files to %s\n",
//		result.Stats.Succeeded, result.Stats.Total, result.ArchivePath)
//
// # Transforms
//
// Each payload passes through a Transform before it is written. The
// default is Identity. A custom transform receives the raw download
// and returns the bytes to persist:
//
//	cfg.Transform = func(data []byte) ([]byte, error) {
//		return bytes.ToUpper(data), nil
//	}
//
// A failing transform does not lose the download: the raw payload is
// written instead and the URL is counted separately in
// Stats.TransformFailed.
//
// # Failure Handling
//
// URLs that fail all retry attempts, and files the filesystem rejects,
// are collected and written to failed_downloads_<timestamp>.log in the
// download directory. The log is only created when at least one URL
// failed. Result.Failures carries the same records programmatically.
//
// Cancelling the run context stops fetch workers from starting new
// downloads, but payloads already fetched still flow through the
// transform stage, and the archive, failure log, and summary are still
// produced.
//
// # Metrics
//
// The pipeline and its stages export Prometheus metrics:
//
//   - bulkfetch_requests_total{status} - HTTP attempts by outcome
//   - bulkfetch_request_duration_seconds - Per-attempt request latency
//   - bulkfetch_bytes_downloaded_total - Raw payload bytes fetched
//   - bulkfetch_retries_total{error_class} - Retried attempts
//   - bulkfetch_retry_exhausted_total{error_class} - URLs that failed all attempts
//   - bulkfetch_rate_limit_wait_seconds - Time spent waiting for the limiter
//   - bulkfetch_transform_failures_total - Transforms that returned an error
//   - bulkfetch_transform_duration_seconds - Transform latency
//   - bulkfetch_bytes_processed_total - Transformed bytes written
//   - bulkfetch_archive_files_total - Files bundled into archives
//   - bulkfetch_archive_bytes_total - Compressed archive bytes
package pipeline
