// Package stats aggregates download and transform counters for one
// pipeline run. Workers from both stages feed a single aggregator, so
// every counter lives behind one mutex and readers get consistent
// snapshots instead of field access.
package stats

import (
	"sync"
	"time"
)

// RunStats accumulates counters for one run. All methods are safe for
// concurrent use.
type RunStats struct {
	mu sync.Mutex

	total           int
	succeeded       int
	failed          int
	transformFailed int

	bytesDownloaded int64
	bytesProcessed  int64

	downloadTime time.Duration
	processTime  time.Duration

	started time.Time
}

// New creates an aggregator for a run of total URLs and stamps the
// start time.
func New(total int) *RunStats {
	return &RunStats{
		total:   total,
		started: time.Now(),
	}
}

// RecordDownload records a completed fetch. The duration is the HTTP
// time of the winning attempt, so averages reflect origin latency, not
// limiter waits.
func (s *RunStats) RecordDownload(bytes int, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bytesDownloaded += int64(bytes)
	s.downloadTime += d
}

// RecordFailure records a download that failed every attempt.
func (s *RunStats) RecordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
}

// RecordProcessed records a payload that was transformed and written to
// disk.
func (s *RunStats) RecordProcessed(bytes int, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.succeeded++
	s.bytesProcessed += int64(bytes)
	s.processTime += d
}

// RecordTransformFailure records a payload whose transform errored. The
// file is kept raw, so the download itself still happened and its bytes
// stay counted.
func (s *RunStats) RecordTransformFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transformFailed++
}

// Snapshot is a consistent copy of the counters with derived rates.
type Snapshot struct {
	// Total is the number of URLs the run was asked to download.
	Total int

	// Succeeded is the number of files downloaded, transformed, and written.
	Succeeded int

	// Failed is the number of downloads that exhausted every attempt.
	Failed int

	// TransformFailed is the number of downloads kept raw because their
	// transform errored.
	TransformFailed int

	// BytesDownloaded counts payload bytes fetched from origin.
	BytesDownloaded int64

	// BytesProcessed counts bytes written to disk after transform.
	BytesProcessed int64

	// DownloadTime is the summed per-URL fetch time across workers.
	DownloadTime time.Duration

	// ProcessTime is the summed per-URL transform and write time.
	ProcessTime time.Duration

	// Elapsed is the wall time since the run started.
	Elapsed time.Duration

	// AvgDownload is the mean fetch time per downloaded file.
	AvgDownload time.Duration

	// BytesPerSecond is download throughput over wall time.
	BytesPerSecond float64

	// FilesPerSecond is download completion rate over wall time.
	FilesPerSecond float64
}

// Snapshot returns a consistent copy of all counters.
func (s *RunStats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Total:           s.total,
		Succeeded:       s.succeeded,
		Failed:          s.failed,
		TransformFailed: s.transformFailed,
		BytesDownloaded: s.bytesDownloaded,
		BytesProcessed:  s.bytesProcessed,
		DownloadTime:    s.downloadTime,
		ProcessTime:     s.processTime,
		Elapsed:         time.Since(s.started),
	}

	downloads := s.succeeded + s.transformFailed
	if downloads > 0 {
		snap.AvgDownload = s.downloadTime / time.Duration(downloads)
	}
	if secs := snap.Elapsed.Seconds(); secs > 0 {
		snap.BytesPerSecond = float64(s.bytesDownloaded) / secs
		snap.FilesPerSecond = float64(downloads) / secs
	}

	return snap
}

// Accounted reports whether every URL has landed in exactly one outcome
// bucket. It only holds once both stages have drained.
func (s Snapshot) Accounted() bool {
	return s.Succeeded+s.Failed+s.TransformFailed == s.Total
}
