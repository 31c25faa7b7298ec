package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgar-tools/bulkfetch/pkg/archive"
	"github.com/edgar-tools/bulkfetch/pkg/fetch"
	"github.com/edgar-tools/bulkfetch/pkg/logging"
	"github.com/edgar-tools/bulkfetch/pkg/ratelimit"
	"github.com/edgar-tools/bulkfetch/pkg/stats"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Pipeline downloads a batch of URLs through two worker stages: a
// network-bound fetch pool and a CPU-bound transform pool joined by one
// bounded queue.
type Pipeline struct {
	config  Config
	limiter *ratelimit.Limiter
	fetcher *fetch.Fetcher
	logger  zerolog.Logger
}

// Result summarizes one finished run.
type Result struct {
	// Stats is the final counter snapshot.
	Stats stats.Snapshot

	// ArchivePath is the run archive location.
	ArchivePath string

	// Failures lists every URL that failed all attempts.
	Failures []FailureRecord

	// FailureLog is the failure log path, empty when nothing failed.
	FailureLog string
}

// runState carries the per-run accumulators shared by both worker
// pools.
type runState struct {
	stats     *stats.RunStats
	recorder  *failureRecorder
	written   *writtenFiles
	completed atomic.Int64
	prefix    string
	logger    zerolog.Logger
}

// writtenFiles collects the destination paths of files written by
// transform workers, in completion order, for the archiver.
type writtenFiles struct {
	mu    sync.Mutex
	paths []string
}

func (w *writtenFiles) add(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paths = append(w.paths, path)
}

func (w *writtenFiles) list() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.paths...)
}

// New creates a pipeline for one batch of URLs, applying defaults and
// creating the download directory.
func New(cfg Config) (*Pipeline, error) {
	if len(cfg.URLs) == 0 {
		return nil, fmt.Errorf("at least one URL is required")
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("download directory is required")
	}
	if cfg.ArchivePrefix == "" {
		return nil, fmt.Errorf("archive prefix is required")
	}

	if cfg.Transform == nil {
		cfg.Transform = Identity
	}
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{"User-Agent": DefaultUserAgent}
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 8
	}
	if cfg.TransformWorkers <= 0 {
		cfg.TransformWorkers = runtime.NumCPU()
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 2 * cfg.FetchConcurrency
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}

	limiter, err := ratelimit.NewLimiter(cfg.RateLimit)
	if err != nil {
		return nil, err
	}

	fetcher, err := fetch.New(fetch.Config{
		Headers: cfg.Headers,
		Timeout: cfg.Timeout,
		Retry:   cfg.Retry,
		Limiter: limiter,
	})
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		config:  cfg,
		limiter: limiter,
		fetcher: fetcher,
		logger:  logging.NewLogger("pipeline"),
	}, nil
}

// Run downloads every configured URL, transforms and writes the
// payloads, archives the results, and logs failures. It blocks until
// both stages drain. Cancelling the context stops new downloads, but
// everything already fetched still flows through the transform stage,
// and the archive, failure log, and summary are still produced; the
// context error is returned alongside the partial result.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	runID := uuid.New().String()

	run := &runState{
		stats:    stats.New(len(p.config.URLs)),
		recorder: newFailureRecorder(),
		written:  &writtenFiles{},
		prefix:   CommonPrefix(p.config.URLs),
		logger:   p.logger.With().Str("run_id", runID).Logger(),
	}

	run.logger.Info().
		Int("urls", len(p.config.URLs)).
		Str("dir", p.config.Dir).
		Float64("rate_limit", p.config.RateLimit).
		Int("fetch_workers", p.config.FetchConcurrency).
		Int("transform_workers", p.config.TransformWorkers).
		Int("queue_capacity", p.config.QueueCapacity).
		Msg("Starting download run")

	urls := make(chan string, len(p.config.URLs))
	for _, url := range p.config.URLs {
		urls <- url
	}
	close(urls)

	// Handoff queue: bounded so a slow transform stage backpressures
	// the fetch workers instead of buffering every payload in memory.
	queue := make(chan *fetch.Result, p.config.QueueCapacity)

	var fetchWG sync.WaitGroup
	for i := 0; i < p.config.FetchConcurrency; i++ {
		fetchWG.Add(1)
		go p.fetchWorker(ctx, i, run, urls, queue, &fetchWG)
	}

	// The queue closes exactly once, after every fetch worker exits.
	// That close is the transform stage's end-of-stream signal.
	go func() {
		fetchWG.Wait()
		close(queue)
	}()

	var transformWG sync.WaitGroup
	for i := 0; i < p.config.TransformWorkers; i++ {
		transformWG.Add(1)
		go p.transformWorker(i, run, queue, &transformWG)
	}
	transformWG.Wait()

	// Both stages drained: bundle the files, log failures, summarize.
	archivePath, archiveErr := archive.Create(p.config.Dir, p.config.ArchivePrefix, run.written.list())
	if archiveErr != nil {
		run.logger.Error().Err(archiveErr).Msg("Archive creation failed")
	}

	failureLog, flushErr := run.recorder.flush(p.config.Dir)
	if flushErr != nil {
		run.logger.Error().Err(flushErr).Msg("Failure log write failed")
	}

	failures := run.recorder.list()
	if failureLog != "" {
		run.logger.Warn().
			Str("log", failureLog).
			Int("failures", len(failures)).
			Msg("Failed downloads logged")
	}

	snap := run.stats.Snapshot()
	p.logSummary(run.logger, snap)

	result := &Result{
		Stats:       snap,
		ArchivePath: archivePath,
		Failures:    failures,
		FailureLog:  failureLog,
	}

	switch {
	case archiveErr != nil:
		return result, archiveErr
	case flushErr != nil:
		return result, flushErr
	default:
		return result, ctx.Err()
	}
}

// fetchWorker downloads URLs from urls and hands completed payloads to
// the transform stage. Failures go straight to the recorder.
func (p *Pipeline) fetchWorker(ctx context.Context, id int, run *runState, urls <-chan string, queue chan<- *fetch.Result, wg *sync.WaitGroup) {
	defer wg.Done()

	fetched := 0
	for url := range urls {
		// Stop picking up new URLs once the run is cancelled. The
		// queue still receives everything fetched before that.
		select {
		case <-ctx.Done():
			run.logger.Debug().
				Int("worker_id", id).
				Int("fetched", fetched).
				Msg("Fetch worker stopping (context cancelled)")
			return
		default:
		}

		result, err := p.fetcher.Fetch(ctx, url)
		if err != nil {
			run.stats.RecordFailure()
			run.recorder.record(failureFromError(url, err))
			continue
		}

		run.stats.RecordDownload(len(result.Body), result.Duration)
		queue <- result
		fetched++
	}

	if fetched > 0 {
		run.logger.Debug().
			Int("worker_id", id).
			Int("fetched", fetched).
			Msg("Fetch worker completed")
	}
}

// transformWorker drains the handoff queue, transforms each payload,
// and writes the result. A failing transform keeps the raw payload; a
// failing write counts the URL as failed.
func (p *Pipeline) transformWorker(id int, run *runState, queue <-chan *fetch.Result, wg *sync.WaitGroup) {
	defer wg.Done()

	for result := range queue {
		dest := filepath.Join(p.config.Dir, DestName(result.URL, run.prefix))

		start := time.Now()
		payload, err := p.config.Transform(result.Body)
		duration := time.Since(start)

		if err != nil {
			TransformFailures.Inc()
			run.logger.Warn().
				Err(err).
				Str("url", result.URL).
				Str("dest", dest).
				Msg("Transform failed, keeping raw payload")

			if writeErr := p.write(run, result, dest, result.Body); writeErr == nil {
				run.stats.RecordTransformFailure()
			}
			continue
		}

		TransformDuration.Observe(duration.Seconds())

		if writeErr := p.write(run, result, dest, payload); writeErr != nil {
			continue
		}

		ProcessedBytes.Add(float64(len(payload)))
		run.stats.RecordProcessed(len(payload), duration)

		run.logger.Info().
			Str("url", result.URL).
			Str("dest", dest).
			Int("bytes", len(payload)).
			Msg("Downloaded and processed")

		// Progress logging every 50 files
		if n := run.completed.Add(1); n%50 == 0 {
			run.logger.Info().
				Int64("completed", n).
				Int("total", len(p.config.URLs)).
				Float64("progress_pct", float64(n)/float64(len(p.config.URLs))*100).
				Msg("Download progress")
		}
	}
}

// write persists payload at dest, recording a run failure when the
// filesystem rejects it.
func (p *Pipeline) write(run *runState, result *fetch.Result, dest string, payload []byte) error {
	if err := os.WriteFile(dest, payload, 0o644); err != nil {
		run.stats.RecordFailure()
		run.recorder.record(FailureRecord{URL: result.URL, Error: err.Error(), Attempts: result.Attempts})
		run.logger.Error().
			Err(err).
			Str("url", result.URL).
			Str("dest", dest).
			Msg("Write failed")
		return err
	}

	run.written.add(dest)
	return nil
}

// failureFromError reduces a fetch error to the fields the failure log
// records.
func failureFromError(url string, err error) FailureRecord {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		return FailureRecord{URL: url, Error: fe.Err.Error(), Attempts: fe.Attempts}
	}
	return FailureRecord{URL: url, Error: err.Error(), Attempts: 0}
}

func (p *Pipeline) logSummary(logger zerolog.Logger, snap stats.Snapshot) {
	logger.Info().
		Int("total", snap.Total).
		Int("succeeded", snap.Succeeded).
		Int("failed", snap.Failed).
		Int("transform_failed", snap.TransformFailed).
		Float64("downloaded_mb", float64(snap.BytesDownloaded)/1024/1024).
		Float64("processed_mb", float64(snap.BytesProcessed)/1024/1024).
		Dur("download_time", snap.DownloadTime).
		Dur("process_time", snap.ProcessTime).
		Dur("elapsed", snap.Elapsed).
		Float64("files_per_sec", snap.FilesPerSecond).
		Msg("Download summary")

	if !snap.Accounted() {
		unaccounted := snap.Total - snap.Succeeded - snap.Failed - snap.TransformFailed
		logger.Warn().
			Int("unaccounted", unaccounted).
			Msg("Some URLs were never attempted")
	}
}
