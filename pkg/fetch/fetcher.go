// Package fetch downloads single URLs with retry, exponential backoff,
// and a shared rate limiter. It is the network stage of the download
// pipeline.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/edgar-tools/bulkfetch/pkg/logging"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for download operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkfetch_requests_total",
		Help: "Total download attempts by HTTP status or failure kind",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bulkfetch_request_duration_seconds",
		Help:    "Duration of a single download attempt including body read",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	bytesDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bulkfetch_bytes_downloaded_total",
		Help: "Total payload bytes fetched from origin",
	})
)

// Limiter gates the start of every request attempt. *ratelimit.Limiter
// satisfies it.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Result is one completed download.
type Result struct {
	// URL is the source URL.
	URL string

	// Body is the full decoded payload.
	Body []byte

	// Duration is the HTTP time of the winning attempt, excluding
	// limiter waits and backoff.
	Duration time.Duration

	// Attempts is the number of attempts consumed (1 for a clean download).
	Attempts int
}

// Config holds the fetcher configuration.
type Config struct {
	// Headers are added to every request. A Host entry overrides the
	// request-line host, which EDGAR requires.
	Headers map[string]string

	// Timeout bounds each individual attempt (default: 30s).
	Timeout time.Duration

	// Retry policy for failed attempts.
	Retry RetryConfig

	// Limiter gates every attempt, retries included. Required.
	Limiter Limiter

	// Client overrides the default HTTP client (for testing).
	Client *http.Client
}

// Fetcher downloads URLs on behalf of the pipeline's fetch workers. It
// is safe for concurrent use.
type Fetcher struct {
	client  *http.Client
	limiter Limiter
	config  Config
	logger  zerolog.Logger
	sleep   func(context.Context, time.Duration) error
}

// New creates a new fetcher.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Fetcher{
		client:  client,
		limiter: cfg.Limiter,
		config:  cfg,
		logger:  logging.NewLogger("fetcher"),
		sleep:   sleepBackoff,
	}, nil
}

// Fetch downloads url and returns the full payload. Failed attempts are
// retried with exponential backoff; every attempt waits for the shared
// rate limiter first, so retries are spaced like any other request.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	var body []byte
	var duration time.Duration
	attempts, err := retryWithBackoff(ctx, f.config.Retry, f.sleep, func() error {
		payload, d, attemptErr := f.attempt(ctx, url)
		if attemptErr != nil {
			return attemptErr
		}
		body, duration = payload, d
		return nil
	})

	if err != nil {
		f.logger.Error().
			Err(err).
			Str("url", url).
			Int("attempt", attempts).
			Msg("Download failed")
		return nil, &Error{URL: url, Attempts: attempts, Class: Classify(err), Err: err}
	}

	bytesDownloaded.Add(float64(len(body)))

	f.logger.Debug().
		Str("url", url).
		Int("bytes", len(body)).
		Int("attempt", attempts).
		Dur("duration", duration).
		Msg("Download complete")

	return &Result{URL: url, Body: body, Duration: duration, Attempts: attempts}, nil
}

// attempt performs one rate-limited request and reads the full body. It
// returns the request duration, measured from first byte out to body
// read complete, so limiter waits never inflate download timing.
func (f *Fetcher) attempt(ctx context.Context, url string) ([]byte, time.Duration, error) {
	if err := f.limiter.Acquire(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	for name, value := range f.config.Headers {
		// net/http takes the request-line host from req.Host and
		// ignores a Host entry in the header map.
		if http.CanonicalHeaderKey(name) == "Host" {
			req.Host = value
			continue
		}
		req.Header.Set(name, value)
	}

	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	resp, err := f.client.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
		return nil, 0, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	reader, err := decodeBody(resp)
	if err != nil {
		requestsTotal.WithLabelValues("decode_error").Inc()
		return nil, 0, err
	}
	if reader != resp.Body {
		defer reader.Close()
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		requestsTotal.WithLabelValues("read_error").Inc()
		return nil, 0, fmt.Errorf("read body: %w", err)
	}

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	return body, time.Since(start), nil
}

// decodeBody wraps the response body according to Content-Encoding.
// Sending Accept-Encoding by hand disables net/http's transparent gzip
// handling, so the fetcher has to undo whatever encoding the origin
// chose itself.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	encoding := strings.ToLower(resp.Header.Get("Content-Encoding"))
	switch encoding {
	case "", "identity":
		return resp.Body, nil
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "deflate":
		return zlib.NewReader(resp.Body)
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

// sleepBackoff sleeps for d or until ctx is cancelled.
func sleepBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
