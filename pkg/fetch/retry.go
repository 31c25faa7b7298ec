package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkfetch_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bulkfetch_retry_backoff_seconds",
		Help:    "Backoff duration before retry attempts",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkfetch_retry_exhausted_total",
		Help: "Total number of downloads that failed every attempt, by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// BackoffBase scales the delay between attempts. The wait before
	// attempt n+1 is 2^n * BackoffBase.
	BackoffBase time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BackoffBase: 1 * time.Second,
	}
}

// retryWithBackoff executes fn up to cfg.MaxAttempts times with
// exponential backoff between attempts. Unlike an ordinary API client it
// retries every failure class, 4xx included: EDGAR answers bursts with
// 403s that clear on their own, so a client error now says nothing about
// the next attempt. It returns the number of attempts consumed.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, sleep func(context.Context, time.Duration) error, fn func() error) (int, error) {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Int("attempt", attempt).
					Msg("Download succeeded after retry")
			}
			return attempt, nil
		}

		lastErr = err

		// A cancelled context fails every future attempt too.
		if ctx.Err() != nil {
			return attempt, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		}

		// If this was the last attempt, don't wait
		if attempt >= cfg.MaxAttempts {
			break
		}

		class := Classify(err)
		backoff := cfg.BackoffBase << attempt // 2^attempt * base

		retriesTotal.WithLabelValues(string(class)).Inc()
		retryBackoffSeconds.Observe(backoff.Seconds())

		log.Debug().
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Retrying download after backoff")

		if err := sleep(ctx, backoff); err != nil {
			log.Warn().
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return attempt, fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}
	}

	// All retries exhausted
	class := Classify(lastErr)
	retryExhaustedTotal.WithLabelValues(string(class)).Inc()
	log.Warn().
		Str("error_class", string(class)).
		Int("max_attempts", cfg.MaxAttempts).
		Msg("Retry attempts exhausted")

	return cfg.MaxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, cfg.MaxAttempts, lastErr)
}
