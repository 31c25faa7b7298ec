// Package ratelimit enforces a minimum interval between requests shared
// by every concurrent fetch in a run. SEC EDGAR bans clients that exceed
// its published request ceiling, so the limiter is the one gate every
// request must pass through.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for rate limiter activity.
var (
	acquisitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bulkfetch_rate_limit_acquisitions_total",
		Help: "Total number of rate limiter slots granted",
	})

	waitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bulkfetch_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a rate limiter slot",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
	})
)

// Limiter spaces grants so that consecutive acquisitions are at least
// 1/rate seconds apart, regardless of how many goroutines call Acquire
// concurrently.
//
// The last grant time is a single shared value guarded by one mutex. A
// caller compares the current time against it, sleeps the remaining
// delta, and stamps its own grant time before releasing the lock.
// Stamping only after the sleep closes the check-then-act race that
// would let two callers compute the same stale delta and both fire
// inside one interval. Sleeping with the lock held serializes waiters
// in lock-acquisition order.
type Limiter struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration

	// Clock indirection for deterministic tests.
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewLimiter creates a limiter that grants at most rate acquisitions per
// second across all callers.
func NewLimiter(rate float64) (*Limiter, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("rate must be > 0 requests/sec (got %v)", rate)
	}

	return &Limiter{
		interval: time.Duration(float64(time.Second) / rate),
		now:      time.Now,
		sleep:    sleepContext,
	}, nil
}

// Interval returns the minimum spacing between grants.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Acquire blocks the caller until at least one interval has elapsed
// since the previously granted acquisition. Context cancellation aborts
// the wait without consuming a grant.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := l.now().Sub(l.last)
	if wait := l.interval - elapsed; wait > 0 {
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
	l.last = l.now()

	acquisitionsTotal.Inc()
	waitSeconds.Observe(l.now().Sub(start).Seconds())

	return nil
}

// sleepContext sleeps for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
