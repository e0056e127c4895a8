// Package ratelimit implements a sliding-window rate limiter shared by all
// workers talking to the archive. The budget is a property of the remote
// service, so exactly one Limiter instance must be constructed per process
// and injected into every component that issues requests.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jfelder/chronicle-harvester/internal/clock"
	"github.com/jfelder/chronicle-harvester/internal/metrics"
)

// Config holds the request budget.
type Config struct {
	// Requests is the maximum number of requests allowed in any rolling
	// window of Period.
	Requests int
	// Period is the length of the rolling window.
	Period time.Duration
}

// Limiter enforces a hard N-per-rolling-period budget by tracking the
// timestamps of recent requests. Wait never drops or rejects a request; it
// blocks the caller just long enough for the oldest timestamp to leave the
// window.
type Limiter struct {
	mu     sync.Mutex
	window []time.Time

	requests int
	period   time.Duration
	clk      clock.Clock
}

// New creates a Limiter. Requests <= 0 or Period <= 0 yields an unlimited
// limiter whose Wait always returns immediately.
func New(cfg Config) *Limiter {
	return NewWithClock(cfg, clock.System{})
}

// NewWithClock creates a Limiter with an injected clock.
func NewWithClock(cfg Config, clk clock.Clock) *Limiter {
	return &Limiter{
		requests: cfg.Requests,
		period:   cfg.Period,
		clk:      clk,
	}
}

// Wait blocks until the caller may issue exactly one request without
// exceeding the budget, then records that request. It is safe for concurrent
// use. The context aborts the wait; no timestamp is recorded in that case.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.requests <= 0 || l.period <= 0 {
		return nil
	}
	start := l.clk.Now()
	for {
		l.mu.Lock()
		now := l.clk.Now()
		l.prune(now)
		if len(l.window) < l.requests {
			l.window = append(l.window, now)
			l.mu.Unlock()
			if waited := now.Sub(start); waited > time.Millisecond {
				metrics.ObserveRateLimitDelay(waited)
			}
			return nil
		}
		// Sleep until the oldest recorded request falls out of the window,
		// then re-check: another worker may have claimed the freed slot.
		wait := l.window[0].Add(l.period).Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limit wait: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// prune drops timestamps older than now-period. Caller holds l.mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.period)
	i := 0
	for i < len(l.window) && !l.window[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.window = append(l.window[:0], l.window[i:]...)
	}
}

// InWindow reports how many requests are currently recorded in the rolling
// window. Intended for tests and status reporting.
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.clk.Now())
	return len(l.window)
}
