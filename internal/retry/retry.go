// Package retry provides a small policy-driven retry helper shared by the
// catalog searcher and the item fetcher.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy describes how an operation is retried after a transient failure.
// The zero value retries nothing; use Default for sane settings.
type Policy struct {
	// MaxRetries is the number of additional attempts after the first one.
	MaxRetries int
	// BaseDelay is the backoff before the first retry.
	BaseDelay time.Duration
	// Factor multiplies the delay after each retry.
	Factor float64
	// MaxDelay caps the computed backoff.
	MaxDelay time.Duration
	// Jitter randomizes each delay by +/-20% to avoid thundering herds.
	Jitter bool
}

// Default returns the policy used when the config does not override it.
func Default() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		Factor:     2.0,
		MaxDelay:   30 * time.Second,
		Jitter:     true,
	}
}

// Backoff returns the delay before retry number retryIndex (0-based).
func (p Policy) Backoff(retryIndex int) time.Duration {
	factor := p.Factor
	if factor <= 0 {
		factor = 1
	}
	d := float64(p.BaseDelay) * math.Pow(factor, float64(retryIndex))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	delay := time.Duration(d)
	if p.Jitter && delay > 0 {
		delay = time.Duration(float64(delay) * (0.8 + rand.Float64()*0.4))
	}
	return delay
}

// Retryable reports whether an error may be retried. Implemented by the
// typed errors in the fetcher package.
type Retryable interface {
	Retryable() bool
}

// IsRetryable inspects the error chain for a Retryable classification.
// Context cancellation is never retryable; unclassified errors are treated
// as transient (connection resets, timeouts and friends arrive untyped from
// net/http).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

// Do runs op, retrying per the policy while IsRetryable(err) holds. It
// returns nil on the first success, or the last error once retries are
// exhausted or a non-retryable error surfaces. attempts reports how many
// times op ran. The backoff sleep respects ctx.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) (attempts int, err error) {
	for attempt := 0; ; attempt++ {
		attempts = attempt + 1
		err = op(ctx)
		if err == nil {
			return attempts, nil
		}
		if attempt >= p.MaxRetries || !IsRetryable(err) {
			return attempts, err
		}
		delay := p.Backoff(attempt)
		// A server-provided retry hint wins when it is longer than ours.
		var h interface{ RetryAfter() (time.Duration, bool) }
		if errors.As(err, &h) {
			if after, ok := h.RetryAfter(); ok && after > delay {
				delay = after
			}
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempts, fmt.Errorf("retry backoff: %w", ctx.Err())
		case <-timer.C:
		}
	}
}
