package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type classified struct {
	msg       string
	retryable bool
}

func (e classified) Error() string   { return e.msg }
func (e classified) Retryable() bool { return e.retryable }

func fastPolicy() Policy {
	return Policy{MaxRetries: 3, BaseDelay: time.Millisecond, Factor: 2, MaxDelay: 10 * time.Millisecond}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	attempts, err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		calls++
		if calls < 3 {
			return classified{msg: "boom", retryable: true}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		calls++
		return classified{msg: "absent", retryable: false}
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		calls++
		return classified{msg: "still down", retryable: true}
	})
	require.Error(t, err)
	assert.Equal(t, 4, attempts) // initial try + 3 retries
	assert.Equal(t, 4, calls)
}

func TestDo_ContextCancelDuringBackoff(t *testing.T) {
	p := Policy{MaxRetries: 5, BaseDelay: time.Hour, Factor: 2}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	attempts, err := Do(ctx, p, func(context.Context) error {
		return classified{msg: "down", retryable: true}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, attempts)
}

func TestDo_HonorsRetryAfterHint(t *testing.T) {
	start := time.Now()
	calls := 0
	_, err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		calls++
		if calls == 1 {
			return hintedErr{after: 50 * time.Millisecond}
		}
		return nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

type hintedErr struct {
	after time.Duration
}

func (e hintedErr) Error() string                     { return "slow down" }
func (e hintedErr) Retryable() bool                   { return true }
func (e hintedErr) RetryAfter() (time.Duration, bool) { return e.after, true }

func TestBackoff_GrowsAndCaps(t *testing.T) {
	p := Policy{MaxRetries: 5, BaseDelay: 100 * time.Millisecond, Factor: 2, MaxDelay: 300 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, p.Backoff(0))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 300*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 300*time.Millisecond, p.Backoff(5))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(classified{retryable: false}))
	assert.True(t, IsRetryable(classified{retryable: true}))
	// Untyped errors (connection resets and friends) default to retryable.
	assert.True(t, IsRetryable(errors.New("connection reset by peer")))
}
