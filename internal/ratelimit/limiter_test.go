package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWait_UnderBudgetAddsNoLatency(t *testing.T) {
	l := New(Config{Requests: 100, Period: time.Second})

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 10, l.InWindow())
}

func TestWait_EnforcesBudget(t *testing.T) {
	// 2 per second; 5 back-to-back waits must take at least 1 second: the
	// third call waits for the first slot to expire, the fifth for the
	// second.
	l := New(Config{Requests: 2, Period: time.Second})

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestWait_RateBoundUnderConcurrency(t *testing.T) {
	const (
		budget = 5
		period = 200 * time.Millisecond
		calls  = 20
	)
	l := New(Config{Requests: budget, Period: period})

	var mu sync.Mutex
	var stamps []time.Time
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Wait(context.Background()))
			mu.Lock()
			stamps = append(stamps, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, stamps, calls)
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	// No window of `period` may contain more than `budget` requests. Allow a
	// small epsilon for the gap between the limiter recording a slot and the
	// test observing it.
	const epsilon = 20 * time.Millisecond
	for i := 0; i+budget < len(stamps); i++ {
		gap := stamps[i+budget].Sub(stamps[i])
		assert.GreaterOrEqual(t, gap, period-epsilon,
			"requests %d..%d landed within one period", i, i+budget)
	}
}

func TestWait_ContextCancelAbortsSleep(t *testing.T) {
	l := New(Config{Requests: 1, Period: 10 * time.Second})
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	// The aborted wait must not have claimed a slot.
	assert.Equal(t, 1, l.InWindow())
}

func TestWait_UnlimitedConfig(t *testing.T) {
	l := New(Config{})
	start := time.Now()
	for i := 0; i < 1000; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestPrune_DropsExpiredTimestamps(t *testing.T) {
	l := New(Config{Requests: 3, Period: 50 * time.Millisecond})
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	require.Equal(t, 3, l.InWindow())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, l.InWindow())
}
