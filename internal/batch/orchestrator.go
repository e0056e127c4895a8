// Package batch drives the item fetcher over an identifier list with a
// bounded worker pool and folds outcomes into aggregate statistics.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/jfelder/chronicle-harvester/internal/fetcher"
	"github.com/jfelder/chronicle-harvester/internal/metrics"
	"github.com/jfelder/chronicle-harvester/internal/progress"
)

// ItemFetcher resolves one identifier to a terminal outcome.
type ItemFetcher interface {
	Fetch(ctx context.Context, id string) fetcher.Result
}

// Orchestrator runs batches. One batch runs at a time; Snapshot may be read
// concurrently for live progress reporting.
type Orchestrator struct {
	fetcher ItemFetcher
	emitter progress.Emitter
	workers int
	logger  *zap.Logger

	mu      sync.Mutex
	current Stats
	batchID uuid.UUID
}

// New constructs an Orchestrator. workers must be positive; emitter may be
// nil when no progress reporting is wired.
func New(f ItemFetcher, workers int, emitter progress.Emitter, logger *zap.Logger) (*Orchestrator, error) {
	if f == nil {
		return nil, fmt.Errorf("item fetcher is required")
	}
	if workers <= 0 {
		return nil, fmt.Errorf("workers must be > 0, got %d", workers)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		fetcher: f,
		emitter: emitter,
		workers: workers,
		logger:  logger,
	}, nil
}

// Run fetches every identifier using at most min(workers, len(ids))
// concurrent workers and returns once each started item is terminal. A
// single item's failure never aborts the batch. Cancelling ctx stops handing
// out new identifiers; items already in flight finish their fetch, and the
// partial stats are returned together with the context's error.
func (o *Orchestrator) Run(ctx context.Context, ids []string) (Stats, error) {
	runID := uuid.New()
	o.mu.Lock()
	o.current = Stats{}
	o.batchID = runID
	o.mu.Unlock()

	if len(ids) == 0 {
		o.logger.Info("batch empty, nothing to do", zap.String("batch_id", runID.String()))
		return Stats{}, nil
	}

	workers := o.workers
	if len(ids) < workers {
		workers = len(ids)
	}
	o.logger.Info("batch starting",
		zap.String("batch_id", runID.String()),
		zap.Int("identifiers", len(ids)),
		zap.Int("workers", workers),
	)
	start := time.Now()

	// Items already claimed by a worker finish under a detached context so a
	// cancelled batch never interrupts a cache write mid-flight. Per-request
	// HTTP timeouts still bound every call.
	fetchCtx := context.WithoutCancel(ctx)

	p := pool.New().WithMaxGoroutines(workers)
	for _, id := range ids {
		if ctx.Err() != nil {
			o.logger.Warn("batch cancelled, not starting remaining items",
				zap.String("batch_id", runID.String()))
			break
		}
		p.Go(func() {
			metrics.WorkerStarted()
			defer metrics.WorkerStopped()
			res := o.fetcher.Fetch(fetchCtx, id)
			o.record(res)
			o.emit(runID, res)
		})
	}
	p.Wait()

	stats := o.Snapshot()
	o.logger.Info("batch finished",
		zap.String("batch_id", runID.String()),
		zap.Int("successful", stats.Successful),
		zap.Int("cached", stats.Cached),
		zap.Int("not_found", stats.NotFound),
		zap.Int("failed", stats.Failed),
		zap.Duration("dur", time.Since(start)),
	)
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("batch interrupted: %w", err)
	}
	return stats, nil
}

// Snapshot returns a copy of the current run's counters. Safe to call while
// a batch is running.
func (o *Orchestrator) Snapshot() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// BatchID returns the id of the current (or last) run.
func (o *Orchestrator) BatchID() uuid.UUID {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.batchID
}

func (o *Orchestrator) record(res fetcher.Result) {
	o.mu.Lock()
	switch res.Outcome {
	case fetcher.OutcomeDownloaded:
		o.current.Successful++
	case fetcher.OutcomeCached:
		o.current.Cached++
	case fetcher.OutcomeNotFound:
		o.current.NotFound++
	case fetcher.OutcomeFailed:
		o.current.Failed++
	}
	o.mu.Unlock()

	metrics.RecordOutcome(string(res.Outcome))
	metrics.RecordBytes(res.Bytes)
	metrics.RecordAttempts(res.Attempts)
	metrics.ObserveFetchDuration(res.Duration)
}

func (o *Orchestrator) emit(runID uuid.UUID, res fetcher.Result) {
	if o.emitter == nil {
		return
	}
	note := ""
	if res.Err != nil {
		note = res.Err.Error()
	}
	o.emitter.Emit(progress.Event{
		BatchID:    progress.UUIDToBytes(runID),
		TS:         time.Now().UTC(),
		Identifier: res.Identifier,
		Outcome:    res.Outcome,
		Attempts:   res.Attempts,
		Bytes:      res.Bytes,
		Dur:        res.Duration,
		Note:       note,
	})
}
