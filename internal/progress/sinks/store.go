package sinks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jfelder/chronicle-harvester/internal/fetcher"
	"github.com/jfelder/chronicle-harvester/internal/progress"
)

// DB is the slice of pgxpool.Pool the sink needs; pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Close()
}

// StoreSink persists item events and per-batch counters to Postgres. One row
// lands in item_events per terminal outcome; batch_runs carries aggregated
// counters and is upserted once per consumed batch to reduce write
// amplification.
type StoreSink struct {
	db     DB
	logger *zap.Logger
}

// NewStoreSink connects a pgx pool to the provided DSN.
func NewStoreSink(ctx context.Context, dsn string, logger *zap.Logger) (*StoreSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return NewStoreSinkWithDB(pool, logger), nil
}

// NewStoreSinkWithDB wraps an existing connection; used by tests.
func NewStoreSinkWithDB(db DB, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{db: db, logger: logger}
}

const insertEventSQL = `
	INSERT INTO item_events (batch_id, identifier, outcome, attempts, bytes, duration_ms, at)
	VALUES ($1, $2, $3, $4, $5, $6, $7);
`

const upsertRunSQL = `
	INSERT INTO batch_runs (id, successful, cached, not_found, failed, updated_at)
	VALUES ($1, $2, $3, $4, $5, now())
	ON CONFLICT (id) DO UPDATE
	SET successful = batch_runs.successful + EXCLUDED.successful,
	    cached     = batch_runs.cached     + EXCLUDED.cached,
	    not_found  = batch_runs.not_found  + EXCLUDED.not_found,
	    failed     = batch_runs.failed     + EXCLUDED.failed,
	    updated_at = now();
`

type runDelta struct {
	successful int64
	cached     int64
	notFound   int64
	failed     int64
}

// Consume writes each event and folds counter deltas per batch run. Repository
// errors are returned verbatim so the hub can log them.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.db == nil {
		return nil
	}
	deltas := make(map[uuid.UUID]*runDelta)
	for _, evt := range batch {
		if _, err := s.db.Exec(ctx, insertEventSQL,
			evt.BatchUUID(),
			evt.Identifier,
			string(evt.Outcome),
			evt.Attempts,
			evt.Bytes,
			evt.Dur.Milliseconds(),
			evt.TS,
		); err != nil {
			return fmt.Errorf("insert item event: %w", err)
		}

		d := deltas[evt.BatchUUID()]
		if d == nil {
			d = &runDelta{}
			deltas[evt.BatchUUID()] = d
		}
		switch evt.Outcome {
		case fetcher.OutcomeDownloaded:
			d.successful++
		case fetcher.OutcomeCached:
			d.cached++
		case fetcher.OutcomeNotFound:
			d.notFound++
		case fetcher.OutcomeFailed:
			d.failed++
		}
	}
	for id, d := range deltas {
		if _, err := s.db.Exec(ctx, upsertRunSQL, id, d.successful, d.cached, d.notFound, d.failed); err != nil {
			return fmt.Errorf("upsert batch run: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *StoreSink) Close(context.Context) error {
	if s != nil && s.db != nil {
		s.db.Close()
	}
	return nil
}
