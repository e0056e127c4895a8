// Package sinks provides the built-in progress.Sink implementations.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/jfelder/chronicle-harvester/internal/progress"
)

// LogSink emits structured logs for progress streams. Useful during
// development or audits where a durable store is unavailable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.logger.Info("item outcome",
			zap.String("batch_id", evt.BatchUUID().String()),
			zap.String("identifier", evt.Identifier),
			zap.String("outcome", string(evt.Outcome)),
			zap.Int("attempts", evt.Attempts),
			zap.Int64("bytes", evt.Bytes),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
