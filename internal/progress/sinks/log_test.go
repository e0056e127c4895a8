package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jfelder/chronicle-harvester/internal/fetcher"
	"github.com/jfelder/chronicle-harvester/internal/progress"
)

func TestLogSink_EmitsOneLinePerEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	batchID := progress.UUIDToBytes(uuid.New())
	batch := []progress.Event{
		{BatchID: batchID, TS: time.Now(), Identifier: "x-1", Outcome: fetcher.OutcomeDownloaded, Attempts: 1},
		{BatchID: batchID, TS: time.Now(), Identifier: "x-2", Outcome: fetcher.OutcomeFailed, Attempts: 4, Note: "retry attempts exhausted"},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.NoError(t, sink.Close(context.Background()))

	entries := logs.All()
	require.Len(t, entries, 2)
	fields := entries[1].ContextMap()
	assert.Equal(t, "x-2", fields["identifier"])
	assert.Equal(t, "failed", fields["outcome"])
	assert.Equal(t, "retry attempts exhausted", fields["note"])
}

func TestLogSink_NilLoggerDefaultsToNop(t *testing.T) {
	sink := NewLogSink(nil)
	assert.NoError(t, sink.Consume(context.Background(), nil))
}
