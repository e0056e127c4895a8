package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfelder/chronicle-harvester/internal/fetcher"
)

// captureSink records consumed events and close calls.
type captureSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (s *captureSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func validEvent() Event {
	return Event{
		BatchID:    UUIDToBytes(uuid.New()),
		TS:         time.Now().UTC(),
		Identifier: "item-001",
		Outcome:    fetcher.OutcomeDownloaded,
		Attempts:   1,
		Bytes:      512,
		Dur:        20 * time.Millisecond,
	}
}

func TestHub_DeliversEventsToSinks(t *testing.T) {
	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchWait: 10 * time.Millisecond}, sink)

	for i := 0; i < 5; i++ {
		hub.Emit(validEvent())
	}
	require.NoError(t, hub.Close(context.Background()))

	assert.Len(t, sink.snapshot(), 5)
	assert.True(t, sink.closed)
}

func TestHub_DropsInvalidEvents(t *testing.T) {
	sink := &captureSink{}
	hub := NewHub(Config{}, sink)

	hub.Emit(Event{}) // missing everything
	evt := validEvent()
	evt.Outcome = "garbled"
	hub.Emit(evt)

	require.NoError(t, hub.Close(context.Background()))
	assert.Empty(t, sink.snapshot())
}

func TestHub_EmitAfterCloseIsNoop(t *testing.T) {
	sink := &captureSink{}
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(validEvent())
	assert.Empty(t, sink.snapshot())
}

func TestHub_NilHubIsSafe(t *testing.T) {
	var hub *Hub
	hub.Emit(validEvent())
	assert.NoError(t, hub.Close(context.Background()))
}

func TestHub_FlushesOnBatchSize(t *testing.T) {
	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchEvents: 2, MaxBatchWait: time.Hour}, sink)
	defer func() { _ = hub.Close(context.Background()) }()

	hub.Emit(validEvent())
	hub.Emit(validEvent())

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestEventValidate(t *testing.T) {
	assert.NoError(t, validEvent().Validate())

	evt := validEvent()
	evt.BatchID = [16]byte{}
	assert.Error(t, evt.Validate())

	evt = validEvent()
	evt.Identifier = ""
	assert.Error(t, evt.Validate())

	evt = validEvent()
	evt.TS = time.Time{}
	assert.Error(t, evt.Validate())

	evt = validEvent()
	evt.Outcome = "nope"
	assert.Error(t, evt.Validate())

	evt = validEvent()
	evt.Dur = -time.Second
	assert.Error(t, evt.Validate())

	evt = validEvent()
	evt.Attempts = -1
	assert.Error(t, evt.Validate())
}

func TestEventBatchUUIDRoundTrip(t *testing.T) {
	id := uuid.New()
	evt := Event{BatchID: UUIDToBytes(id)}
	assert.Equal(t, id, evt.BatchUUID())
}
