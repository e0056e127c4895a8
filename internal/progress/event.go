// Package progress defines the event stream emitted after each item reaches
// a terminal outcome, and the hub that fans events out to sinks.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jfelder/chronicle-harvester/internal/fetcher"
)

// Event captures one terminal item outcome within a batch run.
type Event struct {
	// BatchID uniquely identifies a batch run using the 16-byte UUID form.
	BatchID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Identifier names the item.
	Identifier string
	// Outcome is the terminal state the item reached.
	Outcome fetcher.Outcome
	// Attempts counts HTTP attempts issued for the item.
	Attempts int
	// Bytes is the payload size for downloaded items.
	Bytes int64
	// Dur is the wall-clock duration of the fetch, retries included.
	Dur time.Duration
	// Note carries low-volume debug context, e.g. the failure cause.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.BatchID == [16]byte{} {
		return errors.New("batch id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if e.Identifier == "" {
		return errors.New("identifier is required")
	}
	switch e.Outcome {
	case fetcher.OutcomeDownloaded, fetcher.OutcomeCached, fetcher.OutcomeNotFound, fetcher.OutcomeFailed:
	default:
		return fmt.Errorf("unknown outcome %q", e.Outcome)
	}
	if e.Attempts < 0 {
		return errors.New("attempts must be >= 0")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// BatchUUID converts the binary batch ID to uuid.UUID for repositories.
func (e Event) BatchUUID() uuid.UUID {
	return uuid.UUID(e.BatchID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
