// Package cache defines the payload cache capability consumed by the item
// fetcher. Presence of an entry is authoritative proof of a prior successful
// fetch; the fetch path never overwrites an existing entry, so resumability
// falls out of Exists alone.
package cache

import "context"

// Cache stores one payload per identifier. Implementations must make Write
// atomic: no reader may ever observe a partially written entry. Delete
// exists only so the fetcher can discard an entry after a failed attempt.
type Cache interface {
	Exists(ctx context.Context, id string) (bool, error)
	Read(ctx context.Context, id string) ([]byte, error)
	Write(ctx context.Context, id string, payload []byte) error
	Delete(ctx context.Context, id string) error
}
