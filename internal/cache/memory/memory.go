// Package memory implements an in-memory payload cache used by tests and
// dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Cache stores payloads in a mutex-guarded map.
type Cache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[string][]byte)}
}

// Exists reports whether an entry is present.
func (c *Cache) Exists(_ context.Context, id string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[id]
	return ok, nil
}

// Read returns a copy of the stored payload.
func (c *Cache) Read(_ context.Context, id string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("cache entry %q not found", id)
	}
	return append([]byte(nil), data...), nil
}

// Write stores a copy of the payload.
func (c *Cache) Write(_ context.Context, id string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = append([]byte(nil), payload...)
	return nil
}

// Delete removes the entry; absent entries are ignored.
func (c *Cache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

// Len reports the number of stored entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
