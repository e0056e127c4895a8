// Package fs implements a local filesystem payload cache, one file per
// identifier under a cache root.
package fs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// Config captures the parameters for the filesystem cache.
type Config struct {
	// BaseDir is the root directory where payloads are stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Cache stores payloads as <base_dir>/<id>.txt. Writes go through a temp
// file and an atomic rename, so a crash mid-write never leaves a truncated
// entry behind.
type Cache struct {
	baseDir string
}

// New creates the cache root if needed and verifies it is a writable
// directory.
func New(cfg Config) (*Cache, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("cache base directory is required")
	}
	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create cache directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat cache directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("cache path %q is not a directory", cfg.BaseDir)
	}
	return &Cache{baseDir: cfg.BaseDir}, nil
}

// Exists reports whether a payload file is present for id.
func (c *Cache) Exists(_ context.Context, id string) (bool, error) {
	path, err := c.entryPath(id)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat cache entry: %w", err)
	}
	return true, nil
}

// Read returns the payload for id.
func (c *Cache) Read(_ context.Context, id string) ([]byte, error) {
	path, err := c.entryPath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cache entry: %w", err)
	}
	return data, nil
}

// Write persists the payload for id atomically.
func (c *Cache) Write(_ context.Context, id string, payload []byte) error {
	path, err := c.entryPath(id)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry for id. Deleting an absent entry is not an error.
func (c *Cache) Delete(_ context.Context, id string) error {
	path, err := c.entryPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// entryPath maps an identifier to its file, rejecting anything that would
// escape the cache root.
func (c *Cache) entryPath(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("identifier is required")
	}
	full := filepath.Join(c.baseDir, id+".txt")
	cleanBase := filepath.Clean(c.baseDir)
	if !strings.HasPrefix(filepath.Clean(full), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("identifier %q escapes the cache root", id)
	}
	return full, nil
}
