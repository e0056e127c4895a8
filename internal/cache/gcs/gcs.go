// Package gcs implements a payload cache backed by a Google Cloud Storage
// bucket, for deployments where the OCR corpus must be shared between
// machines. GCS object creation is already atomic, so no temp-and-rename
// dance is needed here.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// Cache stores one object per identifier under an optional key prefix.
type Cache struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed cache.
func New(client *storage.Client, cfg Config) (*Cache, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Cache{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Exists reports whether an object is present for id.
func (c *Cache) Exists(ctx context.Context, id string) (bool, error) {
	_, err := c.object(id).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat object: %w", err)
	}
	return true, nil
}

// Read downloads the payload for id.
func (c *Cache) Read(ctx context.Context, id string) ([]byte, error) {
	r, err := c.object(id).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object reader: %w", err)
	}
	defer func() { _ = r.Close() }()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

// Write uploads the payload for id.
func (c *Cache) Write(ctx context.Context, id string, payload []byte) error {
	w := c.object(id).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"
	if _, err := w.Write(payload); err != nil {
		closeErr := w.Close()
		if closeErr != nil {
			return fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close object writer: %w", err)
	}
	return nil
}

// Delete removes the object for id; an absent object is not an error.
func (c *Cache) Delete(ctx context.Context, id string) error {
	if err := c.object(id).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (c *Cache) object(id string) *storage.ObjectHandle {
	key := id + ".txt"
	if c.prefix != "" {
		key = c.prefix + "/" + key
	}
	return c.client.Bucket(c.bucket).Object(key)
}
