package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAreValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "fs", cfg.Cache.Backend)
	assert.Equal(t, 8, cfg.Batch.Workers)
	assert.Equal(t, 200, cfg.RateLimit.Requests)
	assert.Equal(t, 60*time.Second, cfg.RatePeriod())
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.False(t, cfg.Server.Enabled)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
archive:
  collection: daily-gazette
ratelimit:
  requests: 10
  period_seconds: 5
batch:
  workers: 3
cache:
  backend: memory
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "daily-gazette", cfg.Archive.Collection)
	assert.Equal(t, 10, cfg.RateLimit.Requests)
	assert.Equal(t, 5*time.Second, cfg.RatePeriod())
	assert.Equal(t, 3, cfg.Batch.Workers)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	// Untouched keys keep their defaults.
	assert.Equal(t, "https://archive.org/download", cfg.Archive.DownloadURL)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"zero workers":      "batch:\n  workers: 0\n",
		"zero rate budget":  "ratelimit:\n  requests: 0\n",
		"unknown backend":   "cache:\n  backend: tape\n",
		"gcs needs bucket":  "cache:\n  backend: gcs\n",
		"zero http timeout": "http:\n  timeout_seconds: 0\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRetryPolicyConversion(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	p := cfg.RetryPolicy()
	assert.Equal(t, 3, p.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, p.BaseDelay)
	assert.Equal(t, 2.0, p.Factor)
	assert.Equal(t, 30*time.Second, p.MaxDelay)
	assert.True(t, p.Jitter)
}
