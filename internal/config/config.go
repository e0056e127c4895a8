// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jfelder/chronicle-harvester/internal/retry"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Archive   ArchiveConfig   `mapstructure:"archive"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ArchiveConfig names the remote archive endpoints.
type ArchiveConfig struct {
	SearchURL   string `mapstructure:"search_url"`
	DownloadURL string `mapstructure:"download_url"`
	Collection  string `mapstructure:"collection"`
	MediaType   string `mapstructure:"media_type"`
	UserAgent   string `mapstructure:"user_agent"`
}

// HTTPConfig configures per-request timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	MaxRetries       int     `mapstructure:"max_retries"`
	BackoffInitialMs int     `mapstructure:"backoff_initial_ms"`
	BackoffFactor    float64 `mapstructure:"backoff_factor"`
	BackoffMaxMs     int     `mapstructure:"backoff_max_ms"`
}

// RateLimitConfig sets the shared requests-per-period budget.
type RateLimitConfig struct {
	Requests      int `mapstructure:"requests"`
	PeriodSeconds int `mapstructure:"period_seconds"`
}

// CacheConfig selects and parameterizes the payload cache backend.
type CacheConfig struct {
	// Backend is one of "fs", "gcs" or "memory".
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// BatchConfig governs the worker pool.
type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

// ProgressConfig wires optional event sinks.
type ProgressConfig struct {
	// LogEvents enables the per-item structured log sink.
	LogEvents bool `mapstructure:"log_events"`
	// DSN enables the Postgres store sink when set.
	DSN string `mapstructure:"dsn"`
	// PubSubProject/PubSubTopic enable the Pub/Sub sink when both are set.
	PubSubProject string `mapstructure:"pubsub_project"`
	PubSubTopic   string `mapstructure:"pubsub_topic"`
}

// ServerConfig controls the optional status HTTP server.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("archive.search_url", "https://archive.org/advancedsearch.php")
	v.SetDefault("archive.download_url", "https://archive.org/download")
	v.SetDefault("archive.media_type", "texts")
	v.SetDefault("archive.user_agent", "chronicle-harvester/0.1")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 500)
	v.SetDefault("http.backoff_factor", 2.0)
	v.SetDefault("http.backoff_max_ms", 30000)
	v.SetDefault("ratelimit.requests", 200)
	v.SetDefault("ratelimit.period_seconds", 60)
	v.SetDefault("cache.backend", "fs")
	v.SetDefault("cache.dir", "./cache")
	v.SetDefault("batch.workers", 8)
	v.SetDefault("progress.log_events", true)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Archive.SearchURL == "" {
		return fmt.Errorf("archive.search_url is required")
	}
	if c.Archive.DownloadURL == "" {
		return fmt.Errorf("archive.download_url is required")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.PeriodSeconds <= 0 {
		return fmt.Errorf("ratelimit.requests and ratelimit.period_seconds must be > 0")
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("batch.workers must be > 0")
	}
	switch c.Cache.Backend {
	case "fs":
		if c.Cache.Dir == "" {
			return fmt.Errorf("cache.dir is required for the fs backend")
		}
	case "gcs":
		if c.Cache.Bucket == "" {
			return fmt.Errorf("cache.bucket is required for the gcs backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required when the status server is enabled")
	}
	return nil
}

// Timeout converts the HTTP timeout to a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RetryPolicy converts the HTTP retry knobs into a retry.Policy.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries: c.HTTP.MaxRetries,
		BaseDelay:  time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond,
		Factor:     c.HTTP.BackoffFactor,
		MaxDelay:   time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond,
		Jitter:     true,
	}
}

// RatePeriod converts the limiter window to a duration.
func (c Config) RatePeriod() time.Duration {
	return time.Duration(c.RateLimit.PeriodSeconds) * time.Second
}
