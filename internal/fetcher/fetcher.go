// Package fetcher downloads a single archive item's OCR text payload,
// applying cache-first lookup, shared rate limiting, retry with backoff and
// outcome classification. One Fetcher is shared by all batch workers.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/jfelder/chronicle-harvester/internal/cache"
	"github.com/jfelder/chronicle-harvester/internal/identifier"
	"github.com/jfelder/chronicle-harvester/internal/ratelimit"
	"github.com/jfelder/chronicle-harvester/internal/retry"
)

// Outcome is the terminal state of one item fetch.
type Outcome string

// Terminal outcomes. Cached and Downloaded both mean the payload is present
// locally; NotFound is benign; Failed needs operator attention.
const (
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeCached     Outcome = "cached"
	OutcomeNotFound   Outcome = "not_found"
	OutcomeFailed     Outcome = "failed"
)

// Result reports what happened to one identifier.
type Result struct {
	Identifier string
	Outcome    Outcome
	// Attempts counts HTTP attempts issued; 0 for cache hits and
	// validation failures.
	Attempts int
	// Bytes is the payload size for Downloaded outcomes.
	Bytes    int64
	Duration time.Duration
	// Err carries the cause for Failed outcomes; nil otherwise.
	Err error
}

// Config holds the fetcher's knobs.
type Config struct {
	// DownloadBaseURL is the root the payload URL is derived from, e.g.
	// "https://archive.example.org/download".
	DownloadBaseURL string
	// Timeout bounds each individual HTTP attempt.
	Timeout time.Duration
	// Retry governs transient-failure handling.
	Retry retry.Policy
	// UserAgent is sent with every request.
	UserAgent string
}

// Fetcher fetches one item at a time. Safe for concurrent use.
type Fetcher struct {
	client  *http.Client
	limiter *ratelimit.Limiter
	store   cache.Cache
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Fetcher around a shared limiter and cache.
func New(limiter *ratelimit.Limiter, store cache.Cache, cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if store == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if cfg.DownloadBaseURL == "" {
		return nil, fmt.Errorf("download base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		store:   store,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// PayloadURL derives the deterministic download URL for an identifier.
func (f *Fetcher) PayloadURL(id string) string {
	return fmt.Sprintf("%s/%s/%s_djvu.txt", f.cfg.DownloadBaseURL, id, id)
}

// Fetch resolves one identifier to a terminal outcome. It never panics and
// never returns a Result that would leave a partial cache entry behind.
func (f *Fetcher) Fetch(ctx context.Context, id string) Result {
	start := time.Now()
	res := f.fetch(ctx, id)
	res.Identifier = id
	res.Duration = time.Since(start)
	if res.Outcome == OutcomeFailed {
		f.logger.Warn("item fetch failed",
			zap.String("identifier", id),
			zap.Int("attempts", res.Attempts),
			zap.Error(res.Err),
		)
	} else {
		f.logger.Debug("item fetch finished",
			zap.String("identifier", id),
			zap.String("outcome", string(res.Outcome)),
			zap.Int("attempts", res.Attempts),
		)
	}
	return res
}

func (f *Fetcher) fetch(ctx context.Context, id string) Result {
	if err := identifier.Validate(id); err != nil {
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)}
	}

	hit, err := f.store.Exists(ctx, id)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("cache lookup: %w", err)}
	}
	if hit {
		return Result{Outcome: OutcomeCached}
	}

	var bytesWritten int64
	attempts, err := retry.Do(ctx, f.cfg.Retry, func(ctx context.Context) error {
		n, attemptErr := f.attempt(ctx, id)
		bytesWritten = n
		return attemptErr
	})
	switch {
	case err == nil:
		return Result{Outcome: OutcomeDownloaded, Attempts: attempts, Bytes: bytesWritten}
	case isNotFound(err):
		return Result{Outcome: OutcomeNotFound, Attempts: attempts}
	default:
		// A failed item must not leave anything behind; ignore delete
		// errors on a path that is already failing.
		if delErr := f.store.Delete(ctx, id); delErr != nil {
			f.logger.Warn("cleanup of failed cache entry", zap.String("identifier", id), zap.Error(delErr))
		}
		if retry.IsRetryable(err) {
			err = fmt.Errorf("%w: %v", ErrRetriesExhausted, err)
		}
		return Result{Outcome: OutcomeFailed, Attempts: attempts, Err: err}
	}
}

// attempt performs one rate-limited fetch attempt and, on success, writes
// the payload to the cache.
func (f *Fetcher) attempt(ctx context.Context, id string) (int64, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	url := f.PayloadURL(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nonRetryable{fmt.Errorf("build request: %w", err)}
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		payload, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return 0, fmt.Errorf("read payload %s: %w", url, readErr)
		}
		if writeErr := f.store.Write(ctx, id, payload); writeErr != nil {
			return 0, nonRetryable{fmt.Errorf("persist payload: %w", writeErr)}
		}
		return int64(len(payload)), nil
	case resp.StatusCode == http.StatusNotFound:
		return 0, nonRetryable{fmt.Errorf("%w: %s", ErrNotFound, url)}
	default:
		httpErr := NewHTTPError(resp.StatusCode, url)
		if after := parseRetryAfter(resp.Header.Get("Retry-After")); after > 0 {
			httpErr = httpErr.WithRetryAfter(after)
		}
		return 0, httpErr
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
