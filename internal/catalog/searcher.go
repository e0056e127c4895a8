// Package catalog queries the archive's search API for item identifiers
// matching a collection and optional date range.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jfelder/chronicle-harvester/internal/identifier"
	"github.com/jfelder/chronicle-harvester/internal/ratelimit"
	"github.com/jfelder/chronicle-harvester/internal/retry"
)

// Query describes one catalog search.
type Query struct {
	// Collection is the archive collection to enumerate.
	Collection string
	// From and To bound the item date inclusively, "YYYY-MM-DD". Both empty
	// disables the date filter; setting only one is an error.
	From string
	To   string
	// Limit truncates the result list. The searcher never paginates; callers
	// needing more rows issue further searches with adjusted filters.
	Limit int
}

// Validate checks the query before any request is built.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Collection) == "" {
		return fmt.Errorf("collection is required")
	}
	if (q.From == "") != (q.To == "") {
		return fmt.Errorf("date range requires both from and to")
	}
	for _, d := range []string{q.From, q.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("bad date %q: %w", d, err)
		}
	}
	if q.Limit <= 0 {
		return fmt.Errorf("limit must be > 0")
	}
	return nil
}

// Config holds the searcher's knobs.
type Config struct {
	// SearchBaseURL is the advanced-search endpoint, e.g.
	// "https://archive.example.org/advancedsearch.php".
	SearchBaseURL string
	// MediaType narrows results; defaults to "texts".
	MediaType string
	// Timeout bounds each individual HTTP attempt.
	Timeout time.Duration
	// Retry governs transient-failure handling.
	Retry retry.Policy
	// UserAgent is sent with every request.
	UserAgent string
}

// Searcher translates queries into ordered identifier lists. Results are
// sorted by item date ascending so repeated searches over an unchanged
// catalog are reproducible.
type Searcher struct {
	client  *http.Client
	limiter *ratelimit.Limiter
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Searcher sharing the process-wide limiter.
func New(limiter *ratelimit.Limiter, cfg Config, logger *zap.Logger) (*Searcher, error) {
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if cfg.SearchBaseURL == "" {
		return nil, fmt.Errorf("search base URL is required")
	}
	if cfg.MediaType == "" {
		cfg.MediaType = "texts"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// response mirrors the wire format of the search endpoint.
type response struct {
	Response struct {
		NumFound int `json:"numFound"`
		Docs     []struct {
			Identifier string `json:"identifier"`
			Date       string `json:"date"`
		} `json:"docs"`
	} `json:"response"`
}

// Search returns identifiers matching the query, in ascending date order.
// Zero matches yields an empty slice and no error.
func (s *Searcher) Search(ctx context.Context, q Query) ([]string, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("catalog query: %w", err)
	}
	reqURL := s.buildURL(q)

	var ids []string
	attempts, err := retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) error {
		found, attemptErr := s.attempt(ctx, reqURL)
		ids = found
		return attemptErr
	})
	if err != nil {
		return nil, fmt.Errorf("catalog search after %d attempt(s): %w", attempts, err)
	}
	s.logger.Info("catalog search finished",
		zap.String("collection", q.Collection),
		zap.Int("identifiers", len(ids)),
		zap.Int("attempts", attempts),
	)
	return ids, nil
}

func (s *Searcher) buildURL(q Query) string {
	terms := []string{
		fmt.Sprintf("collection:(%s)", q.Collection),
		fmt.Sprintf("mediatype:(%s)", s.cfg.MediaType),
	}
	if q.From != "" {
		terms = append(terms, fmt.Sprintf("date:[%s TO %s]", q.From, q.To))
	}
	v := url.Values{}
	v.Set("q", strings.Join(terms, " AND "))
	v.Add("fl[]", "identifier")
	v.Add("fl[]", "date")
	v.Add("sort[]", "date asc")
	v.Set("rows", strconv.Itoa(q.Limit))
	v.Set("page", "1")
	v.Set("output", "json")
	return s.cfg.SearchBaseURL + "?" + v.Encode()
}

// attempt performs one rate-limited search request. Non-200 responses and
// malformed JSON are both retryable: the endpoint emits truncated bodies
// when it is overloaded.
func (s *Searcher) attempt(ctx context.Context, reqURL string) ([]string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]string, 0, len(body.Response.Docs))
	for _, doc := range body.Response.Docs {
		if !identifier.Valid(doc.Identifier) {
			s.logger.Warn("skipping malformed identifier from catalog", zap.String("identifier", doc.Identifier))
			continue
		}
		ids = append(ids, doc.Identifier)
	}
	return ids, nil
}
