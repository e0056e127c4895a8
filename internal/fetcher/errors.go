package fetcher

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors surfaced by Fetch.
var (
	// ErrInvalidIdentifier marks a malformed identifier; no network call is
	// made for it and it is never retried.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrNotFound marks an item the archive has no payload for. Absence is a
	// normal terminal outcome, not a failure, and is never retried.
	ErrNotFound = errors.New("item payload not found")

	// ErrRetriesExhausted wraps the last transient error once the retry
	// budget is spent.
	ErrRetriesExhausted = errors.New("retry attempts exhausted")
)

// ErrorClass groups HTTP failures by how they should be handled.
type ErrorClass string

// Supported error classes.
const (
	// ErrorClassClient covers 4xx responses other than 404 and 429. Retrying
	// them wastes budget.
	ErrorClassClient ErrorClass = "client"
	// ErrorClassRateLimit covers 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"
	// ErrorClassServer covers 5xx responses.
	ErrorClassServer ErrorClass = "server"
)

// HTTPError carries the status code and classification of a failed archive
// response, plus the server's Retry-After hint when one was sent.
type HTTPError struct {
	StatusCode int
	Class      ErrorClass
	URL        string

	retryAfter    time.Duration
	hasRetryAfter bool
}

// NewHTTPError classifies a non-success status code.
func NewHTTPError(statusCode int, url string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Class:      classifyStatus(statusCode),
		URL:        url,
	}
}

// WithRetryAfter attaches a server-provided backoff hint.
func (e *HTTPError) WithRetryAfter(d time.Duration) *HTTPError {
	e.retryAfter = d
	e.hasRetryAfter = true
	return e
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("archive %s error (status %d) for %s", e.Class, e.StatusCode, e.URL)
}

// Retryable reports whether this class of failure may be retried.
func (e *HTTPError) Retryable() bool {
	switch e.Class {
	case ErrorClassRateLimit, ErrorClassServer:
		return true
	default:
		return false
	}
}

// RetryAfter returns the server's backoff hint, if any.
func (e *HTTPError) RetryAfter() (time.Duration, bool) {
	return e.retryAfter, e.hasRetryAfter
}

func classifyStatus(code int) ErrorClass {
	switch {
	case code == 429:
		return ErrorClassRateLimit
	case code >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// nonRetryable wraps errors that must stop the retry loop immediately even
// though they are not HTTPErrors.
type nonRetryable struct {
	err error
}

func (e nonRetryable) Error() string   { return e.err.Error() }
func (e nonRetryable) Unwrap() error   { return e.err }
func (e nonRetryable) Retryable() bool { return false }
