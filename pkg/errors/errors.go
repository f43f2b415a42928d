package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeConfig represents an unusable site configuration
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeFetchTimeout represents a fetch that timed out
	ErrorTypeFetchTimeout ErrorType = "fetch_timeout"
	// ErrorTypeFetchStatus represents a non-2xx HTTP response
	ErrorTypeFetchStatus ErrorType = "fetch_status"
	// ErrorTypeFetchNetwork represents a network-level fetch failure
	ErrorTypeFetchNetwork ErrorType = "fetch_network"
	// ErrorTypeRateLimit represents the target rate-limiting us
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeStore represents document store unavailability
	ErrorTypeStore ErrorType = "store"
)

// ScrapeError represents a pipeline-specific error
type ScrapeError struct {
	Type       ErrorType
	Site       string
	Message    string
	StatusCode int
	// Attempts is how many fetch attempts were made before giving up,
	// 0 when not applicable
	Attempts int
	Err      error
	Time     time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Site, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Site, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if another attempt may succeed
func (e *ScrapeError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeFetchTimeout, ErrorTypeFetchNetwork, ErrorTypeFetchStatus:
		return true
	case ErrorTypeRateLimit:
		return false
	default:
		return false
	}
}

// New creates a new ScrapeError
func New(errType ErrorType, site, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		Site:    site,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewConfig creates a new configuration error
func NewConfig(site, message string) *ScrapeError {
	return New(ErrorTypeConfig, site, message, nil)
}

// NewFetchTimeout creates a new fetch timeout error
func NewFetchTimeout(site, url string, err error) *ScrapeError {
	return New(ErrorTypeFetchTimeout, site, fmt.Sprintf("fetch %s timed out", url), err)
}

// NewFetchStatus creates a new HTTP status error
func NewFetchStatus(site, url string, statusCode int) *ScrapeError {
	e := New(ErrorTypeFetchStatus, site, fmt.Sprintf("fetch %s returned status %d", url, statusCode), nil)
	e.StatusCode = statusCode
	return e
}

// NewFetchNetwork creates a new network error
func NewFetchNetwork(site, url string, err error) *ScrapeError {
	return New(ErrorTypeFetchNetwork, site, fmt.Sprintf("fetch %s failed", url), err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(site string, duration time.Duration) *ScrapeError {
	return New(ErrorTypeRateLimit, site, fmt.Sprintf("rate limited for %v", duration), nil)
}

// NewParsing creates a new parsing error
func NewParsing(site, message string, err error) *ScrapeError {
	return New(ErrorTypeParsing, site, message, err)
}

// NewStore creates a new store error
func NewStore(message string, err error) *ScrapeError {
	return New(ErrorTypeStore, "", message, err)
}

// TypeOf returns the ErrorType of err, or an empty string for foreign errors
func TypeOf(err error) ErrorType {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Type
	}
	return ""
}

// AttemptsOf returns the fetch attempt count carried by err, or 0 when the
// error does not record one
func AttemptsOf(err error) int {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Attempts
	}
	return 0
}

// IsStoreError reports whether err is a store availability error
func IsStoreError(err error) bool {
	return TypeOf(err) == ErrorTypeStore
}
