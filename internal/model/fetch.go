package model

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/crypto/sha3"
)

// FetchErrorKind classifies why a fetch did not produce a usable body.
type FetchErrorKind int

const (
	// FetchErrorNetwork covers connection, DNS and protocol failures.
	FetchErrorNetwork FetchErrorKind = iota

	// FetchErrorTimeout is returned when the request exceeded its deadline.
	FetchErrorTimeout

	// FetchErrorHTTPStatus marks a response whose status was not 200.
	// This is a soft failure: traversal continues, analysis is skipped.
	FetchErrorHTTPStatus

	// FetchErrorCanceled is returned when the crawl context was cancelled.
	FetchErrorCanceled

	// FetchErrorBody covers failures while reading or decoding the body,
	// and 200 responses with an empty body.
	FetchErrorBody
)

// String returns a short name for the error kind.
func (k FetchErrorKind) String() string {
	switch k {
	case FetchErrorNetwork:
		return "network"
	case FetchErrorTimeout:
		return "timeout"
	case FetchErrorHTTPStatus:
		return "http-status"
	case FetchErrorCanceled:
		return "canceled"
	case FetchErrorBody:
		return "body"
	default:
		return "unknown"
	}
}

// FetchError is the typed failure carried by a FetchResult.
// Cause holds the original transport error when there is one.
type FetchError struct {
	// Kind classifies the failure.
	Kind FetchErrorKind

	// URL is the URL that was requested.
	URL string

	// StatusCode is set for FetchErrorHTTPStatus.
	StatusCode int

	// Cause is the underlying error, nil for FetchErrorHTTPStatus.
	Cause error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Kind == FetchErrorHTTPStatus {
		return fmt.Sprintf("fetch %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

// Unwrap returns the underlying cause so errors.Is works with
// context.DeadlineExceeded and friends.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether a retry could plausibly succeed.
// Only network failures qualify; status codes and cancellation are final.
func (e *FetchError) Retryable() bool {
	return e.Kind == FetchErrorNetwork
}

// IsFetchErrorKind reports whether err is a *FetchError of the given kind.
func IsFetchErrorKind(err error, kind FetchErrorKind) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// FetchResult is the immutable outcome of one GET request.
// It is owned by the task that issued the fetch and passed by pointer to the
// analyzers, which must not modify it.
type FetchResult struct {
	// URL is the requested URL.
	URL string `json:"url"`

	// FinalURL is the URL after following redirects.
	// Relative links in the body resolve against this URL.
	FinalURL string `json:"final_url,omitempty"`

	// StatusCode is the HTTP status, 0 when no response was received.
	StatusCode int `json:"status_code"`

	// ContentType is the response Content-Type header.
	ContentType string `json:"content_type,omitempty"`

	// Body is the UTF-8 decoded response body.
	// Only set when StatusCode is 200 and the body is non-empty.
	Body string `json:"-"`

	// Err is non-nil when the fetch did not produce a usable body.
	Err *FetchError `json:"-"`
}

// OK reports whether the fetch produced a body suitable for analysis.
func (r *FetchResult) OK() bool {
	return r != nil && r.Err == nil && r.StatusCode == http.StatusOK && r.Body != ""
}

// BaseURL returns the URL that relative references in the body resolve against.
func (r *FetchResult) BaseURL() string {
	if r.FinalURL != "" {
		return r.FinalURL
	}
	return r.URL
}

// Hash returns the hex-encoded SHA3-256 digest of the body,
// or an empty string when there is no body.
func (r *FetchResult) Hash() string {
	if r == nil || r.Body == "" {
		return ""
	}
	sum := sha3.Sum256([]byte(r.Body))
	return hex.EncodeToString(sum[:])
}
