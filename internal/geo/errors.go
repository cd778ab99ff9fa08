package geo

import "fmt"

// LookupError describes a failed lookup. The cache is never populated for a
// host whose lookup failed.
type LookupError struct {
	// Host is the host that was looked up.
	Host string

	// StatusCode is the HTTP status, 0 when no response was received.
	StatusCode int

	// Reason is a short description of what went wrong.
	Reason string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	msg := fmt.Sprintf("geo lookup for %s failed: %s", e.Host, e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *LookupError) Unwrap() error {
	return e.Cause
}
