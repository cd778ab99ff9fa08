package crawler

import "errors"

var (
	// ErrInvalidSeed is returned when the seed is not an absolute http(s) URL.
	ErrInvalidSeed = errors.New("seed must be an absolute http or https URL")

	// ErrInvalidBaseURL is returned by ExtractLinks for an unparsable base.
	ErrInvalidBaseURL = errors.New("invalid base URL")
)
