package netclient

import "errors"

var (
	// ErrInvalidProxyAddress is returned when the proxy address is not "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrTooManyRedirects is returned by the redirect policy when a request
	// follows more than MaxRedirects hops.
	ErrTooManyRedirects = errors.New("stopped after too many redirects")
)
