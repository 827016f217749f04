package remote

import "errors"

var (
	// ErrNoEndpoints indicates the provider returned no endpoints for a service.
	ErrNoEndpoints = errors.New("remote: no endpoints available")
	// ErrClosed is returned by calls on a closed transport.
	ErrClosed = errors.New("remote: transport closed")
)
