package gateway

import "errors"

// Domain errors for the gateway package.
var (
	// ErrTransportFailure wraps every error raised while talking to a
	// gateway: dial, write, read, timeout, or an open circuit breaker.
	ErrTransportFailure = errors.New("gateway: transport failure")

	// ErrCircuitOpen is returned (wrapped in ErrTransportFailure) while the
	// breaker for a gateway is open.
	ErrCircuitOpen = errors.New("gateway: circuit open")

	// ErrEmptyResponse is returned when the gateway closes the connection
	// without sending anything.
	ErrEmptyResponse = errors.New("gateway: empty response")
)
