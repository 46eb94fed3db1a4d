package poller

import "errors"

// Domain errors for the poller.
var (
	// ErrNoGateways is returned when the scheduler is started without any
	// gateway.
	ErrNoGateways = errors.New("poller: no gateways configured")

	// ErrInvalidInterval is returned when the poll interval is not positive.
	ErrInvalidInterval = errors.New("poller: poll interval must be positive")
)
