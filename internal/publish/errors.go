package publish

import "errors"

// Domain-specific errors for publishing.
var (
	// ErrPublishFailure is returned when a discovery, state or info message
	// could not be delivered. It wraps the broker session error.
	ErrPublishFailure = errors.New("publish: publish failed")

	// ErrEncodeFailed is returned when a payload cannot be serialised.
	ErrEncodeFailed = errors.New("publish: encode failed")

	// ErrStore is returned when the fingerprint store cannot be read or written.
	ErrStore = errors.New("publish: fingerprint store error")
)
