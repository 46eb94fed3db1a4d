package sensors

import "errors"

// Domain errors for the sensors package.
var (
	// ErrUnmappedKey marks a decoded field with no sensor configuration.
	// It is a per-field diagnostic, never a cycle failure.
	ErrUnmappedKey = errors.New("sensors: unmapped key")

	// ErrInvalidDefinition is returned when a definition file contains an
	// entry without a key or with an unexpected shape.
	ErrInvalidDefinition = errors.New("sensors: invalid definition")

	// ErrLoadFailed is returned when a definition file cannot be read.
	ErrLoadFailed = errors.New("sensors: load failed")
)
