package protocol

import "errors"

// Decode errors. Use errors.Is() to check for these in calling code.
var (
	// ErrFramingError is returned when a frame lacks the FF FF marker or
	// carries a declared length that cannot describe a valid frame.
	ErrFramingError = errors.New("protocol: framing error")

	// ErrTruncatedFrame is returned when the buffer is shorter than the
	// length declared in its header.
	ErrTruncatedFrame = errors.New("protocol: truncated frame")

	// ErrChecksumMismatch is returned when the trailing checksum byte does
	// not match the computed sum. The entire frame is discarded.
	ErrChecksumMismatch = errors.New("protocol: checksum mismatch")

	// ErrUnexpectedCommand is returned when a response echoes a different
	// command code than the one requested.
	ErrUnexpectedCommand = errors.New("protocol: unexpected command")

	// ErrUnknownField is reported (as a diagnostic, not a failure) when the
	// live-data walk meets a type code absent from the field table.
	ErrUnknownField = errors.New("protocol: unknown field")

	// ErrFieldOverrun is reported (as a diagnostic) when a known field's
	// fixed length runs past the end of the payload.
	ErrFieldOverrun = errors.New("protocol: field overruns payload")
)
