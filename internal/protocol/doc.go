// Package protocol implements the Ecowitt gateway binary API used by the
// GW1000/GW1100/GW2000 family of weather-station hubs.
//
// A gateway answers every request with a single frame:
//
//	FF FF | command | size (1 or 2 bytes) | payload | checksum
//
// The size field counts the command byte, the size field itself, the payload
// and the checksum. The checksum is the low byte of the sum of every byte from
// the command up to (but excluding) the checksum.
//
// The live-data payload is a flat sequence of type-tagged fields. Each type
// code has a fixed length defined by the vendor, so the walker looks the code
// up in a static table (see fields.go) to know how many bytes follow and how
// to scale them.
//
// # Error Model
//
// Structural problems (missing marker, truncated frame, checksum mismatch)
// reject the whole frame: no records are returned. An unknown type code stops
// the walk but keeps every record decoded before it; the condition is reported
// through Frame.Diagnostics rather than the error return.
//
// # Usage
//
//	frame, err := protocol.Decode(raw)
//	if err != nil {
//	    return err // ErrFramingError, ErrTruncatedFrame or ErrChecksumMismatch
//	}
//	for _, rec := range frame.Records {
//	    fmt.Println(rec.Key, rec.Value)
//	}
package protocol
