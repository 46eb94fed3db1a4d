package protocol

import (
	"fmt"
)

// LiveData is the result of decoding a live-data response.
type LiveData struct {
	// Records are the decoded readings in wire order.
	Records []FieldRecord

	// Diagnostics are non-fatal problems met while walking the payload
	// (ErrUnknownField, ErrFieldOverrun). When present, Records holds
	// everything decoded before the walk stopped.
	Diagnostics []error
}

// Decode parses a raw live-data response into field records.
//
// The envelope is fully validated (marker, declared length, checksum)
// before any field is read, so a structural error never yields a partial
// record set.
//
// Parameters:
//   - raw: Response bytes for CmdLiveData
//
// Returns:
//   - *LiveData: Records in wire order plus any walk diagnostics
//   - error: ErrFramingError, ErrTruncatedFrame, ErrChecksumMismatch or
//     ErrUnexpectedCommand
func Decode(raw []byte) (*LiveData, error) {
	frame, err := ParseResponse(raw, CmdLiveData)
	if err != nil {
		return nil, err
	}
	return DecodeFields(frame.Payload), nil
}

// DecodeFields walks a live-data payload (envelope already removed).
//
// Each field is a type code followed by the fixed number of bytes given by
// the field table. The walk stops at the first code it cannot size, since
// the boundary of every following field is then unknown.
func DecodeFields(payload []byte) *LiveData {
	out := &LiveData{}

	for i := 0; i < len(payload); {
		code := payload[i]
		spec, ok := fieldTable[code]
		if !ok {
			out.Diagnostics = append(out.Diagnostics, fmt.Errorf(
				"%w: type 0x%02X at offset %d, %d bytes abandoned",
				ErrUnknownField, code, i, len(payload)-i))
			break
		}

		start := i + 1
		end := start + spec.size
		if end > len(payload) {
			out.Diagnostics = append(out.Diagnostics, fmt.Errorf(
				"%w: type 0x%02X needs %d bytes, %d remain",
				ErrFieldOverrun, code, spec.size, len(payload)-start))
			break
		}

		out.Records = append(out.Records, spec.decode(code, payload[start:end])...)
		i = end
	}

	return out
}
