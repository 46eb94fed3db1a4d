package protocol

import (
	"encoding/binary"
	"fmt"
)

// Command codes understood by the gateway.
const (
	// CmdReadStationMAC returns the 6-byte station MAC address.
	CmdReadStationMAC byte = 0x26

	// CmdLiveData returns the current readings of every paired sensor.
	CmdLiveData byte = 0x27

	// CmdReadSensorIDNew returns id, battery and signal for every sensor slot.
	CmdReadSensorIDNew byte = 0x3C

	// CmdReadFirmwareVersion returns the firmware version as ASCII.
	CmdReadFirmwareVersion byte = 0x50
)

// Frame layout constants.
const (
	// markerByte is repeated twice at the start of every frame.
	markerByte byte = 0xFF

	// markerLen is the length of the FF FF marker.
	markerLen = 2

	// checksumLen is the length of the trailing checksum.
	checksumLen = 1

	// maxShortPayload is the largest payload a one-byte size field can describe.
	maxShortPayload = 0xFF - 3
)

// Frame is a validated gateway response with its envelope stripped.
type Frame struct {
	// Command is the command code echoed by the gateway.
	Command byte

	// Payload is the data between the size field and the checksum.
	Payload []byte
}

// sizeWidth returns how many bytes the size field occupies for cmd.
// Live data and the sensor-id list can exceed 255 bytes, so the gateway
// uses a big-endian u16 for them.
func sizeWidth(cmd byte) int {
	switch cmd {
	case CmdLiveData, CmdReadSensorIDNew:
		return 2 //nolint:mnd // u16 size field
	default:
		return 1
	}
}

// Checksum returns the wrapping 8-bit sum of data.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// BuildPacket assembles a request frame for cmd with an optional payload.
//
// Requests always use a one-byte size field, even for commands whose
// responses use two.
//
// Parameters:
//   - cmd: Command code (e.g. CmdLiveData)
//   - payload: Command arguments, usually empty
//
// Returns:
//   - []byte: Complete frame ready to write to the socket
//   - error: If the payload cannot be described by a one-byte size
func BuildPacket(cmd byte, payload []byte) ([]byte, error) {
	if len(payload) > maxShortPayload {
		return nil, fmt.Errorf("%w: request payload of %d bytes too large", ErrFramingError, len(payload))
	}

	size := byte(len(payload) + 3) //nolint:mnd // cmd + size + checksum
	packet := make([]byte, 0, markerLen+int(size))
	packet = append(packet, markerByte, markerByte, cmd, size)
	packet = append(packet, payload...)
	packet = append(packet, Checksum(packet[markerLen:]))

	return packet, nil
}

// FrameLength reports the total length of the frame at the start of buf,
// as declared by its header. It returns false when buf does not yet hold
// enough bytes to read the header.
func FrameLength(buf []byte) (int, bool) {
	if len(buf) < markerLen+1 {
		return 0, false
	}
	width := sizeWidth(buf[markerLen])
	if len(buf) < markerLen+1+width {
		return 0, false
	}
	return markerLen + declaredSize(buf, width), true
}

// declaredSize reads the size field of a frame whose header is present.
func declaredSize(buf []byte, width int) int {
	if width == 2 { //nolint:mnd // u16 size field
		return int(binary.BigEndian.Uint16(buf[markerLen+1:]))
	}
	return int(buf[markerLen+1])
}

// ParseFrame validates the envelope of a raw gateway response.
//
// Checks are applied in wire order: marker, declared length, checksum.
// Bytes after the declared length are ignored.
//
// Parameters:
//   - raw: Bytes received from the gateway
//
// Returns:
//   - Frame: Command and payload of the response
//   - error: ErrFramingError, ErrTruncatedFrame or ErrChecksumMismatch
func ParseFrame(raw []byte) (Frame, error) {
	if len(raw) < markerLen || raw[0] != markerByte || raw[1] != markerByte {
		return Frame{}, fmt.Errorf("%w: missing FF FF marker", ErrFramingError)
	}
	if len(raw) < markerLen+1 {
		return Frame{}, fmt.Errorf("%w: no command byte", ErrTruncatedFrame)
	}

	cmd := raw[markerLen]
	width := sizeWidth(cmd)
	headerLen := markerLen + 1 + width
	if len(raw) < headerLen {
		return Frame{}, fmt.Errorf("%w: header needs %d bytes, got %d", ErrTruncatedFrame, headerLen, len(raw))
	}

	size := declaredSize(raw, width)
	if size < 1+width+checksumLen {
		return Frame{}, fmt.Errorf("%w: declared size %d too small for command 0x%02X", ErrFramingError, size, cmd)
	}

	total := markerLen + size
	if len(raw) < total {
		return Frame{}, fmt.Errorf("%w: declared %d bytes, got %d", ErrTruncatedFrame, total, len(raw))
	}

	body := raw[markerLen : total-checksumLen]
	want := raw[total-checksumLen]
	if got := Checksum(body); got != want {
		return Frame{}, fmt.Errorf("%w: computed 0x%02X, frame carries 0x%02X", ErrChecksumMismatch, got, want)
	}

	return Frame{
		Command: cmd,
		Payload: raw[headerLen : total-checksumLen],
	}, nil
}

// ParseResponse validates raw as the response to cmd.
func ParseResponse(raw []byte, cmd byte) (Frame, error) {
	frame, err := ParseFrame(raw)
	if err != nil {
		return Frame{}, err
	}
	if frame.Command != cmd {
		return Frame{}, fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrUnexpectedCommand, cmd, frame.Command)
	}
	return frame, nil
}
