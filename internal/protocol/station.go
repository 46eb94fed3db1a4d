package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// macLen is the length of a station MAC address.
const macLen = 6

// sensorEntryLen is the size of one entry in the sensor-id list.
const sensorEntryLen = 7

// inactiveAddress marks an empty sensor slot in the sensor-id list.
const inactiveAddress uint32 = 0xFFFFFFFF

// ParseStationMAC extracts the MAC address from a CmdReadStationMAC response.
//
// Returns the address formatted as "AA:BB:CC:DD:EE:FF".
func ParseStationMAC(raw []byte) (string, error) {
	frame, err := ParseResponse(raw, CmdReadStationMAC)
	if err != nil {
		return "", err
	}
	if len(frame.Payload) < macLen {
		return "", fmt.Errorf("%w: mac payload has %d bytes", ErrTruncatedFrame, len(frame.Payload))
	}

	parts := make([]string, macLen)
	for i, b := range frame.Payload[:macLen] {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":"), nil
}

// ParseFirmware extracts the firmware string from a CmdReadFirmwareVersion
// response. The payload is a length byte followed by ASCII.
func ParseFirmware(raw []byte) (string, error) {
	frame, err := ParseResponse(raw, CmdReadFirmwareVersion)
	if err != nil {
		return "", err
	}
	if len(frame.Payload) == 0 {
		return "", fmt.Errorf("%w: empty firmware payload", ErrTruncatedFrame)
	}

	n := int(frame.Payload[0])
	if len(frame.Payload) < 1+n {
		return "", fmt.Errorf("%w: firmware declares %d bytes, got %d", ErrTruncatedFrame, n, len(frame.Payload)-1)
	}
	return string(frame.Payload[1 : 1+n]), nil
}

// SensorInfo describes one paired sensor as reported by CmdReadSensorIDNew.
type SensorInfo struct {
	// TypeID is the vendor sensor-slot code.
	TypeID uint8

	// Name is the slot name, e.g. "wh65" or "wh31_ch2"; "unknown" if unmapped.
	Name string

	// Description is a human-readable model name, e.g. "WH-31 channel 2".
	Description string

	// Address is the radio id of the paired sensor.
	Address uint32

	// BatteryLevel is the raw battery byte.
	BatteryLevel uint8

	// Battery is BatteryLevel interpreted for this sensor family.
	Battery BatteryState

	// Signal is the reception quality, 0–4.
	Signal uint8
}

// DecodeSensorInfo parses a CmdReadSensorIDNew response.
//
// Empty slots (address 0xFFFFFFFF) are skipped. A trailing partial entry
// is ignored.
func DecodeSensorInfo(raw []byte) ([]SensorInfo, error) {
	frame, err := ParseResponse(raw, CmdReadSensorIDNew)
	if err != nil {
		return nil, err
	}

	var infos []SensorInfo
	data := frame.Payload
	for i := 0; i+sensorEntryLen <= len(data); i += sensorEntryLen {
		entry := data[i : i+sensorEntryLen]
		addr := binary.BigEndian.Uint32(entry[1:5])
		if addr == inactiveAddress {
			continue
		}

		typeID := entry[0]
		name, desc := sensorTypeName(typeID)
		infos = append(infos, SensorInfo{
			TypeID:       typeID,
			Name:         name,
			Description:  desc,
			Address:      addr,
			BatteryLevel: entry[5],
			Battery:      sensorBattery(typeID, entry[5]),
			Signal:       entry[6],
		})
	}

	return infos, nil
}

// sensorTypeName maps a sensor-slot code to its short and descriptive names.
func sensorTypeName(id uint8) (name, desc string) {
	channel := func(model string, base uint8) (string, string) {
		ch := id - base
		return fmt.Sprintf("%s_ch%d", strings.ToLower(strings.ReplaceAll(model, "-", "")), ch),
			fmt.Sprintf("%s channel %d", model, ch)
	}

	switch {
	case id == 0x00:
		return "wh65", "WH-65"
	case id == 0x01:
		return "wh68", "WH-68"
	case id == 0x02:
		return "wh80", "WH-80"
	case id == 0x03:
		return "wh40", "WH-40"
	case id == 0x04:
		return "wh25", "WH-25"
	case id == 0x05:
		return "wh26", "WH-26"
	case id >= 0x06 && id <= 0x0D:
		return channel("WH-31", 0x05)
	case id >= 0x0E && id <= 0x15:
		return channel("WH-51", 0x0D)
	case id >= 0x16 && id <= 0x19:
		return channel("WH-41", 0x15)
	case id == 0x1A:
		return "wh57", "WH-57"
	case id >= 0x1B && id <= 0x1E:
		return channel("WH-55", 0x1A)
	case id >= 0x1F && id <= 0x25:
		return channel("WH-34", 0x1E)
	case id == 0x27:
		return "wh45", "WH-45"
	case id >= 0x28 && id <= 0x2F:
		return channel("WH-35", 0x27)
	default:
		return "unknown", "unknown"
	}
}

// sensorBattery interprets a battery byte according to the sensor family.
//
// Three encodings exist: a binary low flag, a 0–6 level, and a voltage in
// tenths of a volt.
func sensorBattery(id, level uint8) BatteryState {
	switch {
	case id == 0x00 || id == 0x04 || (id >= 0x05 && id <= 0x0D):
		switch level {
		case 0:
			return BatteryOK
		case 1:
			return BatteryLow
		default:
			return BatteryUnknown
		}
	case (id >= 0x16 && id <= 0x1E) || id == 0x27:
		return BatteryState(levelBattery(uint32(level)))
	case (id >= 0x01 && id <= 0x03) || (id >= 0x0E && id <= 0x15) ||
		(id >= 0x1F && id <= 0x26) || (id >= 0x28 && id <= 0x30):
		if float64(level)/10 <= 1.2 { //nolint:mnd // volts
			return BatteryLow
		}
		return BatteryOK
	default:
		return BatteryUnknown
	}
}
