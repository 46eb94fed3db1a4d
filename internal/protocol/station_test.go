package protocol

import (
	"errors"
	"testing"
)

func TestParseStationMAC(t *testing.T) {
	raw := buildResponse(CmdReadStationMAC, []byte{0x48, 0x3F, 0xDA, 0x01, 0x0A, 0xFF})
	got, err := ParseStationMAC(raw)
	if err != nil {
		t.Fatalf("ParseStationMAC() error = %v", err)
	}
	if got != "48:3F:DA:01:0A:FF" {
		t.Errorf("ParseStationMAC() = %q", got)
	}

	short := buildResponse(CmdReadStationMAC, []byte{0x48, 0x3F})
	if _, err := ParseStationMAC(short); !errors.Is(err, ErrTruncatedFrame) {
		t.Errorf("ParseStationMAC(short) error = %v, want ErrTruncatedFrame", err)
	}
}

func TestParseFirmware(t *testing.T) {
	version := "GW1100A_V2.3.1"
	payload := append([]byte{byte(len(version))}, version...)

	got, err := ParseFirmware(buildResponse(CmdReadFirmwareVersion, payload))
	if err != nil {
		t.Fatalf("ParseFirmware() error = %v", err)
	}
	if got != version {
		t.Errorf("ParseFirmware() = %q, want %q", got, version)
	}

	lying := buildResponse(CmdReadFirmwareVersion, []byte{0x10, 'G', 'W'})
	if _, err := ParseFirmware(lying); !errors.Is(err, ErrTruncatedFrame) {
		t.Errorf("ParseFirmware(lying length) error = %v, want ErrTruncatedFrame", err)
	}
}

func TestDecodeSensorInfo(t *testing.T) {
	payload := []byte{
		0x00, 0x00, 0x00, 0x00, 0xC4, 0x00, 0x04, // wh65, battery ok
		0x03, 0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x00, // wh40, empty slot
		0x07, 0x00, 0x00, 0x00, 0x2A, 0x01, 0x03, // wh31 ch2, battery low
		0x16, 0x00, 0x00, 0x01, 0x00, 0x06, 0x04, // wh41 ch1, powered
		0x0E, 0x00, 0x00, 0x00, 0x99, 0x0B, 0x02, // wh51 ch1, 1.1 V
		0x27, 0x00, 0x00, 0x00, 0x10, 0x04, 0x04, // wh45, level 4
		0x01, 0x02, // partial trailing entry
	}

	got, err := DecodeSensorInfo(buildResponse(CmdReadSensorIDNew, payload))
	if err != nil {
		t.Fatalf("DecodeSensorInfo() error = %v", err)
	}

	want := []struct {
		name    string
		desc    string
		address uint32
		battery BatteryState
		signal  uint8
	}{
		{"wh65", "WH-65", 0xC4, BatteryOK, 4},
		{"wh31_ch2", "WH-31 channel 2", 0x2A, BatteryLow, 3},
		{"wh41_ch1", "WH-41 channel 1", 0x0100, BatteryConnected, 4},
		{"wh51_ch1", "WH-51 channel 1", 0x99, BatteryLow, 2},
		{"wh45", "WH-45", 0x10, BatteryOK, 4},
	}

	if len(got) != len(want) {
		t.Fatalf("DecodeSensorInfo() returned %d sensors, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		s := got[i]
		if s.Name != w.name || s.Description != w.desc {
			t.Errorf("sensor[%d] = %s (%s), want %s (%s)", i, s.Name, s.Description, w.name, w.desc)
		}
		if s.Address != w.address {
			t.Errorf("%s address = 0x%X, want 0x%X", w.name, s.Address, w.address)
		}
		if s.Battery != w.battery {
			t.Errorf("%s battery = %s, want %s", w.name, s.Battery, w.battery)
		}
		if s.Signal != w.signal {
			t.Errorf("%s signal = %d, want %d", w.name, s.Signal, w.signal)
		}
	}
}

func TestSensorBattery(t *testing.T) {
	tests := []struct {
		name  string
		id    uint8
		level uint8
		want  BatteryState
	}{
		{name: "binary ok", id: 0x00, level: 0, want: BatteryOK},
		{name: "binary low", id: 0x04, level: 1, want: BatteryLow},
		{name: "binary out of range", id: 0x06, level: 9, want: BatteryUnknown},
		{name: "level low", id: 0x1A, level: 1, want: BatteryLow},
		{name: "level ok", id: 0x1B, level: 5, want: BatteryOK},
		{name: "level powered", id: 0x27, level: 6, want: BatteryConnected},
		{name: "voltage low", id: 0x02, level: 12, want: BatteryLow},
		{name: "voltage ok", id: 0x1F, level: 14, want: BatteryOK},
		{name: "unknown family", id: 0x40, level: 0, want: BatteryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sensorBattery(tt.id, tt.level); got != tt.want {
				t.Errorf("sensorBattery(0x%02X, %d) = %s, want %s", tt.id, tt.level, got, tt.want)
			}
		})
	}
}
