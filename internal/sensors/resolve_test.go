package sensors

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-weather/internal/protocol"
)

// recordingLogger captures messages for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Error(string, ...any) {}
func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func record(key string, v float64) protocol.FieldRecord {
	return protocol.FieldRecord{Key: key, Value: protocol.NumberValue(v)}
}

func TestResolveCycle_UnmappedCounts(t *testing.T) {
	snap := Build([]Definition{{Key: "temp_1"}, {Key: "rain_rate"}}, map[string][]Definition{"gw1": nil})

	tests := []struct {
		name         string
		records      []protocol.FieldRecord
		wantReadings int
		wantUnmapped int
	}{
		{name: "none", records: nil},
		{name: "all mapped", records: []protocol.FieldRecord{record("temp_1", 1), record("rain_rate", 2)}, wantReadings: 2},
		{name: "all unmapped", records: []protocol.FieldRecord{record("uv", 1), record("leak1", 0), record("light", 3)}, wantUnmapped: 3},
		{
			name: "mixed",
			records: []protocol.FieldRecord{
				record("temp_1", 1), record("uv", 2), record("rain_rate", 3), record("uv_index", 4), record("wind_dir", 5),
			},
			wantReadings: 2,
			wantUnmapped: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &recordingLogger{}
			readings, diags := ResolveCycle("gw1", tt.records, snap, time.Now(), logger)

			if len(readings) != tt.wantReadings {
				t.Errorf("readings = %d, want %d", len(readings), tt.wantReadings)
			}
			if len(diags) != tt.wantUnmapped {
				t.Errorf("diagnostics = %d, want %d", len(diags), tt.wantUnmapped)
			}
			if len(logger.warns) != tt.wantUnmapped {
				t.Errorf("log lines = %d, want %d", len(logger.warns), tt.wantUnmapped)
			}
			for _, d := range diags {
				if !errors.Is(d, ErrUnmappedKey) {
					t.Errorf("diagnostic %v is not ErrUnmappedKey", d)
				}
			}
		})
	}
}

func TestResolveCycle_DiagnosticFormat(t *testing.T) {
	snap := Build(nil, map[string][]Definition{"GW1000-A": nil})
	logger := &recordingLogger{}

	records := []protocol.FieldRecord{
		{Key: "wind_dir", Value: protocol.NumberValue(3)},
		{Key: "outdoor_temp", Value: protocol.NumberValue(-2.5)},
		{Key: "battery_wh45", Value: protocol.EnumValue("low")},
	}
	ResolveCycle("GW1000-A", records, snap, time.Now(), logger)

	want := []string{
		"Failed to find sensor config for GW1000-A:wind_dir - value 3",
		"Failed to find sensor config for GW1000-A:outdoor_temp - value -2.5",
		"Failed to find sensor config for GW1000-A:battery_wh45 - value low",
	}
	if len(logger.warns) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(logger.warns), len(want), logger.warns)
	}
	for i := range want {
		if logger.warns[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, logger.warns[i], want[i])
		}
	}
}

func TestResolveCycle_ReadingCarriesSpecAndPrecision(t *testing.T) {
	snap := Build(
		[]Definition{{Key: "rel_barometer", Name: StringPtr("Pressure"), Unit: StringPtr("hPa")}},
		map[string][]Definition{"gw1": nil},
	)
	at := time.Date(2026, 3, 15, 12, 30, 0, 0, time.UTC)

	readings, diags := ResolveCycle("gw1", []protocol.FieldRecord{record("rel_barometer", 1013.37)}, snap, at, nil)
	if len(diags) != 0 || len(readings) != 1 {
		t.Fatalf("readings = %d, diagnostics = %d", len(readings), len(diags))
	}

	r := readings[0]
	if r.GatewayID != "gw1" || r.Key != "rel_barometer" || !r.PollTime.Equal(at) {
		t.Errorf("reading = %+v", r)
	}
	if r.Value.Number != 1013.37 {
		t.Errorf("Value = %v, want unchanged 1013.37", r.Value.Number)
	}
	if r.Spec.Name != "Pressure" || r.Spec.Unit != "hPa" {
		t.Errorf("Spec = %+v", r.Spec)
	}
}

func TestResolveCycle_PreservesWireOrder(t *testing.T) {
	defs := []Definition{{Key: "c"}, {Key: "a"}, {Key: "b"}}
	snap := Build(defs, map[string][]Definition{"gw": nil})

	readings, _ := ResolveCycle("gw", []protocol.FieldRecord{record("b", 1), record("a", 2), record("c", 3)}, snap, time.Now(), nil)
	for i, want := range []string{"b", "a", "c"} {
		if readings[i].Key != want {
			t.Errorf("readings[%d] = %s, want %s", i, readings[i].Key, want)
		}
	}
}
