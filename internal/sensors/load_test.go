package sensors

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestParseDefinitions_Sequence(t *testing.T) {
	data := []byte(`
- key: rain_rate
  name: Rain rate
  device_class: precipitation_intensity
  unit: mm/h
- key: wind_dir
  class: wind_direction
  value_template: "{{ value | int }}"
- key: rain_rate
  unit: ""
`)

	defs, err := ParseDefinitions(data)
	if err != nil {
		t.Fatalf("ParseDefinitions() error = %v", err)
	}
	if len(defs) != 3 {
		t.Fatalf("got %d definitions, want 3", len(defs))
	}
	if defs[1].DeviceClass == nil || *defs[1].DeviceClass != "wind_direction" {
		t.Errorf("class alias not mapped: %+v", defs[1])
	}
	if defs[1].ValueTemplate == nil || *defs[1].ValueTemplate != "{{ value | int }}" {
		t.Errorf("value_template = %v", defs[1].ValueTemplate)
	}
	if defs[2].Unit == nil || *defs[2].Unit != "" {
		t.Errorf("explicit empty unit should be present: %+v", defs[2].Unit)
	}
	if defs[2].Name != nil {
		t.Errorf("absent name should be nil, got %q", *defs[2].Name)
	}
}

func TestParseDefinitions_JSONMapping(t *testing.T) {
	data := []byte(`{
  "outdoor_temp": {"name": "Outside", "class": "temperature", "unit": "°C"},
  "in_humidity": {"class": "humidity", "unit": "%", "name": null},
  "abs_barometer": {}
}`)

	defs, err := ParseDefinitions(data)
	if err != nil {
		t.Fatalf("ParseDefinitions() error = %v", err)
	}

	keys := []string{"outdoor_temp", "in_humidity", "abs_barometer"}
	if len(defs) != len(keys) {
		t.Fatalf("got %d definitions, want %d", len(defs), len(keys))
	}
	for i, k := range keys {
		if defs[i].Key != k {
			t.Errorf("defs[%d].Key = %q, want %q (document order)", i, defs[i].Key, k)
		}
	}
	if defs[1].Name != nil {
		t.Error("null name should decode as absent")
	}
	if *defs[0].DeviceClass != "temperature" {
		t.Errorf("DeviceClass = %q", *defs[0].DeviceClass)
	}
}

func TestParseDefinitions_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "missing key", data: "- name: nameless\n"},
		{name: "scalar root", data: "just a string\n"},
		{name: "malformed", data: "- key: [unterminated\n"},
		{name: "wrong entry shape", data: "- [1, 2]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseDefinitions([]byte(tt.data)); !errors.Is(err, ErrInvalidDefinition) {
				t.Errorf("ParseDefinitions() error = %v, want ErrInvalidDefinition", err)
			}
		})
	}
}

func TestParseDefinitions_Empty(t *testing.T) {
	for _, data := range []string{"", "~\n", "# only a comment\n"} {
		defs, err := ParseDefinitions([]byte(data))
		if err != nil || len(defs) != 0 {
			t.Errorf("ParseDefinitions(%q) = %v, %v; want empty", data, defs, err)
		}
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, ErrLoadFailed) {
		t.Errorf("LoadFile() error = %v, want ErrLoadFailed", err)
	}
}
