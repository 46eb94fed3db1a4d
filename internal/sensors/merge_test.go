package sensors

import (
	"reflect"
	"testing"
)

func TestMerge_LocalOverridesPresentFields(t *testing.T) {
	global := []Definition{{
		Key:         "temp_1",
		Name:        StringPtr("Garden"),
		DeviceClass: StringPtr("temperature"),
		Unit:        StringPtr("°C"),
	}}
	local := []Definition{{
		Key:  "temp_1",
		Name: StringPtr("Greenhouse"),
		Unit: StringPtr(""),
	}}

	got := Merge(global, local)["temp_1"]
	want := Spec{
		Key:         "temp_1",
		Name:        "Greenhouse",
		DeviceClass: "temperature",
		Unit:        "",
	}
	if got != want {
		t.Errorf("Merge() = %+v, want %+v", got, want)
	}
}

func TestMerge_Identities(t *testing.T) {
	defs := []Definition{
		{Key: "rain_rate", Name: StringPtr("Rain rate"), Unit: StringPtr("mm/h")},
		{Key: "wind_dir", DeviceClass: StringPtr("wind_direction"), ValueTemplate: StringPtr("{{ value | int }}")},
	}

	t.Run("empty local yields global", func(t *testing.T) {
		if got, want := Merge(defs, nil), Merge(defs, defs[:0]); !reflect.DeepEqual(got, want) {
			t.Errorf("Merge(g, nil) = %v, Merge(g, []) = %v", got, want)
		}
		got := Merge(defs, nil)
		if len(got) != 2 || got["rain_rate"].Unit != "mm/h" || got["wind_dir"].ValueTemplate != "{{ value | int }}" {
			t.Errorf("Merge(g, nil) = %+v", got)
		}
	})

	t.Run("empty global yields local", func(t *testing.T) {
		if got, want := Merge(nil, defs), Merge(defs, nil); !reflect.DeepEqual(got, want) {
			t.Errorf("Merge(nil, l) = %+v, want %+v", got, want)
		}
	})

	t.Run("self merge is stable", func(t *testing.T) {
		if got, want := Merge(defs, defs), Merge(defs, nil); !reflect.DeepEqual(got, want) {
			t.Errorf("Merge(d, d) = %+v, want %+v", got, want)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		first := Merge(defs, defs[1:])
		for i := 0; i < 10; i++ {
			if got := Merge(defs, defs[1:]); !reflect.DeepEqual(got, first) {
				t.Fatalf("Merge() not deterministic: %+v vs %+v", got, first)
			}
		}
	})
}

func TestMerge_KeyInOneLayerOnly(t *testing.T) {
	global := []Definition{{Key: "temp_1", Unit: StringPtr("°C")}}
	local := []Definition{{Key: "leak1", Name: StringPtr("Boiler leak")}}

	got := Merge(global, local)
	if len(got) != 2 {
		t.Fatalf("Merge() returned %d specs, want 2", len(got))
	}
	if got["temp_1"].Unit != "°C" {
		t.Errorf("global-only key lost its unit: %+v", got["temp_1"])
	}
	if got["leak1"].Name != "Boiler leak" {
		t.Errorf("local-only key lost its name: %+v", got["leak1"])
	}
}

func TestMerge_DuplicateKeysLastWins(t *testing.T) {
	global := []Definition{
		{Key: "uv", Name: StringPtr("UV first"), Unit: StringPtr("W/m²")},
		{Key: "uv", Name: StringPtr("UV second")},
	}

	got := Merge(global, nil)["uv"]
	if got.Name != "UV second" {
		t.Errorf("Name = %q, want %q", got.Name, "UV second")
	}
	if got.Unit != "" {
		t.Errorf("Unit = %q, want empty: duplicates replace whole entries", got.Unit)
	}
}

func TestMerge_NameDefaultsToKey(t *testing.T) {
	got := Merge([]Definition{{Key: "soil_moist_3"}, {}}, nil)
	if len(got) != 1 {
		t.Fatalf("Merge() returned %d specs, want 1 (keyless entries skipped)", len(got))
	}
	if got["soil_moist_3"].Name != "soil_moist_3" {
		t.Errorf("Name = %q, want key", got["soil_moist_3"].Name)
	}
}
