package protocol

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Kind identifies which member of a Value is meaningful.
type Kind uint8

// Value kinds produced by the decoder.
const (
	// KindNumber is a scaled numeric reading (temperature, rain, ...).
	KindNumber Kind = iota

	// KindEnum is a reading mapped through a fixed lookup table.
	KindEnum

	// KindBitfield is a set of named boolean flags.
	KindBitfield

	// KindRaw is an identifier or timestamp passed through as bytes.
	KindRaw
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindEnum:
		return "enum"
	case KindBitfield:
		return "bitfield"
	case KindRaw:
		return "raw"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a decoded field value.
//
// Exactly one of Number, Enum, Flags or Raw is meaningful, as selected by Kind.
type Value struct {
	Kind   Kind
	Number float64
	Enum   string
	Flags  map[string]bool
	Raw    []byte
}

// NumberValue returns a numeric Value.
func NumberValue(n float64) Value {
	return Value{Kind: KindNumber, Number: n}
}

// EnumValue returns an enumerated Value.
func EnumValue(s string) Value {
	return Value{Kind: KindEnum, Enum: s}
}

// String formats the value the way it appears in diagnostics.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindEnum:
		return v.Enum
	case KindBitfield:
		names := make([]string, 0, len(v.Flags))
		for name := range v.Flags {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, name+"="+strconv.FormatBool(v.Flags[name]))
		}
		return "{" + strings.Join(parts, " ") + "}"
	case KindRaw:
		return hex.EncodeToString(v.Raw)
	default:
		return "?"
	}
}

// MarshalJSON encodes the value as a JSON number, string or object.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return json.Marshal(v.Number)
	case KindEnum:
		return json.Marshal(v.Enum)
	case KindBitfield:
		return json.Marshal(v.Flags)
	case KindRaw:
		return json.Marshal(hex.EncodeToString(v.Raw))
	default:
		return []byte("null"), nil
	}
}

// Equal reports whether two values carry the same reading.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.Number == o.Number
	case KindEnum:
		return v.Enum == o.Enum
	case KindBitfield:
		if len(v.Flags) != len(o.Flags) {
			return false
		}
		for k, b := range v.Flags {
			if ob, ok := o.Flags[k]; !ok || ob != b {
				return false
			}
		}
		return true
	case KindRaw:
		return string(v.Raw) == string(o.Raw)
	default:
		return false
	}
}

// BatteryState is the normalised battery condition of a sensor.
type BatteryState string

// Battery states.
const (
	BatteryOK        BatteryState = "ok"
	BatteryLow       BatteryState = "low"
	BatteryConnected BatteryState = "connected"
	BatteryUnknown   BatteryState = "unknown"
)

// FieldRecord is one named reading decoded from a live-data frame.
//
// A single wire field can produce several records (the WH45 air-quality
// block carries nine readings); they share the same TypeCode and Raw bytes.
type FieldRecord struct {
	// TypeCode is the vendor type tag that introduced the field.
	TypeCode uint8

	// Key is the stable sensor key (e.g. "temp_1", "rain_rate").
	Key string

	// Raw holds the field's data bytes as received.
	Raw []byte

	// Value is the decoded reading.
	Value Value
}
