package protocol

import (
	"encoding/binary"
	"fmt"
)

// part describes one reading carried inside a wire field.
type part struct {
	key     string
	offset  int
	size    int
	kind    Kind
	signed  bool
	divisor float64

	// enum maps the raw integer of a KindEnum part to its label.
	enum func(uint32) string

	// flags names the bits of a KindBitfield part.
	flags []flagBit
}

// flagBit names a single bit of a bitfield: byte index within the part, bit
// number within that byte.
type flagBit struct {
	name  string
	octet int
	bit   uint
}

// fieldSpec is the static description of one live-data type code.
type fieldSpec struct {
	size  int
	parts []part
}

// num describes a field holding a single scaled integer.
func num(key string, size int, signed bool, divisor float64) fieldSpec {
	return fieldSpec{size: size, parts: []part{{
		key: key, size: size, kind: KindNumber, signed: signed, divisor: divisor,
	}}}
}

// Common scaled shapes used by the table below.
func temp(key string) fieldSpec   { return num(key, 2, true, 10) }  //nolint:mnd // °C ×10
func tenths(key string) fieldSpec { return num(key, 2, false, 10) } //nolint:mnd // unit ×10
func byteNum(key string) fieldSpec {
	return num(key, 1, false, 1)
}

// fieldTable maps live-data type codes to their layout.
//
// Lengths and divisors follow the Ecowitt "telnet" API (v1.6). Entries are
// data, not logic: adding a sensor type means adding a row here.
var fieldTable = map[uint8]fieldSpec{
	0x01: temp("indoor_temp"),
	0x02: temp("outdoor_temp"),
	0x04: temp("windchill"),
	0x05: temp("heat_index"),
	0x06: byteNum("in_humidity"),
	0x07: byteNum("out_humidity"),
	0x08: tenths("abs_barometer"),
	0x09: tenths("rel_barometer"),
	0x0A: num("wind_dir", 2, false, 1),
	0x0B: tenths("wind_speed"),
	0x0C: tenths("gust_speed"),
	0x0D: tenths("rain_event"),
	0x0E: tenths("rain_rate"),
	0x0F: num("rain_gain", 2, false, 100),
	0x10: tenths("rain_day"),
	0x11: tenths("rain_week"),
	0x12: num("rain_month", 4, false, 10),
	0x13: num("rain_year", 4, false, 10),
	0x14: num("rain_totals", 4, false, 10),
	0x15: num("light", 4, false, 100),
	0x16: num("uv", 2, true, 10),
	0x17: byteNum("uv_index"),
	0x18: {size: 6, parts: []part{{key: "datetime", size: 6, kind: KindRaw}}},
	0x19: tenths("day_maxwind"),

	0x1A: temp("temp_1"),
	0x1B: temp("temp_2"),
	0x1C: temp("temp_3"),
	0x1D: temp("temp_4"),
	0x1E: temp("temp_5"),
	0x1F: temp("temp_6"),
	0x20: temp("temp_7"),
	0x21: temp("temp_8"),

	0x22: byteNum("humidity_1"),
	0x23: byteNum("humidity_2"),
	0x24: byteNum("humidity_3"),
	0x25: byteNum("humidity_4"),
	0x26: byteNum("humidity_5"),
	0x27: byteNum("humidity_6"),
	0x28: byteNum("humidity_7"),
	0x29: byteNum("humidity_8"),

	0x2A: tenths("pm25_1"),

	0x2B: temp("soil_temp_1"),
	0x2C: byteNum("soil_moist_1"),
	0x2D: temp("soil_temp_2"),
	0x2E: byteNum("soil_moist_2"),
	0x2F: temp("soil_temp_3"),
	0x30: byteNum("soil_moist_3"),
	0x31: temp("soil_temp_4"),
	0x32: byteNum("soil_moist_4"),
	0x33: temp("soil_temp_5"),
	0x34: byteNum("soil_moist_5"),
	0x35: temp("soil_temp_6"),
	0x36: byteNum("soil_moist_6"),
	0x37: temp("soil_temp_7"),
	0x38: byteNum("soil_moist_7"),
	0x39: temp("soil_temp_8"),
	0x3A: byteNum("soil_moist_8"),

	// Legacy low-battery block sent by older firmware.
	0x4C: {size: 16, parts: []part{{
		key: "battery_low", size: 16, kind: KindBitfield, flags: legacyBatteryFlags,
	}}},

	0x4D: tenths("pm25_1_avg_24h"),
	0x4E: tenths("pm25_2_avg_24h"),
	0x4F: tenths("pm25_3_avg_24h"),
	0x50: tenths("pm25_4_avg_24h"),

	0x51: tenths("pm25_2"),
	0x52: tenths("pm25_3"),
	0x53: tenths("pm25_4"),

	0x58: byteNum("leak1"),
	0x59: byteNum("leak2"),
	0x5A: byteNum("leak3"),
	0x5B: byteNum("leak4"),

	0x60: num("lightning_distance", 1, true, 1),
	0x61: num("lightning_datetime", 4, true, 1),
	0x62: num("lightning_count", 4, false, 1),

	// WH45 combined air-quality sensor.
	0x70: {size: 16, parts: []part{
		{key: "temp_wh45", offset: 0, size: 2, kind: KindNumber, signed: true, divisor: 10},
		{key: "humid_wh45", offset: 2, size: 1, kind: KindNumber, divisor: 1},
		{key: "pm10_wh45", offset: 3, size: 2, kind: KindNumber, divisor: 10},
		{key: "pm10_avg_24h_wh45", offset: 5, size: 2, kind: KindNumber, divisor: 10},
		{key: "pm25_wh45", offset: 7, size: 2, kind: KindNumber, divisor: 10},
		{key: "pm25_avg_24h_wh45", offset: 9, size: 2, kind: KindNumber, divisor: 10},
		{key: "co2_wh45", offset: 11, size: 2, kind: KindNumber, divisor: 1},
		{key: "co2_avg_24h_wh45", offset: 13, size: 2, kind: KindNumber, divisor: 1},
		{key: "battery_wh45", offset: 15, size: 1, kind: KindEnum, enum: levelBattery},
	}},
}

// legacyBatteryFlags names the documented bits of the 0x4C block.
var legacyBatteryFlags = []flagBit{
	{name: "wh40", octet: 0, bit: 4},
	{name: "wh26", octet: 0, bit: 5},
	{name: "wh25", octet: 0, bit: 6},
	{name: "wh65", octet: 0, bit: 7},
	{name: "wh31_ch1", octet: 1, bit: 0},
	{name: "wh31_ch2", octet: 1, bit: 1},
	{name: "wh31_ch3", octet: 1, bit: 2},
	{name: "wh31_ch4", octet: 1, bit: 3},
	{name: "wh31_ch5", octet: 1, bit: 4},
	{name: "wh31_ch6", octet: 1, bit: 5},
	{name: "wh31_ch7", octet: 1, bit: 6},
	{name: "wh31_ch8", octet: 1, bit: 7},
	{name: "wh51_ch1", octet: 2, bit: 0},
	{name: "wh51_ch2", octet: 2, bit: 1},
	{name: "wh51_ch3", octet: 2, bit: 2},
	{name: "wh51_ch4", octet: 2, bit: 3},
	{name: "wh51_ch5", octet: 2, bit: 4},
	{name: "wh51_ch6", octet: 2, bit: 5},
	{name: "wh51_ch7", octet: 2, bit: 6},
	{name: "wh51_ch8", octet: 2, bit: 7},
}

// levelBattery maps a 0–6 battery level (WH41, WH55, WH57, WH45) to a state.
func levelBattery(level uint32) string {
	switch {
	case level <= 1:
		return string(BatteryLow)
	case level <= 5: //nolint:mnd // 2..5 are healthy levels
		return string(BatteryOK)
	case level == 6: //nolint:mnd // 6 means externally powered
		return string(BatteryConnected)
	default:
		return string(BatteryUnknown)
	}
}

// decode extracts the records of one field whose data is exactly spec.size bytes.
func (spec fieldSpec) decode(code uint8, data []byte) []FieldRecord {
	records := make([]FieldRecord, 0, len(spec.parts))
	for _, p := range spec.parts {
		raw := data[p.offset : p.offset+p.size]
		records = append(records, FieldRecord{
			TypeCode: code,
			Key:      p.key,
			Raw:      raw,
			Value:    p.value(raw),
		})
	}
	return records
}

// value decodes the bytes of a single part.
func (p part) value(raw []byte) Value {
	switch p.kind {
	case KindRaw:
		return Value{Kind: KindRaw, Raw: raw}
	case KindBitfield:
		flags := make(map[string]bool, len(p.flags))
		for _, f := range p.flags {
			flags[f.name] = raw[f.octet]&(1<<f.bit) != 0
		}
		return Value{Kind: KindBitfield, Flags: flags}
	case KindEnum:
		return EnumValue(p.enum(readUnsigned(raw)))
	default:
		var n float64
		if p.signed {
			n = float64(readSigned(raw))
		} else {
			n = float64(readUnsigned(raw))
		}
		if p.divisor > 1 {
			n /= p.divisor
		}
		return NumberValue(n)
	}
}

// readUnsigned reads a 1, 2 or 4 byte big-endian unsigned integer.
func readUnsigned(b []byte) uint32 {
	switch len(b) {
	case 1:
		return uint32(b[0])
	case 2: //nolint:mnd // u16
		return uint32(binary.BigEndian.Uint16(b))
	case 4: //nolint:mnd // u32
		return binary.BigEndian.Uint32(b)
	default:
		panic(fmt.Sprintf("protocol: unsupported integer width %d", len(b)))
	}
}

// readSigned reads a 1, 2 or 4 byte big-endian two's-complement integer.
func readSigned(b []byte) int32 {
	switch len(b) {
	case 1:
		return int32(int8(b[0]))
	case 2: //nolint:mnd // i16
		return int32(int16(binary.BigEndian.Uint16(b)))
	case 4: //nolint:mnd // i32
		return int32(binary.BigEndian.Uint32(b))
	default:
		panic(fmt.Sprintf("protocol: unsupported integer width %d", len(b)))
	}
}
