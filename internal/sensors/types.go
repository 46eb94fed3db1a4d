package sensors

import (
	"time"

	"github.com/nerrad567/gray-logic-weather/internal/protocol"
)

// Logger defines the logging interface used by the resolution stage.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Definition is one authored sensor entry from a configuration layer.
//
// A nil field is absent and inherits from the layer below. A non-nil empty
// string is present and overrides with "".
type Definition struct {
	Key                    string  `yaml:"key" json:"key"`
	Name                   *string `yaml:"name,omitempty" json:"name,omitempty"`
	DeviceClass            *string `yaml:"device_class,omitempty" json:"device_class,omitempty"`
	Unit                   *string `yaml:"unit,omitempty" json:"unit,omitempty"`
	ValueTemplate          *string `yaml:"value_template,omitempty" json:"value_template,omitempty"`
	JSONAttributesTopic    *string `yaml:"json_attributes_topic,omitempty" json:"json_attributes_topic,omitempty"`
	JSONAttributesTemplate *string `yaml:"json_attributes_template,omitempty" json:"json_attributes_template,omitempty"`
}

// Spec is the resolved configuration for one sensor key on one gateway.
//
// Empty strings are treated as "not set" by the publishers and omitted
// from discovery payloads. Name always has a value: it falls back to Key.
type Spec struct {
	Key                    string `json:"key"`
	Name                   string `json:"name"`
	DeviceClass            string `json:"device_class,omitempty"`
	Unit                   string `json:"unit,omitempty"`
	ValueTemplate          string `json:"value_template,omitempty"`
	JSONAttributesTopic    string `json:"json_attributes_topic,omitempty"`
	JSONAttributesTemplate string `json:"json_attributes_template,omitempty"`
}

// Reading is a decoded field that matched a configured sensor.
// It lives for the publish step of one poll cycle.
type Reading struct {
	GatewayID string
	Key       string
	Value     protocol.Value
	PollTime  time.Time
	Spec      Spec
}

// StringPtr returns a pointer to s. It keeps definition literals short.
func StringPtr(s string) *string {
	return &s
}
