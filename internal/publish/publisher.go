package publish

import (
	"context"
	"strings"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/mqtt"
)

// Publisher is the broker surface the publishers need. *mqtt.Session
// implements it.
type Publisher interface {
	Publish(ctx context.Context, msg mqtt.Message) error
	Topics() mqtt.Topics
	ClientID() string
}

// Logger defines the logging interface used by the publishers.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Device describes the gateway that owns a sensor. It fills the discovery
// device block so the hub groups every sensor of a gateway together.
type Device struct {
	GatewayID string
	Model     string
	Firmware  string
	MAC       string
}

// DeviceFromFirmware builds a Device, taking the model from the firmware
// string prefix ("GW1100A_V2.3.1" gives model "GW1100A").
func DeviceFromFirmware(gatewayID, firmware, mac string) Device {
	model, _, _ := strings.Cut(firmware, "_")
	return Device{
		GatewayID: gatewayID,
		Model:     model,
		Firmware:  firmware,
		MAC:       mac,
	}
}
