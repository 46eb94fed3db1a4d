package publish

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-weather/internal/protocol"
	"github.com/nerrad567/gray-logic-weather/internal/sensors"
)

// infoKeySuffix marks the discovery keys of paired sensor info entries.
const infoKeySuffix = "_info"

// infoValueTemplate extracts the battery state from an info payload.
const infoValueTemplate = `{{ value_json.battery_status | default("") }}`

type infoPayload struct {
	BatteryStatus protocol.BatteryState `json:"battery_status"`
	Signal        uint8                 `json:"signal"`
}

// Info publishes battery and signal data of a gateway's paired sensors.
// Each sensor gets a "<type>_info" discovery entry whose attributes carry
// the full info payload.
type Info struct {
	disc   *Discovery
	pub    Publisher
	qos    byte
	logger Logger
}

// NewInfo creates an info publisher sharing disc's fingerprint store.
func NewInfo(disc *Discovery, pub Publisher, qos byte) *Info {
	return &Info{disc: disc, pub: pub, qos: qos, logger: noopLogger{}}
}

// SetLogger sets the logger.
func (i *Info) SetLogger(logger Logger) {
	if logger != nil {
		i.logger = logger
	}
}

// InfoSpec returns the discovery spec of a paired sensor's info entry.
func InfoSpec(sensor protocol.SensorInfo, infoTopic string) sensors.Spec {
	key := sensor.Name + infoKeySuffix
	return sensors.Spec{
		Key:                 key,
		Name:                key,
		ValueTemplate:       infoValueTemplate,
		JSONAttributesTopic: infoTopic,
	}
}

// Publish announces and publishes the info of every paired sensor. A
// sensor whose discovery announce fails is skipped for this round.
//
// Returns the number of info messages published and the joined errors of
// the sensors that failed.
func (i *Info) Publish(ctx context.Context, device Device, paired []protocol.SensorInfo, cycle uint64) (int, error) {
	topics := i.pub.Topics()
	sent := 0
	var errs []error

	for _, sensor := range paired {
		topic := topics.Info(device.GatewayID, sensor.Name)

		if _, err := i.disc.announce(ctx, device, InfoSpec(sensor, topic), topic, cycle); err != nil {
			i.logger.Warn("info discovery failed, skipping data",
				"gateway_id", device.GatewayID,
				"sensor", sensor.Name,
				"error", err,
			)
			errs = append(errs, err)
			continue
		}

		payload, err := json.Marshal(infoPayload{BatteryStatus: sensor.Battery, Signal: sensor.Signal})
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: info %s: %w", ErrEncodeFailed, sensor.Name, err))
			continue
		}
		if err := i.pub.Publish(ctx, mqtt.Message{Topic: topic, Payload: payload, QoS: i.qos}); err != nil {
			errs = append(errs, fmt.Errorf("%w: info %s: %w", ErrPublishFailure, topic, err))
			continue
		}
		sent++
	}

	i.logger.Info("sensor metadata updated",
		"gateway_id", device.GatewayID,
		"sensors", len(paired),
		"published", sent,
	)
	return sent, errors.Join(errs...)
}
