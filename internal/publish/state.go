package publish

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-weather/internal/protocol"
	"github.com/nerrad567/gray-logic-weather/internal/sensors"
)

// State publishes the per-cycle readings of a gateway.
type State struct {
	pub Publisher
	qos byte
}

// NewState creates a state publisher sending at qos.
func NewState(pub Publisher, qos byte) *State {
	return &State{pub: pub, qos: qos}
}

// Payload serialises readings as one JSON object keyed by sensor key, with
// keys in sorted order. Values keep their decoded precision. An empty set
// gives {}.
func (s *State) Payload(readings []sensors.Reading) ([]byte, error) {
	values := make(map[string]protocol.Value, len(readings))
	for _, r := range readings {
		values[r.Key] = r.Value
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("%w: state: %w", ErrEncodeFailed, err)
	}
	return data, nil
}

// Publish sends the readings of one cycle, non-retained, to the gateway's
// state topic.
func (s *State) Publish(ctx context.Context, gatewayID string, readings []sensors.Reading) error {
	payload, err := s.Payload(readings)
	if err != nil {
		return err
	}
	topic := s.pub.Topics().State(gatewayID)
	if err := s.pub.Publish(ctx, mqtt.Message{Topic: topic, Payload: payload, QoS: s.qos}); err != nil {
		return fmt.Errorf("%w: state %s: %w", ErrPublishFailure, topic, err)
	}
	return nil
}
