package publish

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-weather/internal/protocol"
	"github.com/nerrad567/gray-logic-weather/internal/sensors"
)

func TestState_Payload(t *testing.T) {
	tests := []struct {
		name     string
		readings []sensors.Reading
		want     string
	}{
		{
			name: "single reading",
			readings: []sensors.Reading{
				{Key: "rain_rate", Value: protocol.NumberValue(2.5)},
			},
			want: `{"rain_rate":2.5}`,
		},
		{
			name:     "empty",
			readings: nil,
			want:     `{}`,
		},
		{
			name: "sorted keys and mixed kinds",
			readings: []sensors.Reading{
				{Key: "wind_dir", Value: protocol.NumberValue(270)},
				{Key: "battery_wh45", Value: protocol.EnumValue("low")},
				{Key: "outdoor_temp", Value: protocol.NumberValue(-2.1)},
			},
			want: `{"battery_wh45":"low","outdoor_temp":-2.1,"wind_dir":270}`,
		},
	}

	s := NewState(&fakePublisher{}, 1)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Payload(tt.readings)
			if err != nil {
				t.Fatalf("Payload() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Payload() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestState_Publish(t *testing.T) {
	pub := &fakePublisher{}
	s := NewState(pub, 1)

	readings := []sensors.Reading{{Key: "rain_rate", Value: protocol.NumberValue(2.5)}}
	if err := s.Publish(context.Background(), "garden", readings); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msgs := pub.messages()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	if msgs[0].Topic != "homeassistant/garden/state" || msgs[0].Retained || msgs[0].QoS != 1 {
		t.Errorf("message = %s retained=%v qos=%d", msgs[0].Topic, msgs[0].Retained, msgs[0].QoS)
	}

	pub.setErr(mqtt.ErrBrokerDisconnected)
	err := s.Publish(context.Background(), "garden", readings)
	if !errors.Is(err, ErrPublishFailure) || !errors.Is(err, mqtt.ErrBrokerDisconnected) {
		t.Errorf("Publish() error = %v, want ErrPublishFailure wrapping ErrBrokerDisconnected", err)
	}
}
