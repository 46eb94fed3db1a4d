package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-weather/internal/protocol"
)

var pairedSensors = []protocol.SensorInfo{
	{TypeID: 0x00, Name: "wh65", Battery: protocol.BatteryOK, Signal: 4},
	{TypeID: 0x07, Name: "wh31_ch2", Battery: protocol.BatteryLow, Signal: 3},
}

func TestInfo_Publish(t *testing.T) {
	ctx := context.Background()
	disc, pub, _ := newTestDiscovery(t, 0)
	info := NewInfo(disc, pub, 1)

	sent, err := info.Publish(ctx, testDevice, pairedSensors, 1)
	if err != nil || sent != 2 {
		t.Fatalf("Publish() = %d, %v; want 2, nil", sent, err)
	}

	msgs := pub.messages()
	if len(msgs) != 4 {
		t.Fatalf("published %d messages, want 2 discovery + 2 info", len(msgs))
	}

	disco, data := msgs[2], msgs[3]
	if disco.Topic != "homeassistant/sensor/garden_wh31_ch2_info/config" || !disco.Retained {
		t.Errorf("discovery = %s retained=%v", disco.Topic, disco.Retained)
	}
	var cfg map[string]any
	if err := json.Unmarshal(disco.Payload, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg["state_topic"] != "homeassistant/garden/wh31_ch2/info" ||
		cfg["json_attributes_topic"] != "homeassistant/garden/wh31_ch2/info" ||
		cfg["value_template"] != `{{ value_json.battery_status | default("") }}` {
		t.Errorf("info discovery payload = %v", cfg)
	}

	if data.Topic != "homeassistant/garden/wh31_ch2/info" || data.Retained {
		t.Errorf("info message = %s retained=%v", data.Topic, data.Retained)
	}
	if string(data.Payload) != `{"battery_status":"low","signal":3}` {
		t.Errorf("info payload = %s", data.Payload)
	}

	// Discovery is deduplicated on the next round; data is not.
	pub.reset()
	if _, err := info.Publish(ctx, testDevice, pairedSensors, 2); err != nil {
		t.Fatal(err)
	}
	if n := len(pub.messages()); n != 2 {
		t.Errorf("second round published %d messages, want 2", n)
	}
}

func TestInfo_PublishFailureSkipsData(t *testing.T) {
	disc, pub, _ := newTestDiscovery(t, 0)
	info := NewInfo(disc, pub, 1)
	pub.setErr(mqtt.ErrBrokerDisconnected)

	sent, err := info.Publish(context.Background(), testDevice, pairedSensors, 1)
	if sent != 0 || !errors.Is(err, ErrPublishFailure) {
		t.Errorf("Publish() = %d, %v; want 0 and ErrPublishFailure", sent, err)
	}
}
