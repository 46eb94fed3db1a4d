package mqtt

import (
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/config"
)

func testMQTTConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker:         config.MQTTBrokerConfig{Host: "broker.local", Port: 8883, TLS: true, ClientID: "bridge"},
		Auth:           config.MQTTAuthConfig{Username: "weather", Password: "secret"},
		QoS:            1,
		KeepAlive:      20,
		Reconnect:      config.MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
		Queue:          config.MQTTQueueConfig{Size: 500, DrainGrace: 5},
		PublishTimeout: 5,
		TopicRoot:      "homeassistant",
		RateLimit:      config.MQTTRateLimitConfig{PerSecond: 50},
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(testMQTTConfig(), "ha")

	if opts.ClientID != "bridge" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Topics.Root != "homeassistant" || opts.Topics.DiscoveryPrefix != "ha" {
		t.Errorf("Topics = %+v", opts.Topics)
	}
	if opts.ReconnectInitial != time.Second || opts.ReconnectMax != time.Minute {
		t.Errorf("reconnect = %v..%v", opts.ReconnectInitial, opts.ReconnectMax)
	}
	if opts.QueueSize != 500 || opts.DrainGrace != 5*time.Second {
		t.Errorf("queue = %d grace %v", opts.QueueSize, opts.DrainGrace)
	}
	if opts.RatePerSecond != 50 || opts.RateBurst != 1 {
		t.Errorf("rate = %v burst %d", opts.RatePerSecond, opts.RateBurst)
	}
}

func TestOptionsFromConfig_GeneratesClientID(t *testing.T) {
	cfg := testMQTTConfig()
	cfg.Broker.ClientID = ""

	a := OptionsFromConfig(cfg, "")
	b := OptionsFromConfig(cfg, "")

	if !strings.HasPrefix(a.ClientID, clientIDPrefix) {
		t.Errorf("ClientID = %q, want prefix %q", a.ClientID, clientIDPrefix)
	}
	if a.ClientID == b.ClientID {
		t.Errorf("generated client IDs collide: %q", a.ClientID)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testMQTTConfig()
	opts := OptionsFromConfig(cfg, "").withDefaults()
	po := buildClientOptions(cfg, opts)

	if len(po.Servers) != 1 || po.Servers[0].String() != "ssl://broker.local:8883" {
		t.Errorf("Servers = %v", po.Servers)
	}
	if po.AutoReconnect || po.ConnectRetry {
		t.Error("paho reconnect must be disabled")
	}
	if po.KeepAlive != 20 {
		t.Errorf("KeepAlive = %d, want 20", po.KeepAlive)
	}
	if !po.WillEnabled || po.WillTopic != "homeassistant/bridge/availability" || string(po.WillPayload) != PayloadOffline || !po.WillRetained {
		t.Errorf("will = %v %q %q retained=%v", po.WillEnabled, po.WillTopic, po.WillPayload, po.WillRetained)
	}
	if po.Username != "weather" || po.Password != "secret" {
		t.Error("credentials not applied")
	}
	if po.TLSConfig == nil || po.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config not applied")
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	o := Options{ReconnectInitial: 5 * time.Second, ReconnectMax: time.Second}.withDefaults()

	if o.PublishTimeout != defaultPublishTimeout || o.ConnectTimeout != defaultConnectTimeout {
		t.Errorf("timeouts = %v / %v", o.PublishTimeout, o.ConnectTimeout)
	}
	if o.ReconnectMax != o.ReconnectInitial {
		t.Errorf("ReconnectMax = %v, want clamped to %v", o.ReconnectMax, o.ReconnectInitial)
	}
	if o.QueueSize != defaultQueueSize {
		t.Errorf("QueueSize = %d", o.QueueSize)
	}
}
