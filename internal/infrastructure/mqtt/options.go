package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for one connect attempt.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is used when the configured timeout is zero.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time paho waits for in-flight work on disconnect.
	defaultDisconnectQuiesce = 250 * time.Millisecond

	// defaultQueueSize is used when the configured queue size is zero.
	defaultQueueSize = 1000

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12

	// clientIDPrefix prefixes generated client IDs.
	clientIDPrefix = "weatherbridge-"
)

// Availability payloads published to the availability topic.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Options holds the session settings derived from config.MQTTConfig.
type Options struct {
	ClientID string
	Topics   Topics

	// QoS is used for availability messages.
	QoS byte

	ConnectTimeout time.Duration
	PublishTimeout time.Duration

	ReconnectInitial time.Duration
	ReconnectMax     time.Duration

	QueueSize  int
	DrainGrace time.Duration

	// RatePerSecond of zero disables publish throttling.
	RatePerSecond float64
	RateBurst     int
}

// OptionsFromConfig converts the MQTT config section into session options.
// An empty client ID is replaced with a generated one so two bridges on the
// same broker never collide.
func OptionsFromConfig(cfg config.MQTTConfig, discoveryPrefix string) Options {
	clientID := cfg.Broker.ClientID
	if clientID == "" {
		clientID = clientIDPrefix + uuid.NewString()[:8]
	}

	burst := cfg.RateLimit.Burst
	if burst < 1 {
		burst = 1
	}

	return Options{
		ClientID:         clientID,
		Topics:           Topics{Root: cfg.TopicRoot, DiscoveryPrefix: discoveryPrefix},
		QoS:              byte(cfg.QoS), //nolint:gosec // validated 0-2 by config
		ConnectTimeout:   defaultConnectTimeout,
		PublishTimeout:   time.Duration(cfg.PublishTimeout) * time.Second,
		ReconnectInitial: time.Duration(cfg.Reconnect.InitialDelay) * time.Second,
		ReconnectMax:     time.Duration(cfg.Reconnect.MaxDelay) * time.Second,
		QueueSize:        cfg.Queue.Size,
		DrainGrace:       time.Duration(cfg.Queue.DrainGrace) * time.Second,
		RatePerSecond:    cfg.RateLimit.PerSecond,
		RateBurst:        burst,
	}
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = defaultPublishTimeout
	}
	if o.ReconnectInitial <= 0 {
		o.ReconnectInitial = time.Second
	}
	if o.ReconnectMax < o.ReconnectInitial {
		o.ReconnectMax = o.ReconnectInitial
	}
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.RateBurst < 1 {
		o.RateBurst = 1
	}
	return o
}

// buildClientOptions creates paho MQTT options from the bridge config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Keep-alive and ping timeout
//   - Last Will marking the bridge offline
//
// Paho's own reconnect is disabled. The Session owns reconnection so queued
// messages and subscriptions follow a single state machine.
func buildClientOptions(cfg config.MQTTConfig, opts Options) *pahomqtt.ClientOptions {
	po := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	po.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	po.SetClientID(opts.ClientID)

	if cfg.Auth.Username != "" {
		po.SetUsername(cfg.Auth.Username)
		po.SetPassword(cfg.Auth.Password)
	}

	po.SetCleanSession(true)
	po.SetAutoReconnect(false)
	po.SetConnectRetry(false)
	po.SetConnectTimeout(opts.ConnectTimeout)

	keepAlive := time.Duration(cfg.KeepAlive) * time.Second
	po.SetKeepAlive(keepAlive)
	po.SetPingTimeout(keepAlive / 2) //nolint:mnd // half the keep-alive window

	// Handlers run in their own goroutines so a slow handler never stalls
	// paho's network loop.
	po.SetOrderMatters(false)

	po.SetWill(opts.Topics.Availability(opts.ClientID), PayloadOffline, opts.QoS, true)

	if cfg.Broker.TLS {
		po.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return po
}
