package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "WEATHERBRIDGE_"

// DefaultPath is used when WEATHERBRIDGE_CONFIG is not set.
const DefaultPath = "configs/config.yaml"

// Config is the root configuration structure for the weather bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateways  []GatewayConfig `yaml:"gateways"`
	Sensors   SensorsConfig   `yaml:"sensors"`
	Poll      PollConfig      `yaml:"poll"`
	Transport TransportConfig `yaml:"transport"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	API       APIConfig       `yaml:"api"`
}

// GatewayConfig describes one weather-station gateway to poll.
type GatewayConfig struct {
	// ID names the gateway in topics and unique IDs. Required, unique.
	ID string `yaml:"id"`

	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// SensorsFile holds per-gateway overrides of the global definitions.
	SensorsFile string `yaml:"sensors_file"`
}

// SensorsConfig locates the shared sensor definitions.
type SensorsConfig struct {
	GlobalFile string `yaml:"global_file"`
}

// PollConfig controls the per-gateway poll loop.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`

	// FetchTimeout bounds one whole fetch, retries included.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// BackoffBase is multiplied by the consecutive failure count.
	BackoffBase time.Duration `yaml:"backoff_base"`
	BackoffMax  time.Duration `yaml:"backoff_max"`

	// MetadataEvery fetches battery/signal info every N cycles. 0 disables it.
	MetadataEvery int `yaml:"metadata_every"`
}

// TransportConfig controls the gateway TCP client.
type TransportConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	Tries     int           `yaml:"tries"`
	RetryWait time.Duration `yaml:"retry_wait"`
	Breaker   BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the per-gateway circuit breaker.
type BreakerConfig struct {
	// FailureThreshold of 0 disables the breaker.
	FailureThreshold uint32        `yaml:"failure_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	KeepAlive int                 `yaml:"keep_alive"` // seconds
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	Queue     MQTTQueueConfig     `yaml:"queue"`

	// PublishTimeout bounds a publish while connected (seconds).
	PublishTimeout int `yaml:"publish_timeout"`

	// TopicRoot prefixes state, info and availability topics.
	TopicRoot string `yaml:"topic_root"`

	RateLimit MQTTRateLimitConfig `yaml:"rate_limit"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// String formats the credentials with the password redacted.
func (a MQTTAuthConfig) String() string {
	if a.Password == "" {
		return fmt.Sprintf("{username:%q}", a.Username)
	}
	return fmt.Sprintf("{username:%q password:[REDACTED]}", a.Username)
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// MQTTQueueConfig sizes the outbound publish queue.
type MQTTQueueConfig struct {
	Size int `yaml:"size"`

	// DrainGrace is how long shutdown waits for queued messages (seconds).
	DrainGrace int `yaml:"drain_grace"`
}

// MQTTRateLimitConfig throttles outbound publishes. PerSecond of 0 disables it.
type MQTTRateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// DiscoveryConfig controls home-automation discovery messages.
type DiscoveryConfig struct {
	// Prefix is the discovery topic root. Empty means mqtt.topic_root.
	Prefix string `yaml:"prefix"`

	// ExpireAfterCycles clears a sensor's discovery config after it has
	// been missing from N consecutive successful cycles. 0 keeps it forever.
	ExpireAfterCycles int `yaml:"expire_after_cycles"`

	// BirthTopic is watched for the hub's "online" message, which resets
	// every fingerprint. Empty disables the subscription.
	BirthTopic string `yaml:"birth_topic"`

	// CacheSize bounds the in-memory fingerprint cache.
	CacheSize int `yaml:"cache_size"`

	Manufacturer string `yaml:"manufacturer"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text or pretty
	Output string `yaml:"output"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: WEATHERBRIDGE_SECTION_KEY
// For example: WEATHERBRIDGE_MQTT_HOST, WEATHERBRIDGE_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}
	cfg.applyGatewayDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// PathFromEnv returns WEATHERBRIDGE_CONFIG or DefaultPath.
func PathFromEnv() string {
	if v := os.Getenv(EnvPrefix + "CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// defaultConfig returns a Config with sensible defaults.
//
//nolint:mnd // defaults are the documented values
func defaultConfig() *Config {
	return &Config{
		Poll: PollConfig{
			Interval:      30 * time.Second,
			FetchTimeout:  15 * time.Second,
			BackoffBase:   30 * time.Second,
			BackoffMax:    10 * time.Minute,
			MetadataEvery: 10,
		},
		Transport: TransportConfig{
			Timeout:   2 * time.Second,
			Tries:     3,
			RetryWait: 2 * time.Second,
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				OpenTimeout:      time.Minute,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "weatherbridge",
			},
			QoS:       1,
			KeepAlive: 20,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			Queue: MQTTQueueConfig{
				Size:       1000,
				DrainGrace: 5,
			},
			PublishTimeout: 5,
			TopicRoot:      "homeassistant",
		},
		Discovery: DiscoveryConfig{
			BirthTopic:   "homeassistant/status",
			CacheSize:    4096,
			Manufacturer: "Ecowitt",
		},
		Database: DatabaseConfig{
			Path:        "./data/weatherbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
	}
}

// applyGatewayDefaults fills per-gateway fields left empty in the file.
func (c *Config) applyGatewayDefaults() {
	for i := range c.Gateways {
		if c.Gateways[i].Port == 0 {
			c.Gateways[i].Port = 45000 //nolint:mnd // gateway API port
		}
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: WEATHERBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	var errs []string
	num := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	// Sensors
	str("SENSORS_GLOBAL_FILE", &cfg.Sensors.GlobalFile)

	// Poll
	dur("POLL_INTERVAL", &cfg.Poll.Interval)

	// MQTT
	str("MQTT_HOST", &cfg.MQTT.Broker.Host)
	num("MQTT_PORT", &cfg.MQTT.Broker.Port)
	str("MQTT_CLIENT_ID", &cfg.MQTT.Broker.ClientID)
	str("MQTT_USERNAME", &cfg.MQTT.Auth.Username)
	str("MQTT_PASSWORD", &cfg.MQTT.Auth.Password)
	str("MQTT_TOPIC_ROOT", &cfg.MQTT.TopicRoot)

	// Database
	str("DATABASE_PATH", &cfg.Database.Path)

	// Logging
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)

	// API
	str("API_HOST", &cfg.API.Host)
	num("API_PORT", &cfg.API.Port)

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Gateways
	if len(c.Gateways) == 0 {
		errs = append(errs, "at least one gateway is required")
	}
	seen := make(map[string]bool, len(c.Gateways))
	for i, gw := range c.Gateways {
		switch {
		case gw.ID == "":
			errs = append(errs, fmt.Sprintf("gateways[%d].id is required", i))
		case strings.ContainsAny(gw.ID, "/+# "):
			errs = append(errs, fmt.Sprintf("gateways[%d].id %q must not contain '/', '+', '#' or spaces", i, gw.ID))
		case seen[gw.ID]:
			errs = append(errs, fmt.Sprintf("gateways[%d].id %q is duplicated", i, gw.ID))
		}
		seen[gw.ID] = true
		if gw.Host == "" {
			errs = append(errs, fmt.Sprintf("gateways[%d].host is required", i))
		}
		if gw.Port < 1 || gw.Port > 65535 {
			errs = append(errs, fmt.Sprintf("gateways[%d].port must be between 1 and 65535", i))
		}
	}

	// Poll
	if c.Poll.Interval <= 0 {
		errs = append(errs, "poll.interval must be positive")
	}
	if c.Poll.BackoffBase < 0 || c.Poll.BackoffMax < c.Poll.BackoffBase {
		errs = append(errs, "poll.backoff_max must be at least poll.backoff_base")
	}
	if c.Poll.MetadataEvery < 0 {
		errs = append(errs, "poll.metadata_every must not be negative")
	}

	// Transport
	if c.Transport.Tries < 1 {
		errs = append(errs, "transport.tries must be at least 1")
	}
	if c.Transport.Timeout <= 0 {
		errs = append(errs, "transport.timeout must be positive")
	}

	// MQTT
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.KeepAlive < 1 {
		errs = append(errs, "mqtt.keep_alive must be at least 1 second")
	}
	if c.MQTT.Reconnect.InitialDelay < 1 || c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		errs = append(errs, "mqtt.reconnect delays must satisfy 1 <= initial_delay <= max_delay")
	}
	if c.MQTT.Queue.Size < 1 {
		errs = append(errs, "mqtt.queue.size must be at least 1")
	}
	if c.MQTT.TopicRoot == "" {
		errs = append(errs, "mqtt.topic_root is required")
	}

	// Discovery
	if c.Discovery.ExpireAfterCycles < 0 {
		errs = append(errs, "discovery.expire_after_cycles must not be negative")
	}
	// Info entries are only reported on metadata cycles.
	if c.Discovery.ExpireAfterCycles > 0 && c.Poll.MetadataEvery > 0 &&
		c.Discovery.ExpireAfterCycles <= c.Poll.MetadataEvery {
		errs = append(errs, "discovery.expire_after_cycles must exceed poll.metadata_every")
	}

	// Database
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// API
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DiscoveryPrefix returns the discovery topic root.
func (c *Config) DiscoveryPrefix() string {
	if c.Discovery.Prefix != "" {
		return c.Discovery.Prefix
	}
	return c.MQTT.TopicRoot
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
