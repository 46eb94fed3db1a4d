package poller

import (
	"time"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/config"
)

// ConfigFrom builds poller timing from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Interval:       cfg.Poll.Interval,
		FetchTimeout:   cfg.Poll.FetchTimeout,
		PublishTimeout: time.Duration(cfg.MQTT.PublishTimeout) * time.Second,
		BackoffBase:    cfg.Poll.BackoffBase,
		BackoffMax:     cfg.Poll.BackoffMax,
		MetadataEvery:  cfg.Poll.MetadataEvery,
	}
}
