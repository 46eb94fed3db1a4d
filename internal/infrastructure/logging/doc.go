// Package logging provides structured logging for the weather bridge.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output, or coloured "pretty" output via tint, for development
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text, pretty
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("polling gateway", "gateway_id", "garden")
//	logger.Error("publish failed", "error", err)
//
// Never log broker passwords; config.MQTTAuthConfig redacts itself when
// formatted.
package logging
