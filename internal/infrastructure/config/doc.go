// Package config handles loading and validating the weather bridge
// configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with WEATHERBRIDGE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The broker password should be set via WEATHERBRIDGE_MQTT_PASSWORD
//   - MQTTAuthConfig redacts the password when formatted
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, gw := range cfg.Gateways {
//	    fmt.Println(gw.ID, gw.Host)
//	}
package config
