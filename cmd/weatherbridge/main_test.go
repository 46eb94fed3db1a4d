package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/logging"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv(config.EnvPrefix+"CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Fatalf("run() error = %v, want a config load failure", err)
	}
}

// TestRun_BrokenSensorFile verifies a malformed definition file stops
// startup before the database or broker are touched.
func TestRun_BrokenSensorFile(t *testing.T) {
	dir := t.TempDir()
	sensorsPath := writeFile(t, dir, "sensors.yaml", "- key: [unterminated\n")
	dbPath := filepath.Join(dir, "bridge.db")
	configPath := writeFile(t, dir, "config.yaml", `
gateways:
  - id: garden
    host: 127.0.0.1
sensors:
  global_file: `+sensorsPath+`
mqtt:
  broker:
    host: 127.0.0.1
database:
  path: `+dbPath+`
api:
  enabled: false
logging:
  level: error
`)
	t.Setenv(config.EnvPrefix+"CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil || !strings.Contains(err.Error(), "loading sensor definitions") {
		t.Fatalf("run() error = %v, want a sensor definition failure", err)
	}
	if _, statErr := os.Stat(dbPath); !os.IsNotExist(statErr) {
		t.Errorf("database created despite failed startup: %v", statErr)
	}
}

func TestSensorSource(t *testing.T) {
	cfg := &config.Config{
		Sensors: config.SensorsConfig{GlobalFile: "/etc/weatherbridge/sensors.yaml"},
		Gateways: []config.GatewayConfig{
			{ID: "garden", SensorsFile: "/etc/weatherbridge/garden.yaml"},
			{ID: "roof"},
		},
	}

	src := sensorSource(cfg)
	if src.GlobalFile != cfg.Sensors.GlobalFile {
		t.Errorf("GlobalFile = %q", src.GlobalFile)
	}
	if len(src.GatewayFiles) != 2 {
		t.Fatalf("GatewayFiles = %v, want both gateways", src.GatewayFiles)
	}
	if src.GatewayFiles["garden"] != "/etc/weatherbridge/garden.yaml" {
		t.Errorf("garden file = %q", src.GatewayFiles["garden"])
	}
	if path, ok := src.GatewayFiles["roof"]; !ok || path != "" {
		t.Errorf("roof file = %q, %v; want an empty entry", path, ok)
	}
}

func TestGatewayClients(t *testing.T) {
	cfg := &config.Config{
		Gateways: []config.GatewayConfig{
			{ID: "garden", Host: "192.168.1.50", Port: 45000},
			{ID: "roof", Host: "192.168.1.51", Port: 45001},
		},
		Transport: config.TransportConfig{
			Timeout: 2 * time.Second,
			Tries:   3,
		},
	}

	clients := gatewayClients(cfg, logging.Default())
	if len(clients) != 2 {
		t.Fatalf("clients = %d, want 2", len(clients))
	}
	if clients[0].ID() != "garden" || clients[1].ID() != "roof" {
		t.Errorf("client ids = %s, %s", clients[0].ID(), clients[1].ID())
	}
}
