// weatherbridge polls Ecowitt-protocol weather gateways over their local
// binary API and republishes every reading to an MQTT broker, announcing
// each sensor through Home Assistant MQTT discovery.
//
// Configuration is read from configs/config.yaml, or the file named by
// WEATHERBRIDGE_CONFIG. Send SIGHUP to reload the sensor definition files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-weather/internal/api"
	"github.com/nerrad567/gray-logic-weather/internal/gateway"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-weather/internal/metrics"
	"github.com/nerrad567/gray-logic-weather/internal/poller"
	"github.com/nerrad567/gray-logic-weather/internal/publish"
	"github.com/nerrad567/gray-logic-weather/internal/sensors"
	"github.com/nerrad567/gray-logic-weather/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// startupConnectWait is how long startup waits for the broker before
// polling begins with messages queued.
const startupConnectWait = 15 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting weatherbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.PathFromEnv()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"gateways", len(cfg.Gateways),
		"level", cfg.Logging.Level,
	)

	// Sensor definitions are loaded before anything connects so a broken
	// file fails fast.
	src := sensorSource(cfg)
	snap, err := sensors.LoadSnapshot(src)
	if err != nil {
		return fmt.Errorf("loading sensor definitions: %w", err)
	}
	registry := sensors.NewRegistry(snap)
	registry.SetLogger(log)
	registry.SetSource(src)
	for _, id := range snap.Gateways() {
		log.Info("sensor definitions loaded", "gateway_id", id, "sensors", snap.Len(id))
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	applied, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path, "migrations_applied", applied)

	m := metrics.New()

	session := mqtt.Dial(cfg.MQTT, cfg.DiscoveryPrefix())
	session.SetLogger(log)
	session.SetObserver(m)
	session.Start()
	defer func() {
		log.Info("closing MQTT session")
		session.Close(time.Duration(cfg.MQTT.Queue.DrainGrace) * time.Second)
	}()

	waitCtx, cancelWait := context.WithTimeout(ctx, startupConnectWait)
	err = session.WaitConnected(waitCtx)
	cancelWait()
	switch {
	case err == nil:
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", session.ClientID(),
		)
	case ctx.Err() != nil:
		return nil
	default:
		log.Warn("MQTT broker not reachable yet, queueing messages",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"error", err,
		)
	}

	qos := byte(cfg.MQTT.QoS) //nolint:gosec // validated 0-2
	store := publish.NewSQLStore(db, cfg.Discovery.CacheSize)
	disc := publish.NewDiscovery(session, store, publish.DiscoveryConfig{
		Manufacturer:      cfg.Discovery.Manufacturer,
		OriginName:        logging.ServiceName,
		Version:           version,
		QoS:               qos,
		ExpireAfterCycles: cfg.Discovery.ExpireAfterCycles,
	})
	disc.SetLogger(log)
	info := publish.NewInfo(disc, session, qos)
	info.SetLogger(log)

	if cfg.Discovery.BirthTopic != "" {
		if subErr := session.Subscribe(cfg.Discovery.BirthTopic, qos, disc.HandleBirth); subErr != nil {
			log.Warn("hub birth subscription failed", "topic", cfg.Discovery.BirthTopic, "error", subErr)
		}
	}

	sched, err := poller.NewScheduler(poller.ConfigFrom(cfg), poller.Deps{
		Registry:  registry,
		Discovery: disc,
		State:     publish.NewState(session, qos),
		Info:      info,
		Observer:  m,
		Logger:    log,
	}, gatewayClients(cfg, log))
	if err != nil {
		return fmt.Errorf("creating poller: %w", err)
	}

	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:    cfg.API,
			Logger:    log,
			Gateways:  sched,
			Registry:  registry,
			Discovery: disc,
			Broker:    session,
			Database:  db,
			Metrics:   m,
			Version:   version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	go watchReload(ctx, registry, m, log)

	log.Info("initialisation complete, polling")
	sched.Run(ctx)

	// Deferred Close() calls run in reverse order: API, MQTT (drain,
	// offline, disconnect), database.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// sensorSource maps the configured definition files to a registry source.
func sensorSource(cfg *config.Config) sensors.Source {
	src := sensors.Source{
		GlobalFile:   cfg.Sensors.GlobalFile,
		GatewayFiles: make(map[string]string, len(cfg.Gateways)),
	}
	for _, gw := range cfg.Gateways {
		src.GatewayFiles[gw.ID] = gw.SensorsFile
	}
	return src
}

// gatewayClients creates one transport client per configured gateway.
func gatewayClients(cfg *config.Config, log *logging.Logger) []poller.Fetcher {
	out := make([]poller.Fetcher, 0, len(cfg.Gateways))
	for _, gw := range cfg.Gateways {
		c := gateway.New(gw.ID, gateway.Config{
			Host:             gw.Host,
			Port:             gw.Port,
			Timeout:          cfg.Transport.Timeout,
			Tries:            cfg.Transport.Tries,
			RetryWait:        cfg.Transport.RetryWait,
			FailureThreshold: cfg.Transport.Breaker.FailureThreshold,
			OpenTimeout:      cfg.Transport.Breaker.OpenTimeout,
		})
		c.SetLogger(log)
		out = append(out, c)
	}
	return out
}

// reloader is the part of the sensor registry SIGHUP drives.
type reloader interface {
	Reload() (*sensors.Snapshot, error)
}

// watchReload reloads sensor definitions on SIGHUP until ctx is done. A
// failed reload keeps the running snapshot.
func watchReload(ctx context.Context, r reloader, m *metrics.Metrics, log *logging.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			snap, err := r.Reload()
			m.RegistryReloaded(err)
			if err != nil {
				log.Error("SIGHUP reload failed, keeping current sensor definitions", "error", err)
				continue
			}
			log.Info("sensor definitions reloaded", "version", snap.Version())
		}
	}
}

