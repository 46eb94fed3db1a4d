package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-weather/internal/poller"
	"github.com/nerrad567/gray-logic-weather/internal/sensors"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// GatewayStates reports poll state. *poller.Scheduler implements it.
type GatewayStates interface {
	States() []poller.PollState
	State(gatewayID string) (poller.PollState, bool)
}

// Reloader rebuilds the sensor registry. *sensors.Registry implements it.
type Reloader interface {
	Reload() (*sensors.Snapshot, error)
}

// DiscoveryResetter forgets discovery fingerprints. *publish.Discovery
// implements it.
type DiscoveryResetter interface {
	Reset(ctx context.Context) error
}

// Broker reports the MQTT session. *mqtt.Session implements it.
type Broker interface {
	Stats() mqtt.Stats
}

// HealthChecker probes a dependency. *database.DB implements it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Metrics exposes the Prometheus registry. *metrics.Metrics implements it.
type Metrics interface {
	Handler() http.Handler
	RegistryReloaded(err error)
}

// Deps holds the dependencies required by the API server. Discovery and
// Metrics may be nil.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Gateways  GatewayStates
	Registry  Reloader
	Discovery DiscoveryResetter
	Broker    Broker
	Database  HealthChecker
	Metrics   Metrics
	Version   string
}

// Server is the HTTP API server.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	gateways  GatewayStates
	registry  Reloader
	discovery DiscoveryResetter
	broker    Broker
	database  HealthChecker
	metrics   Metrics
	version   string
	started   time.Time
	server    *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, gateway states, registry, broker, database)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("api: logger is required")
	case deps.Gateways == nil:
		return nil, errors.New("api: gateway states are required")
	case deps.Registry == nil:
		return nil, errors.New("api: sensor registry is required")
	case deps.Broker == nil:
		return nil, errors.New("api: broker is required")
	case deps.Database == nil:
		return nil, errors.New("api: database is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		gateways:  deps.Gateways,
		registry:  deps.Registry,
		discovery: deps.Discovery,
		broker:    deps.Broker,
		database:  deps.Database,
		metrics:   deps.Metrics,
		version:   deps.Version,
		started:   time.Now(),
	}, nil
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in a background goroutine. The server
// can be stopped with Close().
//
// Returns:
//   - error: If the listener cannot be bound (port in use, etc.)
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: listening on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
