package poller

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-weather/internal/protocol"
	"github.com/nerrad567/gray-logic-weather/internal/publish"
	"github.com/nerrad567/gray-logic-weather/internal/sensors"
)

// Phase is where a gateway worker is in its cycle.
type Phase int

// Worker phases.
const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseDecoding
	PhasePublishing
	PhaseBackoff
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFetching:
		return "fetching"
	case PhaseDecoding:
		return "decoding"
	case PhasePublishing:
		return "publishing"
	case PhaseBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Cycle results reported to the Observer.
const (
	ResultOK          = "ok"
	ResultFetchError  = "fetch_error"
	ResultDecodeError = "decode_error"
)

// Skip reasons reported to the Observer.
const (
	SkipInFlight = "in_flight"
	SkipBackoff  = "backoff"
)

// PollState is a point-in-time view of one gateway worker.
type PollState struct {
	GatewayID           string    `json:"gateway_id"`
	Phase               Phase     `json:"phase"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	BackoffUntil        time.Time `json:"backoff_until,omitzero"`
	LastAttempt         time.Time `json:"last_attempt,omitzero"`
	LastSuccess         time.Time `json:"last_success,omitzero"`
	LastError           string    `json:"last_error,omitempty"`
	Cycles              uint64    `json:"cycles"`
	Readings            int       `json:"readings"`
	Breaker             string    `json:"breaker,omitempty"`
	Model               string    `json:"model,omitempty"`
	Firmware            string    `json:"firmware,omitempty"`
}

// Config controls cycle timing.
type Config struct {
	Interval       time.Duration
	FetchTimeout   time.Duration
	PublishTimeout time.Duration
	BackoffBase    time.Duration
	BackoffMax     time.Duration

	// MetadataEvery publishes sensor battery and signal info on the first
	// successful cycle and every N cycles after. Zero disables it.
	MetadataEvery int
}

// Fetcher talks to one gateway. *gateway.Client implements it.
type Fetcher interface {
	ID() string
	LiveData(ctx context.Context) ([]byte, error)
	SensorInfo(ctx context.Context) ([]protocol.SensorInfo, error)
	StationMAC(ctx context.Context) (string, error)
	Firmware(ctx context.Context) (string, error)
}

// breakerReporter is implemented by fetchers with a circuit breaker.
type breakerReporter interface {
	BreakerState() string
}

// SnapshotSource provides the current sensor registry snapshot.
type SnapshotSource interface {
	Current() *sensors.Snapshot
}

// Announcer publishes discovery configs. *publish.Discovery implements it.
type Announcer interface {
	Announce(ctx context.Context, device publish.Device, spec sensors.Spec, cycle uint64) (bool, error)
	Sweep(ctx context.Context, gatewayID string, cycle uint64) (int, error)
	KeepInfo(ctx context.Context, gatewayID string, cycle uint64) error
}

// StatePublisher publishes a cycle's readings. *publish.State implements it.
type StatePublisher interface {
	Publish(ctx context.Context, gatewayID string, readings []sensors.Reading) error
}

// InfoPublisher publishes paired sensor metadata. *publish.Info implements it.
type InfoPublisher interface {
	Publish(ctx context.Context, device publish.Device, paired []protocol.SensorInfo, cycle uint64) (int, error)
}

// Observer receives cycle events for metrics. *metrics.Metrics implements it.
type Observer interface {
	CycleCompleted(gatewayID, result string, elapsed time.Duration)
	TickSkipped(gatewayID, reason string)
	ConsecutiveFailures(gatewayID string, n int)
	Diagnostics(gatewayID string, unknownFields, unmappedKeys int)
	DiscoveryPublished(gatewayID string, n int)
	PublishFailed(gatewayID, kind string)
}

type noopObserver struct{}

func (noopObserver) CycleCompleted(string, string, time.Duration) {}
func (noopObserver) TickSkipped(string, string)                   {}
func (noopObserver) ConsecutiveFailures(string, int)              {}
func (noopObserver) Diagnostics(string, int, int)                 {}
func (noopObserver) DiscoveryPublished(string, int)               {}
func (noopObserver) PublishFailed(string, string)                 {}

// Logger defines the logging interface used by the poller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps are the collaborators shared by every worker. Info, Observer and
// Logger may be nil.
type Deps struct {
	Registry  SnapshotSource
	Discovery Announcer
	State     StatePublisher
	Info      InfoPublisher
	Observer  Observer
	Logger    Logger
}

func (d Deps) withDefaults() Deps {
	if d.Observer == nil {
		d.Observer = noopObserver{}
	}
	if d.Logger == nil {
		d.Logger = noopLogger{}
	}
	return d
}
