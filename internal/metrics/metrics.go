// Package metrics exposes the bridge's Prometheus metrics.
//
// Metrics uses its own registry so tests and multiple instances never
// collide on the global default registerer. It implements the observer
// interfaces of the poller and the broker session.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/mqtt"
)

const namespace = "weatherbridge"

// Metrics holds every collector of the bridge.
type Metrics struct {
	registry *prometheus.Registry

	cycles       *prometheus.CounterVec
	cycleSeconds *prometheus.HistogramVec
	skipped      *prometheus.CounterVec
	failures     *prometheus.GaugeVec
	unknown      *prometheus.CounterVec
	unmapped     *prometheus.CounterVec
	discovery    *prometheus.CounterVec
	publishFails *prometheus.CounterVec
	reloads      *prometheus.CounterVec

	brokerState   prometheus.Gauge
	queueDepth    prometheus.Gauge
	queueDropped  prometheus.Counter
	brokerPublish *prometheus.CounterVec
}

// New creates and registers the collectors, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Completed poll cycles by gateway and result.",
		}, []string{"gateway", "result"}),
		cycleSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Wall time of a poll cycle from fetch to state publish.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), //nolint:mnd // 10ms to ~20s
		}, []string{"gateway"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_skipped_total",
			Help:      "Ticks skipped because a cycle was in flight or the gateway was backing off.",
		}, []string{"gateway", "reason"}),
		failures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poll_consecutive_failures",
			Help:      "Consecutive fetch or decode failures per gateway.",
		}, []string{"gateway"}),
		unknown: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_unknown_fields_total",
			Help:      "Frames cut short by an unknown or overrunning field.",
		}, []string{"gateway"}),
		unmapped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unmapped_keys_total",
			Help:      "Decoded fields dropped because no sensor is configured for them.",
		}, []string{"gateway"}),
		discovery: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_published_total",
			Help:      "Discovery config messages published.",
		}, []string{"gateway"}),
		publishFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Failed discovery, state and info publishes.",
		}, []string{"gateway", "kind"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_reloads_total",
			Help:      "Sensor registry reloads by result.",
		}, []string{"result"}),
		brokerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connection_state",
			Help:      "Broker session state: 0 disconnected, 1 connecting, 2 connected.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_queue_length",
			Help:      "Messages waiting in the outbound queue.",
		}),
		queueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_queue_dropped_total",
			Help:      "Messages dropped because the outbound queue was full.",
		}),
		brokerPublish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_publishes_total",
			Help:      "Messages handed to the broker by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycles, m.cycleSeconds, m.skipped, m.failures,
		m.unknown, m.unmapped, m.discovery, m.publishFails, m.reloads,
		m.brokerState, m.queueDepth, m.queueDropped, m.brokerPublish,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// CycleCompleted records one finished cycle.
func (m *Metrics) CycleCompleted(gatewayID, result string, elapsed time.Duration) {
	m.cycles.WithLabelValues(gatewayID, result).Inc()
	m.cycleSeconds.WithLabelValues(gatewayID).Observe(elapsed.Seconds())
}

// TickSkipped records a tick that did not start a cycle.
func (m *Metrics) TickSkipped(gatewayID, reason string) {
	m.skipped.WithLabelValues(gatewayID, reason).Inc()
}

// ConsecutiveFailures sets the failure streak of a gateway.
func (m *Metrics) ConsecutiveFailures(gatewayID string, n int) {
	m.failures.WithLabelValues(gatewayID).Set(float64(n))
}

// Diagnostics counts non-fatal decode and resolution problems.
func (m *Metrics) Diagnostics(gatewayID string, unknownFields, unmappedKeys int) {
	m.unknown.WithLabelValues(gatewayID).Add(float64(unknownFields))
	m.unmapped.WithLabelValues(gatewayID).Add(float64(unmappedKeys))
}

// DiscoveryPublished counts discovery configs sent.
func (m *Metrics) DiscoveryPublished(gatewayID string, n int) {
	m.discovery.WithLabelValues(gatewayID).Add(float64(n))
}

// PublishFailed counts a failed publish of the given kind.
func (m *Metrics) PublishFailed(gatewayID, kind string) {
	m.publishFails.WithLabelValues(gatewayID, kind).Inc()
}

// RegistryReloaded counts a registry reload.
func (m *Metrics) RegistryReloaded(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reloads.WithLabelValues(result).Inc()
}

// StateChanged implements mqtt.Observer.
func (m *Metrics) StateChanged(state mqtt.State) {
	m.brokerState.Set(float64(state))
}

// MessageDropped implements mqtt.Observer.
func (m *Metrics) MessageDropped(string) {
	m.queueDropped.Inc()
}

// MessagePublished implements mqtt.Observer.
func (m *Metrics) MessagePublished(_ string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.brokerPublish.WithLabelValues(result).Inc()
}

// QueueDepth implements mqtt.Observer.
func (m *Metrics) QueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}
