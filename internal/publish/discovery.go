package publish

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	json "github.com/goccy/go-json"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-weather/internal/sensors"
)

// birthResetTimeout bounds the store reset triggered by a hub birth message.
const birthResetTimeout = 10 * time.Second

// DiscoveryConfig configures the discovery publisher.
type DiscoveryConfig struct {
	// Manufacturer fills device.manufacturer.
	Manufacturer string

	// OriginName and Version fill the origin block.
	OriginName string
	Version    string

	// QoS of discovery messages.
	QoS byte

	// ExpireAfterCycles clears a sensor's retained config once it has not
	// been reported for this many successful cycles. Zero keeps configs
	// forever.
	ExpireAfterCycles int
}

type devicePayload struct {
	Identifiers  []string    `json:"identifiers"`
	Name         string      `json:"name"`
	Model        string      `json:"model,omitempty"`
	SWVersion    string      `json:"sw_version,omitempty"`
	Manufacturer string      `json:"manufacturer,omitempty"`
	Connections  [][2]string `json:"connections,omitempty"`
}

type originPayload struct {
	Name      string `json:"name"`
	SWVersion string `json:"sw_version,omitempty"`
}

type discoveryPayload struct {
	Name                   string        `json:"name"`
	UniqueID               string        `json:"unique_id"`
	StateTopic             string        `json:"state_topic"`
	AvailabilityTopic      string        `json:"availability_topic,omitempty"`
	DeviceClass            string        `json:"device_class,omitempty"`
	UnitOfMeasurement      string        `json:"unit_of_measurement,omitempty"`
	ValueTemplate          string        `json:"value_template,omitempty"`
	JSONAttributesTopic    string        `json:"json_attributes_topic,omitempty"`
	JSONAttributesTemplate string        `json:"json_attributes_template,omitempty"`
	Device                 devicePayload `json:"device"`
	Origin                 originPayload `json:"origin"`
}

// Discovery announces sensors to the home-automation hub.
//
// Thread Safety: safe for concurrent use by every gateway worker.
type Discovery struct {
	pub    Publisher
	store  Store
	cfg    DiscoveryConfig
	logger Logger

	mu   sync.Mutex
	seen map[string]map[string]uint64 // gateway → key → last cycle reported
}

// NewDiscovery creates a discovery publisher.
func NewDiscovery(pub Publisher, store Store, cfg DiscoveryConfig) *Discovery {
	return &Discovery{
		pub:    pub,
		store:  store,
		cfg:    cfg,
		logger: noopLogger{},
		seen:   make(map[string]map[string]uint64),
	}
}

// SetLogger sets the logger.
func (d *Discovery) SetLogger(logger Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// Payload builds the discovery config for spec. stateTopic is where the
// sensor's value is published.
func (d *Discovery) Payload(device Device, spec sensors.Spec, stateTopic string) ([]byte, error) {
	topics := d.pub.Topics()

	dev := devicePayload{
		Identifiers:  []string{device.GatewayID},
		Name:         device.GatewayID,
		Model:        device.Model,
		SWVersion:    device.Firmware,
		Manufacturer: d.cfg.Manufacturer,
	}
	if device.MAC != "" {
		dev.Connections = [][2]string{{"mac", strings.ToLower(device.MAC)}}
	}

	p := discoveryPayload{
		Name:                   spec.Name,
		UniqueID:               mqtt.UniqueID(device.GatewayID, spec.Key),
		StateTopic:             stateTopic,
		AvailabilityTopic:      topics.Availability(d.pub.ClientID()),
		DeviceClass:            spec.DeviceClass,
		UnitOfMeasurement:      spec.Unit,
		ValueTemplate:          spec.ValueTemplate,
		JSONAttributesTopic:    spec.JSONAttributesTopic,
		JSONAttributesTemplate: spec.JSONAttributesTemplate,
		Device:                 dev,
		Origin:                 originPayload{Name: d.cfg.OriginName, SWVersion: d.cfg.Version},
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: discovery %s: %w", ErrEncodeFailed, p.UniqueID, err)
	}
	return data, nil
}

// Hash returns the fingerprint of a discovery payload.
func Hash(payload []byte) uint64 {
	return xxhash.Sum64(payload)
}

// Announce publishes the retained discovery config of spec when it is new
// or has changed since the last confirmed announce.
//
// Parameters:
//   - ctx: bounds the publish and store access
//   - device: gateway owning the sensor
//   - spec: resolved sensor configuration
//   - cycle: the gateway's successful-cycle counter, used for expiry
//
// Returns:
//   - bool: true if a message was published
//   - error: ErrPublishFailure (wrapping the session error) or ErrEncodeFailed
func (d *Discovery) Announce(ctx context.Context, device Device, spec sensors.Spec, cycle uint64) (bool, error) {
	stateTopic := d.pub.Topics().State(device.GatewayID)
	return d.announce(ctx, device, spec, stateTopic, cycle)
}

func (d *Discovery) announce(ctx context.Context, device Device, spec sensors.Spec, stateTopic string, cycle uint64) (bool, error) {
	d.markSeen(device.GatewayID, spec.Key, cycle)

	payload, err := d.Payload(device, spec, stateTopic)
	if err != nil {
		return false, err
	}
	topic := d.pub.Topics().SensorDiscovery(device.GatewayID, spec.Key)
	hash := Hash(payload)

	stored, found, err := d.store.Get(ctx, device.GatewayID, spec.Key)
	if err != nil {
		d.logger.Warn("fingerprint lookup failed, announcing",
			"gateway_id", device.GatewayID,
			"key", spec.Key,
			"error", err,
		)
	}
	if found && stored.Hash == hash && stored.Topic == topic {
		return false, nil
	}

	err = d.pub.Publish(ctx, mqtt.Message{
		Topic:    topic,
		Payload:  payload,
		QoS:      d.cfg.QoS,
		Retained: true,
	})
	if err != nil {
		return false, fmt.Errorf("%w: discovery %s: %w", ErrPublishFailure, topic, err)
	}

	if err := d.store.Put(ctx, Fingerprint{
		GatewayID: device.GatewayID,
		Key:       spec.Key,
		Topic:     topic,
		Hash:      hash,
	}); err != nil {
		// Still deduplicated by the store's cache until restart.
		d.logger.Warn("fingerprint not persisted",
			"gateway_id", device.GatewayID,
			"key", spec.Key,
			"error", err,
		)
	}

	d.logger.Debug("discovery config published",
		"gateway_id", device.GatewayID,
		"key", spec.Key,
		"topic", topic,
		"changed", found,
	)
	return true, nil
}

func (d *Discovery) markSeen(gatewayID, key string, cycle uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys, ok := d.seen[gatewayID]
	if !ok {
		keys = make(map[string]uint64)
		d.seen[gatewayID] = keys
	}
	keys[key] = cycle
}

// Sweep clears the retained config of every stored sensor of gatewayID
// that has not been reported for ExpireAfterCycles cycles. Sensors stored
// by an earlier run start counting at their first sweep.
//
// Returns the number of configs cleared.
func (d *Discovery) Sweep(ctx context.Context, gatewayID string, cycle uint64) (int, error) {
	limit := uint64(d.cfg.ExpireAfterCycles) //nolint:gosec // validated non-negative
	if limit == 0 {
		return 0, nil
	}

	stored, err := d.store.List(ctx, gatewayID)
	if err != nil {
		return 0, err
	}

	var expired []Fingerprint
	d.mu.Lock()
	keys, ok := d.seen[gatewayID]
	if !ok {
		keys = make(map[string]uint64)
		d.seen[gatewayID] = keys
	}
	for _, fp := range stored {
		last, ok := keys[fp.Key]
		if !ok {
			keys[fp.Key] = cycle
			continue
		}
		if cycle-last >= limit {
			expired = append(expired, fp)
		}
	}
	d.mu.Unlock()

	cleared := 0
	for _, fp := range expired {
		if err := d.pub.Publish(ctx, mqtt.Message{Topic: fp.Topic, QoS: d.cfg.QoS, Retained: true}); err != nil {
			return cleared, fmt.Errorf("%w: clearing %s: %w", ErrPublishFailure, fp.Topic, err)
		}
		if err := d.store.Delete(ctx, fp.GatewayID, fp.Key); err != nil {
			return cleared, err
		}
		d.mu.Lock()
		delete(keys, fp.Key)
		d.mu.Unlock()

		d.logger.Info("discovery config expired",
			"gateway_id", fp.GatewayID,
			"key", fp.Key,
			"after_cycles", limit,
		)
		cleared++
	}
	return cleared, nil
}

// KeepInfo marks every stored "<type>_info" entry of gatewayID as reported
// in cycle. It stands in for a metadata round whose fetch failed, so a
// transport error never expires the gateway's info entities.
func (d *Discovery) KeepInfo(ctx context.Context, gatewayID string, cycle uint64) error {
	if d.cfg.ExpireAfterCycles <= 0 {
		return nil
	}
	stored, err := d.store.List(ctx, gatewayID)
	if err != nil {
		return err
	}
	for _, fp := range stored {
		if strings.HasSuffix(fp.Key, infoKeySuffix) {
			d.markSeen(gatewayID, fp.Key, cycle)
		}
	}
	return nil
}

// Reset forgets every fingerprint so the next cycle re-announces all
// sensors.
func (d *Discovery) Reset(ctx context.Context) error {
	if err := d.store.Reset(ctx); err != nil {
		return err
	}
	d.logger.Info("discovery fingerprints reset")
	return nil
}

// HandleBirth is a message handler for the hub's birth topic. An "online"
// payload means the hub restarted and may have lost non-retained state.
func (d *Discovery) HandleBirth(topic string, payload []byte) error {
	if strings.TrimSpace(string(payload)) != mqtt.PayloadOnline {
		return nil
	}
	d.logger.Info("hub birth message received", "topic", topic)

	ctx, cancel := context.WithTimeout(context.Background(), birthResetTimeout)
	defer cancel()
	return d.Reset(ctx)
}
