package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-weather/internal/protocol"
	"github.com/nerrad567/gray-logic-weather/internal/publish"
	"github.com/nerrad567/gray-logic-weather/internal/sensors"
)

var errGatewayDown = errors.New("connection refused")

// liveFrame wraps a live-data payload in a response envelope.
func liveFrame(payload []byte) []byte {
	size := len(payload) + 4
	frame := []byte{0xFF, 0xFF, protocol.CmdLiveData, byte(size >> 8), byte(size)}
	frame = append(frame, payload...)
	return append(frame, protocol.Checksum(frame[2:]))
}

// rainAndWind carries rain_rate raw 25 and wind_dir raw 3.
var rainAndWind = liveFrame([]byte{0x0E, 0x00, 0x19, 0x0A, 0x00, 0x03})

type fakeFetcher struct {
	id string

	mu       sync.Mutex
	frame    []byte
	err      error
	macErr   error
	infoErr  error
	release  chan struct{}
	live     int
	info     int
	macCalls int
	paired   []protocol.SensorInfo
}

func (f *fakeFetcher) ID() string { return f.id }

func (f *fakeFetcher) LiveData(_ context.Context) ([]byte, error) {
	f.mu.Lock()
	f.live++
	release := f.release
	frame, err := f.frame, f.err
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	return frame, err
}

func (f *fakeFetcher) SensorInfo(_ context.Context) ([]protocol.SensorInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info++
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return f.paired, nil
}

func (f *fakeFetcher) StationMAC(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.macCalls++
	if f.macErr != nil {
		return "", f.macErr
	}
	return "48:3F:DA:01:0A:FF", nil
}

func (f *fakeFetcher) Firmware(_ context.Context) (string, error) {
	return "GW1100A_V2.3.1", nil
}

func (f *fakeFetcher) BreakerState() string { return "closed" }

func (f *fakeFetcher) set(frame []byte, err error) {
	f.mu.Lock()
	f.frame, f.err = frame, err
	f.mu.Unlock()
}

func (f *fakeFetcher) counts() (live, info, mac int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live, f.info, f.macCalls
}

// events records publish calls in order across fakes.
type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	e.log = append(e.log, s)
	e.mu.Unlock()
}

func (e *events) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

type fakeAnnouncer struct {
	ev      *events
	devices []publish.Device
	sweeps  []uint64
	mu      sync.Mutex
}

func (a *fakeAnnouncer) Announce(_ context.Context, device publish.Device, spec sensors.Spec, _ uint64) (bool, error) {
	a.mu.Lock()
	a.devices = append(a.devices, device)
	a.mu.Unlock()
	a.ev.add("discovery:" + spec.Key)
	return true, nil
}

func (a *fakeAnnouncer) Sweep(_ context.Context, _ string, cycle uint64) (int, error) {
	a.mu.Lock()
	a.sweeps = append(a.sweeps, cycle)
	a.mu.Unlock()
	return 0, nil
}

func (a *fakeAnnouncer) KeepInfo(context.Context, string, uint64) error { return nil }

func (a *fakeAnnouncer) lastDevice() publish.Device {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.devices) == 0 {
		return publish.Device{}
	}
	return a.devices[len(a.devices)-1]
}

// recordingPublisher satisfies publish.Publisher for a real publish.State.
type recordingPublisher struct {
	ev   *events
	mu   sync.Mutex
	msgs []mqtt.Message
}

func (p *recordingPublisher) Publish(_ context.Context, msg mqtt.Message) error {
	p.mu.Lock()
	p.msgs = append(p.msgs, msg)
	p.mu.Unlock()
	p.ev.add("publish:" + msg.Topic)
	return nil
}

func (p *recordingPublisher) Topics() mqtt.Topics { return mqtt.Topics{Root: "homeassistant"} }
func (p *recordingPublisher) ClientID() string    { return "weatherbridge" }

func (p *recordingPublisher) messages() []mqtt.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]mqtt.Message(nil), p.msgs...)
}

type fakeInfo struct {
	mu     sync.Mutex
	cycles []uint64
}

func (i *fakeInfo) Publish(_ context.Context, _ publish.Device, paired []protocol.SensorInfo, cycle uint64) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cycles = append(i.cycles, cycle)
	return len(paired), nil
}

type fakeObserver struct {
	mu          sync.Mutex
	skipped     map[string]int
	results     map[string]int
	unknown     int
	unmapped    int
	lastFailure int
}

func newFakeObserver() *fakeObserver {
	return &fakeObserver{skipped: map[string]int{}, results: map[string]int{}}
}

func (o *fakeObserver) CycleCompleted(_, result string, _ time.Duration) {
	o.mu.Lock()
	o.results[result]++
	o.mu.Unlock()
}

func (o *fakeObserver) TickSkipped(_, reason string) {
	o.mu.Lock()
	o.skipped[reason]++
	o.mu.Unlock()
}

func (o *fakeObserver) ConsecutiveFailures(_ string, n int) {
	o.mu.Lock()
	o.lastFailure = n
	o.mu.Unlock()
}

func (o *fakeObserver) Diagnostics(_ string, unknown, unmapped int) {
	o.mu.Lock()
	o.unknown += unknown
	o.unmapped += unmapped
	o.mu.Unlock()
}

func (o *fakeObserver) DiscoveryPublished(string, int) {}
func (o *fakeObserver) PublishFailed(string, string)   {}

func (o *fakeObserver) skips(reason string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.skipped[reason]
}

func (o *fakeObserver) result(r string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.results[r]
}

// memStore is an in-memory publish.Store.
type memStore struct {
	mu  sync.Mutex
	fps map[string]publish.Fingerprint
}

func newMemStore() *memStore { return &memStore{fps: map[string]publish.Fingerprint{}} }

func (s *memStore) Get(_ context.Context, gatewayID, key string) (publish.Fingerprint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp, ok := s.fps[gatewayID+"/"+key]
	return fp, ok, nil
}

func (s *memStore) Put(_ context.Context, fp publish.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fps[fp.GatewayID+"/"+fp.Key] = fp
	return nil
}

func (s *memStore) Delete(_ context.Context, gatewayID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fps, gatewayID+"/"+key)
	return nil
}

func (s *memStore) List(_ context.Context, gatewayID string) ([]publish.Fingerprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []publish.Fingerprint
	for _, fp := range s.fps {
		if fp.GatewayID == gatewayID {
			out = append(out, fp)
		}
	}
	return out, nil
}

func (s *memStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.fps)
	return nil
}

func (s *memStore) has(gatewayID, key string) bool {
	_, ok, _ := s.Get(context.Background(), gatewayID, key)
	return ok
}

// staticRegistry serves a fixed snapshot.
type staticRegistry struct{ snap *sensors.Snapshot }

func (r staticRegistry) Current() *sensors.Snapshot { return r.snap }

func rainOnlyRegistry() staticRegistry {
	global := []sensors.Definition{{Key: "rain_rate"}}
	return staticRegistry{snap: sensors.Build(global, map[string][]sensors.Definition{
		"garden": nil,
		"roof":   nil,
	})}
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	fetch *fakeFetcher
	ann   *fakeAnnouncer
	pub   *recordingPublisher
	info  *fakeInfo
	obs   *fakeObserver
	ev    *events
	clock *clock
	w     *worker
}

func newHarness(cfg Config) *harness {
	ev := &events{}
	h := &harness{
		fetch: &fakeFetcher{id: "garden", frame: rainAndWind},
		ann:   &fakeAnnouncer{ev: ev},
		pub:   &recordingPublisher{ev: ev},
		info:  &fakeInfo{},
		obs:   newFakeObserver(),
		ev:    ev,
		clock: &clock{now: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)},
	}
	h.w = newWorker(h.fetch, cfg, Deps{
		Registry:  rainOnlyRegistry(),
		Discovery: h.ann,
		State:     publish.NewState(h.pub, 1),
		Info:      h.info,
		Observer:  h.obs,
	})
	h.w.now = h.clock.Now
	return h
}

func testConfig() Config {
	return Config{
		Interval:       time.Hour,
		FetchTimeout:   time.Second,
		PublishTimeout: time.Second,
		BackoffBase:    10 * time.Second,
		BackoffMax:     25 * time.Second,
		MetadataEvery:  3,
	}
}
