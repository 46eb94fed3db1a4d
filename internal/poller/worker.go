package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-weather/internal/protocol"
	"github.com/nerrad567/gray-logic-weather/internal/publish"
	"github.com/nerrad567/gray-logic-weather/internal/sensors"
)

// worker polls one gateway.
//
// Thread Safety: run owns the ticker. A cycle runs on its own goroutine,
// guarded by inFlight. state is read by the API under mu.
type worker struct {
	id    string
	fetch Fetcher
	cfg   Config
	deps  Deps
	now   func() time.Time

	inFlight atomic.Bool
	cycles   sync.WaitGroup

	mu       sync.Mutex
	state    PollState
	device   publish.Device
	haveInfo bool
}

func newWorker(fetch Fetcher, cfg Config, deps Deps) *worker {
	id := fetch.ID()
	return &worker{
		id:     id,
		fetch:  fetch,
		cfg:    cfg,
		deps:   deps.withDefaults(),
		now:    time.Now,
		state:  PollState{GatewayID: id},
		device: publish.Device{GatewayID: id},
	}
}

// run ticks until ctx is cancelled, then waits for the in-flight cycle.
func (w *worker) run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.cycles.Wait()
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick starts a cycle unless one is running or the gateway is backing off.
func (w *worker) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	w.mu.Lock()
	backoffUntil := w.state.BackoffUntil
	w.mu.Unlock()
	if !backoffUntil.IsZero() && w.now().Before(backoffUntil) {
		w.deps.Observer.TickSkipped(w.id, SkipBackoff)
		w.deps.Logger.Debug("tick skipped, backing off",
			"gateway_id", w.id,
			"until", backoffUntil,
		)
		return
	}

	if !w.inFlight.CompareAndSwap(false, true) {
		w.deps.Observer.TickSkipped(w.id, SkipInFlight)
		w.deps.Logger.Debug("tick skipped, cycle in flight", "gateway_id", w.id)
		return
	}

	w.cycles.Add(1)
	go func() {
		defer w.cycles.Done()
		defer w.inFlight.Store(false)
		w.cycle(ctx)
	}()
}

// cycle runs fetch → decode → resolve → publish once. Shutdown does not
// interrupt it; each step is bounded by its own timeout instead.
func (w *worker) cycle(parent context.Context) {
	ctx := context.WithoutCancel(parent)
	start := w.now()

	w.mu.Lock()
	w.state.LastAttempt = start
	w.state.Phase = PhaseFetching
	w.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	raw, err := w.fetch.LiveData(fetchCtx)
	cancel()
	if err != nil {
		w.fail(start, ResultFetchError, err)
		return
	}

	w.setPhase(PhaseDecoding)
	live, err := protocol.Decode(raw)
	if err != nil {
		w.fail(start, ResultDecodeError, err)
		return
	}
	for _, diag := range live.Diagnostics {
		w.deps.Logger.Warn("live data partially decoded",
			"gateway_id", w.id,
			"records", len(live.Records),
			"error", diag,
		)
	}

	snap := w.deps.Registry.Current()
	readings, unmapped := sensors.ResolveCycle(w.id, live.Records, snap, start, w.deps.Logger)
	w.deps.Observer.Diagnostics(w.id, len(live.Diagnostics), len(unmapped))

	w.setPhase(PhasePublishing)
	cycle := w.nextCycle()
	device := w.ensureDevice(ctx)

	w.publish(ctx, device, readings, cycle)
	if w.metadataDue(cycle) {
		w.publishInfo(ctx, device, cycle)
	}
	w.sweep(ctx, cycle)

	w.succeed(start, len(readings))
}

// publish announces every reading's discovery config, then the state
// message.
func (w *worker) publish(ctx context.Context, device publish.Device, readings []sensors.Reading, cycle uint64) {
	announced := 0
	for _, r := range readings {
		stepCtx, cancel := context.WithTimeout(ctx, w.cfg.PublishTimeout)
		sent, err := w.deps.Discovery.Announce(stepCtx, device, r.Spec, cycle)
		cancel()
		if err != nil {
			w.deps.Observer.PublishFailed(w.id, "discovery")
			w.deps.Logger.Warn("discovery announce failed",
				"gateway_id", w.id,
				"key", r.Key,
				"error", err,
			)
			continue
		}
		if sent {
			announced++
		}
	}
	if announced > 0 {
		w.deps.Observer.DiscoveryPublished(w.id, announced)
	}

	stepCtx, cancel := context.WithTimeout(ctx, w.cfg.PublishTimeout)
	defer cancel()
	if err := w.deps.State.Publish(stepCtx, w.id, readings); err != nil {
		w.deps.Observer.PublishFailed(w.id, "state")
		w.deps.Logger.Warn("state publish failed",
			"gateway_id", w.id,
			"readings", len(readings),
			"error", err,
		)
	}
}

func (w *worker) metadataDue(cycle uint64) bool {
	if w.deps.Info == nil || w.cfg.MetadataEvery <= 0 {
		return false
	}
	return (cycle-1)%uint64(w.cfg.MetadataEvery) == 0
}

func (w *worker) publishInfo(ctx context.Context, device publish.Device, cycle uint64) {
	fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	paired, err := w.fetch.SensorInfo(fetchCtx)
	cancel()
	if err != nil {
		w.deps.Logger.Warn("sensor metadata fetch failed",
			"gateway_id", w.id,
			"error", err,
		)
		keepCtx, cancel := context.WithTimeout(ctx, w.cfg.PublishTimeout)
		defer cancel()
		if err := w.deps.Discovery.KeepInfo(keepCtx, w.id, cycle); err != nil {
			w.deps.Logger.Warn("info entries not refreshed",
				"gateway_id", w.id,
				"error", err,
			)
		}
		return
	}

	stepCtx, cancel := context.WithTimeout(ctx, w.cfg.PublishTimeout*time.Duration(len(paired)+1))
	defer cancel()
	if _, err := w.deps.Info.Publish(stepCtx, device, paired, cycle); err != nil {
		w.deps.Observer.PublishFailed(w.id, "info")
		w.deps.Logger.Warn("sensor metadata publish incomplete",
			"gateway_id", w.id,
			"error", err,
		)
	}
}

func (w *worker) sweep(ctx context.Context, cycle uint64) {
	stepCtx, cancel := context.WithTimeout(ctx, w.cfg.PublishTimeout)
	defer cancel()
	if _, err := w.deps.Discovery.Sweep(stepCtx, w.id, cycle); err != nil {
		w.deps.Observer.PublishFailed(w.id, "expiry")
		w.deps.Logger.Warn("discovery expiry failed",
			"gateway_id", w.id,
			"error", err,
		)
	}
}

// ensureDevice fetches the station MAC and firmware until both are known.
// Failures leave the device block partially filled.
func (w *worker) ensureDevice(ctx context.Context) publish.Device {
	w.mu.Lock()
	device, done := w.device, w.haveInfo
	w.mu.Unlock()
	if done {
		return device
	}

	var errs []error
	if device.MAC == "" {
		stepCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
		mac, err := w.fetch.StationMAC(stepCtx)
		cancel()
		if err != nil {
			errs = append(errs, err)
		} else {
			device.MAC = mac
		}
	}
	if device.Firmware == "" {
		stepCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
		firmware, err := w.fetch.Firmware(stepCtx)
		cancel()
		if err != nil {
			errs = append(errs, err)
		} else {
			device = publish.DeviceFromFirmware(w.id, firmware, device.MAC)
		}
	}

	if err := errors.Join(errs...); err != nil {
		w.deps.Logger.Warn("gateway identity incomplete",
			"gateway_id", w.id,
			"error", err,
		)
	} else {
		w.deps.Logger.Info("gateway identified",
			"gateway_id", w.id,
			"model", device.Model,
			"firmware", device.Firmware,
			"mac", device.MAC,
		)
	}

	w.mu.Lock()
	w.device = device
	w.haveInfo = len(errs) == 0
	w.state.Model = device.Model
	w.state.Firmware = device.Firmware
	w.mu.Unlock()
	return device
}

func (w *worker) setPhase(p Phase) {
	w.mu.Lock()
	w.state.Phase = p
	w.mu.Unlock()
}

func (w *worker) nextCycle() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Cycles++
	return w.state.Cycles
}

// backoffFor returns min(base × failures, max).
func (w *worker) backoffFor(failures int) time.Duration {
	d := w.cfg.BackoffBase * time.Duration(failures)
	if w.cfg.BackoffMax > 0 && (d > w.cfg.BackoffMax || d < 0) {
		d = w.cfg.BackoffMax
	}
	return d
}

func (w *worker) fail(start time.Time, result string, err error) {
	w.mu.Lock()
	w.state.ConsecutiveFailures++
	failures := w.state.ConsecutiveFailures
	wait := w.backoffFor(failures)
	w.state.BackoffUntil = w.now().Add(wait)
	w.state.Phase = PhaseBackoff
	w.state.LastError = err.Error()
	w.mu.Unlock()

	w.deps.Observer.ConsecutiveFailures(w.id, failures)
	w.deps.Observer.CycleCompleted(w.id, result, w.now().Sub(start))

	logFn := w.deps.Logger.Warn
	if failures == 1 {
		logFn = w.deps.Logger.Error
	}
	logFn("poll failed",
		"gateway_id", w.id,
		"result", result,
		"consecutive_failures", failures,
		"backoff", wait,
		"error", err,
	)
}

func (w *worker) succeed(start time.Time, readings int) {
	w.mu.Lock()
	recovered := w.state.ConsecutiveFailures
	w.state.ConsecutiveFailures = 0
	w.state.BackoffUntil = time.Time{}
	w.state.Phase = PhaseIdle
	w.state.LastSuccess = start
	w.state.LastError = ""
	w.state.Readings = readings
	w.mu.Unlock()

	elapsed := w.now().Sub(start)
	w.deps.Observer.ConsecutiveFailures(w.id, 0)
	w.deps.Observer.CycleCompleted(w.id, ResultOK, elapsed)

	if recovered > 0 {
		w.deps.Logger.Info("gateway recovered",
			"gateway_id", w.id,
			"after_failures", recovered,
		)
	}
	w.deps.Logger.Debug("poll complete",
		"gateway_id", w.id,
		"readings", readings,
		"elapsed", elapsed,
	)
}

// snapshot returns a copy of the worker's state.
func (w *worker) snapshot() PollState {
	w.mu.Lock()
	st := w.state
	w.mu.Unlock()
	if b, ok := w.fetch.(breakerReporter); ok {
		st.Breaker = b.BreakerState()
	}
	return st
}
