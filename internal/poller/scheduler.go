package poller

import (
	"context"
	"sort"
	"sync"
)

// Scheduler runs one worker per gateway.
//
// Thread Safety: States may be called from any goroutine while Run is
// active.
type Scheduler struct {
	cfg     Config
	deps    Deps
	workers map[string]*worker
}

// NewScheduler creates a scheduler for the given gateways.
//
// Parameters:
//   - cfg: Cycle timing shared by every gateway
//   - deps: Registry and publishers shared by every gateway
//   - gateways: One fetcher per gateway, keyed by Fetcher.ID
//
// Returns:
//   - *Scheduler: Ready to Run
//   - error: ErrNoGateways or ErrInvalidInterval
func NewScheduler(cfg Config, deps Deps, gateways []Fetcher) (*Scheduler, error) {
	if len(gateways) == 0 {
		return nil, ErrNoGateways
	}
	if cfg.Interval <= 0 {
		return nil, ErrInvalidInterval
	}

	s := &Scheduler{
		cfg:     cfg,
		deps:    deps.withDefaults(),
		workers: make(map[string]*worker, len(gateways)),
	}
	for _, g := range gateways {
		s.workers[g.ID()] = newWorker(g, cfg, s.deps)
	}
	return s, nil
}

// Run polls every gateway until ctx is cancelled. It returns once every
// in-flight cycle has finished.
func (s *Scheduler) Run(ctx context.Context) {
	s.deps.Logger.Info("poller started",
		"gateways", len(s.workers),
		"interval", s.cfg.Interval,
	)

	var wg sync.WaitGroup
	for _, w := range s.workers {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx)
		}()
	}
	wg.Wait()

	s.deps.Logger.Info("poller stopped")
}

// States returns the state of every gateway, sorted by gateway id.
func (s *Scheduler) States() []PollState {
	out := make([]PollState, 0, len(s.workers))
	for _, w := range s.workers {
		out = append(out, w.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GatewayID < out[j].GatewayID })
	return out
}

// State returns the state of one gateway.
func (s *Scheduler) State(gatewayID string) (PollState, bool) {
	w, ok := s.workers[gatewayID]
	if !ok {
		return PollState{}, false
	}
	return w.snapshot(), true
}
