package sensors

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is an immutable gateway -> key -> Spec mapping.
//
// A Snapshot is built once and never modified; a reload produces a new one.
type Snapshot struct {
	specs   map[string]map[string]Spec
	builtAt time.Time
	version uint64
}

// Build merges the global layer with each gateway's local layer.
//
// Every gateway in locals gets an entry, even when its local list is nil,
// so Resolve can tell a configured gateway from an unknown one.
//
// Parameters:
//   - global: Definitions shared by every gateway
//   - locals: Per-gateway override lists keyed by gateway ID
//
// Returns:
//   - *Snapshot: Frozen registry contents
func Build(global []Definition, locals map[string][]Definition) *Snapshot {
	specs := make(map[string]map[string]Spec, len(locals))
	for gatewayID, local := range locals {
		specs[gatewayID] = Merge(global, local)
	}
	return &Snapshot{
		specs:   specs,
		builtAt: time.Now(),
	}
}

// Resolve looks up the spec for a key on a gateway. It has no side effects.
func (s *Snapshot) Resolve(gatewayID, key string) (Spec, bool) {
	if s == nil {
		return Spec{}, false
	}
	spec, ok := s.specs[gatewayID][key]
	return spec, ok
}

// Gateways returns the configured gateway IDs in sorted order.
func (s *Snapshot) Gateways() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.specs))
	for id := range s.specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of sensors configured for a gateway.
func (s *Snapshot) Len(gatewayID string) int {
	if s == nil {
		return 0
	}
	return len(s.specs[gatewayID])
}

// Version is the sequence number assigned when the snapshot was swapped in.
func (s *Snapshot) Version() uint64 {
	if s == nil {
		return 0
	}
	return s.version
}

// BuiltAt returns when the snapshot was built.
func (s *Snapshot) BuiltAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.builtAt
}

// Registry holds the current Snapshot and replaces it atomically.
//
// Thread Safety:
//   - Current and Swap may be called from any goroutine. Readers always
//     see either the previous or the new snapshot in full.
type Registry struct {
	current atomic.Pointer[Snapshot]
	seq     atomic.Uint64
	logger  Logger

	// reloadMu serialises Reload calls and guards source.
	reloadMu sync.Mutex
	source   Source
}

// NewRegistry creates a registry holding the given snapshot.
func NewRegistry(initial *Snapshot) *Registry {
	r := &Registry{logger: noopLogger{}}
	if initial == nil {
		initial = Build(nil, nil)
	}
	r.Swap(initial)
	return r
}

// SetLogger sets the logger used for reload messages.
func (r *Registry) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Current returns the snapshot in use. Callers should grab it once per
// poll cycle and use that value throughout.
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}

// Swap installs a new snapshot and returns the one it replaced.
//
// The snapshot is stamped with the next version number before it becomes
// visible; it must not be shared with another Registry.
func (r *Registry) Swap(next *Snapshot) *Snapshot {
	next.version = r.seq.Add(1)
	return r.current.Swap(next)
}

// Source names the files a registry is loaded from.
type Source struct {
	// GlobalFile holds the shared definitions. Empty means no global layer.
	GlobalFile string

	// GatewayFiles maps each gateway ID to its override file. An empty
	// path means the gateway has no local layer.
	GatewayFiles map[string]string
}

// LoadSnapshot reads every file in src and builds a snapshot.
//
// Any unreadable or malformed file fails the whole load, leaving the
// caller's current snapshot untouched.
func LoadSnapshot(src Source) (*Snapshot, error) {
	var global []Definition
	if src.GlobalFile != "" {
		defs, err := LoadFile(src.GlobalFile)
		if err != nil {
			return nil, fmt.Errorf("global definitions: %w", err)
		}
		global = defs
	}

	locals := make(map[string][]Definition, len(src.GatewayFiles))
	for gatewayID, path := range src.GatewayFiles {
		if path == "" {
			locals[gatewayID] = nil
			continue
		}
		defs, err := LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("gateway %s definitions: %w", gatewayID, err)
		}
		locals[gatewayID] = defs
	}

	return Build(global, locals), nil
}

// SetSource records the files used by Reload.
func (r *Registry) SetSource(src Source) {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()
	r.source = src
}

// Reload rebuilds the snapshot from the recorded source and swaps it in.
//
// On error the current snapshot stays in place.
func (r *Registry) Reload() (*Snapshot, error) {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	next, err := LoadSnapshot(r.source)
	if err != nil {
		r.logger.Error("sensor registry reload failed", "error", err)
		return nil, err
	}
	r.Swap(next)

	for _, id := range next.Gateways() {
		r.logger.Info("sensor registry loaded",
			"gateway_id", id,
			"sensors", next.Len(id),
			"version", next.Version(),
		)
	}
	return next, nil
}
