// Package sensors maps decoded gateway fields onto configured sensors.
//
// Sensor configuration comes in two layers: a global set of definitions
// shared by every gateway, and an optional per-gateway set that overrides
// individual fields. The layers are merged field by field into one Spec per
// (gateway, key) pair and frozen into an immutable Snapshot.
//
// Architecture:
//
//	┌────────────┐   ┌────────────┐
//	│ global.yaml│   │ gw-1.yaml  │   LoadFile
//	└─────┬──────┘   └─────┬──────┘
//	      └───── Merge ────┘
//	              │
//	              ▼
//	        ┌───────────┐   Swap    ┌──────────┐
//	        │  Snapshot │──────────▶│ Registry │  atomic.Pointer
//	        └───────────┘           └────┬─────┘
//	                                     │ Current()
//	                                     ▼
//	                               ResolveCycle ──▶ []Reading
//
// # Key Types
//
//   - Definition: One authored sensor entry; optional fields are pointers
//   - Spec: The merged configuration used for discovery and state output
//   - Snapshot: Frozen gateway -> key -> Spec mapping
//   - Registry: Holder that swaps snapshots atomically
//   - Reading: A decoded value paired with its Spec for one poll cycle
//
// # Thread Safety
//
// Snapshots are never modified after Build returns. Registry is safe for
// concurrent use; a poll cycle that grabs Current() keeps a consistent view
// even if a reload swaps the pointer mid-cycle.
package sensors
