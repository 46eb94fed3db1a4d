// Package poller drives the fetch → decode → resolve → publish pipeline.
//
// A Scheduler runs one worker goroutine per gateway. Each worker ticks at
// poll.interval and runs at most one cycle at a time:
//
//	Idle → Fetching → Decoding → Publishing → Idle
//	           │          │
//	           └──────────┴──→ Backoff (min(base × failures, max))
//
// A tick that lands while a cycle is in flight, or while the gateway is
// backing off, is skipped and counted. Each cycle reads one registry
// snapshot, so a reload takes effect between cycles. Discovery for a
// cycle's sensors is attempted before its state message.
//
// On shutdown the in-flight cycle runs to completion under its per-step
// timeouts; no new cycle starts.
package poller
