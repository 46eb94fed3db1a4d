// Package publish turns resolved readings into broker messages.
//
// Three publishers share one broker session:
//
//   - Discovery announces each sensor to the home-automation hub as a
//     retained config message. A 64-bit fingerprint of the payload is kept
//     per (gateway, key) so unchanged sensors are announced once.
//   - State publishes one JSON object per gateway per cycle, keyed by
//     sensor key.
//   - Info publishes battery and signal data of the paired wireless
//     sensors, with its own discovery entries.
//
// # Fingerprint Store
//
// Fingerprints live in the discovery_fingerprints SQLite table behind a
// bounded LRU cache. A fingerprint is written only after the broker
// confirmed the publish, so a failed announce is retried next cycle.
// A hub birth message ("online" on the birth topic) clears the store and
// forces a full re-announce.
package publish
