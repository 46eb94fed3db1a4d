// Package gateway talks to Ecowitt-compatible weather gateways over their
// local TCP API (port 45000).
//
// Each request opens a fresh connection, writes one command frame and reads
// until the response's declared length has arrived. Failed attempts are
// retried a fixed number of times with a constant wait (cenkalti/backoff),
// and a per-gateway circuit breaker (sony/gobreaker) stops hammering a
// gateway that keeps failing.
//
// The client does not interpret live-data responses; it hands raw frames
// to the protocol decoder so decode failures stay distinguishable from
// transport failures.
package gateway
