// Package api implements the operator HTTP surface of the bridge.
//
// Endpoints:
//   - GET  /api/v1/health: process, broker and database health
//   - GET  /api/v1/gateways: per-gateway poll state
//   - GET  /api/v1/gateways/{id}: one gateway's poll state
//   - POST /api/v1/reload: rebuild the sensor registry from disk
//   - POST /api/v1/discovery/reset: forget discovery fingerprints so every
//     sensor is announced again on its next cycle
//   - GET  /metrics: Prometheus exposition
//
// The API is read-mostly and unauthenticated; bind it to a trusted
// interface.
package api
