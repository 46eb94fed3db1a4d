package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-weather/internal/poller"
)

// healthCheckTimeout bounds the database probe of a health request.
const healthCheckTimeout = 2 * time.Second

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string       `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	MQTT          MQTTHealth   `json:"mqtt"`
	Database      string       `json:"database"`
	Gateways      GatewayTally `json:"gateways"`
}

// MQTTHealth summarises the broker session.
type MQTTHealth struct {
	State     string `json:"state"`
	ClientID  string `json:"client_id"`
	Queued    int    `json:"queued"`
	Dropped   uint64 `json:"dropped"`
	Published uint64 `json:"published"`
}

// GatewayTally counts gateways by health.
type GatewayTally struct {
	Total   int `json:"total"`
	Failing int `json:"failing"`
}

// ReloadResponse is the body of POST /reload.
type ReloadResponse struct {
	Version uint64         `json:"version"`
	Sensors map[string]int `json:"sensors"`
}

// handleHealth reports "ok", "degraded" when the broker is away or a
// gateway is failing, and 503 "unavailable" when the database is unusable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.broker.Stats()
	resp := HealthResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		MQTT: MQTTHealth{
			State:     stats.State.String(),
			ClientID:  stats.ClientID,
			Queued:    stats.Queued,
			Dropped:   stats.Dropped,
			Published: stats.Published,
		},
		Database: "ok",
	}

	for _, st := range s.gateways.States() {
		resp.Gateways.Total++
		if st.ConsecutiveFailures > 0 {
			resp.Gateways.Failing++
		}
	}
	if stats.State != mqtt.StateConnected || resp.Gateways.Failing > 0 {
		resp.Status = "degraded"
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()
	if err := s.database.HealthCheck(ctx); err != nil {
		s.logger.Warn("health check: database unavailable", "error", err)
		resp.Database = "unavailable"
		resp.Status = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListGateways(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]poller.PollState{
		"gateways": s.gateways.States(),
	})
}

func (s *Server) handleGetGateway(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, ok := s.gateways.State(id)
	if !ok {
		writeNotFound(w, "gateway not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleReload rebuilds the sensor registry. A failed reload keeps the
// previous snapshot and returns 422 with the load error.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.registry.Reload()
	if s.metrics != nil {
		s.metrics.RegistryReloaded(err)
	}
	if err != nil {
		s.logger.Warn("sensor registry reload rejected",
			"error", err,
			"request_id", requestID(r.Context()),
		)
		writeError(w, http.StatusUnprocessableEntity, ErrCodeInvalidConfig, err.Error())
		return
	}

	resp := ReloadResponse{Version: snap.Version(), Sensors: make(map[string]int)}
	for _, id := range snap.Gateways() {
		resp.Sensors[id] = snap.Len(id)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDiscoveryReset(w http.ResponseWriter, r *http.Request) {
	if s.discovery == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "discovery is not running")
		return
	}
	if err := s.discovery.Reset(r.Context()); err != nil {
		s.logger.Error("discovery reset failed", "error", err)
		writeInternalError(w, "discovery reset failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
