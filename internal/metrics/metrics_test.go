package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/mqtt"
)

func TestMetrics_PollCounters(t *testing.T) {
	m := New()

	m.CycleCompleted("garden", "ok", 120*time.Millisecond)
	m.CycleCompleted("garden", "ok", 80*time.Millisecond)
	m.CycleCompleted("garden", "fetch_error", time.Second)
	m.TickSkipped("garden", "in_flight")
	m.ConsecutiveFailures("garden", 3)
	m.Diagnostics("garden", 1, 2)
	m.DiscoveryPublished("garden", 4)
	m.PublishFailed("garden", "state")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"ok cycles", testutil.ToFloat64(m.cycles.WithLabelValues("garden", "ok")), 2},
		{"failed cycles", testutil.ToFloat64(m.cycles.WithLabelValues("garden", "fetch_error")), 1},
		{"skipped", testutil.ToFloat64(m.skipped.WithLabelValues("garden", "in_flight")), 1},
		{"failures gauge", testutil.ToFloat64(m.failures.WithLabelValues("garden")), 3},
		{"unknown fields", testutil.ToFloat64(m.unknown.WithLabelValues("garden")), 1},
		{"unmapped keys", testutil.ToFloat64(m.unmapped.WithLabelValues("garden")), 2},
		{"discovery", testutil.ToFloat64(m.discovery.WithLabelValues("garden")), 4},
		{"publish failures", testutil.ToFloat64(m.publishFails.WithLabelValues("garden", "state")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(m.cycleSeconds); n != 1 {
		t.Errorf("cycle histogram series = %d, want 1", n)
	}
}

func TestMetrics_SessionObserver(t *testing.T) {
	m := New()
	var _ mqtt.Observer = m

	m.StateChanged(mqtt.StateConnected)
	m.QueueDepth(7)
	m.MessageDropped("t")
	m.MessagePublished("t", nil)
	m.MessagePublished("t", errors.New("boom"))
	m.RegistryReloaded(nil)

	if got := testutil.ToFloat64(m.brokerState); got != 2 {
		t.Errorf("broker state = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.queueDepth); got != 7 {
		t.Errorf("queue depth = %v, want 7", got)
	}
	if got := testutil.ToFloat64(m.queueDropped); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.brokerPublish.WithLabelValues("error")); got != 1 {
		t.Errorf("publish errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.reloads.WithLabelValues("ok")); got != 1 {
		t.Errorf("reloads = %v, want 1", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.CycleCompleted("garden", "ok", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `weatherbridge_poll_cycles_total{gateway="garden",result="ok"} 1`) {
		t.Errorf("exposition missing cycle counter:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("exposition missing runtime collector")
	}
}
