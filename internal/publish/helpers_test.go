package publish

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-weather/migrations"
)

// fakePublisher records messages instead of sending them.
type fakePublisher struct {
	mu   sync.Mutex
	msgs []mqtt.Message
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, msg mqtt.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakePublisher) Topics() mqtt.Topics {
	return mqtt.Topics{Root: "homeassistant"}
}

func (f *fakePublisher) ClientID() string {
	return "weatherbridge"
}

func (f *fakePublisher) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakePublisher) messages() []mqtt.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mqtt.Message(nil), f.msgs...)
}

func (f *fakePublisher) reset() {
	f.mu.Lock()
	f.msgs = nil
	f.mu.Unlock()
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "bridge.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	return NewSQLStore(newTestDB(t), 16)
}

var testDevice = Device{GatewayID: "garden", Model: "GW1100A", Firmware: "GW1100A_V2.3.1", MAC: "48:3F:DA:01:0A:FF"}
