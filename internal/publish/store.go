package publish

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/database"
)

// defaultCacheSize is used when the configured cache size is not positive.
const defaultCacheSize = 4096

// Fingerprint records the last discovery config announced for one sensor.
type Fingerprint struct {
	GatewayID string
	Key       string
	Topic     string
	Hash      uint64
	UpdatedAt time.Time
}

// Store persists fingerprints.
type Store interface {
	Get(ctx context.Context, gatewayID, key string) (Fingerprint, bool, error)
	Put(ctx context.Context, fp Fingerprint) error
	Delete(ctx context.Context, gatewayID, key string) error
	List(ctx context.Context, gatewayID string) ([]Fingerprint, error)
	Reset(ctx context.Context) error
}

// SQLStore keeps fingerprints in SQLite with an LRU cache in front.
//
// Thread Safety: safe for concurrent use. The LRU is internally locked and
// the database handle serialises writes.
type SQLStore struct {
	db    *database.DB
	cache *lru.Cache
}

// NewSQLStore wraps db. The discovery_fingerprints table must exist.
func NewSQLStore(db *database.DB, cacheSize int) *SQLStore {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, _ := lru.New(cacheSize) //nolint:errcheck // only errors on a non-positive size
	return &SQLStore{db: db, cache: cache}
}

func cacheKey(gatewayID, key string) string {
	return gatewayID + "\x00" + key
}

// Get returns the stored fingerprint for (gatewayID, key).
func (s *SQLStore) Get(ctx context.Context, gatewayID, key string) (Fingerprint, bool, error) {
	if v, ok := s.cache.Get(cacheKey(gatewayID, key)); ok {
		return v.(Fingerprint), true, nil //nolint:forcetypeassert // cache only holds Fingerprint
	}

	var topic, hash, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT topic, fingerprint, updated_at FROM discovery_fingerprints
		 WHERE gateway_id = ? AND sensor_key = ?`,
		gatewayID, key,
	).Scan(&topic, &hash, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Fingerprint{}, false, nil
	}
	if err != nil {
		return Fingerprint{}, false, fmt.Errorf("%w: reading %s/%s: %w", ErrStore, gatewayID, key, err)
	}

	fp, err := scanFingerprint(gatewayID, key, topic, hash, updated)
	if err != nil {
		return Fingerprint{}, false, err
	}
	s.cache.Add(cacheKey(gatewayID, key), fp)
	return fp, true, nil
}

// Put inserts or replaces a fingerprint. The cache is updated even if the
// write fails.
func (s *SQLStore) Put(ctx context.Context, fp Fingerprint) error {
	if fp.UpdatedAt.IsZero() {
		fp.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO discovery_fingerprints (gateway_id, sensor_key, topic, fingerprint, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (gateway_id, sensor_key) DO UPDATE SET
		     topic = excluded.topic,
		     fingerprint = excluded.fingerprint,
		     updated_at = excluded.updated_at`,
		fp.GatewayID, fp.Key, fp.Topic,
		strconv.FormatUint(fp.Hash, 16), //nolint:mnd // hex
		fp.UpdatedAt.Format(time.RFC3339),
	)
	// Dedup holds in memory while the database is failing.
	s.cache.Add(cacheKey(fp.GatewayID, fp.Key), fp)
	if err != nil {
		return fmt.Errorf("%w: writing %s/%s: %w", ErrStore, fp.GatewayID, fp.Key, err)
	}
	return nil
}

// Delete forgets one fingerprint.
func (s *SQLStore) Delete(ctx context.Context, gatewayID, key string) error {
	s.cache.Remove(cacheKey(gatewayID, key))
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM discovery_fingerprints WHERE gateway_id = ? AND sensor_key = ?",
		gatewayID, key,
	); err != nil {
		return fmt.Errorf("%w: deleting %s/%s: %w", ErrStore, gatewayID, key, err)
	}
	return nil
}

// List returns every fingerprint of a gateway ordered by key.
func (s *SQLStore) List(ctx context.Context, gatewayID string) ([]Fingerprint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sensor_key, topic, fingerprint, updated_at FROM discovery_fingerprints
		 WHERE gateway_id = ? ORDER BY sensor_key`,
		gatewayID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %w", ErrStore, gatewayID, err)
	}
	defer rows.Close()

	var out []Fingerprint
	for rows.Next() {
		var key, topic, hash, updated string
		if err := rows.Scan(&key, &topic, &hash, &updated); err != nil {
			return nil, fmt.Errorf("%w: scanning %s: %w", ErrStore, gatewayID, err)
		}
		fp, err := scanFingerprint(gatewayID, key, topic, hash, updated)
		if err != nil {
			return nil, err
		}
		out = append(out, fp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing %s: %w", ErrStore, gatewayID, err)
	}
	return out, nil
}

// Reset forgets every fingerprint.
func (s *SQLStore) Reset(ctx context.Context) error {
	s.cache.Purge()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM discovery_fingerprints"); err != nil {
		return fmt.Errorf("%w: reset: %w", ErrStore, err)
	}
	return nil
}

func scanFingerprint(gatewayID, key, topic, hash, updated string) (Fingerprint, error) {
	h, err := strconv.ParseUint(hash, 16, 64) //nolint:mnd // hex, 64-bit
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: bad fingerprint for %s/%s: %w", ErrStore, gatewayID, key, err)
	}
	at, _ := time.Parse(time.RFC3339, updated) //nolint:errcheck // format is controlled
	return Fingerprint{GatewayID: gatewayID, Key: key, Topic: topic, Hash: h, UpdatedAt: at}, nil
}
