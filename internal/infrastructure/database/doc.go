// Package database provides the SQLite state database of the weather bridge.
//
// The bridge stores one thing durably: the fingerprint of the last discovery
// config announced for each gateway sensor. Keeping it across restarts stops
// a restart from re-announcing every sensor to the hub.
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Performance Characteristics:
//   - WAL mode allows concurrent reads during writes
//   - A single connection serialises writers from every gateway worker
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are YYYYMMDD_HHMMSS_description.up.sql files embedded by the
// top-level migrations package. They are forward-only.
package database
