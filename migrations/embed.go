// Package migrations embeds the SQL schema of the bridge's state database.
package migrations

import "embed"

// FS holds the *.up.sql files, applied by database.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
