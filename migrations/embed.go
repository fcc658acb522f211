// Package migrations embeds the SQL schema migrations for the task store.
package migrations

import "embed"

// FS holds the embedded *.up.sql and *.down.sql migration files.
//
//go:embed *.sql
var FS embed.FS
