// Package migrations embeds the SQLite schema of the journalist keystore.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
