// Package migrations embeds the SQL migrations applied by database.RunMigrations.
package migrations

import "embed"

// FS holds every *.sql migration in golang-migrate naming order.
//
//go:embed *.sql
var FS embed.FS
