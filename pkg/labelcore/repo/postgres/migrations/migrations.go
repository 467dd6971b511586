// Package migrations embeds the SQL migrations for the postgres
// repository.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
