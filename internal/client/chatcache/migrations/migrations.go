// Package migrations embeds the SQL migrations of the local conversation
// cache.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
