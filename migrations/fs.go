// Package migrations embeds the SQL migration files for the identity service.
package migrations

import "embed"

// FS contains all .sql migration files, applied in filename order.
//
//go:embed *.sql
var FS embed.FS
