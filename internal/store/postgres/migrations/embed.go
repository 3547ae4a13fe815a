package migrations

import "embed"

// FS contains embedded PostgreSQL migrations for the member store.
//
//go:embed *.sql
var FS embed.FS
