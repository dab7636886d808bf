package migrations

import "embed"

// Files embeds the versioned SQL migrations applied by golang-migrate.
//
//go:embed *.sql
var Files embed.FS
