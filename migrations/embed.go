// Package migrations holds the platform database schema.
package migrations

import "embed"

// FS contains every *.sql migration, so binaries run without the directory on disk.
//
//go:embed *.sql
var FS embed.FS
