// Package migrations embeds the SQL schema so binaries carry it without a
// filesystem dependency.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
