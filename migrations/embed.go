// Package migrations holds the versioned schema files applied by
// `pts-server migrate up`.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
