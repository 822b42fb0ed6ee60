// Package migrations embeds the bun SQL migration files for the rule-engine
// schema (§3, §5).
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
