// Package migrations embeds the users schema for goose.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
