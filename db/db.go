// Package db embeds the SQL migrations and seed data shipped with the server.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed seed/*.json
var SeedFiles embed.FS
