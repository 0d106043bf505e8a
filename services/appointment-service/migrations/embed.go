// Package migrations embeds the appointment-service schema for goose.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
