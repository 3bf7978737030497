// Package migrations holds the database schema.
package migrations

import _ "embed"

// Schema creates every table and index; it is safe to apply repeatedly.
//
//go:embed schema.sql
var Schema string
