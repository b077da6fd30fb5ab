// Package db provides the embedded schema of the local state store.
package db

import _ "embed"

// Schema contains the DDL for the cart, session and payment session tables.
// Every statement is idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string
