// Package postgres records triage outcomes in PostgreSQL. It owns the
// database connection, the embedded goose migrations and the triage result
// store, which acts as an idempotent delivery sink keyed by item.
package postgres
