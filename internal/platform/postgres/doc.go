// Package postgres implements the store interfaces on PostgreSQL via the
// pgx driver. Locale text maps are stored as JSONB; soft deletes are a
// deleted_at marker filtered by every ordinary read.
package postgres
