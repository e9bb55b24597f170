// Package store defines the persistence interfaces for the source of truth
// and their shared error vocabulary. Implementations live under
// internal/platform; services depend only on these interfaces.
package store
