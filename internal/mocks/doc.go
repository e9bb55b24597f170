// Package mocks provides in-memory implementations of the store interfaces
// for tests. They keep full state so service and handler tests can exercise
// real read-after-write behavior, and expose failure hooks for the error
// paths.
package mocks
