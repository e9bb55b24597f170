// Package api contains the HTTP handlers for the task and auth endpoints.
// Handlers are thin: they decode and validate requests, check ownership,
// delegate to the service layer, and translate errors to sanitized HTTP
// responses. All cache, invalidation, and event behavior lives below the
// service boundary.
package api
