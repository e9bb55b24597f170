package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Cache.Get when the key is absent or expired.
// Every other error from a Cache is an infrastructure failure and is
// contained at the topology boundary.
var ErrMiss = errors.New("cache miss")

// Cache is the externally-hosted key/value backend with TTL expiry and
// atomic get/set/delete. No cross-key transactions are assumed; multi-key
// eviction is best-effort sequential.
type Cache interface {
	// Get returns the value stored under key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key with the given TTL, replacing any previous
	// entry. Entries are immutable once written; an update is delete+rewrite.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the given keys. Missing keys are not an error, which
	// keeps invalidation idempotent.
	Delete(ctx context.Context, keys ...string) error

	// AddSetMembers adds members to the set stored under key and refreshes
	// its TTL. Used for the per-owner live-key index.
	AddSetMembers(ctx context.Context, key string, ttl time.Duration, members ...string) error

	// GetSetMembers returns the members of the set stored under key. An
	// absent set yields an empty slice, not ErrMiss.
	GetSetMembers(ctx context.Context, key string) ([]string, error)
}
