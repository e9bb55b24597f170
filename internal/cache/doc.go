// Package cache defines the cache topology for task reads — key namespaces,
// tiers with per-tier TTLs, read-through helpers — and the invalidation
// propagator that evicts the transitive set of keys affected by a task
// mutation. The backend is pluggable; a cache outage is never allowed to
// fail a read (treated as a miss) or a committed write (logged, bounded by
// TTL expiry).
package cache
