package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process Cache implementation. It backs tests and
// serves as a degraded-mode stand-in when no external backend is configured;
// production deployments use the Redis implementation in platform/redis.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	sets    map[string]memorySet

	// now is swappable so expiry behavior is testable without sleeping.
	now func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type memorySet struct {
	members   map[string]struct{}
	expiresAt time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		sets:    make(map[string]memorySet),
		now:     time.Now,
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	live := ok && !c.expired(entry.expiresAt)
	c.mu.RUnlock()

	if !live {
		return nil, ErrMiss
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	c.entries[key] = memoryEntry{
		value:     stored,
		expiresAt: c.now().Add(ttl),
	}
	c.mu.Unlock()
	return nil
}

// Delete implements Cache. Missing keys are ignored.
func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.entries, key)
		delete(c.sets, key)
	}
	c.mu.Unlock()
	return nil
}

// AddSetMembers implements Cache.
func (c *MemoryCache) AddSetMembers(_ context.Context, key string, ttl time.Duration, members ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.sets[key]
	if !ok || c.expired(set.expiresAt) {
		set = memorySet{members: make(map[string]struct{})}
	}
	for _, m := range members {
		set.members[m] = struct{}{}
	}
	set.expiresAt = c.now().Add(ttl)
	c.sets[key] = set
	return nil
}

// GetSetMembers implements Cache.
func (c *MemoryCache) GetSetMembers(_ context.Context, key string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	set, ok := c.sets[key]
	if !ok || c.expired(set.expiresAt) {
		return nil, nil
	}

	members := make([]string, 0, len(set.members))
	for m := range set.members {
		members = append(members, m)
	}
	return members, nil
}

// Has reports whether the key currently holds a live value. Test helper.
func (c *MemoryCache) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return ok && !c.expired(entry.expiresAt)
}

// SetClock overrides the time source. Test helper.
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// expired reports whether the deadline has passed. Callers must hold mu in
// at least read mode because it reads the swappable clock.
func (c *MemoryCache) expired(at time.Time) bool {
	return !at.After(c.now())
}
