package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/taskhive/taskhive-api/internal/platform/logger"
)

// Tier is a named class of cache entry with its own TTL policy.
type Tier string

// Cache tiers.
const (
	// TierDetail holds a single task with its eagerly loaded parent/children.
	TierDetail Tier = "detail"

	// TierList holds paginated, filtered, locale-projected task lists.
	TierList Tier = "list"

	// TierAggregate holds per-owner counts by status/priority/overdue.
	TierAggregate Tier = "aggregate"

	// TierTranslation holds per-(task, locale) resolved name/description.
	TierTranslation Tier = "translation"
)

// TTLs carries the configured TTL per tier. The owner live-key index
// outlives the list and aggregate entries it points at, so stale index
// members only cause harmless extra deletes.
type TTLs struct {
	Detail      time.Duration
	List        time.Duration
	Aggregate   time.Duration
	Translation time.Duration
}

// indexFactor stretches the owner index TTL past the entries it tracks.
const indexFactor = 2

// Topology assigns cacheable computations to tiers and mediates all access
// to the backend. Backend failures never escape: a failed read is a miss, a
// failed write is logged and dropped, leaving correctness to TTL expiry.
type Topology struct {
	backend Cache
	ttls    TTLs
	locales []string
	logger  *slog.Logger
}

// NewTopology creates a Topology over the given backend.
func NewTopology(backend Cache, ttls TTLs, locales []string, log *slog.Logger) *Topology {
	if log == nil {
		log = slog.Default()
	}
	return &Topology{
		backend: backend,
		ttls:    ttls,
		locales: append([]string(nil), locales...),
		logger:  log.With(slog.String("component", "cache_topology")),
	}
}

// TTL returns the configured TTL for the tier.
func (t *Topology) TTL(tier Tier) time.Duration {
	switch tier {
	case TierDetail:
		return t.ttls.Detail
	case TierList:
		return t.ttls.List
	case TierAggregate:
		return t.ttls.Aggregate
	case TierTranslation:
		return t.ttls.Translation
	}
	return t.ttls.Detail
}

// Locales returns the configured locale set, which bounds the per-task
// translation keyspace.
func (t *Topology) Locales() []string {
	return append([]string(nil), t.locales...)
}

// Lookup reads key into dest and reports whether it hit. A backend failure
// is logged and treated as a miss so the read path can serve from the
// source of truth.
func (t *Topology) Lookup(ctx context.Context, key string, dest any) bool {
	log := logger.FromContextOrDefault(ctx, t.logger)

	raw, err := t.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			log.Warn("cache read failed, treating as miss",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
		return false
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		// A corrupt entry is unreadable; drop it so the next write heals it.
		log.Warn("cache entry corrupt, evicting",
			slog.String("key", key),
			slog.String("error", err.Error()))
		if delErr := t.backend.Delete(ctx, key); delErr != nil {
			log.Warn("failed to evict corrupt cache entry",
				slog.String("key", key),
				slog.String("error", delErr.Error()))
		}
		return false
	}

	return true
}

// Store writes value under key with the tier's TTL. Failures are logged and
// dropped; the entry simply stays cold.
func (t *Topology) Store(ctx context.Context, tier Tier, key string, value any) {
	log := logger.FromContextOrDefault(ctx, t.logger)

	raw, err := json.Marshal(value)
	if err != nil {
		log.Error("failed to marshal cache value",
			slog.String("key", key),
			slog.String("tier", string(tier)),
			slog.String("error", err.Error()))
		return
	}

	if err := t.backend.Set(ctx, key, raw, t.TTL(tier)); err != nil {
		log.Warn("cache write failed",
			slog.String("key", key),
			slog.String("tier", string(tier)),
			slog.String("error", err.Error()))
	}
}

// StoreOwnerScoped writes an owner-scoped list or aggregate entry and
// records its key in the owner's live-key index so invalidation can evict
// it precisely without a backend pattern scan.
func (t *Topology) StoreOwnerScoped(ctx context.Context, tier Tier, ownerID uuid.UUID, key string, value any) {
	log := logger.FromContextOrDefault(ctx, t.logger)

	// Index before value: if the index write fails we skip caching the value
	// entirely rather than caching an entry invalidation cannot find.
	indexTTL := t.TTL(tier) * indexFactor
	if err := t.backend.AddSetMembers(ctx, OwnerIndexKey(ownerID), indexTTL, key); err != nil {
		log.Warn("owner index write failed, skipping cache write",
			slog.String("key", key),
			slog.String("owner_id", ownerID.String()),
			slog.String("error", err.Error()))
		return
	}

	t.Store(ctx, tier, key, value)
}

// OwnerKeys returns the owner's live-key index members. A backend failure
// is logged and yields an empty set.
func (t *Topology) OwnerKeys(ctx context.Context, ownerID uuid.UUID) []string {
	log := logger.FromContextOrDefault(ctx, t.logger)

	keys, err := t.backend.GetSetMembers(ctx, OwnerIndexKey(ownerID))
	if err != nil {
		log.Warn("owner index read failed",
			slog.String("owner_id", ownerID.String()),
			slog.String("error", err.Error()))
		return nil
	}
	return keys
}

// Evict deletes the given keys. Missing keys are not an error; a backend
// failure is logged and reported so the propagator can count it, but the
// write path never fails on it.
func (t *Topology) Evict(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	log := logger.FromContextOrDefault(ctx, t.logger)

	if err := t.backend.Delete(ctx, keys...); err != nil {
		log.Warn("cache eviction failed, stale entries expire by TTL",
			slog.Int("key_count", len(keys)),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}
