package cache_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskhive/taskhive-api/internal/cache"
)

var testTTLs = cache.TTLs{
	Detail:      5 * time.Minute,
	List:        2 * time.Minute,
	Aggregate:   10 * time.Minute,
	Translation: 30 * time.Minute,
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// brokenCache fails every operation, standing in for an unreachable backend.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func (brokenCache) Delete(context.Context, ...string) error {
	return errors.New("connection refused")
}

func (brokenCache) AddSetMembers(context.Context, string, time.Duration, ...string) error {
	return errors.New("connection refused")
}

func (brokenCache) GetSetMembers(context.Context, string) ([]string, error) {
	return nil, errors.New("connection refused")
}

type payload struct {
	Value string `json:"value"`
}

func TestTopologyLookupAndStore(t *testing.T) {
	ctx := context.Background()
	backend := cache.NewMemoryCache()
	topo := cache.NewTopology(backend, testTTLs, []string{"en", "fr"}, quietLogger())

	var out payload
	assert.False(t, topo.Lookup(ctx, "k", &out), "miss before store")

	topo.Store(ctx, cache.TierDetail, "k", payload{Value: "v"})

	require.True(t, topo.Lookup(ctx, "k", &out))
	assert.Equal(t, "v", out.Value)
}

func TestTopologyTTLs(t *testing.T) {
	topo := cache.NewTopology(cache.NewMemoryCache(), testTTLs, []string{"en"}, quietLogger())

	assert.Equal(t, testTTLs.Detail, topo.TTL(cache.TierDetail))
	assert.Equal(t, testTTLs.List, topo.TTL(cache.TierList))
	assert.Equal(t, testTTLs.Aggregate, topo.TTL(cache.TierAggregate))
	assert.Equal(t, testTTLs.Translation, topo.TTL(cache.TierTranslation))
}

func TestTopologyBackendFailureIsContained(t *testing.T) {
	ctx := context.Background()
	topo := cache.NewTopology(brokenCache{}, testTTLs, []string{"en"}, quietLogger())

	var out payload
	assert.False(t, topo.Lookup(ctx, "k", &out), "backend failure reads as miss")

	// None of these may panic or surface the failure to the caller.
	topo.Store(ctx, cache.TierDetail, "k", payload{Value: "v"})
	topo.StoreOwnerScoped(ctx, cache.TierList, uuid.New(), "k", payload{Value: "v"})
	assert.Empty(t, topo.OwnerKeys(ctx, uuid.New()))

	assert.Error(t, topo.Evict(ctx, "k"), "eviction reports failure for propagator bookkeeping")
}

func TestTopologyCorruptEntryEvicted(t *testing.T) {
	ctx := context.Background()
	backend := cache.NewMemoryCache()
	topo := cache.NewTopology(backend, testTTLs, []string{"en"}, quietLogger())

	require.NoError(t, backend.Set(ctx, "k", []byte("{not json"), time.Minute))

	var out payload
	assert.False(t, topo.Lookup(ctx, "k", &out))
	assert.False(t, backend.Has("k"), "corrupt entry is dropped")
}

func TestTopologyOwnerIndex(t *testing.T) {
	ctx := context.Background()
	backend := cache.NewMemoryCache()
	topo := cache.NewTopology(backend, testTTLs, []string{"en"}, quietLogger())
	ownerID := uuid.New()

	listKey := cache.OwnerListKey(ownerID, "hash1")
	statsKey := cache.OwnerStatsKey(ownerID)

	topo.StoreOwnerScoped(ctx, cache.TierList, ownerID, listKey, payload{Value: "page"})
	topo.StoreOwnerScoped(ctx, cache.TierAggregate, ownerID, statsKey, payload{Value: "stats"})

	assert.ElementsMatch(t, []string{listKey, statsKey}, topo.OwnerKeys(ctx, ownerID))

	var out payload
	assert.True(t, topo.Lookup(ctx, listKey, &out))
}
