package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive-api/internal/cache"
	"github.com/taskhive/taskhive-api/internal/domain"
	"github.com/taskhive/taskhive-api/internal/events"
	"github.com/taskhive/taskhive-api/internal/hierarchy"
	"github.com/taskhive/taskhive-api/internal/mocks"
	"github.com/taskhive/taskhive-api/internal/service"
	"github.com/taskhive/taskhive-api/internal/store"
	"github.com/taskhive/taskhive-api/internal/translation"
)

var testLocales = []string{"en", "fr", "de"}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture bundles a fully wired TaskService over in-memory infrastructure.
type fixture struct {
	svc     *service.TaskService
	tasks   *mocks.MemoryTaskStore
	backend *cache.MemoryCache
	bus     *events.MemoryBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tasks := mocks.NewMemoryTaskStore()
	backend := cache.NewMemoryCache()
	log := quietLogger()

	topo := cache.NewTopology(backend, cache.TTLs{
		Detail:      time.Minute,
		List:        time.Minute,
		Aggregate:   time.Minute,
		Translation: time.Minute,
	}, testLocales, log)

	bus := events.NewMemoryBus()
	svc, err := service.NewTaskService(
		tasks,
		hierarchy.NewGuard(tasks, "en"),
		topo,
		cache.NewPropagator(topo, tasks, log),
		events.NewBroadcaster(bus, log),
		translation.NewResolver(testLocales, "en"),
		log,
	)
	require.NoError(t, err)

	return &fixture{svc: svc, tasks: tasks, backend: backend, bus: bus}
}

func (fx *fixture) mustCreate(t *testing.T, input service.CreateTaskInput) *domain.Task {
	t.Helper()
	task, err := fx.svc.Create(context.Background(), input)
	require.NoError(t, err)
	return task
}

func (fx *fixture) cacheHas(t *testing.T, key string) bool {
	t.Helper()
	_, err := fx.backend.Get(context.Background(), key)
	if errors.Is(err, cache.ErrMiss) {
		return false
	}
	require.NoError(t, err)
	return true
}

// drain collects the events currently queued on the subscription.
func drain(t *testing.T, sub events.Subscription) []events.Event {
	t.Helper()
	var out []events.Event
	for {
		select {
		case msg := <-sub.Messages():
			var ev events.Event
			require.NoError(t, json.Unmarshal(msg.Payload, &ev))
			out = append(out, ev)
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

func kinds(evs []events.Event) []events.Kind {
	out := make([]events.Kind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind
	}
	return out
}

func TestTaskService_GetResolvesLocaleWithFallback(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	task := fx.mustCreate(t, service.CreateTaskInput{
		OwnerID: owner,
		Name: domain.LocaleText{
			"en": "Write report",
			"fr": "Rédiger le rapport",
		},
		Description: domain.LocaleText{
			"en": "Quarterly numbers",
		},
	})

	t.Run("french name is exact, description falls back", func(t *testing.T) {
		view, err := fx.svc.Get(ctx, task.ID, "fr")
		require.NoError(t, err)

		assert.Equal(t, "Rédiger le rapport", view.Bundle.Name)
		assert.Equal(t, "Quarterly numbers", view.Bundle.Description)
		assert.True(t, view.Bundle.FallbackUsed)
		// Both fields resolve, the exact name and the fallback description.
		assert.Equal(t, 100, view.Bundle.Completeness)
	})

	t.Run("unsupported locale falls back entirely", func(t *testing.T) {
		view, err := fx.svc.Get(ctx, task.ID, "ja")
		require.NoError(t, err)

		assert.Equal(t, "Write report", view.Bundle.Name)
		assert.True(t, view.Bundle.FallbackUsed)
		assert.Equal(t, 100, view.Bundle.Completeness)
	})

	t.Run("bundle and detail are cached after the read", func(t *testing.T) {
		assert.True(t, fx.cacheHas(t, cache.TaskDetailKey(task.ID)))
		assert.True(t, fx.cacheHas(t, cache.TaskTranslationKey(task.ID, "fr")))
	})
}

func TestTaskService_CreateRejectsDeepHierarchy(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	root := fx.mustCreate(t, service.CreateTaskInput{
		OwnerID: owner,
		Name:    domain.LocaleText{"en": "Root"},
	})
	subtask := fx.mustCreate(t, service.CreateTaskInput{
		OwnerID:  owner,
		ParentID: &root.ID,
		Name:     domain.LocaleText{"en": "Subtask"},
	})

	_, err := fx.svc.Create(ctx, service.CreateTaskInput{
		OwnerID:  owner,
		ParentID: &subtask.ID,
		Name:     domain.LocaleText{"en": "Too deep"},
	})

	var hierr *hierarchy.Error
	require.ErrorAs(t, err, &hierr)
	assert.Equal(t, hierarchy.RuleParentNotRoot, hierr.Rule)
}

func TestTaskService_CreateRequiresFallbackName(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.Create(context.Background(), service.CreateTaskInput{
		OwnerID: uuid.New(),
		Name:    domain.LocaleText{"fr": "Sans anglais"},
	})

	var hierr *hierarchy.Error
	require.ErrorAs(t, err, &hierr)
	assert.Equal(t, hierarchy.RuleFallbackName, hierr.Rule)
}

func TestTaskService_UpdateEvictsCachedViews(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	task := fx.mustCreate(t, service.CreateTaskInput{
		OwnerID: owner,
		Name:    domain.LocaleText{"en": "Original"},
	})

	// Warm every tier the task touches.
	_, err := fx.svc.Get(ctx, task.ID, "en")
	require.NoError(t, err)
	_, err = fx.svc.List(ctx, owner, "en", store.ListFilter{})
	require.NoError(t, err)
	_, err = fx.svc.Stats(ctx, owner)
	require.NoError(t, err)
	_, err = fx.svc.TranslationStatus(ctx, task.ID)
	require.NoError(t, err)

	listKey := cache.OwnerListKey(owner, cache.FilterHash("en", store.ListFilter{}))
	require.True(t, fx.cacheHas(t, cache.TaskDetailKey(task.ID)))
	require.True(t, fx.cacheHas(t, listKey))
	require.True(t, fx.cacheHas(t, cache.OwnerStatsKey(owner)))
	require.True(t, fx.cacheHas(t, cache.TranslationStatusKey(task.ID)))

	_, err = fx.svc.Update(ctx, task.ID, service.UpdateTaskInput{
		Name: domain.LocaleText{"en": "Renamed"},
	})
	require.NoError(t, err)

	assert.False(t, fx.cacheHas(t, cache.TaskDetailKey(task.ID)))
	assert.False(t, fx.cacheHas(t, listKey))
	assert.False(t, fx.cacheHas(t, cache.OwnerStatsKey(owner)))
	assert.False(t, fx.cacheHas(t, cache.TranslationStatusKey(task.ID)))
	for _, locale := range testLocales {
		assert.False(t, fx.cacheHas(t, cache.TaskTranslationKey(task.ID, locale)))
	}

	// The next read serves the new name from the source of truth.
	view, err := fx.svc.Get(ctx, task.ID, "en")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", view.Bundle.Name)
}

func TestTaskService_UpdatePublishesCompletedOnTransition(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	task := fx.mustCreate(t, service.CreateTaskInput{
		OwnerID: owner,
		Name:    domain.LocaleText{"en": "Ship it"},
	})

	sub, err := fx.bus.Subscribe(ctx, events.OwnerChannel(owner))
	require.NoError(t, err)
	defer sub.Close()

	completed := domain.StatusCompleted
	_, err = fx.svc.Update(ctx, task.ID, service.UpdateTaskInput{Status: &completed})
	require.NoError(t, err)

	got := kinds(drain(t, sub))
	assert.Contains(t, got, events.KindCompleted)
	assert.Contains(t, got, events.KindUserStatsUpdated)
	assert.NotContains(t, got, events.KindUpdated)

	t.Run("already completed tasks publish plain updates", func(t *testing.T) {
		high := domain.PriorityHigh
		_, err := fx.svc.Update(ctx, task.ID, service.UpdateTaskInput{Priority: &high})
		require.NoError(t, err)

		got := kinds(drain(t, sub))
		assert.Contains(t, got, events.KindUpdated)
		assert.NotContains(t, got, events.KindCompleted)
	})
}

func TestTaskService_SubtaskMutationNotifiesParent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	parentOwner := uuid.New()
	subOwner := uuid.New()

	root := fx.mustCreate(t, service.CreateTaskInput{
		OwnerID: parentOwner,
		Name:    domain.LocaleText{"en": "Root"},
	})

	sub, err := fx.bus.Subscribe(ctx, events.OwnerChannel(parentOwner))
	require.NoError(t, err)
	defer sub.Close()

	subtask := fx.mustCreate(t, service.CreateTaskInput{
		OwnerID:  subOwner,
		ParentID: &root.ID,
		Name:     domain.LocaleText{"en": "Subtask"},
	})

	var subtaskUpdated *events.Event
	for _, ev := range drain(t, sub) {
		if ev.Kind == events.KindSubtaskUpdated {
			found := ev
			subtaskUpdated = &found
			break
		}
	}
	require.NotNil(t, subtaskUpdated, "parent owner should receive subtask_updated")
	assert.Equal(t, root.ID, subtaskUpdated.Task.ID)
	assert.Equal(t, subtask.ID.String(), subtaskUpdated.Extra["subtask_id"])
	assert.Equal(t, "created", subtaskUpdated.Extra["change"])
}

func TestTaskService_DeleteCascadesAndEvicts(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	root := fx.mustCreate(t, service.CreateTaskInput{
		OwnerID: owner,
		Name:    domain.LocaleText{"en": "Root"},
	})
	child := fx.mustCreate(t, service.CreateTaskInput{
		OwnerID:  owner,
		ParentID: &root.ID,
		Name:     domain.LocaleText{"en": "Child"},
	})

	// Warm both details.
	_, err := fx.svc.Get(ctx, root.ID, "en")
	require.NoError(t, err)
	_, err = fx.svc.Get(ctx, child.ID, "en")
	require.NoError(t, err)
	require.True(t, fx.cacheHas(t, cache.TaskDetailKey(child.ID)))

	sub, err := fx.bus.Subscribe(ctx, events.GlobalChannel)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, fx.svc.Delete(ctx, root.ID))

	t.Run("child rows are soft-deleted", func(t *testing.T) {
		_, err := fx.svc.Get(ctx, child.ID, "en")
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})

	t.Run("both detail entries are evicted", func(t *testing.T) {
		assert.False(t, fx.cacheHas(t, cache.TaskDetailKey(root.ID)))
		assert.False(t, fx.cacheHas(t, cache.TaskDetailKey(child.ID)))
	})

	t.Run("deleted frames cover the root and the cascade", func(t *testing.T) {
		evs := drain(t, sub)

		var rootDeleted, childDeleted bool
		for _, ev := range evs {
			if ev.Kind != events.KindDeleted {
				continue
			}
			switch ev.Task.ID {
			case root.ID:
				rootDeleted = true
				ids, ok := ev.Extra["subtask_ids"].([]any)
				require.True(t, ok, "root deleted frame should list cascaded subtasks")
				assert.Equal(t, []any{child.ID.String()}, ids)
			case child.ID:
				childDeleted = true
				assert.Equal(t, root.ID.String(), ev.Extra["cascaded_from"])
			}
		}
		assert.True(t, rootDeleted)
		assert.True(t, childDeleted)
	})

	t.Run("delete is idempotent at the service level", func(t *testing.T) {
		err := fx.svc.Delete(ctx, root.ID)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})
}

func TestTaskService_RestoreDoesNotCascade(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	root := fx.mustCreate(t, service.CreateTaskInput{
		OwnerID: owner,
		Name:    domain.LocaleText{"en": "Root"},
	})
	child := fx.mustCreate(t, service.CreateTaskInput{
		OwnerID:  owner,
		ParentID: &root.ID,
		Name:     domain.LocaleText{"en": "Child"},
	})

	require.NoError(t, fx.svc.Delete(ctx, root.ID))

	restored, err := fx.svc.Restore(ctx, root.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted())

	// The cascade is one-way: the child stays deleted.
	_, err = fx.svc.Get(ctx, child.ID, "en")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	t.Run("restoring a live task is a no-op", func(t *testing.T) {
		again, err := fx.svc.Restore(ctx, root.ID)
		require.NoError(t, err)
		assert.Equal(t, restored.ID, again.ID)
	})
}

func TestTaskService_ListReadsThroughCache(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	fx.mustCreate(t, service.CreateTaskInput{
		OwnerID: owner,
		Name: domain.LocaleText{
			"en": "First",
			"de": "Erste",
		},
	})

	page, err := fx.svc.List(ctx, owner, "de", store.ListFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Erste", page.Items[0].Name)
	assert.Equal(t, 70, page.Items[0].Completeness)
	assert.Equal(t, 1, page.Total)

	// Second read must come from the cache: break the store to prove it.
	fx.tasks.FailListByOwner = errors.New("store offline")
	cached, err := fx.svc.List(ctx, owner, "de", store.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, page, cached)

	// A different locale is a different key and must hit the broken store.
	_, err = fx.svc.List(ctx, owner, "fr", store.ListFilter{})
	require.Error(t, err)
}

func TestTaskService_StatsReflectMutations(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	urgent := domain.PriorityUrgent
	task := fx.mustCreate(t, service.CreateTaskInput{
		OwnerID:  owner,
		Name:     domain.LocaleText{"en": "Pay invoices"},
		Priority: &urgent,
	})

	stats, err := fx.svc.Stats(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[domain.StatusPending])
	assert.Equal(t, 1, stats.ByPriority[domain.PriorityUrgent])

	completed := domain.StatusCompleted
	_, err = fx.svc.Update(ctx, task.ID, service.UpdateTaskInput{Status: &completed})
	require.NoError(t, err)

	stats, err = fx.svc.Stats(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ByStatus[domain.StatusPending])
	assert.Equal(t, 1, stats.ByStatus[domain.StatusCompleted])
}

func TestTaskService_TranslationStatus(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	task := fx.mustCreate(t, service.CreateTaskInput{
		OwnerID: uuid.New(),
		Name: domain.LocaleText{
			"en": "Plan launch",
			"fr": "Planifier le lancement",
		},
		Description: domain.LocaleText{
			"en": "All hands",
		},
	})

	status, err := fx.svc.TranslationStatus(ctx, task.ID)
	require.NoError(t, err)
	// The fallback chain resolves both fields for every supported locale.
	assert.Equal(t, map[string]int{"en": 100, "fr": 100, "de": 100}, status)
}
