package cache

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/taskhive/taskhive-api/internal/domain"
	"github.com/taskhive/taskhive-api/internal/platform/logger"
)

// TaskReader is the slice of the source-of-truth API the propagator needs
// to find a mutated task's parent and children.
type TaskReader interface {
	GetByIDIncludingDeleted(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	GetChildren(ctx context.Context, parentID uuid.UUID) ([]*domain.Task, error)
}

// Mutation describes one committed task write whose cached views must be
// evicted.
type Mutation struct {
	// Task is the mutated task as persisted.
	Task *domain.Task

	// CascadedChildren are subtasks affected by the same write (a cascading
	// soft delete). When set, the propagator uses them instead of re-reading
	// children — after a cascade the children are no longer visible through
	// the ordinary children query.
	CascadedChildren []*domain.Task
}

// Propagator computes and evicts the transitive set of cache keys affected
// by a task mutation: the task's own views, its owner's list/aggregate
// views, its translations, and — across the hierarchy — its parent's and
// children's views.
//
// Invalidation is idempotent and strictly best-effort: by the time it runs
// the source of truth is durably updated, so failures are logged and the
// stale window is bounded by the shortest TTL among the un-evicted keys.
type Propagator struct {
	topo   *Topology
	tasks  TaskReader
	logger *slog.Logger
}

// NewPropagator creates a Propagator over the given topology and task reader.
func NewPropagator(topo *Topology, tasks TaskReader, log *slog.Logger) *Propagator {
	if log == nil {
		log = slog.Default()
	}
	return &Propagator{
		topo:   topo,
		tasks:  tasks,
		logger: log.With(slog.String("component", "invalidation_propagator")),
	}
}

// Invalidate evicts every cache key whose value depends on the mutation, in
// a single logical pass. It never returns an error; see the type comment
// for the consistency model.
func (p *Propagator) Invalidate(ctx context.Context, m Mutation) {
	log := logger.FromContextOrDefault(ctx, p.logger)

	task := m.Task
	keys := newKeySet()

	// 1. The mutated task's detail entry.
	keys.add(TaskDetailKey(task.ID))

	// 2. Every live list/query and aggregate entry for the task's owner,
	// plus the index that tracked them.
	p.addOwnerKeys(ctx, keys, task.OwnerID)

	// 3. The task's translation bundles across all configured locales, and
	// its locale→status map.
	p.addTranslationKeys(keys, task.ID)

	// 4. The parent's detail entry and the parent-owner's scoped entries:
	// a subtask change is visible through its parent's view.
	if task.ParentID != nil {
		keys.add(TaskDetailKey(*task.ParentID))

		parent, err := p.tasks.GetByIDIncludingDeleted(ctx, *task.ParentID)
		if err != nil {
			log.Warn("failed to load parent for invalidation, owner-scoped entries expire by TTL",
				slog.String("task_id", task.ID.String()),
				slog.String("parent_id", task.ParentID.String()),
				slog.String("error", err.Error()))
		} else {
			p.addOwnerKeys(ctx, keys, parent.OwnerID)
		}
	}

	// 5. Each child's detail and translation entries, and entries keyed on
	// that child's owner.
	for _, child := range p.children(ctx, m, log) {
		keys.add(TaskDetailKey(child.ID))
		p.addTranslationKeys(keys, child.ID)
		p.addOwnerKeys(ctx, keys, child.OwnerID)
	}

	if err := p.topo.Evict(ctx, keys.ordered...); err != nil {
		log.Warn("invalidation pass incomplete",
			slog.String("task_id", task.ID.String()),
			slog.Int("key_count", len(keys.ordered)))
		return
	}

	log.Debug("invalidated cache keys for mutation",
		slog.String("task_id", task.ID.String()),
		slog.Int("key_count", len(keys.ordered)))
}

func (p *Propagator) addOwnerKeys(ctx context.Context, keys *keySet, ownerID uuid.UUID) {
	for _, key := range p.topo.OwnerKeys(ctx, ownerID) {
		keys.add(key)
	}
	keys.add(OwnerStatsKey(ownerID))
	keys.add(OwnerIndexKey(ownerID))
}

func (p *Propagator) addTranslationKeys(keys *keySet, taskID uuid.UUID) {
	for _, locale := range p.topo.Locales() {
		keys.add(TaskTranslationKey(taskID, locale))
	}
	keys.add(TranslationStatusKey(taskID))
}

// children resolves the affected subtasks: the cascade set when the caller
// supplied one, otherwise the root task's current children.
func (p *Propagator) children(ctx context.Context, m Mutation, log *slog.Logger) []*domain.Task {
	if m.CascadedChildren != nil {
		return m.CascadedChildren
	}
	if m.Task.IsSubtask() {
		return nil
	}

	children, err := p.tasks.GetChildren(ctx, m.Task.ID)
	if err != nil {
		log.Warn("failed to load children for invalidation, child entries expire by TTL",
			slog.String("task_id", m.Task.ID.String()),
			slog.String("error", err.Error()))
		return nil
	}
	return children
}

// keySet accumulates eviction keys, deduplicated, in insertion order.
type keySet struct {
	seen    map[string]struct{}
	ordered []string
}

func newKeySet() *keySet {
	return &keySet{seen: make(map[string]struct{})}
}

func (s *keySet) add(key string) {
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.ordered = append(s.ordered, key)
}
