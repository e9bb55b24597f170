package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/taskhive/taskhive-api/internal/cache"
	"github.com/taskhive/taskhive-api/internal/domain"
	"github.com/taskhive/taskhive-api/internal/events"
	"github.com/taskhive/taskhive-api/internal/hierarchy"
	"github.com/taskhive/taskhive-api/internal/platform/logger"
	"github.com/taskhive/taskhive-api/internal/store"
	"github.com/taskhive/taskhive-api/internal/translation"
)

// CreateTaskInput carries the caller-supplied fields for a new task.
type CreateTaskInput struct {
	OwnerID     uuid.UUID
	ParentID    *uuid.UUID
	Name        domain.LocaleText
	Description domain.LocaleText
	Priority    *domain.TaskPriority
	DueAt       *time.Time
}

// UpdateTaskInput carries the fields to change on an existing task.
// Nil fields are left untouched.
type UpdateTaskInput struct {
	Name        domain.LocaleText
	Description domain.LocaleText
	Status      *domain.TaskStatus
	Priority    *domain.TaskPriority
	DueAt       *time.Time
	ClearDueAt  bool
}

// TaskDetail is the detail-tier cache value: a task with its eagerly loaded
// parent and children, locale-independent.
type TaskDetail struct {
	Task     *domain.Task   `json:"task"`
	Parent   *domain.Task   `json:"parent,omitempty"`
	Children []*domain.Task `json:"children,omitempty"`
}

// TaskView is a TaskDetail projected onto one locale for delivery.
type TaskView struct {
	TaskDetail
	Bundle translation.Bundle `json:"bundle"`
}

// ListItem is one locale-projected row of a task list.
type ListItem struct {
	ID           uuid.UUID           `json:"id"`
	ParentID     *uuid.UUID          `json:"parent_id,omitempty"`
	Status       domain.TaskStatus   `json:"status"`
	Priority     domain.TaskPriority `json:"priority"`
	DueAt        *time.Time          `json:"due_at,omitempty"`
	Name         string              `json:"name"`
	Completeness int                 `json:"completeness"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// TaskPage is the list/query-tier cache value.
type TaskPage struct {
	Items    []ListItem `json:"items"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// TaskService is the single entry point for task reads and writes, wiring
// the hierarchy guard, the cache topology, the invalidation propagator, and
// the event broadcaster around the source of truth.
type TaskService struct {
	tasks       store.TaskStore
	guard       *hierarchy.Guard
	topo        *cache.Topology
	propagator  *cache.Propagator
	broadcaster *events.Broadcaster
	resolver    *translation.Resolver
	logger      *slog.Logger
}

// NewTaskService creates a TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	tasks store.TaskStore,
	guard *hierarchy.Guard,
	topo *cache.Topology,
	propagator *cache.Propagator,
	broadcaster *events.Broadcaster,
	resolver *translation.Resolver,
	log *slog.Logger,
) (*TaskService, error) {
	if tasks == nil {
		return nil, domain.NewValidationError("tasks", "cannot be nil", domain.ErrValidation)
	}
	if guard == nil {
		return nil, domain.NewValidationError("guard", "cannot be nil", domain.ErrValidation)
	}
	if topo == nil {
		return nil, domain.NewValidationError("topo", "cannot be nil", domain.ErrValidation)
	}
	if propagator == nil {
		return nil, domain.NewValidationError("propagator", "cannot be nil", domain.ErrValidation)
	}
	if broadcaster == nil {
		return nil, domain.NewValidationError("broadcaster", "cannot be nil", domain.ErrValidation)
	}
	if resolver == nil {
		return nil, domain.NewValidationError("resolver", "cannot be nil", domain.ErrValidation)
	}
	if log == nil {
		log = slog.Default()
	}

	return &TaskService{
		tasks:       tasks,
		guard:       guard,
		topo:        topo,
		propagator:  propagator,
		broadcaster: broadcaster,
		resolver:    resolver,
		logger:      log.With(slog.String("component", "task_service")),
	}, nil
}

// Create validates and persists a new task, then runs the post-commit
// pipeline. Domain errors (hierarchy, validation) propagate; cache and bus
// failures do not.
func (s *TaskService) Create(ctx context.Context, input CreateTaskInput) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := domain.NewTask(input.OwnerID, input.Name, input.Description)
	if err != nil {
		return nil, err
	}
	task.ParentID = input.ParentID
	if input.Priority != nil {
		task.Priority = *input.Priority
	}
	task.DueAt = input.DueAt

	if err := s.guard.ValidateAssignment(ctx, task, input.ParentID); err != nil {
		return nil, err
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, NewTaskServiceError("create", "failed to persist task", err)
	}

	log.Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("owner_id", task.OwnerID.String()),
		slog.Bool("subtask", task.IsSubtask()))

	s.afterMutation(ctx, events.KindCreated, task, nil, nil)
	return task, nil
}

// Update applies the input to the task and runs the post-commit pipeline.
// The status transition to completed is published as its own event kind.
func (s *TaskService) Update(ctx context.Context, id uuid.UUID, input UpdateTaskInput) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	wasCompleted := task.Status == domain.StatusCompleted
	applyUpdate(task, input)

	// Every mutation re-validates the hierarchy and the fallback name, even
	// when the parent assignment is untouched.
	if err := s.guard.ValidateAssignment(ctx, task, task.ParentID); err != nil {
		return nil, err
	}

	task.Touch()
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, NewTaskServiceError("update", "failed to persist task", err)
	}

	kind := events.KindUpdated
	if !wasCompleted && task.Status == domain.StatusCompleted {
		kind = events.KindCompleted
	}

	log.Info("task updated",
		slog.String("task_id", task.ID.String()),
		slog.String("event", string(kind)))

	s.afterMutation(ctx, kind, task, nil, nil)
	return task, nil
}

// Delete soft-deletes the task; for root tasks the delete cascades to
// subtasks. Idempotent at the store level.
func (s *TaskService) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}

	// Children are captured before the cascade makes them invisible to the
	// ordinary children query; invalidation and events need them after.
	children, err := s.tasks.GetChildren(ctx, id)
	if err != nil {
		return NewTaskServiceError("delete", "failed to load children", err)
	}

	deletedAt := time.Now().UTC()
	if _, err := s.tasks.SoftDelete(ctx, id, deletedAt); err != nil {
		return NewTaskServiceError("delete", "failed to mark task deleted", err)
	}
	task.DeletedAt = &deletedAt
	task.UpdatedAt = deletedAt

	log.Info("task deleted",
		slog.String("task_id", task.ID.String()),
		slog.Int("cascaded_children", len(children)))

	extra := map[string]any{}
	if len(children) > 0 {
		ids := make([]string, len(children))
		for i, child := range children {
			ids[i] = child.ID.String()
			child.DeletedAt = &deletedAt
		}
		extra["subtask_ids"] = ids
	}

	s.afterMutation(ctx, events.KindDeleted, task, children, extra)

	// Cascaded children get their own deleted frames so owners of subtasks
	// under someone else's root task are notified too.
	for _, child := range children {
		s.broadcaster.Publish(ctx, events.KindDeleted, child,
			map[string]any{"cascaded_from": task.ID.String()})
	}

	return nil
}

// Restore clears the soft-delete marker on the task itself. Subtasks are
// not cascade-restored: deletion cascades to keep the hierarchy invariant
// observable, but restoring is an explicit per-task intent and silently
// resurrecting children could surface stale work. Restoring a subtask whose
// parent is still deleted is allowed; it simply reappears under a deleted
// parent and is reachable by ID and list queries.
func (s *TaskService) Restore(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.tasks.GetByIDIncludingDeleted(ctx, id)
	if err != nil {
		return nil, err
	}
	if !task.IsDeleted() {
		return task, nil
	}

	if err := s.tasks.Restore(ctx, id); err != nil {
		return nil, NewTaskServiceError("restore", "failed to clear deletion marker", err)
	}
	task.DeletedAt = nil
	task.Touch()

	log.Info("task restored", slog.String("task_id", task.ID.String()))

	s.afterMutation(ctx, events.KindRestored, task, nil, nil)
	return task, nil
}

// Get serves the detail view for one task in the requested locale, reading
// through the detail and translation-bundle tiers.
func (s *TaskService) Get(ctx context.Context, id uuid.UUID, locale string) (*TaskView, error) {
	detail, err := s.getDetail(ctx, id)
	if err != nil {
		return nil, err
	}

	bundle, err := s.getBundle(ctx, detail.Task, locale)
	if err != nil {
		return nil, err
	}

	return &TaskView{TaskDetail: *detail, Bundle: bundle}, nil
}

// List serves one page of the owner's tasks in the requested locale,
// reading through the list/query tier.
func (s *TaskService) List(ctx context.Context, ownerID uuid.UUID, locale string, filter store.ListFilter) (*TaskPage, error) {
	filter = filter.Normalize()
	key := cache.OwnerListKey(ownerID, cache.FilterHash(locale, filter))

	var page TaskPage
	if s.topo.Lookup(ctx, key, &page) {
		return &page, nil
	}

	tasks, total, err := s.tasks.ListByOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, NewTaskServiceError("list", "failed to query tasks", err)
	}

	page = TaskPage{
		Items:    make([]ListItem, 0, len(tasks)),
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	for _, task := range tasks {
		page.Items = append(page.Items, ListItem{
			ID:           task.ID,
			ParentID:     task.ParentID,
			Status:       task.Status,
			Priority:     task.Priority,
			DueAt:        task.DueAt,
			Name:         s.resolver.Resolve(task, translation.FieldName, locale),
			Completeness: s.resolver.Completeness(task, locale),
			UpdatedAt:    task.UpdatedAt,
		})
	}

	s.topo.StoreOwnerScoped(ctx, cache.TierList, ownerID, key, page)
	return &page, nil
}

// Stats serves the owner's aggregate counts, reading through the aggregate
// tier.
func (s *TaskService) Stats(ctx context.Context, ownerID uuid.UUID) (*store.OwnerStats, error) {
	key := cache.OwnerStatsKey(ownerID)

	var stats store.OwnerStats
	if s.topo.Lookup(ctx, key, &stats) {
		return &stats, nil
	}

	fresh, err := s.tasks.GetOwnerStats(ctx, ownerID)
	if err != nil {
		return nil, NewTaskServiceError("stats", "failed to compute stats", err)
	}

	s.topo.StoreOwnerScoped(ctx, cache.TierAggregate, ownerID, key, fresh)
	return fresh, nil
}

// TranslationStatus serves the task's locale→completeness map, reading
// through the translation-bundle tier.
func (s *TaskService) TranslationStatus(ctx context.Context, id uuid.UUID) (map[string]int, error) {
	key := cache.TranslationStatusKey(id)

	var status map[string]int
	if s.topo.Lookup(ctx, key, &status) {
		return status, nil
	}

	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	status = s.resolver.CompletenessByLocale(task)
	s.topo.Store(ctx, cache.TierTranslation, key, status)
	return status, nil
}

// OwnerOf returns the owner of the task, visible or soft-deleted. Handlers
// use it for ownership checks before acting on a task ID.
func (s *TaskService) OwnerOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	task, err := s.tasks.GetByIDIncludingDeleted(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	return task.OwnerID, nil
}

// getDetail reads the task detail through the detail tier.
func (s *TaskService) getDetail(ctx context.Context, id uuid.UUID) (*TaskDetail, error) {
	key := cache.TaskDetailKey(id)

	var detail TaskDetail
	if s.topo.Lookup(ctx, key, &detail) {
		return &detail, nil
	}

	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail = TaskDetail{Task: task}

	if task.ParentID != nil {
		parent, err := s.tasks.GetByIDIncludingDeleted(ctx, *task.ParentID)
		if err != nil {
			return nil, NewTaskServiceError("get", "failed to load parent", err)
		}
		detail.Parent = parent
	} else {
		children, err := s.tasks.GetChildren(ctx, id)
		if err != nil {
			return nil, NewTaskServiceError("get", "failed to load children", err)
		}
		detail.Children = children
	}

	s.topo.Store(ctx, cache.TierDetail, key, detail)
	return &detail, nil
}

// getBundle reads the (task, locale) projection through the
// translation-bundle tier.
func (s *TaskService) getBundle(ctx context.Context, task *domain.Task, locale string) (translation.Bundle, error) {
	key := cache.TaskTranslationKey(task.ID, locale)

	var bundle translation.Bundle
	if s.topo.Lookup(ctx, key, &bundle) {
		return bundle, nil
	}

	bundle = s.resolver.ResolveBundle(task, locale)
	s.topo.Store(ctx, cache.TierTranslation, key, bundle)
	return bundle, nil
}

// afterMutation runs the post-commit pipeline: invalidation first, then the
// change event, then the cross-hierarchy and stats notifications. Nothing
// in here may fail the already-committed write.
func (s *TaskService) afterMutation(
	ctx context.Context,
	kind events.Kind,
	task *domain.Task,
	cascadedChildren []*domain.Task,
	extra map[string]any,
) {
	s.propagator.Invalidate(ctx, cache.Mutation{
		Task:             task,
		CascadedChildren: cascadedChildren,
	})

	s.broadcaster.Publish(ctx, kind, task, extra)

	// A subtask mutation is cross-published against its parent so watchers
	// of the parent's owner see the change without tracking the subtask.
	if task.IsSubtask() {
		if parent, err := s.tasks.GetByIDIncludingDeleted(ctx, *task.ParentID); err == nil {
			s.broadcaster.Publish(ctx, events.KindSubtaskUpdated, parent,
				map[string]any{"subtask_id": task.ID.String(), "change": string(kind)})
		} else {
			logger.FromContextOrDefault(ctx, s.logger).Warn(
				"failed to load parent for cross-notification",
				slog.String("task_id", task.ID.String()),
				slog.String("error", err.Error()))
		}
	}

	// A root-task mutation is visible through its children's views.
	for _, child := range cascadedChildren {
		s.broadcaster.Publish(ctx, events.KindParentUpdated, child,
			map[string]any{"parent_id": task.ID.String(), "change": string(kind)})
	}

	// Aggregates changed for the owner; subscribers refresh lazily.
	s.broadcaster.Publish(ctx, events.KindUserStatsUpdated, task,
		map[string]any{"user_id": task.OwnerID.String()})
}

func applyUpdate(task *domain.Task, input UpdateTaskInput) {
	if input.Name != nil {
		task.Name = input.Name.Clone()
	}
	if input.Description != nil {
		task.Description = input.Description.Clone()
	}
	if input.Status != nil {
		task.Status = *input.Status
	}
	if input.Priority != nil {
		task.Priority = *input.Priority
	}
	if input.ClearDueAt {
		task.DueAt = nil
	} else if input.DueAt != nil {
		task.DueAt = input.DueAt
	}
}

// String renders the view for logs without locale text. Debug helper.
func (v *TaskView) String() string {
	return fmt.Sprintf("task %s (%s/%s, locale %s)",
		v.Task.ID, v.Task.Status, v.Task.Priority, v.Bundle.Locale)
}
