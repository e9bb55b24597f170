package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/taskhive/taskhive-api/internal/domain"
)

// ListFilter describes the filtered, paginated, sorted view of an owner's
// tasks. Its normalized form feeds the list/query cache key hash, so every
// field must have a deterministic zero value.
type ListFilter struct {
	Status         *domain.TaskStatus   `json:"status,omitempty"`
	Priority       *domain.TaskPriority `json:"priority,omitempty"`
	RootOnly       bool                 `json:"root_only,omitempty"`
	OverdueOnly    bool                 `json:"overdue_only,omitempty"`
	IncludeDeleted bool                 `json:"include_deleted,omitempty"`
	SortBy         string               `json:"sort_by,omitempty"`
	SortDesc       bool                 `json:"sort_desc,omitempty"`
	Page           int                  `json:"page,omitempty"`
	PageSize       int                  `json:"page_size,omitempty"`
}

// Normalize returns a copy with defaults applied so that equivalent filters
// hash identically.
func (f ListFilter) Normalize() ListFilter {
	if f.SortBy == "" {
		f.SortBy = "created_at"
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 || f.PageSize > 100 {
		f.PageSize = 20
	}
	return f
}

// OwnerStats are the per-owner aggregate counts served from the aggregate
// cache tier.
type OwnerStats struct {
	OwnerID    uuid.UUID                   `json:"owner_id"`
	Total      int                         `json:"total"`
	ByStatus   map[domain.TaskStatus]int   `json:"by_status"`
	ByPriority map[domain.TaskPriority]int `json:"by_priority"`
	Overdue    int                         `json:"overdue"`
}

// TaskStore defines the interface for task persistence: the synchronous
// read/write API over task records that the cache, hierarchy guard, and
// invalidation propagator consult.
type TaskStore interface {
	// Create persists a new task. The task must be valid according to
	// domain validation rules.
	Create(ctx context.Context, task *domain.Task) error

	// Update persists all mutable fields of an existing, non-deleted task.
	// Returns ErrTaskNotFound if the task does not exist or is soft-deleted.
	Update(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID, excluding soft-deleted
	// tasks. Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// GetByIDIncludingDeleted retrieves a task regardless of its soft-delete
	// marker. Restore and invalidation need to see deleted rows.
	GetByIDIncludingDeleted(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// GetChildren retrieves the non-deleted subtasks of the given root task,
	// ordered by creation time. An empty slice is not an error.
	GetChildren(ctx context.Context, parentID uuid.UUID) ([]*domain.Task, error)

	// ListByOwner retrieves the owner's tasks matching the filter, plus the
	// total match count for pagination.
	ListByOwner(ctx context.Context, ownerID uuid.UUID, filter ListFilter) ([]*domain.Task, int, error)

	// SoftDelete marks the task and its subtasks deleted at the given time.
	// Idempotent: deleting an already-deleted task is not an error.
	// Returns the IDs of the subtasks it cascaded to.
	SoftDelete(ctx context.Context, id uuid.UUID, deletedAt time.Time) ([]uuid.UUID, error)

	// Restore clears the soft-delete marker on the task itself. Subtasks are
	// not cascade-restored; callers restore them explicitly if desired.
	// Returns ErrTaskNotFound if the task does not exist.
	Restore(ctx context.Context, id uuid.UUID) error

	// GetOwnerStats computes the owner's aggregate counts from the source of
	// truth, excluding soft-deleted tasks.
	GetOwnerStats(ctx context.Context, ownerID uuid.UUID) (*OwnerStats, error)

	// WithTx returns a TaskStore bound to the given transaction so multiple
	// operations can commit atomically via store.RunInTransaction.
	WithTx(tx *sql.Tx) TaskStore
}
