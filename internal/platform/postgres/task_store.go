package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taskhive/taskhive-api/internal/domain"
	"github.com/taskhive/taskhive-api/internal/store"
)

// TaskStore implements store.TaskStore on PostgreSQL.
type TaskStore struct {
	db store.DBTX
}

// NewTaskStore creates a TaskStore over the given connection or transaction.
func NewTaskStore(db store.DBTX) *TaskStore {
	return &TaskStore{db: db}
}

// Ensure TaskStore implements store.TaskStore.
var _ store.TaskStore = (*TaskStore)(nil)

// WithTx implements store.TaskStore.
func (s *TaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return NewTaskStore(tx)
}

// taskColumns is the canonical select list; scanTask must match it.
const taskColumns = `id, owner_id, parent_id, status, priority, due_at,
	name, description, created_at, updated_at, deleted_at`

// Create implements store.TaskStore.
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	name, description, err := marshalLocaleText(task)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (id, owner_id, parent_id, status, priority, due_at,
			name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(ctx, query,
		task.ID, task.OwnerID, task.ParentID, task.Status, task.Priority,
		task.DueAt, name, description, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return store.NewStoreError("task", "create", "failed to insert task", mapError(err))
	}

	return nil
}

// Update implements store.TaskStore. Soft-deleted rows are not updatable.
func (s *TaskStore) Update(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	name, description, err := marshalLocaleText(task)
	if err != nil {
		return err
	}

	query := `
		UPDATE tasks
		SET owner_id = $2, parent_id = $3, status = $4, priority = $5,
			due_at = $6, name = $7, description = $8, updated_at = $9
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := s.db.ExecContext(ctx, query,
		task.ID, task.OwnerID, task.ParentID, task.Status, task.Priority,
		task.DueAt, name, description, task.UpdatedAt)
	if err != nil {
		return store.NewStoreError("task", "update", "failed to update task", mapError(err))
	}

	return checkTaskAffected(result)
}

// GetByID implements store.TaskStore.
func (s *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM tasks WHERE id = $1 AND deleted_at IS NULL`, taskColumns)
	return s.getOne(ctx, query, id)
}

// GetByIDIncludingDeleted implements store.TaskStore.
func (s *TaskStore) GetByIDIncludingDeleted(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns)
	return s.getOne(ctx, query, id)
}

// GetChildren implements store.TaskStore.
func (s *TaskStore) GetChildren(ctx context.Context, parentID uuid.UUID) ([]*domain.Task, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		WHERE parent_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC`, taskColumns)

	rows, err := s.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, store.NewStoreError("task", "get_children", "query failed", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	return scanTasks(rows)
}

// ListByOwner implements store.TaskStore.
func (s *TaskStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, filter store.ListFilter) ([]*domain.Task, int, error) {
	filter = filter.Normalize()

	where, args := buildTaskFilter(ownerID, filter)

	var total int
	countQuery := "SELECT COUNT(*) FROM tasks WHERE " + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, store.NewStoreError("task", "list", "count query failed", mapError(err))
	}

	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		taskColumns, where, orderClause(filter), len(args)+1, len(args)+2)
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, store.NewStoreError("task", "list", "query failed", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// SoftDelete implements store.TaskStore. The task and its subtasks are
// marked deleted in one statement; already-deleted rows keep their original
// marker so repeated deletes are idempotent.
func (s *TaskStore) SoftDelete(ctx context.Context, id uuid.UUID, deletedAt time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE tasks
		SET deleted_at = $2, updated_at = $2
		WHERE (id = $1 OR parent_id = $1) AND deleted_at IS NULL
		RETURNING id
	`
	rows, err := s.db.QueryContext(ctx, query, id, deletedAt)
	if err != nil {
		return nil, store.NewStoreError("task", "soft_delete", "failed to mark deleted", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	var childIDs []uuid.UUID
	for rows.Next() {
		var affected uuid.UUID
		if err := rows.Scan(&affected); err != nil {
			return nil, store.NewStoreError("task", "soft_delete", "failed to scan id", err)
		}
		if affected != id {
			childIDs = append(childIDs, affected)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task", "soft_delete", "row iteration failed", mapError(err))
	}

	return childIDs, nil
}

// Restore implements store.TaskStore. Subtasks are deliberately not
// cascade-restored; see the service layer for the policy.
func (s *TaskStore) Restore(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE tasks
		SET deleted_at = NULL, updated_at = $2
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return store.NewStoreError("task", "restore", "failed to clear deletion marker", mapError(err))
	}

	return checkTaskAffected(result)
}

// GetOwnerStats implements store.TaskStore with a single aggregate query.
func (s *TaskStore) GetOwnerStats(ctx context.Context, ownerID uuid.UUID) (*store.OwnerStats, error) {
	query := `
		SELECT status, priority,
			(due_at IS NOT NULL AND due_at < NOW()
				AND status NOT IN ('completed', 'cancelled')) AS overdue,
			COUNT(*)
		FROM tasks
		WHERE owner_id = $1 AND deleted_at IS NULL
		GROUP BY status, priority, overdue
	`
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, store.NewStoreError("task", "stats", "aggregate query failed", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	stats := &store.OwnerStats{
		OwnerID:    ownerID,
		ByStatus:   make(map[domain.TaskStatus]int),
		ByPriority: make(map[domain.TaskPriority]int),
	}

	for rows.Next() {
		var (
			status   domain.TaskStatus
			priority domain.TaskPriority
			overdue  bool
			count    int
		)
		if err := rows.Scan(&status, &priority, &overdue, &count); err != nil {
			return nil, store.NewStoreError("task", "stats", "failed to scan row", err)
		}
		stats.Total += count
		stats.ByStatus[status] += count
		stats.ByPriority[priority] += count
		if overdue {
			stats.Overdue += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task", "stats", "row iteration failed", mapError(err))
	}

	return stats, nil
}

func (s *TaskStore) getOne(ctx context.Context, query string, id uuid.UUID) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx, query, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, store.NewStoreError("task", "get", "failed to scan task", mapError(err))
	}
	return task, nil
}

// buildTaskFilter translates a normalized ListFilter into a WHERE clause.
func buildTaskFilter(ownerID uuid.UUID, filter store.ListFilter) (string, []any) {
	clauses := []string{"owner_id = $1"}
	args := []any{ownerID}

	if !filter.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.RootOnly {
		clauses = append(clauses, "parent_id IS NULL")
	}
	if filter.OverdueOnly {
		clauses = append(clauses,
			"due_at IS NOT NULL AND due_at < NOW() AND status NOT IN ('completed', 'cancelled')")
	}

	return strings.Join(clauses, " AND "), args
}

// orderClause whitelists sortable columns; anything unknown falls back to
// creation order so filter input can never inject SQL.
func orderClause(filter store.ListFilter) string {
	column := "created_at"
	switch filter.SortBy {
	case "created_at", "updated_at", "due_at", "priority", "status":
		column = filter.SortBy
	}
	if filter.SortDesc {
		return column + " DESC"
	}
	return column + " ASC"
}

func checkTaskAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return store.NewStoreError("task", "update", "failed to read affected rows", err)
	}
	if affected == 0 {
		return store.ErrTaskNotFound
	}
	return nil
}

func marshalLocaleText(task *domain.Task) ([]byte, []byte, error) {
	name, err := json.Marshal(orEmpty(task.Name))
	if err != nil {
		return nil, nil, store.NewStoreError("task", "marshal", "failed to encode name", err)
	}
	description, err := json.Marshal(orEmpty(task.Description))
	if err != nil {
		return nil, nil, store.NewStoreError("task", "marshal", "failed to encode description", err)
	}
	return name, description, nil
}

func orEmpty(lt domain.LocaleText) domain.LocaleText {
	if lt == nil {
		return domain.LocaleText{}
	}
	return lt
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task        domain.Task
		name        []byte
		description []byte
	)
	err := row.Scan(&task.ID, &task.OwnerID, &task.ParentID, &task.Status,
		&task.Priority, &task.DueAt, &name, &description,
		&task.CreatedAt, &task.UpdatedAt, &task.DeletedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(name, &task.Name); err != nil {
		return nil, fmt.Errorf("failed to decode name JSONB: %w", err)
	}
	if err := json.Unmarshal(description, &task.Description); err != nil {
		return nil, fmt.Errorf("failed to decode description JSONB: %w", err)
	}

	return &task, nil
}

func scanTasks(rows *sql.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, store.NewStoreError("task", "scan", "failed to scan row", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task", "scan", "row iteration failed", mapError(err))
	}
	return tasks, nil
}
