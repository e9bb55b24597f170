package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taskhive/taskhive-api/internal/domain"
	"github.com/taskhive/taskhive-api/internal/store"
)

// MemoryTaskStore is an in-memory store.TaskStore. Methods return defensive
// copies so callers cannot alias stored state.
type MemoryTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task

	// Failure hooks; a non-nil error makes the matching method fail.
	FailCreate      error
	FailUpdate      error
	FailListByOwner error
}

var _ store.TaskStore = (*MemoryTaskStore)(nil)

// NewMemoryTaskStore creates an empty MemoryTaskStore.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

func cloneTask(t *domain.Task) *domain.Task {
	cp := *t
	cp.Name = t.Name.Clone()
	cp.Description = t.Description.Clone()
	return &cp
}

// Create implements store.TaskStore.
func (s *MemoryTaskStore) Create(_ context.Context, task *domain.Task) error {
	if s.FailCreate != nil {
		return s.FailCreate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

// Update implements store.TaskStore.
func (s *MemoryTaskStore) Update(_ context.Context, task *domain.Task) error {
	if s.FailUpdate != nil {
		return s.FailUpdate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.tasks[task.ID]
	if !ok || existing.IsDeleted() {
		return store.ErrTaskNotFound
	}
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

// GetByID implements store.TaskStore.
func (s *MemoryTaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.IsDeleted() {
		return nil, store.ErrTaskNotFound
	}
	return cloneTask(task), nil
}

// GetByIDIncludingDeleted implements store.TaskStore.
func (s *MemoryTaskStore) GetByIDIncludingDeleted(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return cloneTask(task), nil
}

// GetChildren implements store.TaskStore.
func (s *MemoryTaskStore) GetChildren(_ context.Context, parentID uuid.UUID) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var children []*domain.Task
	for _, task := range s.tasks {
		if task.ParentID != nil && *task.ParentID == parentID && !task.IsDeleted() {
			children = append(children, cloneTask(task))
		}
	}
	sort.Slice(children, func(i, j int) bool {
		return children[i].CreatedAt.Before(children[j].CreatedAt)
	})
	return children, nil
}

// ListByOwner implements store.TaskStore.
func (s *MemoryTaskStore) ListByOwner(_ context.Context, ownerID uuid.UUID, filter store.ListFilter) ([]*domain.Task, int, error) {
	if s.FailListByOwner != nil {
		return nil, 0, s.FailListByOwner
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filter = filter.Normalize()
	var matched []*domain.Task
	now := time.Now().UTC()
	for _, task := range s.tasks {
		if task.OwnerID != ownerID {
			continue
		}
		if task.IsDeleted() && !filter.IncludeDeleted {
			continue
		}
		if filter.Status != nil && task.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && task.Priority != *filter.Priority {
			continue
		}
		if filter.RootOnly && task.IsSubtask() {
			continue
		}
		if filter.OverdueOnly && !task.IsOverdue(now) {
			continue
		}
		matched = append(matched, cloneTask(task))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.PageSize
	if start > total {
		start = total
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// SoftDelete implements store.TaskStore.
func (s *MemoryTaskStore) SoftDelete(_ context.Context, id uuid.UUID, deletedAt time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}

	var cascaded []uuid.UUID
	if !task.IsDeleted() {
		task.DeletedAt = &deletedAt
		for _, child := range s.tasks {
			if child.ParentID != nil && *child.ParentID == id && !child.IsDeleted() {
				child.DeletedAt = &deletedAt
				cascaded = append(cascaded, child.ID)
			}
		}
	}
	return cascaded, nil
}

// Restore implements store.TaskStore.
func (s *MemoryTaskStore) Restore(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	task.DeletedAt = nil
	return nil
}

// GetOwnerStats implements store.TaskStore.
func (s *MemoryTaskStore) GetOwnerStats(_ context.Context, ownerID uuid.UUID) (*store.OwnerStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &store.OwnerStats{
		OwnerID:    ownerID,
		ByStatus:   make(map[domain.TaskStatus]int),
		ByPriority: make(map[domain.TaskPriority]int),
	}
	now := time.Now().UTC()
	for _, task := range s.tasks {
		if task.OwnerID != ownerID || task.IsDeleted() {
			continue
		}
		stats.Total++
		stats.ByStatus[task.Status]++
		stats.ByPriority[task.Priority]++
		if task.IsOverdue(now) {
			stats.Overdue++
		}
	}
	return stats, nil
}

// WithTx implements store.TaskStore. The in-memory store has no transaction
// semantics; it returns itself.
func (s *MemoryTaskStore) WithTx(_ *sql.Tx) store.TaskStore { return s }
