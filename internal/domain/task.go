package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task-specific validation errors.
var (
	// ErrTaskIDEmpty is returned when a task ID is empty or nil.
	ErrTaskIDEmpty = errors.New("task ID cannot be empty")

	// ErrTaskOwnerEmpty is returned when a task's owner ID is empty or nil.
	ErrTaskOwnerEmpty = errors.New("task owner ID cannot be empty")

	// ErrTaskNameEmpty is returned when a task has no non-empty name in any locale.
	ErrTaskNameEmpty = errors.New("task name must be set in at least one locale")

	// ErrTaskStatusInvalid is returned when a task status is not one of the
	// known values.
	ErrTaskStatusInvalid = errors.New("invalid task status")

	// ErrTaskPriorityInvalid is returned when a task priority is not one of
	// the known values.
	ErrTaskPriorityInvalid = errors.New("invalid task priority")
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

// Known task statuses.
const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusCancelled  TaskStatus = "cancelled"
)

// Valid reports whether the status is one of the known values.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// TaskPriority is the urgency classification of a task.
type TaskPriority string

// Known task priorities.
const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// Valid reports whether the priority is one of the known values.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// LocaleText is a locale-code → text map for a translatable field.
// Insertion order is irrelevant; empty and whitespace-only values are
// treated as absent.
type LocaleText map[string]string

// Get returns the value for the locale with surrounding whitespace trimmed,
// or the empty string when the locale has no usable value.
func (lt LocaleText) Get(locale string) string {
	return strings.TrimSpace(lt[locale])
}

// Has reports whether the locale has a non-empty value.
func (lt LocaleText) Has(locale string) bool {
	return lt.Get(locale) != ""
}

// Locales returns the locale codes that carry a non-empty value.
func (lt LocaleText) Locales() []string {
	locales := make([]string, 0, len(lt))
	for locale := range lt {
		if lt.Has(locale) {
			locales = append(locales, locale)
		}
	}
	return locales
}

// Clone returns a shallow copy so callers can mutate without aliasing.
func (lt LocaleText) Clone() LocaleText {
	if lt == nil {
		return nil
	}
	out := make(LocaleText, len(lt))
	for k, v := range lt {
		out[k] = v
	}
	return out
}

// Task is a unit of work owned by a user. A task with a nil ParentID is a
// root task; a task referencing a root task is a subtask. The hierarchy is
// capped at two levels, which is enforced at write time rather than by
// walking the graph.
type Task struct {
	ID          uuid.UUID    `json:"id"`
	OwnerID     uuid.UUID    `json:"owner_id"`
	ParentID    *uuid.UUID   `json:"parent_id,omitempty"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueAt       *time.Time   `json:"due_at,omitempty"`
	Name        LocaleText   `json:"name"`
	Description LocaleText   `json:"description"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	DeletedAt   *time.Time   `json:"deleted_at,omitempty"`
}

// NewTask creates a new pending Task for the given owner.
// It generates a new UUID and sets the creation/update timestamps.
// Returns an error if validation fails.
func NewTask(ownerID uuid.UUID, name, description LocaleText) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Status:      StatusPending,
		Priority:    PriorityMedium,
		Name:        name.Clone(),
		Description: description.Clone(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrTaskIDEmpty
	}

	if t.OwnerID == uuid.Nil {
		return ErrTaskOwnerEmpty
	}

	if len(t.Name.Locales()) == 0 {
		return ErrTaskNameEmpty
	}

	if !t.Status.Valid() {
		return ErrTaskStatusInvalid
	}

	if !t.Priority.Valid() {
		return ErrTaskPriorityInvalid
	}

	return nil
}

// IsRoot reports whether the task has no parent.
func (t *Task) IsRoot() bool {
	return t.ParentID == nil
}

// IsSubtask reports whether the task references a parent.
func (t *Task) IsSubtask() bool {
	return t.ParentID != nil
}

// IsDeleted reports whether the task carries a soft-delete marker.
func (t *Task) IsDeleted() bool {
	return t.DeletedAt != nil
}

// IsOverdue reports whether the task has a due timestamp in the past and is
// not yet completed or cancelled.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueAt == nil {
		return false
	}
	if t.Status == StatusCompleted || t.Status == StatusCancelled {
		return false
	}
	return t.DueAt.Before(now)
}

// Touch updates the UpdatedAt timestamp.
func (t *Task) Touch() {
	t.UpdatedAt = time.Now().UTC()
}
