package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskhive/taskhive-api/internal/domain"
)

// Kind is the closed set of change-event types. Gateway dispatch and
// serialization switch over it exhaustively.
type Kind string

// Change-event kinds.
const (
	KindCreated          Kind = "created"
	KindUpdated          Kind = "updated"
	KindCompleted        Kind = "completed"
	KindDeleted          Kind = "deleted"
	KindRestored         Kind = "restored"
	KindParentUpdated    Kind = "parent_updated"
	KindSubtaskUpdated   Kind = "subtask_updated"
	KindUserStatsUpdated Kind = "user_stats_updated"
)

// Valid reports whether the kind is one of the known values.
func (k Kind) Valid() bool {
	switch k {
	case KindCreated, KindUpdated, KindCompleted, KindDeleted,
		KindRestored, KindParentUpdated, KindSubtaskUpdated, KindUserStatsUpdated:
		return true
	}
	return false
}

// GlobalChannel carries every mutation across all owners.
const GlobalChannel = "global_task_events"

// OwnerChannel returns the channel scoped to one owner's tasks, including
// subtask/parent cross-notifications.
func OwnerChannel(ownerID uuid.UUID) string {
	return fmt.Sprintf("user_task_events:%s", ownerID)
}

// TaskPayload is the locale-independent projection of a task carried in
// event frames. Locale resolution happens at the consumer against the
// viewer's locale, never here.
type TaskPayload struct {
	ID        uuid.UUID           `json:"id"`
	OwnerID   uuid.UUID           `json:"owner_id"`
	ParentID  *uuid.UUID          `json:"parent_id,omitempty"`
	Status    domain.TaskStatus   `json:"status"`
	Priority  domain.TaskPriority `json:"priority"`
	DueAt     *time.Time          `json:"due_at,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	DeletedAt *time.Time          `json:"deleted_at,omitempty"`
}

// NewTaskPayload projects a task onto its event payload.
func NewTaskPayload(task *domain.Task) TaskPayload {
	return TaskPayload{
		ID:        task.ID,
		OwnerID:   task.OwnerID,
		ParentID:  task.ParentID,
		Status:    task.Status,
		Priority:  task.Priority,
		DueAt:     task.DueAt,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
		DeletedAt: task.DeletedAt,
	}
}

// Event is one change event as placed on the bus and forwarded verbatim to
// gateway subscribers.
type Event struct {
	Kind      Kind        `json:"event"`
	Task      TaskPayload `json:"task"`
	Timestamp time.Time   `json:"timestamp"`

	// Extra carries kind-specific additions (e.g. the subtask ID on a
	// subtask_updated frame). Flattened into the top-level JSON object.
	Extra map[string]any `json:"-"`
}

// MarshalJSON flattens Extra into the top-level object alongside the fixed
// fields, producing frames of the shape {event, task, timestamp, ...extra}.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 3+len(e.Extra))
	for k, v := range e.Extra {
		out[k] = v
	}
	// Fixed fields win over colliding extras.
	out["event"] = e.Kind
	out["task"] = e.Task
	out["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	return json.Marshal(out)
}

// UnmarshalJSON restores the fixed fields and collects the remainder into
// Extra, inverting MarshalJSON.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["event"]; ok {
		if err := json.Unmarshal(v, &e.Kind); err != nil {
			return err
		}
	}
	if v, ok := raw["task"]; ok {
		if err := json.Unmarshal(v, &e.Task); err != nil {
			return err
		}
	}
	if v, ok := raw["timestamp"]; ok {
		if err := json.Unmarshal(v, &e.Timestamp); err != nil {
			return err
		}
	}

	delete(raw, "event")
	delete(raw, "task")
	delete(raw, "timestamp")
	if len(raw) > 0 {
		e.Extra = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			e.Extra[k] = val
		}
	}

	return nil
}
