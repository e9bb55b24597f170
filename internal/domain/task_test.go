package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewTask(t *testing.T) {
	ownerID := uuid.New()
	name := LocaleText{"en": "Plan"}

	task, err := NewTask(ownerID, name, LocaleText{"en": "Plan the launch"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if task.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}

	if task.OwnerID != ownerID {
		t.Errorf("Expected owner %s, got %s", ownerID, task.OwnerID)
	}

	if task.Status != StatusPending {
		t.Errorf("Expected status %s, got %s", StatusPending, task.Status)
	}

	if task.Priority != PriorityMedium {
		t.Errorf("Expected priority %s, got %s", PriorityMedium, task.Priority)
	}

	if !task.IsRoot() {
		t.Error("Expected new task to be a root task")
	}

	if task.CreatedAt.IsZero() || task.UpdatedAt.IsZero() {
		t.Error("Expected non-zero timestamps")
	}

	// Name map is cloned so later caller mutation does not alias the task.
	name["en"] = "Changed"
	if task.Name.Get("en") != "Plan" {
		t.Error("Expected task name to be independent of the input map")
	}

	// Missing name in every locale is rejected.
	_, err = NewTask(ownerID, LocaleText{"en": "  "}, nil)
	if err != ErrTaskNameEmpty {
		t.Errorf("Expected error %v, got %v", ErrTaskNameEmpty, err)
	}

	// Missing owner is rejected.
	_, err = NewTask(uuid.Nil, LocaleText{"en": "Plan"}, nil)
	if err != ErrTaskOwnerEmpty {
		t.Errorf("Expected error %v, got %v", ErrTaskOwnerEmpty, err)
	}
}

func TestTaskValidate(t *testing.T) {
	valid := func() *Task {
		return &Task{
			ID:        uuid.New(),
			OwnerID:   uuid.New(),
			Status:    StatusPending,
			Priority:  PriorityLow,
			Name:      LocaleText{"en": "Plan"},
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Expected valid task, got %v", err)
	}

	task := valid()
	task.Status = TaskStatus("paused")
	if err := task.Validate(); err != ErrTaskStatusInvalid {
		t.Errorf("Expected %v, got %v", ErrTaskStatusInvalid, err)
	}

	task = valid()
	task.Priority = TaskPriority("critical")
	if err := task.Validate(); err != ErrTaskPriorityInvalid {
		t.Errorf("Expected %v, got %v", ErrTaskPriorityInvalid, err)
	}

	task = valid()
	task.ID = uuid.Nil
	if err := task.Validate(); err != ErrTaskIDEmpty {
		t.Errorf("Expected %v, got %v", ErrTaskIDEmpty, err)
	}
}

func TestTaskHierarchyPredicates(t *testing.T) {
	parentID := uuid.New()
	task := Task{ParentID: &parentID}

	if task.IsRoot() {
		t.Error("Task with a parent must not be a root task")
	}
	if !task.IsSubtask() {
		t.Error("Task with a parent must be a subtask")
	}

	task.ParentID = nil
	if !task.IsRoot() || task.IsSubtask() {
		t.Error("Task without a parent must be a root task")
	}
}

func TestTaskIsOverdue(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name    string
		dueAt   *time.Time
		status  TaskStatus
		overdue bool
	}{
		{"no due date", nil, StatusPending, false},
		{"due in future", &future, StatusPending, false},
		{"due in past, pending", &past, StatusPending, true},
		{"due in past, in progress", &past, StatusInProgress, true},
		{"due in past, completed", &past, StatusCompleted, false},
		{"due in past, cancelled", &past, StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := Task{DueAt: tt.dueAt, Status: tt.status}
			if got := task.IsOverdue(now); got != tt.overdue {
				t.Errorf("IsOverdue = %v, want %v", got, tt.overdue)
			}
		})
	}
}

func TestLocaleText(t *testing.T) {
	lt := LocaleText{"en": " Plan ", "fr": "", "es": "  "}

	if got := lt.Get("en"); got != "Plan" {
		t.Errorf("Get(en) = %q, want %q", got, "Plan")
	}
	if lt.Has("fr") || lt.Has("es") {
		t.Error("Empty and whitespace-only values must count as absent")
	}
	if lt.Has("de") {
		t.Error("Missing locale must count as absent")
	}

	locales := lt.Locales()
	if len(locales) != 1 || locales[0] != "en" {
		t.Errorf("Locales() = %v, want [en]", locales)
	}

	var nilText LocaleText
	if nilText.Get("en") != "" || nilText.Has("en") {
		t.Error("Nil LocaleText must behave as empty")
	}
	if nilText.Clone() != nil {
		t.Error("Clone of nil LocaleText must be nil")
	}
}
