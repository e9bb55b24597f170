package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/taskhive/taskhive-api/internal/domain"
	"github.com/taskhive/taskhive-api/internal/service"
	"github.com/taskhive/taskhive-api/internal/translation"
)

// RegisterRequest is the payload for the user registration endpoint.
type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=12,max=72"`
}

// LoginRequest is the payload for the user login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// AuthResponse is the successful response for register and login.
type AuthResponse struct {
	UserID       uuid.UUID `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
}

// RefreshTokenRequest is the payload for the token refresh endpoint.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshTokenResponse is the successful response for the refresh endpoint.
type RefreshTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// CreateTaskRequest is the payload for task creation. Name and description
// are locale→text maps; name must carry the fallback locale, which the
// hierarchy guard enforces.
type CreateTaskRequest struct {
	ParentID    *uuid.UUID        `json:"parent_id,omitempty"`
	Name        domain.LocaleText `json:"name"                  validate:"required,min=1"`
	Description domain.LocaleText `json:"description,omitempty"`
	Priority    *string           `json:"priority,omitempty"    validate:"omitempty,oneof=low medium high urgent"`
	DueAt       *time.Time        `json:"due_at,omitempty"`
}

// UpdateTaskRequest is the payload for task updates. Absent fields are left
// untouched; name/description maps replace the stored maps wholesale.
type UpdateTaskRequest struct {
	Name        domain.LocaleText `json:"name,omitempty"`
	Description domain.LocaleText `json:"description,omitempty"`
	Status      *string           `json:"status,omitempty"      validate:"omitempty,oneof=pending in_progress completed cancelled"`
	Priority    *string           `json:"priority,omitempty"    validate:"omitempty,oneof=low medium high urgent"`
	DueAt       *time.Time        `json:"due_at,omitempty"`
	ClearDueAt  bool              `json:"clear_due_at,omitempty"`
}

// TaskRef is the locale-independent projection of a related task embedded in
// detail responses. Callers resolve its text through the detail endpoint.
type TaskRef struct {
	ID       uuid.UUID           `json:"id"`
	OwnerID  uuid.UUID           `json:"owner_id"`
	ParentID *uuid.UUID          `json:"parent_id,omitempty"`
	Status   domain.TaskStatus   `json:"status"`
	Priority domain.TaskPriority `json:"priority"`
	DueAt    *time.Time          `json:"due_at,omitempty"`
}

// TaskResponse is one task projected onto the requested locale.
type TaskResponse struct {
	ID           uuid.UUID           `json:"id"`
	OwnerID      uuid.UUID           `json:"owner_id"`
	ParentID     *uuid.UUID          `json:"parent_id,omitempty"`
	Status       domain.TaskStatus   `json:"status"`
	Priority     domain.TaskPriority `json:"priority"`
	DueAt        *time.Time          `json:"due_at,omitempty"`
	Locale       string              `json:"locale"`
	Name         string              `json:"name"`
	Description  string              `json:"description,omitempty"`
	FallbackUsed bool                `json:"fallback_used"`
	Completeness int                 `json:"completeness"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	DeletedAt    *time.Time          `json:"deleted_at,omitempty"`
	Parent       *TaskRef            `json:"parent,omitempty"`
	Children     []TaskRef           `json:"children,omitempty"`
}

// NewTaskResponse builds the response for a task and its resolved bundle.
func NewTaskResponse(task *domain.Task, bundle translation.Bundle) TaskResponse {
	return TaskResponse{
		ID:           task.ID,
		OwnerID:      task.OwnerID,
		ParentID:     task.ParentID,
		Status:       task.Status,
		Priority:     task.Priority,
		DueAt:        task.DueAt,
		Locale:       bundle.Locale,
		Name:         bundle.Name,
		Description:  bundle.Description,
		FallbackUsed: bundle.FallbackUsed,
		Completeness: bundle.Completeness,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt,
		DeletedAt:    task.DeletedAt,
	}
}

// NewTaskDetailResponse builds the response for a detail view, embedding the
// parent or children references.
func NewTaskDetailResponse(view *service.TaskView) TaskResponse {
	resp := NewTaskResponse(view.Task, view.Bundle)
	if view.Parent != nil {
		resp.Parent = newTaskRef(view.Parent)
	}
	for _, child := range view.Children {
		resp.Children = append(resp.Children, *newTaskRef(child))
	}
	return resp
}

func newTaskRef(task *domain.Task) *TaskRef {
	return &TaskRef{
		ID:       task.ID,
		OwnerID:  task.OwnerID,
		ParentID: task.ParentID,
		Status:   task.Status,
		Priority: task.Priority,
		DueAt:    task.DueAt,
	}
}
