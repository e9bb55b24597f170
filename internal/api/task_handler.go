package api

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/taskhive/taskhive-api/internal/domain"
	"github.com/taskhive/taskhive-api/internal/service"
	"github.com/taskhive/taskhive-api/internal/store"
)

// TaskHandler handles the task CRUD, list, stats, and translation-status
// endpoints. Every route below it requires authentication; ownership is
// checked here and a foreign task is indistinguishable from a missing one.
type TaskHandler struct {
	tasks         *service.TaskService
	defaultLocale string
	validator     *validator.Validate
}

// NewTaskHandler creates a TaskHandler. defaultLocale is used when a request
// names no locale.
func NewTaskHandler(tasks *service.TaskService, defaultLocale string) *TaskHandler {
	return &TaskHandler{
		tasks:         tasks,
		defaultLocale: defaultLocale,
		validator:     validator.New(),
	}
}

// requestLocale picks the locale for the response: the `locale` query
// parameter when present, the configured fallback otherwise. An unsupported
// locale is not an error; the resolver degrades it to the fallback chain.
func (h *TaskHandler) requestLocale(r *http.Request) string {
	if locale := r.URL.Query().Get("locale"); locale != "" {
		return locale
	}
	return h.defaultLocale
}

// requireOwner resolves the task's owner and compares it with the caller.
// A mismatch responds 404 so foreign task IDs leak nothing.
func (h *TaskHandler) requireOwner(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) (uuid.UUID, bool) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, false
	}

	owner, err := h.tasks.OwnerOf(r.Context(), taskID)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return uuid.Nil, false
	}
	if owner != userID {
		RespondWithError(w, r, http.StatusNotFound, "Task not found")
		return uuid.Nil, false
	}
	return userID, true
}

// Create handles POST /tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateTaskRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	// A subtask may only be attached to a task the caller owns.
	if req.ParentID != nil {
		if _, ok := h.requireOwner(w, r, *req.ParentID); !ok {
			return
		}
	}

	input := service.CreateTaskInput{
		OwnerID:     userID,
		ParentID:    req.ParentID,
		Name:        req.Name,
		Description: req.Description,
		DueAt:       req.DueAt,
	}
	if req.Priority != nil {
		priority := domain.TaskPriority(*req.Priority)
		input.Priority = &priority
	}

	task, err := h.tasks.Create(r.Context(), input)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	view, err := h.tasks.Get(r.Context(), task.ID, h.requestLocale(r))
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	RespondWithJSON(w, r, http.StatusCreated, NewTaskDetailResponse(view))
}

// Get handles GET /tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	taskID, err := getPathUUID(r, "id")
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	if _, ok := h.requireOwner(w, r, taskID); !ok {
		return
	}

	view, err := h.tasks.Get(r.Context(), taskID, h.requestLocale(r))
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	RespondWithJSON(w, r, http.StatusOK, NewTaskDetailResponse(view))
}

// List handles GET /tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	filter, err := parseListFilter(r)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	page, err := h.tasks.List(r.Context(), userID, h.requestLocale(r), filter)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	RespondWithJSON(w, r, http.StatusOK, page)
}

// Update handles PATCH /tasks/{id}.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	taskID, err := getPathUUID(r, "id")
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	if _, ok := h.requireOwner(w, r, taskID); !ok {
		return
	}

	var req UpdateTaskRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	input := service.UpdateTaskInput{
		Name:        req.Name,
		Description: req.Description,
		DueAt:       req.DueAt,
		ClearDueAt:  req.ClearDueAt,
	}
	if req.Status != nil {
		status := domain.TaskStatus(*req.Status)
		input.Status = &status
	}
	if req.Priority != nil {
		priority := domain.TaskPriority(*req.Priority)
		input.Priority = &priority
	}

	if _, err := h.tasks.Update(r.Context(), taskID, input); err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	view, err := h.tasks.Get(r.Context(), taskID, h.requestLocale(r))
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	RespondWithJSON(w, r, http.StatusOK, NewTaskDetailResponse(view))
}

// Delete handles DELETE /tasks/{id}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	taskID, err := getPathUUID(r, "id")
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	if _, ok := h.requireOwner(w, r, taskID); !ok {
		return
	}

	if err := h.tasks.Delete(r.Context(), taskID); err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Restore handles POST /tasks/{id}/restore.
func (h *TaskHandler) Restore(w http.ResponseWriter, r *http.Request) {
	taskID, err := getPathUUID(r, "id")
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	if _, ok := h.requireOwner(w, r, taskID); !ok {
		return
	}

	if _, err := h.tasks.Restore(r.Context(), taskID); err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	view, err := h.tasks.Get(r.Context(), taskID, h.requestLocale(r))
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	RespondWithJSON(w, r, http.StatusOK, NewTaskDetailResponse(view))
}

// Stats handles GET /tasks/stats.
func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	stats, err := h.tasks.Stats(r.Context(), userID)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	RespondWithJSON(w, r, http.StatusOK, stats)
}

// TranslationStatus handles GET /tasks/{id}/translations.
func (h *TaskHandler) TranslationStatus(w http.ResponseWriter, r *http.Request) {
	taskID, err := getPathUUID(r, "id")
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	if _, ok := h.requireOwner(w, r, taskID); !ok {
		return
	}

	status, err := h.tasks.TranslationStatus(r.Context(), taskID)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	RespondWithJSON(w, r, http.StatusOK, status)
}

// parseListFilter reads the list query parameters into a store.ListFilter.
func parseListFilter(r *http.Request) (store.ListFilter, error) {
	q := r.URL.Query()
	var filter store.ListFilter

	if v := q.Get("status"); v != "" {
		status := domain.TaskStatus(v)
		if !status.Valid() {
			return filter, domain.NewValidationError("status", "is not a known status", domain.ErrValidation)
		}
		filter.Status = &status
	}
	if v := q.Get("priority"); v != "" {
		priority := domain.TaskPriority(v)
		if !priority.Valid() {
			return filter, domain.NewValidationError("priority", "is not a known priority", domain.ErrValidation)
		}
		filter.Priority = &priority
	}

	filter.RootOnly = q.Get("root_only") == "true"
	filter.OverdueOnly = q.Get("overdue_only") == "true"
	filter.IncludeDeleted = q.Get("include_deleted") == "true"
	filter.SortBy = q.Get("sort_by")
	filter.SortDesc = q.Get("sort_desc") == "true"

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return filter, domain.NewValidationError("page", "must be a positive integer", domain.ErrValidation)
		}
		filter.Page = page
	}
	if v := q.Get("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 {
			return filter, domain.NewValidationError("page_size", "must be a positive integer", domain.ErrValidation)
		}
		filter.PageSize = size
	}

	return filter, nil
}
