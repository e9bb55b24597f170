// Package hierarchy enforces the two-level task hierarchy on every write.
// Root tasks have no parent; subtasks reference a root task and can never
// acquire children of their own. Because every assignment is validated at
// write time, no cycle walk is needed: a cycle deeper than the self-parent
// case cannot be constructed under these rules.
package hierarchy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/taskhive/taskhive-api/internal/domain"
)

// Rule identifies which hierarchy rule a rejected mutation violated, so the
// caller can present a precise message.
type Rule string

// Hierarchy rules, checked in order.
const (
	// RuleSelfParent rejects a task referencing itself as parent.
	RuleSelfParent Rule = "self_parent"

	// RuleSubtaskDepth rejects assigning a parent to a task that is already
	// a subtask; depth is capped at two levels.
	RuleSubtaskDepth Rule = "subtask_depth"

	// RuleParentNotRoot rejects a proposed parent that is itself a subtask;
	// only root tasks may acquire children.
	RuleParentNotRoot Rule = "parent_not_root"

	// RuleFallbackName rejects any mutation that would leave the
	// fallback-locale name empty.
	RuleFallbackName Rule = "fallback_name_required"
)

// Error is a domain-level, user-correctable rejection of a task mutation.
// It always carries the violated rule and is never retried.
type Error struct {
	Rule    Rule
	TaskID  uuid.UUID
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("invalid hierarchy (%s): %s", e.Rule, e.Message)
}

// ParentReader is the slice of the source-of-truth read API the guard needs.
type ParentReader interface {
	// GetByID retrieves a task by its unique ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
}

// Guard validates parent/child assignment on task writes.
type Guard struct {
	tasks          ParentReader
	fallbackLocale string
}

// NewGuard creates a Guard reading parents through the given store and
// enforcing the name requirement against the given fallback locale.
func NewGuard(tasks ParentReader, fallbackLocale string) *Guard {
	return &Guard{
		tasks:          tasks,
		fallbackLocale: fallbackLocale,
	}
}

// ValidateAssignment checks the task's proposed parent assignment and its
// fallback-locale name. proposedParentID is the parent the mutation intends
// to persist; nil means the task is (or becomes) a root task. Returns a
// *hierarchy.Error naming the violated rule, an infrastructure error if the
// parent lookup fails, or nil when the mutation is admissible.
func (g *Guard) ValidateAssignment(ctx context.Context, task *domain.Task, proposedParentID *uuid.UUID) error {
	if proposedParentID != nil {
		if *proposedParentID == task.ID {
			return &Error{
				Rule:    RuleSelfParent,
				TaskID:  task.ID,
				Message: "a task cannot be its own parent",
			}
		}

		// A task that already sits under a parent can never be re-parented
		// deeper; re-stating the same parent is fine.
		if task.ParentID != nil && *task.ParentID != *proposedParentID {
			return &Error{
				Rule:    RuleSubtaskDepth,
				TaskID:  task.ID,
				Message: "a subtask cannot be moved under another task",
			}
		}

		parent, err := g.tasks.GetByID(ctx, *proposedParentID)
		if err != nil {
			return fmt.Errorf("failed to load proposed parent %s: %w", proposedParentID, err)
		}

		if parent.IsSubtask() {
			return &Error{
				Rule:    RuleParentNotRoot,
				TaskID:  task.ID,
				Message: fmt.Sprintf("proposed parent %s is itself a subtask", parent.ID),
			}
		}
	}

	if !task.Name.Has(g.fallbackLocale) {
		return &Error{
			Rule:   RuleFallbackName,
			TaskID: task.ID,
			Message: fmt.Sprintf(
				"name must be non-empty in the fallback locale %q", g.fallbackLocale),
		}
	}

	return nil
}

// ValidateChildAttachment rejects attaching a child to a task that is itself
// a subtask. Used when the mutated side is the parent rather than the child.
func (g *Guard) ValidateChildAttachment(parent *domain.Task) error {
	if parent.IsSubtask() {
		return &Error{
			Rule:    RuleSubtaskDepth,
			TaskID:  parent.ID,
			Message: "a subtask cannot have children of its own",
		}
	}
	return nil
}
