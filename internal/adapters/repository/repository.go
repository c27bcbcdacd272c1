// Package repository holds the team directory and the task store: the
// skills catalog, team rosters with proficiency and activity data, and the
// tasks created from detected messages.
package repository

import (
	"context"
	"time"

	"github.com/okian/taskrouter/internal/domain/model"
)

// Default and maximum page sizes for task listings.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Directory resolves the skills catalog and team rosters.
type Directory interface {
	// Skills returns the full catalog.
	Skills(ctx context.Context) ([]model.Skill, error)

	// TeamMembers returns the roster of a team in a stable order.
	// Returns ErrNotFound for an unknown team.
	TeamMembers(ctx context.Context, teamID string) ([]model.Member, error)

	// Touch records activity for a user. Unknown users are ignored.
	Touch(ctx context.Context, userID string, at time.Time) error

	// AdjustActiveTasks changes a user's active task count by delta,
	// never going below zero.
	AdjustActiveTasks(ctx context.Context, userID string, delta int) error
}

// ListFilter narrows a task listing. Zero values match everything.
type ListFilter struct {
	TeamID   string
	Status   model.TaskStatus
	Priority model.Priority
	Limit    int
	Offset   int
}

// TaskStore persists tasks.
type TaskStore interface {
	// Create stores a new task. Returns ErrDuplicate when the task ID or
	// its message ID is already stored.
	Create(ctx context.Context, t model.Task) error

	// Get returns ErrNotFound for an unknown ID.
	Get(ctx context.Context, id string) (model.Task, error)

	// List returns tasks newest first.
	List(ctx context.Context, f ListFilter) ([]model.Task, error)

	// Assign sets the assignee and returns the updated task together with
	// the previous assignee, if any.
	Assign(ctx context.Context, id, userID string, at time.Time) (model.Task, string, error)

	// Count returns the number of stored tasks.
	Count(ctx context.Context) int
}

// normalizeLimit validates a page size and applies the default.
func normalizeLimit(f ListFilter) (ListFilter, error) {
	if f.Limit < 0 || f.Offset < 0 || f.Limit > MaxListLimit {
		return f, ErrInvalidLimit
	}
	if f.Limit == 0 {
		f.Limit = DefaultListLimit
	}
	return f, nil
}
