package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/taskrouter/internal/domain/model"
)

// MemoryTaskStore keeps tasks in memory, indexed newest first.
type MemoryTaskStore struct {
	mu        sync.RWMutex
	tasks     map[string]model.Task
	byMessage map[string]string
	index     taskIndex
	maxTasks  int
}

var _ TaskStore = (*MemoryTaskStore)(nil)

// NewMemoryTaskStore creates an empty store.
func NewMemoryTaskStore(opts ...TaskOption) *MemoryTaskStore {
	s := &MemoryTaskStore{
		tasks:     make(map[string]model.Task),
		byMessage: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements TaskStore.
func (s *MemoryTaskStore) Create(ctx context.Context, t model.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.ID == "" {
		return fmt.Errorf("task id: %w", ErrInvalidRecord)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[t.ID]; ok {
		return fmt.Errorf("task %s: %w", t.ID, ErrDuplicate)
	}
	if t.MessageID != "" {
		if _, ok := s.byMessage[t.MessageID]; ok {
			return fmt.Errorf("task for message %s: %w", t.MessageID, ErrDuplicate)
		}
	}

	if s.maxTasks > 0 && len(s.tasks) >= s.maxTasks {
		s.evictOldest()
	}

	s.tasks[t.ID] = cloneTask(t)
	if t.MessageID != "" {
		s.byMessage[t.MessageID] = t.ID
	}
	s.index.insert(keyOf(t.ID, t.CreatedAt))
	return nil
}

func (s *MemoryTaskStore) evictOldest() {
	k, ok := s.index.last()
	if !ok {
		return
	}
	s.index.remove(k)
	if old, ok := s.tasks[k.id]; ok {
		delete(s.byMessage, old.MessageID)
		delete(s.tasks, k.id)
	}
}

// Get implements TaskStore.
func (s *MemoryTaskStore) Get(ctx context.Context, id string) (model.Task, error) {
	if err := ctx.Err(); err != nil {
		return model.Task{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return cloneTask(t), nil
}

// List implements TaskStore. Unfiltered listings page directly through the
// index; filtered ones walk it in order.
func (s *MemoryTaskStore) List(ctx context.Context, f ListFilter) ([]model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := normalizeLimit(f)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Task, 0)
	if f.TeamID == "" && f.Status == "" && f.Priority == "" {
		for _, id := range s.index.page(f.Offset, f.Limit) {
			out = append(out, cloneTask(s.tasks[id]))
		}
		return out, nil
	}

	skipped := 0
	s.index.walk(func(id string) bool {
		t := s.tasks[id]
		if f.TeamID != "" && t.TeamID != f.TeamID {
			return true
		}
		if f.Status != "" && t.Status != f.Status {
			return true
		}
		if f.Priority != "" && t.Priority != f.Priority {
			return true
		}
		if skipped < f.Offset {
			skipped++
			return true
		}
		out = append(out, cloneTask(t))
		return len(out) < f.Limit
	})
	return out, nil
}

// Assign implements TaskStore.
func (s *MemoryTaskStore) Assign(ctx context.Context, id, userID string, at time.Time) (model.Task, string, error) {
	if err := ctx.Err(); err != nil {
		return model.Task{}, "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, "", fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	previous := t.AssigneeID
	assignedAt := at
	t.AssigneeID = userID
	t.Status = model.TaskAssigned
	t.AssignedAt = &assignedAt
	s.tasks[id] = t
	return cloneTask(t), previous, nil
}

// Count implements TaskStore.
func (s *MemoryTaskStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func cloneTask(t model.Task) model.Task {
	c := t
	if t.Skills != nil {
		c.Skills = append([]string{}, t.Skills...)
	}
	if t.Suggestions != nil {
		c.Suggestions = make([]model.AssigneeScore, len(t.Suggestions))
		for i, s := range t.Suggestions {
			if s.MatchedSkills != nil {
				s.MatchedSkills = append([]string{}, s.MatchedSkills...)
			}
			c.Suggestions[i] = s
		}
	}
	if t.AssignedAt != nil {
		at := *t.AssignedAt
		c.AssignedAt = &at
	}
	return c
}
