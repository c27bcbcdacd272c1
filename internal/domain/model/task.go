package model

import "time"

// TaskStatus tracks whether a task still awaits an assignee.
type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskAssigned TaskStatus = "assigned"
)

// Task is created from a message the detector classified as a task.
type Task struct {
	ID          string          `json:"id"`
	MessageID   string          `json:"message_id"`
	TeamID      string          `json:"team_id"`
	RequesterID string          `json:"requester_id"`
	Text        string          `json:"text"`
	Context     string          `json:"context,omitempty"`
	Deadline    string          `json:"deadline,omitempty"`
	Priority    Priority        `json:"priority,omitempty"`
	Skills      []string        `json:"skills"`
	Confidence  float64         `json:"confidence"`
	Suggestions []AssigneeScore `json:"suggestions"`
	Status      TaskStatus      `json:"status"`
	AssigneeID  string          `json:"assignee_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	AssignedAt  *time.Time      `json:"assigned_at,omitempty"`
}

// TaskEvent is emitted to listeners when a task changes.
type TaskEvent struct {
	Type string `json:"type"` // "created" or "assigned"
	Task Task   `json:"task"`
}

// Task event types.
const (
	TaskEventCreated  = "created"
	TaskEventAssigned = "assigned"
)
