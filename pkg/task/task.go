package task

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Priority ranks how important a task is.
type Priority string

const (
	Low    Priority = "low"
	Medium Priority = "medium"
	High   Priority = "high"
)

// Weight maps a priority onto 1..3. Unknown priorities weigh as medium.
func (p Priority) Weight() float64 {
	switch p {
	case Low:
		return 1
	case High:
		return 3
	default:
		return 2
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p == Low || p == Medium || p == High
}

// Status is the lifecycle state of a task.
type Status string

const (
	Pending   Status = "pending"
	Completed Status = "completed"
)

// ErrNotFound is returned when no task has the requested id.
var ErrNotFound = errors.New("task not found")

// Task is a deadline-bearing unit of work owned by the assistant.
type Task struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Deadline    time.Time     `json:"deadline"`
	Priority    Priority      `json:"priority"`
	Status      Status        `json:"status"`
	Effort      time.Duration `json:"effort,omitempty"` // estimated effort, 0 when unknown
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// Validate checks the invariants every stored task must hold.
func (t *Task) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("task title is empty")
	}
	if t.Deadline.IsZero() {
		return fmt.Errorf("task %q has no deadline", t.Title)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("task %q has invalid priority %q", t.Title, t.Priority)
	}
	if t.Effort < 0 {
		return fmt.Errorf("task %q has negative effort", t.Title)
	}
	switch t.Status {
	case Pending:
		if t.CompletedAt != nil {
			return fmt.Errorf("pending task %q has completed_at set", t.Title)
		}
	case Completed:
		if t.CompletedAt == nil {
			return fmt.Errorf("completed task %q has no completed_at", t.Title)
		}
	default:
		return fmt.Errorf("task %q has invalid status %q", t.Title, t.Status)
	}
	return nil
}

// Filter narrows List results. Zero values mean "no restriction".
type Filter struct {
	Status Status
	Limit  int
}

// Store is the contract for task persistence.
type Store interface {
	Create(ctx context.Context, t *Task) (*Task, error)
	Get(ctx context.Context, id string) (*Task, error)
	// Modify loads the task, applies fn and writes the result in one
	// transaction. If fn or validation fails nothing is written.
	Modify(ctx context.Context, id string, fn func(t *Task) error) (*Task, error)
	Delete(ctx context.Context, id string) error
	// List returns tasks ordered by deadline, then created_at.
	List(ctx context.Context, f Filter) ([]Task, error)
	// DueBetween returns pending tasks with deadline in [start, end).
	DueBetween(ctx context.Context, start, end time.Time) ([]Task, error)
	PendingCount(ctx context.Context) (int, error)
	EnsureTable(ctx context.Context) error
}
