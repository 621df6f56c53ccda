// Package executor applies validated, resolved actions to the task and event
// stores. Every mutation is all-or-nothing.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"agenda/pkg/event"
	"agenda/pkg/intent"
	"agenda/pkg/task"
)

var (
	// ErrReadOnlySource is returned when an action targets a calendar mirror.
	ErrReadOnlySource = errors.New("entity is a read-only calendar mirror")
	// ErrInvalid is returned when applying the change would break an entity
	// invariant, such as an event ending before it starts.
	ErrInvalid = errors.New("invalid change")
	// ErrNotMutation is returned for actions that change nothing.
	ErrNotMutation = errors.New("action is not a mutation")
	// ErrNoTarget is returned when a targeted action arrives without an id.
	ErrNoTarget = errors.New("no target id")
)

// Confirmation describes what a successful mutation did.
type Confirmation struct {
	Kind  intent.Kind
	ID    string
	Title string
	// When is the deadline of a task or the start of an event.
	When time.Time
	// AlreadyDone is set when completing a task that was already complete.
	AlreadyDone bool
	Task        *task.Task
	Event       *event.Event
}

// Executor performs mutations. It trusts its input: actions are validated
// and targets resolved before they get here.
type Executor struct {
	Tasks  task.Store
	Events event.Store
	Now    func() time.Time
	log    zerolog.Logger
}

// New creates an Executor over the given stores.
func New(tasks task.Store, events event.Store, log zerolog.Logger) *Executor {
	return &Executor{
		Tasks:  tasks,
		Events: events,
		Now:    time.Now,
		log:    log.With().Str("component", "executor").Logger(),
	}
}

func (x *Executor) now() time.Time {
	if x.Now != nil {
		return x.Now()
	}
	return time.Now()
}

// Execute applies a. target is the resolved entity id for targeted actions
// and ignored otherwise.
func (x *Executor) Execute(ctx context.Context, a intent.Action, target string) (Confirmation, error) {
	if _, ok := a.(intent.Targeted); ok && target == "" {
		return Confirmation{}, fmt.Errorf("%s: %w", a.Kind(), ErrNoTarget)
	}

	var (
		c   Confirmation
		err error
	)
	switch act := a.(type) {
	case intent.AddTask:
		c, err = x.addTask(ctx, act)
	case intent.AddEvent:
		c, err = x.addEvent(ctx, act)
	case intent.CompleteTask:
		c, err = x.completeTask(ctx, target)
	case intent.DeleteTask:
		c, err = x.deleteTask(ctx, target)
	case intent.DeleteEvent:
		c, err = x.deleteEvent(ctx, target)
	case intent.ModifyTask:
		c, err = x.modifyTask(ctx, act, target)
	case intent.ModifyEvent:
		c, err = x.modifyEvent(ctx, act, target)
	default:
		return Confirmation{}, fmt.Errorf("%s: %w", a.Kind(), ErrNotMutation)
	}
	if err != nil {
		return Confirmation{}, err
	}
	c.Kind = a.Kind()
	x.log.Info().Str("action", string(c.Kind)).Str("id", c.ID).Bool("already_done", c.AlreadyDone).Msg("mutation applied")
	return c, nil
}

func taskConfirmation(t *task.Task) Confirmation {
	return Confirmation{ID: t.ID, Title: t.Title, When: t.Deadline, Task: t}
}

func eventConfirmation(e *event.Event) Confirmation {
	return Confirmation{ID: e.ID, Title: e.Title, When: e.Start, Event: e}
}

func (x *Executor) addTask(ctx context.Context, a intent.AddTask) (Confirmation, error) {
	t, err := x.Tasks.Create(ctx, &task.Task{
		Title:       a.Title,
		Description: a.Description,
		Deadline:    a.Deadline,
		Priority:    a.Priority,
		Status:      task.Pending,
		Effort:      a.Effort,
		CreatedAt:   x.now(),
	})
	if err != nil {
		return Confirmation{}, fmt.Errorf("add task: %w", err)
	}
	return taskConfirmation(t), nil
}

func (x *Executor) addEvent(ctx context.Context, a intent.AddEvent) (Confirmation, error) {
	e := &event.Event{
		Title:       a.Title,
		Description: a.Description,
		Start:       a.Start,
		End:         a.End,
		Location:    a.Location,
		CreatedAt:   x.now(),
		Source:      event.Local,
	}
	if err := e.Validate(); err != nil {
		return Confirmation{}, fmt.Errorf("add event: %w: %v", ErrInvalid, err)
	}
	created, err := x.Events.Create(ctx, e)
	if err != nil {
		return Confirmation{}, fmt.Errorf("add event: %w", err)
	}
	return eventConfirmation(created), nil
}

func (x *Executor) completeTask(ctx context.Context, id string) (Confirmation, error) {
	already := false
	t, err := x.Tasks.Modify(ctx, id, func(t *task.Task) error {
		if t.Status == task.Completed {
			already = true
			return nil
		}
		now := x.now()
		t.Status = task.Completed
		t.CompletedAt = &now
		return nil
	})
	if err != nil {
		return Confirmation{}, fmt.Errorf("complete task %s: %w", id, err)
	}
	c := taskConfirmation(t)
	c.AlreadyDone = already
	return c, nil
}

func (x *Executor) deleteTask(ctx context.Context, id string) (Confirmation, error) {
	t, err := x.Tasks.Get(ctx, id)
	if err != nil {
		return Confirmation{}, fmt.Errorf("delete task %s: %w", id, err)
	}
	if err := x.Tasks.Delete(ctx, id); err != nil {
		return Confirmation{}, fmt.Errorf("delete task %s: %w", id, err)
	}
	return taskConfirmation(t), nil
}

func (x *Executor) deleteEvent(ctx context.Context, id string) (Confirmation, error) {
	e, err := x.Events.Get(ctx, id)
	if err != nil {
		return Confirmation{}, fmt.Errorf("delete event %s: %w", id, err)
	}
	if e.ReadOnly() {
		return Confirmation{}, fmt.Errorf("delete event %s: %w", id, ErrReadOnlySource)
	}
	if err := x.Events.Delete(ctx, id); err != nil {
		return Confirmation{}, fmt.Errorf("delete event %s: %w", id, err)
	}
	return eventConfirmation(e), nil
}

func (x *Executor) modifyTask(ctx context.Context, a intent.ModifyTask, id string) (Confirmation, error) {
	t, err := x.Tasks.Modify(ctx, id, func(t *task.Task) error {
		if a.Title != nil {
			t.Title = *a.Title
		}
		if a.Description != nil {
			t.Description = *a.Description
		}
		if a.Deadline != nil {
			t.Deadline = *a.Deadline
		}
		if a.Priority != nil {
			t.Priority = *a.Priority
		}
		if a.Effort != nil {
			t.Effort = *a.Effort
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		return nil
	})
	if err != nil {
		return Confirmation{}, fmt.Errorf("modify task %s: %w", id, err)
	}
	return taskConfirmation(t), nil
}

func (x *Executor) modifyEvent(ctx context.Context, a intent.ModifyEvent, id string) (Confirmation, error) {
	e, err := x.Events.Modify(ctx, id, func(e *event.Event) error {
		if e.ReadOnly() {
			return ErrReadOnlySource
		}
		if a.Title != nil {
			e.Title = *a.Title
		}
		if a.Description != nil {
			e.Description = *a.Description
		}
		if a.Start != nil {
			e.Start = *a.Start
		}
		if a.End != nil {
			end := *a.End
			e.End = &end
		}
		if a.Location != nil {
			e.Location = *a.Location
		}
		if err := e.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		return nil
	})
	if err != nil {
		return Confirmation{}, fmt.Errorf("modify event %s: %w", id, err)
	}
	return eventConfirmation(e), nil
}
