package intent

import (
	"time"

	"agenda/pkg/task"
)

// Kind is the action tag carried by an envelope.
type Kind string

const (
	KindAddTask      Kind = "ADD_TASK"
	KindAddEvent     Kind = "ADD_EVENT"
	KindCompleteTask Kind = "COMPLETE_TASK"
	KindDeleteTask   Kind = "DELETE_TASK"
	KindDeleteEvent  Kind = "DELETE_EVENT"
	KindModifyTask   Kind = "MODIFY_TASK"
	KindModifyEvent  Kind = "MODIFY_EVENT"
	KindQuery        Kind = "QUERY"
)

// Kinds lists every recognized action tag.
var Kinds = []Kind{
	KindAddTask, KindAddEvent, KindCompleteTask, KindDeleteTask,
	KindDeleteEvent, KindModifyTask, KindModifyEvent, KindQuery,
}

// Action is a validated, strongly-typed request. The set of implementations
// is closed to this package.
type Action interface {
	Kind() Kind
	// Reply is the model's conversational text for the turn.
	Reply() string
	action()
}

// Pool says which entities a reference may point at.
type Pool int

const (
	PendingTasks Pool = iota
	AllTasks
	Events
)

// Targeted is implemented by actions that act on an existing entity.
type Targeted interface {
	Action
	Target() Reference
	Pool() Pool
}

// Reference identifies an existing entity, either exactly or by fuzzy text.
type Reference interface {
	reference()
}

// ByID names an entity by identifier. Title, when the model supplied one,
// is used if the id does not resolve.
type ByID struct {
	ID    string
	Title string
}

// ByText names an entity by a free-text fragment of its title.
type ByText struct {
	Text string
}

func (ByID) reference()   {}
func (ByText) reference() {}

type base struct {
	Message string
}

func (b base) Reply() string { return b.Message }
func (base) action()         {}

type AddTask struct {
	base
	Title       string
	Description string
	Deadline    time.Time
	Priority    task.Priority
	Effort      time.Duration
}

type AddEvent struct {
	base
	Title       string
	Description string
	Start       time.Time
	End         *time.Time
	Location    string
}

type CompleteTask struct {
	base
	Ref Reference
}

type DeleteTask struct {
	base
	Ref Reference
}

type DeleteEvent struct {
	base
	Ref Reference
}

// ModifyTask carries only the fields the user asked to change; nil means
// "leave as is".
type ModifyTask struct {
	base
	Ref         Reference
	Title       *string
	Description *string
	Deadline    *time.Time
	Priority    *task.Priority
	Effort      *time.Duration
}

type ModifyEvent struct {
	base
	Ref         Reference
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
	Location    *string
}

// Query asks for information; Window is "" for the default (today).
type Query struct {
	base
	Window string
}

func (AddTask) Kind() Kind      { return KindAddTask }
func (AddEvent) Kind() Kind     { return KindAddEvent }
func (CompleteTask) Kind() Kind { return KindCompleteTask }
func (DeleteTask) Kind() Kind   { return KindDeleteTask }
func (DeleteEvent) Kind() Kind  { return KindDeleteEvent }
func (ModifyTask) Kind() Kind   { return KindModifyTask }
func (ModifyEvent) Kind() Kind  { return KindModifyEvent }
func (Query) Kind() Kind        { return KindQuery }

func (a CompleteTask) Target() Reference { return a.Ref }
func (a DeleteTask) Target() Reference   { return a.Ref }
func (a DeleteEvent) Target() Reference  { return a.Ref }
func (a ModifyTask) Target() Reference   { return a.Ref }
func (a ModifyEvent) Target() Reference  { return a.Ref }

func (CompleteTask) Pool() Pool { return PendingTasks }
func (DeleteTask) Pool() Pool   { return AllTasks }
func (DeleteEvent) Pool() Pool  { return Events }
func (ModifyTask) Pool() Pool   { return AllTasks }
func (ModifyEvent) Pool() Pool  { return Events }
