// Package event holds scheduled events: ones the user created through the
// assistant and read-only mirrors of external calendar entries.
package event

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Source says who owns an event.
type Source string

const (
	Local    Source = "local"
	Calendar Source = "calendar" // mirror of an external calendar entry, never mutated here
)

// ErrNotFound is returned when no event has the requested id.
var ErrNotFound = errors.New("event not found")

// Event is a scheduled item with a start time.
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Start       time.Time  `json:"start_time"`
	End         *time.Time `json:"end_time,omitempty"`
	Location    string     `json:"location,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	Source      Source     `json:"source"`
	ExternalID  string     `json:"external_id,omitempty"`
}

// ReadOnly reports whether the event mirrors an external calendar.
func (e *Event) ReadOnly() bool {
	return e.Source == Calendar
}

// Validate checks the invariants every stored event must hold.
func (e *Event) Validate() error {
	if e.Title == "" {
		return fmt.Errorf("event title is empty")
	}
	if e.Start.IsZero() {
		return fmt.Errorf("event %q has no start time", e.Title)
	}
	if e.End != nil && !e.End.After(e.Start) {
		return fmt.Errorf("event %q ends at or before it starts", e.Title)
	}
	if e.Source != Local && e.Source != Calendar {
		return fmt.Errorf("event %q has invalid source %q", e.Title, e.Source)
	}
	return nil
}

// Store is the contract for event persistence.
type Store interface {
	Create(ctx context.Context, e *Event) (*Event, error)
	Get(ctx context.Context, id string) (*Event, error)
	// Modify loads the event, applies fn and writes it back atomically.
	Modify(ctx context.Context, id string, fn func(e *Event) error) (*Event, error)
	Delete(ctx context.Context, id string) error
	// Between returns events with start in [start, end), ordered by start.
	Between(ctx context.Context, start, end time.Time) ([]Event, error)
	// Upcoming returns events starting at or after from, up to limit
	// (a store default when limit <= 0).
	Upcoming(ctx context.Context, from time.Time, limit int) ([]Event, error)
	EnsureTable(ctx context.Context) error
}
