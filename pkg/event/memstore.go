package event

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-process Store for the database-less CLI and tests.
type MemStore struct {
	mu     sync.Mutex
	events map[string]Event
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{events: make(map[string]Event)}
}

func (s *MemStore) EnsureTable(_ context.Context) error { return nil }

func (s *MemStore) Create(_ context.Context, e *Event) (*Event, error) {
	if e.ID == "" {
		e.ID = uuid.Must(uuid.NewV7()).String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Source == "" {
		e.Source = Local
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = clone(*e)
	cp := clone(*e)
	return &cp, nil
}

func (s *MemStore) Get(_ context.Context, id string) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("get event %s: %w", id, ErrNotFound)
	}
	cp := clone(e)
	return &cp, nil
}

func (s *MemStore) Modify(_ context.Context, id string, fn func(e *Event) error) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("modify event %s: %w", id, ErrNotFound)
	}
	work := clone(e)
	if err := fn(&work); err != nil {
		return nil, fmt.Errorf("modify event %s: %w", id, err)
	}
	work.ID = id
	if err := work.Validate(); err != nil {
		return nil, fmt.Errorf("modify event %s: %w", id, err)
	}
	s.events[id] = clone(work)
	return &work, nil
}

func (s *MemStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return fmt.Errorf("delete event %s: %w", id, ErrNotFound)
	}
	delete(s.events, id)
	return nil
}

func (s *MemStore) Between(_ context.Context, start, end time.Time) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if !e.Start.Before(start) && e.Start.Before(end) {
			out = append(out, clone(e))
		}
	}
	sortEvents(out)
	return out, nil
}

func (s *MemStore) Upcoming(_ context.Context, from time.Time, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if !e.Start.Before(from) {
			out = append(out, clone(e))
		}
	}
	sortEvents(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func clone(e Event) Event {
	if e.End != nil {
		end := *e.End
		e.End = &end
	}
	return e
}

func sortEvents(es []Event) {
	sort.Slice(es, func(i, j int) bool {
		if !es[i].Start.Equal(es[j].Start) {
			return es[i].Start.Before(es[j].Start)
		}
		return es[i].ID < es[j].ID
	})
}
