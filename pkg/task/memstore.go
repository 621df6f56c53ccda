package task

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-process Store used by the chat CLI without a database
// and by tests.
type MemStore struct {
	mu    sync.Mutex
	tasks map[string]Task
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{tasks: make(map[string]Task)}
}

func (s *MemStore) EnsureTable(_ context.Context) error { return nil }

func (s *MemStore) Create(_ context.Context, t *Task) (*Task, error) {
	if t.ID == "" {
		t.ID = uuid.Must(uuid.NewV7()).String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.Status == "" {
		t.Status = Pending
	}
	if t.Priority == "" {
		t.Priority = Medium
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = clone(*t)
	cp := clone(*t)
	return &cp, nil
}

func (s *MemStore) Get(_ context.Context, id string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("get task %s: %w", id, ErrNotFound)
	}
	cp := clone(t)
	return &cp, nil
}

// Modify works on a copy so a failing fn leaves the stored task untouched.
func (s *MemStore) Modify(_ context.Context, id string, fn func(t *Task) error) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("modify task %s: %w", id, ErrNotFound)
	}
	work := clone(t)
	if err := fn(&work); err != nil {
		return nil, fmt.Errorf("modify task %s: %w", id, err)
	}
	work.ID = id
	if err := work.Validate(); err != nil {
		return nil, fmt.Errorf("modify task %s: %w", id, err)
	}
	s.tasks[id] = clone(work)
	return &work, nil
}

func (s *MemStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("delete task %s: %w", id, ErrNotFound)
	}
	delete(s.tasks, id)
	return nil
}

func (s *MemStore) List(_ context.Context, f Filter) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Task
	for _, t := range s.tasks {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, clone(t))
	}
	sortTasks(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemStore) DueBetween(_ context.Context, start, end time.Time) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Task
	for _, t := range s.tasks {
		if t.Status == Pending && !t.Deadline.Before(start) && t.Deadline.Before(end) {
			out = append(out, clone(t))
		}
	}
	sortTasks(out)
	return out, nil
}

func (s *MemStore) PendingCount(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if t.Status == Pending {
			n++
		}
	}
	return n, nil
}

func clone(t Task) Task {
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		t.CompletedAt = &at
	}
	return t
}

func sortTasks(ts []Task) {
	sort.Slice(ts, func(i, j int) bool {
		if !ts[i].Deadline.Equal(ts[j].Deadline) {
			return ts[i].Deadline.Before(ts[j].Deadline)
		}
		if !ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].CreatedAt.Before(ts[j].CreatedAt)
		}
		return ts[i].ID < ts[j].ID
	})
}
