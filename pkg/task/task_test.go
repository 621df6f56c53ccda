package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCompletedAtInvariant(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	base := Task{Title: "x", Deadline: now, Priority: Medium}

	cases := []struct {
		name    string
		status  Status
		done    *time.Time
		wantErr bool
	}{
		{"pending without completed_at", Pending, nil, false},
		{"pending with completed_at", Pending, &now, true},
		{"completed with completed_at", Completed, &now, false},
		{"completed without completed_at", Completed, nil, true},
		{"unknown status", Status("archived"), nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tk := base
			tk.Status = tc.status
			tk.CompletedAt = tc.done
			err := tk.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPriorityWeightOrdering(t *testing.T) {
	assert.Less(t, Low.Weight(), Medium.Weight())
	assert.Less(t, Medium.Weight(), High.Weight())
	assert.False(t, Priority("urgent").Valid())
}

func TestMemStoreModifyFailureLeavesTaskUnchanged(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	deadline := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	created, err := s.Create(ctx, &Task{Title: "Finish math pset", Deadline: deadline})
	require.NoError(t, err)

	before, err := s.Get(ctx, created.ID)
	require.NoError(t, err)

	_, err = s.Modify(ctx, created.ID, func(t *Task) error {
		t.Title = "renamed"
		t.Priority = Priority("bogus")
		return nil
	})
	require.Error(t, err)

	after, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMemStoreModifyFnErrorRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	created, err := s.Create(ctx, &Task{Title: "a", Deadline: time.Now()})
	require.NoError(t, err)

	sentinel := errors.New("nope")
	_, err = s.Modify(ctx, created.ID, func(t *Task) error {
		t.Title = "changed"
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	got, _ := s.Get(ctx, created.ID)
	assert.Equal(t, "a", got.Title)
}

func TestMemStoreDueBetweenAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	in, _ := s.Create(ctx, &Task{Title: "in", Deadline: day.Add(10 * time.Hour)})
	_, _ = s.Create(ctx, &Task{Title: "edge", Deadline: day.Add(24 * time.Hour)})
	_, _ = s.Create(ctx, &Task{Title: "before", Deadline: day.Add(-time.Hour)})

	due, err := s.DueBetween(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, in.ID, due[0].ID)

	require.NoError(t, s.Delete(ctx, in.ID))
	_, err = s.Get(ctx, in.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, in.ID), ErrNotFound)
}
