package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEndAfterStart(t *testing.T) {
	start := time.Date(2026, 10, 15, 14, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)
	same := start
	after := start.Add(time.Hour)

	cases := []struct {
		name    string
		end     *time.Time
		wantErr bool
	}{
		{"no end", nil, false},
		{"end after start", &after, false},
		{"end equals start", &same, true},
		{"end before start", &before, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := Event{Title: "x", Start: start, End: tc.end, Source: Local}
			if tc.wantErr {
				assert.Error(t, e.Validate())
			} else {
				assert.NoError(t, e.Validate())
			}
		})
	}
}

func TestMemStoreBetweenOrdersByStart(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	late, _ := s.Create(ctx, &Event{Title: "late", Start: day.Add(15 * time.Hour)})
	early, _ := s.Create(ctx, &Event{Title: "early", Start: day.Add(9 * time.Hour)})
	_, _ = s.Create(ctx, &Event{Title: "tomorrow", Start: day.Add(33 * time.Hour)})

	got, err := s.Between(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, early.ID, got[0].ID)
	assert.Equal(t, late.ID, got[1].ID)
}

func TestMemStoreModifyRejectsInvertedTimes(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	start := time.Date(2026, 10, 15, 14, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	created, err := s.Create(ctx, &Event{Title: "Meeting with advisor", Start: start, End: &end, Location: "Room 4"})
	require.NoError(t, err)

	_, err = s.Modify(ctx, created.ID, func(e *Event) error {
		bad := start.Add(-time.Hour)
		e.End = &bad
		e.Location = "Room 9"
		return nil
	})
	require.Error(t, err)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Room 4", got.Location)
	assert.True(t, got.End.Equal(end))
}
