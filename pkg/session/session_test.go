package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda/pkg/intent"
	"agenda/pkg/resolve"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(c *clock) *Manager {
	m := NewManager(120*time.Second, 3, resolve.DefaultOptions(c.t), zerolog.Nop())
	m.Now = c.now
	return m
}

var meetings = []resolve.Candidate{
	{ID: "e2", Kind: resolve.EventEntity, Title: "Meeting with advisor", Score: 0.95},
	{ID: "e1", Kind: resolve.EventEntity, Title: "Study group meeting", Score: 0.9},
}

var pending = intent.DeleteEvent{Ref: intent.ByText{Text: "meeting"}}

func TestReplyFirstOne(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(c)
	m.Open("42", "meeting", pending, meetings)

	out := m.Reply("42", "the first one")
	require.Equal(t, Chosen, out.Kind)
	assert.Equal(t, "Meeting with advisor", out.Choice.Title)
	assert.Equal(t, pending, out.Pending)

	_, ok := m.Active("42")
	assert.False(t, ok, "a chosen session is closed")
}

func TestReplyByTitleFragment(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(c)
	m.Open("42", "meeting", pending, meetings)

	out := m.Reply("42", "study group")
	require.Equal(t, Chosen, out.Kind)
	assert.Equal(t, "e1", out.Choice.ID)
}

func TestSessionExpires(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(c)
	m.Open("42", "meeting", pending, meetings)

	c.advance(119 * time.Second)
	_, ok := m.Active("42")
	require.True(t, ok)

	c.advance(2 * time.Second)
	_, ok = m.Active("42")
	assert.False(t, ok)
	assert.Equal(t, NoSession, m.Reply("42", "the first one").Kind)
}

func TestOpenReplacesPriorSession(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(c)
	m.Open("42", "meeting", pending, meetings)

	other := []resolve.Candidate{{ID: "t1", Title: "Reading A"}, {ID: "t2", Title: "Reading B"}}
	m.Open("42", "reading", intent.DeleteTask{Ref: intent.ByText{Text: "reading"}}, other)

	s, ok := m.Active("42")
	require.True(t, ok)
	assert.Equal(t, "reading", s.Reference)
	assert.Len(t, s.Candidates, 2)
	assert.Equal(t, 1, s.Round)
}

func TestUnmatchedReplyKeepsRound(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(c)
	m.Open("42", "meeting", pending, meetings)

	for _, text := range []string{"hmm not sure", "the seventh", "add a task to call mom at 2"} {
		out := m.Reply("42", text)
		require.Equal(t, Unmatched, out.Kind, text)
		assert.Equal(t, 1, out.Session.Round)
		assert.Len(t, out.Session.Candidates, 2)
	}
}

func TestMissRoundsThenGiveUp(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(c)
	m.Open("42", "meeting", pending, meetings)

	out := m.Miss("42")
	require.Equal(t, Unmatched, out.Kind)
	assert.Equal(t, 2, out.Session.Round)

	out = m.Miss("42")
	require.Equal(t, Unmatched, out.Kind)
	assert.Equal(t, 3, out.Session.Round)

	assert.Equal(t, GaveUp, m.Miss("42").Kind)
	_, ok := m.Active("42")
	assert.False(t, ok)
	assert.Equal(t, NoSession, m.Miss("42").Kind)
}

func TestNarrowed(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(c)
	cands := []resolve.Candidate{
		{ID: "a", Title: "Call mom"},
		{ID: "b", Title: "Call dentist"},
		{ID: "c", Title: "Call bank"},
	}
	m.Open("42", "call", pending, cands)

	out := m.Reply("42", "call")
	require.Equal(t, Narrowed, out.Kind)
	assert.Len(t, out.Session.Candidates, 3)

	out = m.Reply("42", "dentist")
	require.Equal(t, Chosen, out.Kind)
	assert.Equal(t, "b", out.Choice.ID)
}

func TestSweep(t *testing.T) {
	c := &clock{t: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(c)
	m.Open("1", "x", pending, meetings)
	c.advance(time.Minute)
	m.Open("2", "y", pending, meetings)
	c.advance(90 * time.Second)

	assert.Equal(t, 1, m.Sweep())
	_, ok := m.Active("2")
	assert.True(t, ok)
}

func TestRunStopsOnCancel(t *testing.T) {
	m := NewManager(time.Second, 3, resolve.DefaultOptions(time.Now()), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 10*time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestOrdinal(t *testing.T) {
	tests := []struct {
		text string
		n    int
		want int
		ok   bool
	}{
		{"the first one", 2, 0, true},
		{"second", 2, 1, true},
		{"#2", 3, 1, true},
		{"2", 3, 1, true},
		{"the 3rd", 3, 2, true},
		{"last", 4, 3, true},
		{"the last one", 2, 1, true},
		{"one", 2, 0, true},
		{"option two", 2, 1, true},
		{"number 2", 3, 1, true},
		{"I meant the second one", 2, 1, true},
		{"no, it's #1", 2, 0, true},
		{"add a task to call mom at 2", 3, 0, false},
		{"move it to 3", 3, 0, false},
		{"1 or 2", 2, 0, false},
		{"4", 3, 0, false},
		{"the blue one", 2, 0, false},
		{"", 2, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := Ordinal(tt.text, tt.n)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
