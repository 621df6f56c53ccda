package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda/pkg/briefing"
	"agenda/pkg/calendar"
	"agenda/pkg/event"
	"agenda/pkg/executor"
	"agenda/pkg/intent"
	"agenda/pkg/journal"
	"agenda/pkg/llm"
	"agenda/pkg/resolve"
	"agenda/pkg/session"
	"agenda/pkg/task"
)

// fakeModel answers every request with the next scripted envelope.
type fakeModel struct {
	mu      sync.Mutex
	replies []intent.Envelope
	block   bool
	calls   int
}

func (f *fakeModel) Interpret(ctx context.Context, _ llm.Request) (intent.Envelope, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	var env intent.Envelope
	if len(f.replies) > 0 {
		env, f.replies = f.replies[0], f.replies[1:]
	}
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return intent.Envelope{}, fmt.Errorf("%w: %w", llm.ErrUnavailable, ctx.Err())
	}
	return env, nil
}

func (f *fakeModel) say(action string, params map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, intent.Envelope{Action: action, Params: params})
}

type fakeCalendar struct {
	snap calendar.Snapshot
}

func (f *fakeCalendar) Snapshot(_ context.Context, start, end time.Time) calendar.Snapshot {
	s := f.snap
	s.Start, s.End = start, end
	return s
}

func (f *fakeCalendar) Peek(time.Time, time.Time) (calendar.Snapshot, bool) {
	return calendar.Snapshot{}, false
}

type fixture struct {
	a        *Assistant
	model    *fakeModel
	cal      *fakeCalendar
	tasks    *task.MemStore
	events   *event.MemStore
	journal  *journal.MemStore
	sessions *session.Manager
	now      time.Time
}

// Thursday morning.
var start = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		model:   &fakeModel{},
		cal:     &fakeCalendar{snap: calendar.Snapshot{Available: true}},
		tasks:   task.NewMemStore(),
		events:  event.NewMemStore(),
		journal: journal.NewMemStore(),
		now:     start,
	}
	clock := func() time.Time { return f.now }

	f.sessions = session.NewManager(120*time.Second, 3, resolve.DefaultOptions(start), zerolog.Nop())
	f.sessions.Now = clock
	x := executor.New(f.tasks, f.events, zerolog.Nop())
	x.Now = clock

	f.a = New(Deps{
		Tasks:     f.tasks,
		Events:    f.events,
		Journal:   f.journal,
		Model:     f.model,
		Calendar:  f.cal,
		Sessions:  f.sessions,
		Executor:  x,
		Briefings: briefing.New(briefing.DefaultConfig()),
	}, Options{
		Location:     time.UTC,
		ModelTimeout: 50 * time.Millisecond,
		Resolver:     resolve.DefaultOptions(start),
		HistoryTurns: 5,
	}, zerolog.Nop())
	f.a.Now = clock
	return f
}

func (f *fixture) addTask(t *testing.T, title string, deadline time.Time) *task.Task {
	t.Helper()
	created, err := f.tasks.Create(context.Background(), &task.Task{Title: title, Deadline: deadline, CreatedAt: start})
	require.NoError(t, err)
	return created
}

func (f *fixture) addEvent(t *testing.T, title string, at time.Time) *event.Event {
	t.Helper()
	created, err := f.events.Create(context.Background(), &event.Event{Title: title, Start: at, CreatedAt: start})
	require.NoError(t, err)
	return created
}

func TestCompleteByFragment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// Friday 09:00.
	pset := f.addTask(t, "Finish math pset", start.Add(23*time.Hour))
	f.addTask(t, "Read history chapter", start.Add(50*time.Hour))
	f.model.say("COMPLETE_TASK", map[string]any{"task_title": "math pset"})

	reply := f.a.Handle(ctx, "42", "done with the math pset")
	assert.Equal(t, `Nice, marked "Finish math pset" as done.`, reply)

	got, err := f.tasks.Get(ctx, pset.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Completed, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(start))

	// Saying it again reports the earlier completion.
	f.model.say("COMPLETE_TASK", map[string]any{"task_title": "math pset"})
	reply = f.a.Handle(ctx, "42", "finished the math pset")
	assert.Equal(t, `"Finish math pset" was already marked done.`, reply)

	entries, err := f.journal.Recent(ctx, "42", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, journal.Mutation, entries[0].Kind)
	assert.Equal(t, "COMPLETE_TASK", entries[0].Action)
}

func TestAmbiguousReferenceAsksThenExecutes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// Thursday 14:00 and Saturday 10:00.
	advisor := f.addEvent(t, "Meeting with advisor", start.Add(4*time.Hour))
	study := f.addEvent(t, "Study group meeting", start.Add(48*time.Hour))
	f.model.say("DELETE_EVENT", map[string]any{"title": "meeting"})

	reply := f.a.Handle(ctx, "42", "cancel my meeting")
	assert.Contains(t, reply, `Which one did you mean by "meeting"?`)
	assert.Contains(t, reply, "1. Meeting with advisor")
	assert.Contains(t, reply, "2. Study group meeting")
	_, open := f.sessions.Active("42")
	require.True(t, open)

	reply = f.a.Handle(ctx, "42", "the first one")
	assert.Equal(t, `Deleted "Meeting with advisor".`, reply)
	assert.Equal(t, 1, f.model.calls, "an ordinal answer needs no model call")

	_, err := f.events.Get(ctx, advisor.ID)
	assert.ErrorIs(t, err, event.ErrNotFound)
	_, err = f.events.Get(ctx, study.ID)
	assert.NoError(t, err)
}

func TestNewRequestDuringClarification(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addEvent(t, "Study group meeting", start.Add(6*time.Hour))
	f.addEvent(t, "Meeting with advisor", start.Add(28*time.Hour))
	f.model.say("DELETE_EVENT", map[string]any{"title": "meeting"})
	f.a.Handle(ctx, "42", "cancel my meeting")

	f.model.say("ADD_TASK", map[string]any{"title": "Buy milk"})
	reply := f.a.Handle(ctx, "42", "remind me to buy milk")
	assert.Contains(t, reply, `Added "Buy milk"`)
	_, open := f.sessions.Active("42")
	assert.False(t, open)
}

func TestNumberInNewRequestIsNotAPick(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	advisor := f.addEvent(t, "Meeting with advisor", start.Add(4*time.Hour))
	study := f.addEvent(t, "Study group meeting", start.Add(48*time.Hour))
	f.model.say("DELETE_EVENT", map[string]any{"title": "meeting"})
	f.a.Handle(ctx, "42", "cancel my meeting")

	f.model.say("ADD_TASK", map[string]any{"title": "Call mom", "deadline": "2026-01-15T14:00:00Z"})
	reply := f.a.Handle(ctx, "42", "add a task to call mom at 2")
	assert.Equal(t, `Added "Call mom", due Thu Jan 15 at 2pm.`, reply)
	assert.Equal(t, 2, f.model.calls)

	_, err := f.events.Get(ctx, advisor.ID)
	assert.NoError(t, err)
	_, err = f.events.Get(ctx, study.ID)
	assert.NoError(t, err)
	pending, err := f.tasks.List(ctx, task.Filter{Status: task.Pending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	_, open := f.sessions.Active("42")
	assert.False(t, open)
}

func TestQuestionDuringClarificationIsAnswered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addEvent(t, "Study group meeting", start.Add(6*time.Hour))
	f.addEvent(t, "Meeting with advisor", start.Add(28*time.Hour))
	f.model.say("DELETE_EVENT", map[string]any{"title": "meeting"})
	f.a.Handle(ctx, "42", "cancel my meeting")

	f.model.say("QUERY", map[string]any{"window": "today"})
	reply := f.a.Handle(ctx, "42", "what do I have today?")
	assert.Contains(t, reply, "Today (Thursday Jan 15):")
	assert.NotContains(t, reply, "Which one did you mean")
	_, open := f.sessions.Active("42")
	assert.False(t, open)
}

func TestGarbledRepliesUseRoundsButNewRequestStillRuns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addEvent(t, "Study group meeting", start.Add(6*time.Hour))
	f.addEvent(t, "Meeting with advisor", start.Add(28*time.Hour))
	f.model.say("DELETE_EVENT", map[string]any{"title": "meeting"})
	first := f.a.Handle(ctx, "42", "cancel my meeting")

	for range 2 {
		f.model.say("LAUNCH_ROCKET", nil)
		assert.Equal(t, first, f.a.Handle(ctx, "42", "blah blah"))
	}
	s, open := f.sessions.Active("42")
	require.True(t, open)
	assert.Equal(t, 3, s.Round)

	f.model.say("ADD_TASK", map[string]any{"title": "Buy milk"})
	reply := f.a.Handle(ctx, "42", "remind me to buy milk")
	assert.Contains(t, reply, `Added "Buy milk"`)
	assert.Equal(t, 4, f.model.calls)
}

func TestGarbledRepliesEventuallyGiveUp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addEvent(t, "Study group meeting", start.Add(6*time.Hour))
	f.addEvent(t, "Meeting with advisor", start.Add(28*time.Hour))
	f.model.say("DELETE_EVENT", map[string]any{"title": "meeting"})
	f.a.Handle(ctx, "42", "cancel my meeting")

	var reply string
	for range 3 {
		f.model.say("LAUNCH_ROCKET", nil)
		reply = f.a.Handle(ctx, "42", "blah blah")
	}
	assert.Equal(t, gaveUpReply, reply)
	_, open := f.sessions.Active("42")
	assert.False(t, open)
}

func TestExpiredSessionTreatsReplyAsFresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addEvent(t, "Study group meeting", start.Add(6*time.Hour))
	f.addEvent(t, "Meeting with advisor", start.Add(28*time.Hour))
	f.model.say("DELETE_EVENT", map[string]any{"title": "meeting"})
	f.a.Handle(ctx, "42", "cancel my meeting")

	f.now = f.now.Add(121 * time.Second)
	f.model.say("QUERY", map[string]any{"window": "today"})
	reply := f.a.Handle(ctx, "42", "the first one")
	assert.Equal(t, 2, f.model.calls)
	assert.Contains(t, reply, "Today (Thursday Jan 15):")
}

func TestModelTimeout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.model.block = true

	reply := f.a.Handle(ctx, "42", "add a task")
	assert.Equal(t, retryLaterReply, reply)

	entries, err := f.journal.Recent(ctx, "42", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.Failure, entries[0].Kind)
}

func TestMalformedModelOutput(t *testing.T) {
	f := newFixture(t)
	f.model.say("LAUNCH_ROCKET", nil)
	assert.Equal(t, malformedReply, f.a.Handle(context.Background(), "42", "do the thing"))
}

func TestUnparseableTime(t *testing.T) {
	f := newFixture(t)
	f.model.say("ADD_EVENT", map[string]any{"title": "Lab", "start_time": "sometime soon"})
	reply := f.a.Handle(context.Background(), "42", "lab sometime soon")
	assert.Contains(t, reply, "couldn't understand the time for the start")
	es, err := f.events.Upcoming(context.Background(), start.AddDate(0, 0, -1), 0)
	require.NoError(t, err)
	assert.Empty(t, es)
}

type hangingProvider struct{}

func (hangingProvider) Entries(ctx context.Context, _, _ time.Time) ([]calendar.Entry, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCalendarTimeoutBriefing(t *testing.T) {
	f := newFixture(t)
	f.a.Calendar = calendar.NewCache(hangingProvider{}, 20*time.Millisecond, time.Minute)
	f.addEvent(t, "Study group meeting", start.Add(6*time.Hour))
	f.addTask(t, "Finish math pset", start.Add(8*time.Hour))

	reply := f.a.Handle(context.Background(), "42", "/today")
	assert.Contains(t, reply, "Today (Thursday Jan 15):")
	assert.Contains(t, reply, "(I couldn't reach your calendar just now, so this only shows what I'm tracking.)")
	assert.Contains(t, reply, "Study group meeting - Thu Jan 15 at 4pm")
	assert.Contains(t, reply, "Finish math pset (by Thu Jan 15 at 6pm)")

	b, err := f.a.Briefing(context.Background(), "today")
	require.NoError(t, err)
	assert.True(t, b.CalendarIncomplete)
}

func TestCalendarEntriesAreReadOnly(t *testing.T) {
	f := newFixture(t)
	f.cal.snap = calendar.Snapshot{Available: true, Entries: []calendar.Entry{
		{ID: "g1", Title: "Physics lab", Start: start.Add(3 * time.Hour)},
	}}
	f.model.say("DELETE_EVENT", map[string]any{"title": "physics lab"})

	reply := f.a.Handle(context.Background(), "42", "cancel physics lab")
	assert.Equal(t, readOnlyReply("Physics lab"), reply)
}

func TestNoMatch(t *testing.T) {
	f := newFixture(t)
	f.addTask(t, "Finish math pset", start.Add(30*time.Hour))
	f.model.say("DELETE_TASK", map[string]any{"title": "essay"})

	reply := f.a.Handle(context.Background(), "42", "delete the essay")
	assert.Equal(t, `I couldn't find a task matching "essay". Want me to create it?`, reply)
}

func TestCommands(t *testing.T) {
	tests := []struct {
		in   string
		want command
		ok   bool
	}{
		{"/today", cmdToday, true},
		{"today", cmdToday, true},
		{" Week ", cmdWeek, true},
		{"/tasks@agenda_bot", cmdTasks, true},
		{"/tomorrow", cmdTomorrow, true},
		{"tomorrow", "", false},
		{"what's on today", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseCommand(tt.in)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestEmptyMessage(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, emptyReply, f.a.Handle(context.Background(), "42", "   "))
	assert.Equal(t, 0, f.model.calls)
}

func TestErrorReply(t *testing.T) {
	assert.Equal(t, retryLaterReply, errorReply(fmt.Errorf("wrap: %w", llm.ErrUnavailable)))
	assert.Equal(t, malformedReply, errorReply(intent.ErrMalformedEnvelope))
	assert.Equal(t, genericReply, errorReply(errors.New("disk on fire")))
	assert.Contains(t, errorReply(&intent.TimeError{Field: "new_deadline", Value: "soonish"}), "the deadline")
}

type recordingHandler struct {
	mu       sync.Mutex
	inflight map[string]int
	maxSeen  int
	got      []string
}

func (h *recordingHandler) Handle(_ context.Context, userID, text string) string {
	h.mu.Lock()
	h.inflight[userID]++
	if h.inflight[userID] > h.maxSeen {
		h.maxSeen = h.inflight[userID]
	}
	h.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	h.mu.Lock()
	h.inflight[userID]--
	h.got = append(h.got, userID+":"+text)
	h.mu.Unlock()
	return "ok " + text
}

func TestQueueSerializesPerUser(t *testing.T) {
	h := &recordingHandler{inflight: make(map[string]int)}
	q := NewQueue(h, time.Second, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reply, err := q.Submit(context.Background(), "42", fmt.Sprint(i))
			assert.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("ok %d", i), reply)
		}(i)
	}
	wg.Wait()
	q.Close()

	assert.Equal(t, 1, h.maxSeen)
	assert.Len(t, h.got, 5)

	_, err := q.Submit(context.Background(), "42", "late")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestQueueKeepsArrivalOrder(t *testing.T) {
	h := &recordingHandler{inflight: make(map[string]int)}
	q := NewQueue(h, time.Second, zerolog.Nop())
	defer q.Close()

	for _, text := range []string{"a", "b", "c"} {
		_, err := q.Submit(context.Background(), "42", text)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"42:a", "42:b", "42:c"}, h.got)
}
