package intent

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda/pkg/task"
)

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	return loc
}

func testValidator(t *testing.T) *Validator {
	loc := chicago(t)
	return &Validator{
		Location: loc,
		Now:      func() time.Time { return time.Date(2026, 1, 15, 10, 0, 0, 0, loc) },
	}
}

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		action  string
		wantErr bool
	}{
		{"plain", `{"action":"QUERY","params":{},"message":"hi"}`, "QUERY", false},
		{"fenced", "```json\n{\"action\":\"QUERY\",\"message\":\"hi\"}\n```", "QUERY", false},
		{"no action", `{"params":{},"message":"hi"}`, "", true},
		{"not json", "I'll add that for you!", "", true},
		{"empty", "   ", "", true},
		{"array", `[{"action":"QUERY"}]`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedEnvelope)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.action, env.Action)
			assert.NotNil(t, env.Params)
		})
	}
}

func TestValidateAddTask(t *testing.T) {
	v := testValidator(t)
	env, err := ParseEnvelope(`{"action":"ADD_TASK","params":{"title":"Finish math pset","deadline":"2026-01-18T14:00:00","priority":"HIGH","effort":90},"message":"Added!"}`)
	require.NoError(t, err)

	a, err := v.Validate(env)
	require.NoError(t, err)
	add, ok := a.(AddTask)
	require.True(t, ok)

	assert.Equal(t, "Finish math pset", add.Title)
	assert.Equal(t, task.High, add.Priority)
	assert.Equal(t, 90*time.Minute, add.Effort)
	assert.Equal(t, "Added!", add.Reply())
	assert.True(t, add.Deadline.Equal(time.Date(2026, 1, 18, 14, 0, 0, 0, v.Location)))
}

func TestValidateAddTaskDefaults(t *testing.T) {
	v := testValidator(t)

	a, err := v.Validate(Envelope{Action: "ADD_TASK", Params: map[string]any{"title": "Laundry"}})
	require.NoError(t, err)
	add := a.(AddTask)
	assert.Equal(t, task.Medium, add.Priority)
	assert.True(t, add.Deadline.Equal(time.Date(2026, 1, 15, 23, 59, 0, 0, v.Location)))

	a, err = v.Validate(Envelope{Action: "ADD_TASK", Params: map[string]any{"title": "Essay", "deadline": "2026-01-20"}})
	require.NoError(t, err)
	assert.True(t, a.(AddTask).Deadline.Equal(time.Date(2026, 1, 20, 23, 59, 0, 0, v.Location)))
}

func TestValidateZonedTimeKeepsInstant(t *testing.T) {
	v := testValidator(t)
	a, err := v.Validate(Envelope{Action: "ADD_EVENT", Params: map[string]any{
		"title":      "Standup",
		"start_time": "2026-01-16T15:00:00Z",
	}})
	require.NoError(t, err)
	ev := a.(AddEvent)
	assert.True(t, ev.Start.Equal(time.Date(2026, 1, 16, 15, 0, 0, 0, time.UTC)))
	assert.Equal(t, v.Location, ev.Start.Location())
	assert.Nil(t, ev.End)
}

func TestValidateErrors(t *testing.T) {
	v := testValidator(t)
	tests := []struct {
		name   string
		env    Envelope
		target error
	}{
		{"unknown action", Envelope{Action: "LAUNCH_ROCKET"}, ErrMalformedEnvelope},
		{"title wrong type", Envelope{Action: "ADD_TASK", Params: map[string]any{"title": 12.0}}, ErrMalformedEnvelope},
		{"missing title", Envelope{Action: "ADD_TASK", Params: map[string]any{}}, ErrMalformedEnvelope},
		{"bad priority", Envelope{Action: "ADD_TASK", Params: map[string]any{"title": "x", "priority": "urgent"}}, ErrMalformedEnvelope},
		{"event without start", Envelope{Action: "ADD_EVENT", Params: map[string]any{"title": "x"}}, ErrMalformedEnvelope},
		{"bad deadline", Envelope{Action: "ADD_TASK", Params: map[string]any{"title": "x", "deadline": "next tuesday-ish"}}, ErrUnparseableTime},
		{"complete without ref", Envelope{Action: "COMPLETE_TASK", Params: map[string]any{}}, ErrMalformedEnvelope},
		{"modify without change", Envelope{Action: "MODIFY_TASK", Params: map[string]any{"task_title": "pset"}}, ErrMalformedEnvelope},
		{"fractional id", Envelope{Action: "DELETE_TASK", Params: map[string]any{"id": 1.5}}, ErrMalformedEnvelope},
		{"window wrong type", Envelope{Action: "QUERY", Params: map[string]any{"window": true}}, ErrMalformedEnvelope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(tt.env)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestTimeErrorNamesField(t *testing.T) {
	v := testValidator(t)
	_, err := v.Validate(Envelope{Action: "MODIFY_EVENT", Params: map[string]any{
		"event_title":    "standup",
		"new_start_time": "soonish",
	}})
	var te *TimeError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "new_start_time", te.Field)
}

func TestValidateReferences(t *testing.T) {
	v := testValidator(t)
	env, err := ParseEnvelope(`{"action":"COMPLETE_TASK","params":{"task_id":7,"task_title":"pset"}}`)
	require.NoError(t, err)
	a, err := v.Validate(env)
	require.NoError(t, err)

	ct := a.(CompleteTask)
	assert.Equal(t, ByID{ID: "7", Title: "pset"}, ct.Target())
	assert.Equal(t, PendingTasks, ct.Pool())

	a, err = v.Validate(Envelope{Action: "delete_event", Params: map[string]any{"title": "meeting"}})
	require.NoError(t, err)
	de := a.(DeleteEvent)
	assert.Equal(t, ByText{Text: "meeting"}, de.Target())
	assert.Equal(t, Events, de.Pool())
}

func TestValidateModifyTaskPartial(t *testing.T) {
	v := testValidator(t)
	a, err := v.Validate(Envelope{Action: "MODIFY_TASK", Params: map[string]any{
		"task_title":   "essay",
		"new_priority": "low",
	}})
	require.NoError(t, err)
	m := a.(ModifyTask)
	require.NotNil(t, m.Priority)
	assert.Equal(t, task.Low, *m.Priority)
	assert.Nil(t, m.Title)
	assert.Nil(t, m.Deadline)
	assert.Nil(t, m.Description)
}

func TestValidateModifyEffortAndDescription(t *testing.T) {
	v := testValidator(t)
	a, err := v.Validate(Envelope{Action: "MODIFY_TASK", Params: map[string]any{
		"task_title": "essay",
		"new_effort": float64(90),
	}})
	require.NoError(t, err)
	m := a.(ModifyTask)
	require.NotNil(t, m.Effort)
	assert.Equal(t, 90*time.Minute, *m.Effort)

	a, err = v.Validate(Envelope{Action: "MODIFY_EVENT", Params: map[string]any{
		"event_title":     "standup",
		"new_description": "bring the slides",
	}})
	require.NoError(t, err)
	me := a.(ModifyEvent)
	require.NotNil(t, me.Description)
	assert.Equal(t, "bring the slides", *me.Description)
	assert.Nil(t, me.Start)

	_, err = v.Validate(Envelope{Action: "MODIFY_TASK", Params: map[string]any{
		"task_title": "essay",
		"new_effort": "soon",
	}})
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestValidateQueryWindow(t *testing.T) {
	v := testValidator(t)
	for in, want := range map[string]string{"Week": "week", "tomorrow": "tomorrow", "someday": ""} {
		a, err := v.Validate(Envelope{Action: "QUERY", Params: map[string]any{"window": in}})
		require.NoError(t, err)
		assert.Equal(t, want, a.(Query).Window, in)
	}
}
