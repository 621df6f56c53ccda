// Package assistant runs one conversational turn end to end: commands,
// pending clarifications, the model call, validation, resolution, execution
// and the reply.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

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

// CalendarSource yields calendar snapshots; *calendar.Cache is one.
type CalendarSource interface {
	Snapshot(ctx context.Context, start, end time.Time) calendar.Snapshot
	// Peek returns an already fetched snapshot without blocking.
	Peek(start, end time.Time) (calendar.Snapshot, bool)
}

// Deps are the collaborators of an Assistant.
type Deps struct {
	Tasks     task.Store
	Events    event.Store
	Journal   journal.Store
	Model     llm.Interpreter
	Calendar  CalendarSource
	Sessions  *session.Manager
	Executor  *executor.Executor
	Briefings *briefing.Synthesizer
}

// Options tune an Assistant.
type Options struct {
	Location     *time.Location
	ModelTimeout time.Duration
	Resolver     resolve.Options
	// HistoryTurns is how many past turns are shown to the model.
	HistoryTurns int
}

// Assistant handles turns. It is safe for concurrent use across users;
// turns for one user must be serialized by the caller (see Queue).
type Assistant struct {
	Deps
	opts      Options
	validator *intent.Validator
	Now       func() time.Time
	log       zerolog.Logger
}

// New creates an Assistant.
func New(d Deps, opts Options, log zerolog.Logger) *Assistant {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	a := &Assistant{
		Deps: d,
		opts: opts,
		Now:  time.Now,
		log:  log.With().Str("component", "assistant").Logger(),
	}
	a.validator = &intent.Validator{Location: opts.Location, Now: a.now}
	return a
}

func (a *Assistant) now() time.Time {
	return a.Now().In(a.opts.Location)
}

// outcome is what a turn produced, for the reply and the journal.
type outcome struct {
	reply  string
	kind   journal.Kind
	action intent.Kind
}

func say(reply string) outcome { return outcome{reply: reply, kind: journal.Turn} }

// Handle processes one message from userID and returns the reply text.
// It never fails: every error becomes a conversational reply.
func (a *Assistant) Handle(ctx context.Context, userID, text string) string {
	start := time.Now()
	text = strings.TrimSpace(text)

	out := a.turn(ctx, userID, text)
	a.record(ctx, userID, text, out)

	a.log.Info().
		Str("user_id", userID).
		Str("kind", string(out.kind)).
		Str("action", string(out.action)).
		Dur("duration", time.Since(start)).
		Msg("turn handled")
	return out.reply
}

func (a *Assistant) turn(ctx context.Context, userID, text string) outcome {
	if text == "" {
		return say(emptyReply)
	}
	if cmd, ok := parseCommand(text); ok {
		return a.command(ctx, cmd)
	}

	var open *session.Session
	switch res := a.Sessions.Reply(userID, text); res.Kind {
	case session.Chosen:
		return a.execute(ctx, res.Pending, res.Choice)
	case session.Narrowed:
		return outcome{reply: clarification(res.Session, a.opts.Location), kind: journal.Clarification}
	case session.GaveUp:
		return outcome{reply: gaveUpReply, kind: journal.Clarification}
	case session.Unmatched:
		open = res.Session
	}
	return a.fresh(ctx, userID, text, open)
}

// fresh handles text as a new request. open is the clarification still
// pending for the user, if any. Any envelope the model makes of the text
// supersedes it; only a reply the model could not make sense of counts as
// another clarification round.
func (a *Assistant) fresh(ctx context.Context, userID, text string, open *session.Session) outcome {
	now := a.now()
	ctxStart, ctxEnd := contextWindow(now)

	tasks, err := a.Tasks.List(ctx, task.Filter{Status: task.Pending})
	if err != nil {
		return a.failure(err)
	}
	events, err := a.Events.Between(ctx, ctxStart, ctxEnd)
	if err != nil {
		return a.failure(err)
	}
	var history []journal.Entry
	if a.Journal != nil && a.opts.HistoryTurns > 0 {
		if history, err = a.Journal.Recent(ctx, userID, a.opts.HistoryTurns); err != nil {
			a.log.Warn().Err(err).Msg("load history")
		}
	}

	// The fetch runs alongside the model call, so the model only sees
	// calendar entries already in cache.
	var known []calendar.Entry
	if a.Calendar != nil {
		if cached, ok := a.Calendar.Peek(ctxStart, ctxEnd); ok {
			known = cached.Entries
		}
	}

	var (
		env  intent.Envelope
		snap calendar.Snapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap = a.snapshot(gctx, ctxStart, ctxEnd)
		return nil
	})
	g.Go(func() error {
		mctx := gctx
		if a.opts.ModelTimeout > 0 {
			var cancel context.CancelFunc
			mctx, cancel = context.WithTimeout(gctx, a.opts.ModelTimeout)
			defer cancel()
		}
		var err error
		env, err = a.Model.Interpret(mctx, llm.Request{
			Text:     text,
			Now:      now,
			Location: a.opts.Location,
			Tasks:    tasks,
			Events:   events,
			Calendar: known,
			History:  history,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		if open != nil {
			return a.stall(userID, err)
		}
		return a.failure(err)
	}

	act, err := a.validator.Validate(env)
	var te *intent.TimeError
	if err != nil && open != nil && !errors.As(err, &te) {
		return a.stall(userID, err)
	}
	if open != nil {
		a.Sessions.Discard(userID)
	}
	if err != nil {
		return a.failure(err)
	}

	if q, ok := act.(intent.Query); ok {
		return a.query(ctx, q, snap)
	}

	t, ok := act.(intent.Targeted)
	if !ok {
		return a.execute(ctx, act, resolve.Candidate{})
	}
	pool, err := a.pool(ctx, t.Pool(), snap)
	if err != nil {
		return a.failure(err)
	}
	opts := a.opts.Resolver
	opts.Now = now
	res := resolve.Resolve(t.Target(), pool, opts)
	if res.Outcome == resolve.NoMatch && t.Pool() == intent.PendingTasks {
		// Completing something already done is reported, not treated as unknown.
		done, err := a.Tasks.List(ctx, task.Filter{Status: task.Completed})
		if err != nil {
			return a.failure(err)
		}
		if r := resolve.Resolve(t.Target(), resolve.FromTasks(done), opts); r.Outcome == resolve.Unique {
			res = r
		}
	}
	switch res.Outcome {
	case resolve.Unique:
		best, _ := res.Best()
		return a.execute(ctx, act, best)
	case resolve.Ambiguous:
		s := a.Sessions.Open(userID, referenceText(t.Target()), act, res.Candidates)
		return outcome{reply: clarification(s, a.opts.Location), kind: journal.Clarification, action: act.Kind()}
	default:
		return outcome{reply: noMatchReply(t), kind: journal.Failure, action: act.Kind()}
	}
}

// The model's context: everything from the start of this week to a week out.
func contextWindow(now time.Time) (time.Time, time.Time) {
	week := briefing.Week(now)
	end := briefing.Today(now).End.AddDate(0, 0, 7)
	if week.End.After(end) {
		end = week.End
	}
	return week.Start, end
}

func (a *Assistant) snapshot(ctx context.Context, start, end time.Time) calendar.Snapshot {
	if a.Calendar == nil {
		return calendar.Snapshot{Start: start, End: end, Err: calendar.ErrUnavailable}
	}
	snap := a.Calendar.Snapshot(ctx, start, end)
	if snap.Err != nil {
		a.log.Warn().Err(snap.Err).Bool("stale", snap.Stale).Msg("calendar snapshot unavailable")
	}
	return snap
}

func (a *Assistant) pool(ctx context.Context, p intent.Pool, snap calendar.Snapshot) ([]resolve.Candidate, error) {
	switch p {
	case intent.PendingTasks:
		ts, err := a.Tasks.List(ctx, task.Filter{Status: task.Pending})
		if err != nil {
			return nil, err
		}
		return resolve.FromTasks(ts), nil
	case intent.AllTasks:
		ts, err := a.Tasks.List(ctx, task.Filter{})
		if err != nil {
			return nil, err
		}
		return resolve.FromTasks(ts), nil
	default:
		now := a.now()
		es, err := a.Events.Upcoming(ctx, briefing.Today(now).Start.AddDate(0, 0, -7), 0)
		if err != nil {
			return nil, err
		}
		pool := resolve.FromEvents(es)
		if snap.Usable() {
			pool = append(pool, resolve.FromEntries(snap.Entries)...)
		}
		return pool, nil
	}
}

func (a *Assistant) query(ctx context.Context, q intent.Query, snap calendar.Snapshot) outcome {
	w := briefing.WindowNamed(q.Window, a.now())
	b, err := a.build(ctx, w, snap)
	if err != nil {
		return a.failure(err)
	}
	out := outcome{kind: journal.Turn, action: intent.KindQuery}
	msg := strings.TrimSpace(q.Reply())
	switch {
	case q.Window == "" && msg != "":
		out.reply = msg
		if b.CalendarIncomplete {
			out.reply += "\n\n" + calendarWarning
		}
	case msg != "":
		out.reply = msg + "\n\n" + briefing.Render(b, a.opts.Location)
	default:
		out.reply = briefing.Render(b, a.opts.Location)
	}
	return out
}

// Briefing builds the briefing for the named window, fetching the calendar.
func (a *Assistant) Briefing(ctx context.Context, window string) (briefing.Briefing, error) {
	w := briefing.WindowNamed(window, a.now())
	return a.build(ctx, w, a.snapshot(ctx, w.Start, w.End))
}

func (a *Assistant) build(ctx context.Context, w briefing.Window, snap calendar.Snapshot) (briefing.Briefing, error) {
	tasks, err := a.Tasks.List(ctx, task.Filter{Status: task.Pending})
	if err != nil {
		return briefing.Briefing{}, fmt.Errorf("list tasks: %w", err)
	}
	events, err := a.Events.Between(ctx, w.Start, w.End)
	if err != nil {
		return briefing.Briefing{}, fmt.Errorf("list events: %w", err)
	}
	return a.Briefings.Build(briefing.Input{
		Window:   w,
		Now:      a.now(),
		Tasks:    tasks,
		Events:   events,
		Snapshot: snap,
	}), nil
}

func (a *Assistant) execute(ctx context.Context, act intent.Action, target resolve.Candidate) outcome {
	if target.ReadOnly {
		return outcome{reply: readOnlyReply(target.Title), kind: journal.Failure, action: act.Kind()}
	}
	c, err := a.Executor.Execute(ctx, act, target.ID)
	if err != nil {
		out := a.failure(err)
		out.action = act.Kind()
		return out
	}
	return outcome{reply: confirmation(c, a.opts.Location), kind: journal.Mutation, action: act.Kind()}
}

// stall answers a reply that was neither a pick nor a usable request while
// a clarification is open. It uses up a round and asks again.
func (a *Assistant) stall(userID string, err error) outcome {
	a.log.Debug().Err(err).Str("user_id", userID).Msg("reply did not answer clarification")
	res := a.Sessions.Miss(userID)
	switch res.Kind {
	case session.Unmatched:
		return outcome{reply: clarification(res.Session, a.opts.Location), kind: journal.Clarification, action: res.Session.Pending.Kind()}
	case session.GaveUp:
		return outcome{reply: gaveUpReply, kind: journal.Clarification}
	default:
		// The session expired while the model was thinking.
		return a.failure(err)
	}
}

func (a *Assistant) failure(err error) outcome {
	var te *intent.TimeError
	switch {
	case errors.As(err, &te):
		a.log.Debug().Err(err).Msg("unparseable time")
	case errors.Is(err, intent.ErrMalformedEnvelope), errors.Is(err, executor.ErrReadOnlySource),
		errors.Is(err, executor.ErrInvalid):
		a.log.Warn().Err(err).Msg("turn rejected")
	default:
		a.log.Error().Err(err).Msg("turn failed")
	}
	return outcome{reply: errorReply(err), kind: journal.Failure}
}

// record appends the turn to the journal. It is best effort.
func (a *Assistant) record(ctx context.Context, userID, text string, out outcome) {
	if a.Journal == nil {
		return
	}
	_, err := a.Journal.Append(ctx, journal.Entry{
		UserID:    userID,
		Kind:      out.kind,
		UserText:  text,
		Reply:     out.reply,
		Action:    string(out.action),
		Timestamp: a.Now(),
	})
	if err != nil {
		a.log.Warn().Err(err).Str("user_id", userID).Msg("journal append failed")
	}
}

func referenceText(r intent.Reference) string {
	switch x := r.(type) {
	case intent.ByText:
		return x.Text
	case intent.ByID:
		return x.Title
	default:
		return ""
	}
}
