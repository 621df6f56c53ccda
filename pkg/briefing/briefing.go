// Package briefing merges the external calendar and the local task and event
// stores into a time-ordered summary with suggestions for free time.
// Build is pure: the same input always produces the same briefing.
package briefing

import (
	"math"
	"sort"
	"time"

	"agenda/pkg/calendar"
	"agenda/pkg/event"
	"agenda/pkg/task"
)

// Config tunes the synthesizer.
type Config struct {
	// MinGap is the shortest free stretch worth suggesting.
	MinGap time.Duration
	// WakeStart and WakeEnd bound waking hours, as hours of the day.
	WakeStart int
	WakeEnd   int
	// Lookahead is how far past the window Upcoming looks.
	Lookahead time.Duration
	// DefaultEventDuration is assumed for items without an end.
	DefaultEventDuration time.Duration
	MaxUpcoming          int
	PriorityWeight       float64
	EffortWeight         float64
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		MinGap:               2 * time.Hour,
		WakeStart:            8,
		WakeEnd:              22,
		Lookahead:            48 * time.Hour,
		DefaultEventDuration: time.Hour,
		MaxUpcoming:          5,
		PriorityWeight:       1,
		EffortWeight:         0.5,
	}
}

// Input is everything a briefing is built from.
type Input struct {
	Window Window
	Now    time.Time
	// Tasks are the pending tasks; completed ones are ignored.
	Tasks []task.Task
	// Events are locally stored events; calendar mirrors are ignored since
	// the snapshot is authoritative for them.
	Events   []event.Event
	Snapshot calendar.Snapshot
}

// Item is one scheduled entry on the merged timeline.
type Item struct {
	ID       string
	Title    string
	Start    time.Time
	End      *time.Time
	Location string
	Source   event.Source
	AllDay   bool
}

// Ranked is a task with its urgency score.
type Ranked struct {
	Task    task.Task
	Urgency float64
}

// Suggestion pairs a free stretch with the task worth spending it on.
type Suggestion struct {
	Start time.Time
	End   time.Time
	Task  task.Task
}

// Briefing is the synthesized summary for one window.
type Briefing struct {
	Window    Window
	Now       time.Time
	Scheduled []Item
	// Overdue lists pending tasks whose deadline passed before the window.
	Overdue     []task.Task
	Due         []task.Task
	Upcoming    []Ranked
	Suggestions []Suggestion
	// CalendarIncomplete is set when the calendar could not be freshly read;
	// Scheduled then holds local events only.
	CalendarIncomplete bool
}

// Synthesizer builds briefings.
type Synthesizer struct {
	Config Config
}

// New creates a Synthesizer.
func New(cfg Config) *Synthesizer {
	return &Synthesizer{Config: cfg}
}

// Build assembles the briefing for in.Window.
func (s *Synthesizer) Build(in Input) Briefing {
	b := Briefing{
		Window:             in.Window,
		Now:                in.Now,
		CalendarIncomplete: !in.Snapshot.Usable(),
	}
	b.Scheduled = s.scheduled(in, !b.CalendarIncomplete)

	pending := make([]task.Task, 0, len(in.Tasks))
	for _, t := range in.Tasks {
		if t.Status == task.Pending {
			pending = append(pending, t)
		}
	}

	upcomingEnd := in.Window.End.Add(s.Config.Lookahead)
	var upcoming []task.Task
	for _, t := range pending {
		switch {
		case in.Window.Contains(t.Deadline):
			b.Due = append(b.Due, t)
		case t.Deadline.Before(in.Window.Start) && t.Deadline.Before(in.Now):
			b.Overdue = append(b.Overdue, t)
		case !t.Deadline.Before(in.Window.End) && t.Deadline.Before(upcomingEnd):
			upcoming = append(upcoming, t)
		}
	}
	sortByDeadline(b.Overdue)
	sortByDeadline(b.Due)

	b.Upcoming = s.rank(upcoming, in.Now)
	if s.Config.MaxUpcoming > 0 && len(b.Upcoming) > s.Config.MaxUpcoming {
		b.Upcoming = b.Upcoming[:s.Config.MaxUpcoming]
	}

	b.Suggestions = s.suggest(b.Scheduled, s.rank(pending, in.Now), in)
	return b
}

func (s *Synthesizer) scheduled(in Input, withCalendar bool) []Item {
	var items []Item
	if withCalendar {
		for _, e := range in.Snapshot.Entries {
			if !in.Window.Contains(e.Start) {
				continue
			}
			items = append(items, Item{
				ID: e.ID, Title: e.Title, Start: e.Start, End: e.End,
				Location: e.Location, Source: event.Calendar, AllDay: e.AllDay,
			})
		}
	}
	for _, e := range in.Events {
		if e.Source != event.Local || !in.Window.Contains(e.Start) {
			continue
		}
		items = append(items, Item{
			ID: e.ID, Title: e.Title, Start: e.Start, End: e.End,
			Location: e.Location, Source: event.Local,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID < b.ID
	})
	return items
}

// Urgency scores a pending task at now: heavier priority, more effort and
// a closer deadline all raise it. Overdue tasks get the full deadline term.
func (s *Synthesizer) Urgency(t task.Task, now time.Time) float64 {
	hoursLeft := math.Max(t.Deadline.Sub(now).Hours(), 1)
	return s.Config.PriorityWeight*t.Priority.Weight() +
		s.Config.EffortWeight*t.Effort.Hours() +
		s.Config.Lookahead.Hours()/hoursLeft
}

func (s *Synthesizer) rank(ts []task.Task, now time.Time) []Ranked {
	out := make([]Ranked, 0, len(ts))
	for _, t := range ts {
		out = append(out, Ranked{Task: t, Urgency: s.Urgency(t, now)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Urgency != b.Urgency {
			return a.Urgency > b.Urgency
		}
		if !a.Task.Deadline.Equal(b.Task.Deadline) {
			return a.Task.Deadline.Before(b.Task.Deadline)
		}
		return a.Task.ID < b.Task.ID
	})
	return out
}

type span struct {
	start, end time.Time
}

// suggest walks the waking hours of each day in the window and pairs every
// gap of at least MinGap with the most urgent unsuggested task still due
// after the gap opens.
func (s *Synthesizer) suggest(items []Item, ranked []Ranked, in Input) []Suggestion {
	if s.Config.MinGap <= 0 {
		return nil
	}
	busy := s.busy(items)
	used := make(map[string]bool)
	var out []Suggestion

	from := in.Window.Start
	if in.Now.After(from) {
		from = in.Now
	}
	for day := midnight(in.Window.Start); day.Before(in.Window.End); day = day.AddDate(0, 0, 1) {
		wake := span{start: atHour(day, s.Config.WakeStart), end: atHour(day, s.Config.WakeEnd)}
		if wake.start.Before(from) {
			wake.start = from
		}
		if wake.end.After(in.Window.End) {
			wake.end = in.Window.End
		}
		for _, gap := range gaps(wake, busy, s.Config.MinGap) {
			for _, r := range ranked {
				if used[r.Task.ID] || !r.Task.Deadline.After(gap.start) {
					continue
				}
				used[r.Task.ID] = true
				out = append(out, Suggestion{Start: gap.start, End: gap.end, Task: r.Task})
				break
			}
		}
	}
	return out
}

// busy returns the merged occupied spans of timed items.
func (s *Synthesizer) busy(items []Item) []span {
	var spans []span
	for _, it := range items {
		if it.AllDay {
			continue
		}
		end := it.Start.Add(s.Config.DefaultEventDuration)
		if it.End != nil {
			end = *it.End
		}
		spans = append(spans, span{start: it.Start, end: end})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start.Before(spans[j].start) })

	var merged []span
	for _, sp := range spans {
		if n := len(merged); n > 0 && !sp.start.After(merged[n-1].end) {
			if sp.end.After(merged[n-1].end) {
				merged[n-1].end = sp.end
			}
			continue
		}
		merged = append(merged, sp)
	}
	return merged
}

// gaps returns the free stretches of at least min inside within.
func gaps(within span, busy []span, min time.Duration) []span {
	var out []span
	if !within.end.After(within.start) {
		return nil
	}
	cursor := within.start
	for _, b := range busy {
		if !b.end.After(cursor) {
			continue
		}
		if !b.start.Before(within.end) {
			break
		}
		if b.start.After(cursor) && b.start.Sub(cursor) >= min {
			out = append(out, span{start: cursor, end: b.start})
		}
		if b.end.After(cursor) {
			cursor = b.end
		}
	}
	if within.end.Sub(cursor) >= min {
		out = append(out, span{start: cursor, end: within.end})
	}
	return out
}

func sortByDeadline(ts []task.Task) {
	sort.SliceStable(ts, func(i, j int) bool {
		a, b := ts[i], ts[j]
		if !a.Deadline.Equal(b.Deadline) {
			return a.Deadline.Before(b.Deadline)
		}
		if a.Priority.Weight() != b.Priority.Weight() {
			return a.Priority.Weight() > b.Priority.Weight()
		}
		return a.ID < b.ID
	})
}
