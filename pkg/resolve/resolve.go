// Package resolve maps a reference from the user ("the math pset", "meeting")
// to the stored entity it most plausibly names, or reports that it cannot
// decide.
package resolve

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"

	"agenda/pkg/calendar"
	"agenda/pkg/event"
	"agenda/pkg/intent"
	"agenda/pkg/task"
)

// EntityKind says what a candidate points at.
type EntityKind string

const (
	TaskEntity  EntityKind = "task"
	EventEntity EntityKind = "event"
)

// Candidate is one entity that might be the target of a reference.
type Candidate struct {
	ID    string     `json:"id"`
	Kind  EntityKind `json:"kind"`
	Title string     `json:"title"`
	// When is the deadline for tasks and the start for events.
	When      time.Time `json:"when"`
	CreatedAt time.Time `json:"created_at"`
	ReadOnly  bool      `json:"read_only,omitempty"`
	Score     float64   `json:"score"`
}

// FromTasks converts tasks into candidates.
func FromTasks(ts []task.Task) []Candidate {
	out := make([]Candidate, 0, len(ts))
	for _, t := range ts {
		out = append(out, Candidate{
			ID: t.ID, Kind: TaskEntity, Title: t.Title,
			When: t.Deadline, CreatedAt: t.CreatedAt,
		})
	}
	return out
}

// FromEvents converts events into candidates.
func FromEvents(es []event.Event) []Candidate {
	out := make([]Candidate, 0, len(es))
	for _, e := range es {
		out = append(out, Candidate{
			ID: e.ID, Kind: EventEntity, Title: e.Title,
			When: e.Start, CreatedAt: e.CreatedAt, ReadOnly: e.ReadOnly(),
		})
	}
	return out
}

// FromEntries converts calendar snapshot entries into read-only candidates.
func FromEntries(es []calendar.Entry) []Candidate {
	out := make([]Candidate, 0, len(es))
	for _, e := range es {
		out = append(out, Candidate{
			ID: e.ID, Kind: EventEntity, Title: e.Title,
			When: e.Start, ReadOnly: true,
		})
	}
	return out
}

// Options tune classification.
type Options struct {
	// Threshold is the minimum score a candidate needs to count as a match.
	Threshold float64
	// Margin is how far the runner-up must trail the best match for the
	// best one to be taken without asking.
	Margin        float64
	MaxCandidates int
	Now           time.Time
}

// DefaultOptions returns the tuning used when nothing is configured.
func DefaultOptions(now time.Time) Options {
	return Options{Threshold: 0.35, Margin: 0.1, MaxCandidates: 5, Now: now}
}

// Outcome is the classification of a resolution.
type Outcome int

const (
	NoMatch Outcome = iota
	Unique
	Ambiguous
)

func (o Outcome) String() string {
	switch o {
	case Unique:
		return "unique"
	case Ambiguous:
		return "ambiguous"
	default:
		return "no_match"
	}
}

// Result is what Resolve decided. Candidates holds the single winner for
// Unique, the ranked choices for Ambiguous and nothing for NoMatch.
type Result struct {
	Outcome    Outcome
	Candidates []Candidate
}

// Best returns the winning candidate of a Unique result.
func (r Result) Best() (Candidate, bool) {
	if r.Outcome != Unique || len(r.Candidates) == 0 {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}

// Resolve finds the entity in pool that ref names. It does not modify pool.
func Resolve(ref intent.Reference, pool []Candidate, opts Options) Result {
	switch r := ref.(type) {
	case intent.ByID:
		for _, c := range pool {
			if c.ID == r.ID {
				c.Score = 1
				return Result{Outcome: Unique, Candidates: []Candidate{c}}
			}
		}
		if r.Title != "" {
			return resolveText(r.Title, pool, opts)
		}
		return Result{Outcome: NoMatch}
	case intent.ByText:
		return resolveText(r.Text, pool, opts)
	default:
		return Result{Outcome: NoMatch}
	}
}

func resolveText(fragment string, pool []Candidate, opts Options) Result {
	scored := make([]Candidate, 0, len(pool))
	for _, c := range pool {
		c.Score = Score(fragment, c.Title)
		scored = append(scored, c)
	}
	Rank(scored, opts.Now)
	return Classify(scored, opts)
}

// Rank orders candidates by score, then nearer When, then newer CreatedAt,
// then id, so the same input always yields the same order.
func Rank(cs []Candidate, now time.Time) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		da, db := distance(a.When, now), distance(b.When, now)
		if da != db {
			return da < db
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func distance(t, now time.Time) time.Duration {
	d := t.Sub(now)
	if d < 0 {
		return -d
	}
	return d
}

// Classify decides the outcome for candidates already ranked by Rank.
func Classify(ranked []Candidate, opts Options) Result {
	var matches []Candidate
	for _, c := range ranked {
		if c.Score >= opts.Threshold {
			matches = append(matches, c)
		}
	}
	switch {
	case len(matches) == 0:
		return Result{Outcome: NoMatch}
	case len(matches) == 1 || matches[0].Score-matches[1].Score > opts.Margin:
		return Result{Outcome: Unique, Candidates: matches[:1]}
	}

	top := matches[0].Score
	var near []Candidate
	for _, c := range matches {
		if top-c.Score > opts.Margin {
			break
		}
		near = append(near, c)
	}
	if opts.MaxCandidates > 0 && len(near) > opts.MaxCandidates {
		near = near[:opts.MaxCandidates]
	}
	return Result{Outcome: Ambiguous, Candidates: near}
}

// Scores for the match tiers. Containment always beats token overlap.
const (
	scoreExact    = 1.0
	scorePrefix   = 0.95
	scoreWord     = 0.9
	scoreMidWord  = 0.85
	overlapWeight = 0.8
)

var stopwords = map[string]bool{"the": true, "a": true, "an": true, "my": true}

// Score rates how well fragment names title, in [0, 1].
func Score(fragment, title string) float64 {
	fold := cases.Fold()
	f := normalize(fold.String(fragment))
	t := normalize(fold.String(title))
	if f == "" || t == "" {
		return 0
	}
	if s := containment(f, t); s > 0 {
		return s
	}

	ftoks := tokens(f)
	if trimmed := dropStopwords(ftoks); len(trimmed) > 0 {
		ftoks = trimmed
		if s := containment(strings.Join(trimmed, " "), t); s > 0 {
			return s
		}
	}
	if len(ftoks) == 0 {
		return 0
	}
	have := make(map[string]bool)
	for _, tok := range tokens(t) {
		have[tok] = true
	}
	shared := 0
	for _, tok := range ftoks {
		if have[tok] {
			shared++
		}
	}
	return overlapWeight * float64(shared) / float64(len(ftoks))
}

func containment(f, t string) float64 {
	switch {
	case f == t:
		return scoreExact
	case strings.HasPrefix(t, f):
		return scorePrefix
	}
	idx := strings.Index(t, f)
	if idx < 0 {
		return 0
	}
	for idx >= 0 {
		if boundary(t, idx, idx+len(f)) {
			return scoreWord
		}
		next := strings.Index(t[idx+1:], f)
		if next < 0 {
			break
		}
		idx += 1 + next
	}
	return scoreMidWord
}

func boundary(s string, start, end int) bool {
	before := start == 0 || !isWordRune(rune(s[start-1]))
	after := end == len(s) || !isWordRune(rune(s[end]))
	return before && after
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r >= 0x80
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func tokens(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

func dropStopwords(toks []string) []string {
	var out []string
	for _, tok := range toks {
		if !stopwords[tok] {
			out = append(out, tok)
		}
	}
	return out
}
