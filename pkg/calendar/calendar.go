// Package calendar reads the user's external calendar as a read-only
// snapshot. Nothing here ever writes to the calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrUnavailable means the calendar could not be read in time.
var ErrUnavailable = errors.New("calendar unavailable")

// Entry is one calendar item as seen through the snapshot.
type Entry struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Start       time.Time  `json:"start"`
	End         *time.Time `json:"end,omitempty"`
	Location    string     `json:"location,omitempty"`
	AllDay      bool       `json:"all_day,omitempty"`
}

// Snapshot is the calendar's content for [Start, End) at FetchedAt.
// When Available is false Entries is empty and Err says why.
type Snapshot struct {
	Entries   []Entry   `json:"entries"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	FetchedAt time.Time `json:"fetched_at"`
	Available bool      `json:"available"`
	// Stale is set when an older copy existed but could not be refreshed.
	Stale bool  `json:"stale,omitempty"`
	Err   error `json:"-"`
}

// Usable reports whether the entries can be shown as the current calendar.
func (s Snapshot) Usable() bool {
	return s.Available && !s.Stale
}

// Provider lists calendar entries starting in [start, end).
type Provider interface {
	Entries(ctx context.Context, start, end time.Time) ([]Entry, error)
}

// Fetch reads a snapshot from p, giving up after timeout. It never fails:
// any error yields an unavailable snapshot.
func Fetch(ctx context.Context, p Provider, start, end time.Time, timeout time.Duration) Snapshot {
	snap := Snapshot{Start: start, End: end, FetchedAt: time.Now()}
	if p == nil {
		snap.Err = fmt.Errorf("no provider configured: %w", ErrUnavailable)
		return snap
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	entries, err := p.Entries(ctx, start, end)
	if err == nil {
		// Providers that ignore ctx are still bounded by the caller's view of time.
		err = ctx.Err()
	}
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		snap.Err = err
		return snap
	}
	sortEntries(entries)
	snap.Entries = entries
	snap.Available = true
	return snap
}

func sortEntries(es []Entry) {
	sort.SliceStable(es, func(i, j int) bool {
		if !es[i].Start.Equal(es[j].Start) {
			return es[i].Start.Before(es[j].Start)
		}
		if es[i].Title != es[j].Title {
			return es[i].Title < es[j].Title
		}
		return es[i].ID < es[j].ID
	})
}
