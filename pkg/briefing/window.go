package briefing

import (
	"fmt"
	"strings"
	"time"
)

// Window is a named half-open interval [Start, End).
type Window struct {
	Name  string
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls in the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func midnight(t time.Time) time.Time {
	return atHour(t, 0)
}

// atHour is the given wall-clock hour on t's day, in t's location.
func atHour(t time.Time, hour int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, t.Location())
}

// Today is the calendar day containing now.
func Today(now time.Time) Window {
	start := midnight(now)
	return Window{Name: "today", Start: start, End: start.AddDate(0, 0, 1)}
}

// Tomorrow is the calendar day after now.
func Tomorrow(now time.Time) Window {
	start := midnight(now).AddDate(0, 0, 1)
	return Window{Name: "tomorrow", Start: start, End: start.AddDate(0, 0, 1)}
}

// Week runs from Monday 00:00 of now's week to the next Monday.
func Week(now time.Time) Window {
	offset := (int(now.Weekday()) + 6) % 7
	start := midnight(now).AddDate(0, 0, -offset)
	return Window{Name: "week", Start: start, End: start.AddDate(0, 0, 7)}
}

var dayParts = map[string][2]int{
	"morning":   {6, 12},
	"afternoon": {12, 18},
	"evening":   {18, 23},
}

// DayPart is the morning, afternoon or evening of now's day.
func DayPart(now time.Time, part string) (Window, error) {
	hours, ok := dayParts[part]
	if !ok {
		return Window{}, fmt.Errorf("unknown part of day %q", part)
	}
	return Window{Name: part, Start: atHour(now, hours[0]), End: atHour(now, hours[1])}, nil
}

// WindowNamed maps a query window name to its interval. An empty or unknown
// name means today.
func WindowNamed(name string, now time.Time) Window {
	switch name = strings.ToLower(strings.TrimSpace(name)); name {
	case "tomorrow":
		return Tomorrow(now)
	case "week":
		return Week(now)
	case "morning", "afternoon", "evening":
		w, _ := DayPart(now, name)
		return w
	default:
		return Today(now)
	}
}
