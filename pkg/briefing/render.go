package briefing

import (
	"fmt"
	"strings"
	"time"

	"agenda/pkg/event"
)

// FormatWhen renders t like "Thu Jan 18 at 2pm" or "Thu Jan 18 at 2:30pm".
func FormatWhen(t time.Time) string {
	return t.Format("Mon Jan 2") + " at " + FormatClock(t)
}

// FormatClock renders the time of day like "2pm" or "2:30pm".
func FormatClock(t time.Time) string {
	if t.Minute() == 0 {
		return t.Format("3pm")
	}
	return t.Format("3:04pm")
}

// Render turns a briefing into the conversational text sent to the user.
// Times are shown in loc.
func Render(b Briefing, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString(heading(b.Window.In(loc)))
	sb.WriteString("\n")
	if b.CalendarIncomplete {
		sb.WriteString("(I couldn't reach your calendar just now, so this only shows what I'm tracking.)\n")
	}
	sb.WriteString("\n")

	if len(b.Scheduled) == 0 {
		fmt.Fprintf(&sb, "Nothing scheduled %s.\n", phrase(b.Window.Name))
	} else {
		for _, it := range b.Scheduled {
			sb.WriteString("- ")
			sb.WriteString(it.Title)
			if it.AllDay {
				sb.WriteString(" (all day)")
			} else {
				sb.WriteString(" - ")
				sb.WriteString(FormatWhen(it.Start.In(loc)))
			}
			if it.Location != "" {
				sb.WriteString(" at ")
				sb.WriteString(it.Location)
			}
			if it.Source == event.Calendar {
				sb.WriteString(" [gcal]")
			}
			sb.WriteString("\n")
		}
	}

	if len(b.Overdue) > 0 {
		sb.WriteString("\nOverdue:\n")
		for _, t := range b.Overdue {
			fmt.Fprintf(&sb, "  - %s (was due %s)\n", t.Title, FormatWhen(t.Deadline.In(loc)))
		}
	}

	sb.WriteString("\n")
	if len(b.Due) == 0 {
		fmt.Fprintf(&sb, "No tasks due %s.\n", phrase(b.Window.Name))
	} else {
		fmt.Fprintf(&sb, "Due %s:\n", phrase(b.Window.Name))
		for _, t := range b.Due {
			fmt.Fprintf(&sb, "  - %s (by %s)\n", t.Title, FormatWhen(t.Deadline.In(loc)))
		}
	}

	if len(b.Upcoming) > 0 {
		sb.WriteString("\nComing up:\n")
		for _, r := range b.Upcoming {
			fmt.Fprintf(&sb, "  - %s (%s)\n", r.Task.Title, FormatWhen(r.Task.Deadline.In(loc)))
		}
	}

	if len(b.Suggestions) > 0 {
		sb.WriteString("\nFree time:\n")
		for _, s := range b.Suggestions {
			start, end := s.Start.In(loc), s.End.In(loc)
			fmt.Fprintf(&sb, "  - %s to %s could go to %s\n", FormatWhen(start), FormatClock(end), s.Task.Title)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// In returns w with its bounds in loc.
func (w Window) In(loc *time.Location) Window {
	if loc == nil {
		return w
	}
	return Window{Name: w.Name, Start: w.Start.In(loc), End: w.End.In(loc)}
}

func heading(w Window) string {
	switch w.Name {
	case "week":
		last := w.End.AddDate(0, 0, -1)
		return fmt.Sprintf("This week (%s - %s):", w.Start.Format("Jan 2"), last.Format("Jan 2"))
	case "tomorrow":
		return fmt.Sprintf("Tomorrow (%s):", w.Start.Format("Monday Jan 2"))
	case "morning", "afternoon", "evening":
		return fmt.Sprintf("This %s (%s):", w.Name, w.Start.Format("Monday Jan 2"))
	default:
		return fmt.Sprintf("Today (%s):", w.Start.Format("Monday Jan 2"))
	}
}

func phrase(name string) string {
	switch name {
	case "week":
		return "this week"
	case "tomorrow":
		return "tomorrow"
	case "morning", "afternoon", "evening":
		return "this " + name
	default:
		return "today"
	}
}
