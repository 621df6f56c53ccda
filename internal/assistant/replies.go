package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agenda/pkg/briefing"
	"agenda/pkg/event"
	"agenda/pkg/executor"
	"agenda/pkg/intent"
	"agenda/pkg/llm"
	"agenda/pkg/session"
	"agenda/pkg/task"
)

const (
	emptyReply      = "I didn't catch anything there. What can I do for you?"
	gaveUpReply     = "I still can't tell which one you mean, so I'll drop it for now. Try again with a bit more of the name?"
	retryLaterReply = "I'm having trouble thinking right now. Try again in a moment?"
	malformedReply  = "Sorry, I had trouble processing that. Could you say it another way?"
	genericReply    = "Something went wrong on my end. Try again?"
	calendarWarning = "(I couldn't reach your calendar just now, so calendar events may be missing.)"
)

func errorReply(err error) string {
	var te *intent.TimeError
	switch {
	case errors.As(err, &te):
		return fmt.Sprintf("I couldn't understand the time for %s. Could you give it again, like \"Friday at 3pm\"?", fieldName(te.Field))
	case errors.Is(err, intent.ErrMalformedEnvelope):
		return malformedReply
	case errors.Is(err, llm.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return retryLaterReply
	case errors.Is(err, executor.ErrReadOnlySource):
		return readOnlyReply("")
	case errors.Is(err, executor.ErrInvalid):
		return "That change doesn't add up (an event can't end before it starts, for example), so I left everything as it was."
	case errors.Is(err, task.ErrNotFound), errors.Is(err, event.ErrNotFound):
		return "I couldn't find that one anymore. It may have just been removed."
	default:
		return genericReply
	}
}

func fieldName(field string) string {
	field = strings.TrimPrefix(field, "new_")
	switch field {
	case "start_time":
		return "the start"
	case "end_time":
		return "the end"
	default:
		return "the " + field
	}
}

func readOnlyReply(title string) string {
	if title == "" {
		return "That one lives in your Google Calendar, so I can't change it from here. You can edit it in the calendar app."
	}
	return fmt.Sprintf("%q lives in your Google Calendar, so I can't change it from here. You can edit it in the calendar app.", title)
}

func noMatchReply(t intent.Targeted) string {
	ref := referenceText(t.Target())
	what := "task"
	if t.Pool() == intent.Events {
		what = "event"
	}
	if ref == "" {
		return fmt.Sprintf("I couldn't find that %s.", what)
	}
	return fmt.Sprintf("I couldn't find a %s matching %q. Want me to create it?", what, ref)
}

// clarification asks the user to pick one of the session's candidates.
func clarification(s *session.Session, loc *time.Location) string {
	var sb strings.Builder
	if s.Reference != "" {
		fmt.Fprintf(&sb, "Which one did you mean by %q?\n", s.Reference)
	} else {
		sb.WriteString("Which one did you mean?\n")
	}
	for i, c := range s.Candidates {
		fmt.Fprintf(&sb, "%d. %s", i+1, c.Title)
		if !c.When.IsZero() {
			fmt.Fprintf(&sb, " (%s)", briefing.FormatWhen(c.When.In(loc)))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Reply with a number or a bit more of the name.")
	return sb.String()
}

func confirmation(c executor.Confirmation, loc *time.Location) string {
	when := briefing.FormatWhen(c.When.In(loc))
	switch c.Kind {
	case intent.KindAddTask:
		return fmt.Sprintf("Added %q, due %s.", c.Title, when)
	case intent.KindAddEvent:
		msg := fmt.Sprintf("Added %q on %s", c.Title, when)
		if c.Event != nil && c.Event.Location != "" {
			msg += " at " + c.Event.Location
		}
		return msg + "."
	case intent.KindCompleteTask:
		if c.AlreadyDone {
			return fmt.Sprintf("%q was already marked done.", c.Title)
		}
		return fmt.Sprintf("Nice, marked %q as done.", c.Title)
	case intent.KindDeleteTask, intent.KindDeleteEvent:
		return fmt.Sprintf("Deleted %q.", c.Title)
	case intent.KindModifyTask:
		msg := fmt.Sprintf("Updated %q: due %s", c.Title, when)
		if c.Task != nil {
			msg += fmt.Sprintf(", %s priority", c.Task.Priority)
		}
		return msg + "."
	case intent.KindModifyEvent:
		msg := fmt.Sprintf("Updated %q: %s", c.Title, when)
		if c.Event != nil && c.Event.Location != "" {
			msg += " at " + c.Event.Location
		}
		return msg + "."
	default:
		return "Done."
	}
}
