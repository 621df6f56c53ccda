package llm

import (
	"fmt"
	"strings"
	"time"

	"agenda/pkg/briefing"
	"agenda/pkg/calendar"
	"agenda/pkg/event"
	"agenda/pkg/task"
)

const systemPrompt = `You are a personal task and calendar assistant. You talk to one user over text messages.

You never change anything yourself. You answer with a single JSON object and nothing else:
{"action": "<ACTION>", "params": {...}, "message": "short conversational reply"}

Actions and their params:
ADD_TASK       {"title": str, "deadline": ISO-8601, "priority": "low"|"medium"|"high", "description": str, "effort": minutes}
ADD_EVENT      {"title": str, "start_time": ISO-8601, "end_time": ISO-8601, "location": str, "description": str}
COMPLETE_TASK  {"task_id": id, "task_title": str}
DELETE_TASK    {"id": id, "title": str}
DELETE_EVENT   {"id": id, "title": str}
MODIFY_TASK    {"task_id": id, "task_title": str, "new_title": str, "new_deadline": ISO-8601, "new_priority": str, "new_description": str, "new_effort": minutes}
MODIFY_EVENT   {"event_id": id, "event_title": str, "new_title": str, "new_start_time": ISO-8601, "new_end_time": ISO-8601, "new_location": str, "new_description": str}
QUERY          {"window": "today"|"tomorrow"|"week"|"morning"|"afternoon"|"evening"}

Rules:
- Only title, start_time (ADD_EVENT) and one of id/title for existing items are required. Leave out anything the user did not say.
- When the user names an existing item loosely ("the pset", "my meeting"), pass their words as the title; do not pick between similar items yourself.
- Resolve relative times ("tomorrow", "Friday at 3") against the current time below and write them as ISO-8601 with the user's UTC offset.
- A task with no time is due at 23:59 that day. An event with no end lasts one hour.
- When moving an event that has an end, send new_end_time too so the event keeps its length ("move my 2-3pm meeting to 4pm" means 16:00 to 17:00).
- Use QUERY for questions and small talk.
- Keep "message" short and friendly. Never mention ids.`

// BuildPrompt renders the full prompt for one user message.
func BuildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n\n---\n\n")

	now := req.Now.In(req.Location)
	fmt.Fprintf(&sb, "Current time: %s (%s, %s)\n", briefing.FormatWhen(now), now.Format(time.RFC3339), req.Location)

	sb.WriteString("\nCalendar events (read-only):\n")
	writeEntries(&sb, req.Calendar, req.Location)
	sb.WriteString("\nEvents:\n")
	writeEvents(&sb, req.Events, req.Location)
	sb.WriteString("\nPending tasks:\n")
	writeTasks(&sb, req.Tasks, req.Location)

	if len(req.History) > 0 {
		sb.WriteString("\nRecent conversation:\n")
		for _, h := range req.History {
			fmt.Fprintf(&sb, "user: %s\nassistant: %s\n", h.UserText, h.Reply)
		}
	}

	fmt.Fprintf(&sb, "\nUser message:\n%s\n", req.Text)
	return sb.String()
}

func writeTasks(sb *strings.Builder, ts []task.Task, loc *time.Location) {
	if len(ts) == 0 {
		sb.WriteString("(none)\n")
		return
	}
	for _, t := range ts {
		fmt.Fprintf(sb, "- [%s] %s (due %s, %s priority)\n", t.ID, t.Title, briefing.FormatWhen(t.Deadline.In(loc)), t.Priority)
	}
}

func writeEvents(sb *strings.Builder, es []event.Event, loc *time.Location) {
	if len(es) == 0 {
		sb.WriteString("(none)\n")
		return
	}
	for _, e := range es {
		fmt.Fprintf(sb, "- [%s] %s (%s", e.ID, e.Title, briefing.FormatWhen(e.Start.In(loc)))
		if e.Location != "" {
			fmt.Fprintf(sb, " at %s", e.Location)
		}
		sb.WriteString(")\n")
	}
}

func writeEntries(sb *strings.Builder, es []calendar.Entry, loc *time.Location) {
	if len(es) == 0 {
		sb.WriteString("(none)\n")
		return
	}
	for _, e := range es {
		fmt.Fprintf(sb, "- %s (%s) [gcal]\n", e.Title, briefing.FormatWhen(e.Start.In(loc)))
	}
}
