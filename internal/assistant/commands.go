package assistant

import (
	"context"
	"fmt"
	"strings"

	"agenda/pkg/briefing"
	"agenda/pkg/journal"
	"agenda/pkg/task"
)

type command string

const (
	cmdStart    command = "start"
	cmdHelp     command = "help"
	cmdToday    command = "today"
	cmdTomorrow command = "tomorrow"
	cmdWeek     command = "week"
	cmdTasks    command = "tasks"
)

// parseCommand recognizes slash commands and the bare shortcuts "today",
// "week" and "tasks".
func parseCommand(text string) (command, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	slash := strings.HasPrefix(t, "/")
	t = strings.TrimPrefix(t, "/")
	// Telegram-style "/today@botname".
	if i := strings.IndexByte(t, '@'); slash && i >= 0 {
		t = t[:i]
	}
	switch c := command(t); c {
	case cmdToday, cmdWeek, cmdTasks:
		return c, true
	case cmdStart, cmdHelp, cmdTomorrow:
		return c, slash
	}
	return "", false
}

const helpText = `Just text me like you would a friend. For example:
- "Finish math pset by Thursday 5pm, high priority"
- "Study group meeting tomorrow at 3 in the library"
- "Done with the pset"
- "Move my advisor meeting to Friday at 2"
- "What's on this week?"

Shortcuts: /today, /tomorrow, /week, /tasks`

func (a *Assistant) command(ctx context.Context, c command) outcome {
	switch c {
	case cmdStart:
		return outcome{reply: "Hi! I keep track of your tasks and schedule.\n\n" + helpText, kind: journal.Turn}
	case cmdHelp:
		return outcome{reply: helpText, kind: journal.Turn}
	case cmdTasks:
		return a.listTasks(ctx)
	default:
		b, err := a.Briefing(ctx, string(c))
		if err != nil {
			return a.failure(err)
		}
		return outcome{reply: briefing.Render(b, a.opts.Location), kind: journal.Turn}
	}
}

func (a *Assistant) listTasks(ctx context.Context) outcome {
	ts, err := a.Tasks.List(ctx, task.Filter{Status: task.Pending})
	if err != nil {
		return a.failure(err)
	}
	if len(ts) == 0 {
		return say("No pending tasks. Nice!")
	}
	var sb strings.Builder
	sb.WriteString("Pending tasks:\n")
	for _, t := range ts {
		fmt.Fprintf(&sb, "- %s (%s", t.Title, briefing.FormatWhen(t.Deadline.In(a.opts.Location)))
		if t.Priority == task.High {
			sb.WriteString(", high priority")
		}
		sb.WriteString(")\n")
	}
	return say(strings.TrimRight(sb.String(), "\n"))
}
