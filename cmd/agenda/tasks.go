package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"agenda/pkg/briefing"
	"agenda/pkg/task"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tracked tasks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")

		ts, err := a.tasks.List(ctx, task.Filter{Status: task.Status(status), Limit: limit})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if format == "json" {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(ts)
		}
		for _, t := range ts {
			fmt.Fprintf(out, "%s  %-9s  %-6s  %s  %s\n",
				shortID(t.ID), t.Status, t.Priority,
				briefing.FormatWhen(t.Deadline.In(a.loc)), t.Title)
		}
		return nil
	},
}

func init() {
	tasksCmd.Flags().String("status", "pending", "Filter by status (pending, completed, or empty for all)")
	tasksCmd.Flags().Int("limit", 50, "Maximum tasks to list")
	tasksCmd.Flags().String("format", "short", "Output format (short or json)")
}

// shortID trims a UUID to its random tail, which is enough to tell tasks
// apart on screen.
func shortID(id string) string {
	if i := strings.LastIndexByte(id, '-'); i >= 0 && len(id)-i > 8 {
		return id[len(id)-8:]
	}
	return id
}
