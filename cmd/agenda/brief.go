package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"agenda/pkg/briefing"
)

var briefCmd = &cobra.Command{
	Use:       "brief [today|tomorrow|week|morning|afternoon|evening]",
	Short:     "Print a briefing",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"today", "tomorrow", "week", "morning", "afternoon", "evening"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		as, _, err := a.assistant(ctx)
		if err != nil {
			return err
		}

		window := "today"
		if len(args) == 1 {
			window = args[0]
		}
		b, err := as.Briefing(ctx, window)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), briefing.Render(b, a.loc))
		return nil
	},
}
