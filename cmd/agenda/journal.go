package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the conversation journal",
}

var journalVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the journal hash chain",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.journal.VerifyChain(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "journal chain OK")
		return nil
	},
}

var journalRecentCmd = &cobra.Command{
	Use:   "recent <user-id>",
	Short: "Show the most recent turns of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := a.journal.Recent(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, e := range entries {
			fmt.Fprintf(out, "%s  %-13s %-14s %q -> %q\n",
				e.Timestamp.In(a.loc).Format("2006-01-02 15:04"), e.Kind, e.Action, e.UserText, e.Reply)
		}
		return nil
	},
}

func init() {
	journalRecentCmd.Flags().Int("limit", 20, "Maximum turns to show")
	journalCmd.AddCommand(journalVerifyCmd)
	journalCmd.AddCommand(journalRecentCmd)
}
