package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agenda",
	Short: "Conversational task and schedule assistant",
	Long: `agenda keeps track of tasks and events through plain conversation.

Messages are interpreted by a language model, validated, matched against
what is already tracked and applied. Briefings merge the local schedule
with a read-only Google Calendar.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(briefCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(migrateCmd)

	rootCmd.PersistentFlags().Bool("memory", false, "Use in-memory stores instead of Postgres")
}
