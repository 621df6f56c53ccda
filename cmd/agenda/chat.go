package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant from the terminal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.ensureTables(ctx); err != nil {
			return err
		}
		as, _, err := a.assistant(ctx)
		if err != nil {
			return err
		}

		user, _ := cmd.Flags().GetString("user")
		out := cmd.OutOrStdout()
		in := bufio.NewScanner(cmd.InOrStdin())
		fmt.Fprint(out, "> ")
		for in.Scan() {
			line := strings.TrimSpace(in.Text())
			if line == "/quit" || line == "/exit" {
				return nil
			}
			if line != "" {
				fmt.Fprintln(out, as.Handle(ctx, user, line))
			}
			fmt.Fprint(out, "> ")
		}
		return in.Err()
	},
}

func init() {
	chatCmd.Flags().String("user", envOr("ALLOWED_USER_ID", "local"), "User id the conversation belongs to")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
