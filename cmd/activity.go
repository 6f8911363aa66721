package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/stepwise/internal/store"
)

var activityCmd = &cobra.Command{
	Use:   "activity <session-id>",
	Short: "Show the activity log of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.EventRepo().QueryActivity(cmd.Context(), args[0], store.QueryOpts{Limit: limit})
		if err != nil {
			return fmt.Errorf("query activity: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(out, "No activity found.")
			return nil
		}

		fmt.Fprintf(out, "%-6s  %-19s  %-26s  %s\n", "Seq", "Timestamp", "Kind", "Detail")
		fmt.Fprintln(out, strings.Repeat("─", 100))
		for _, e := range events {
			detail, _ := json.Marshal(e.Detail)
			fmt.Fprintf(out, "%-6d  %-19s  %-26s  %s\n",
				e.Sequence, e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Kind, detail)
		}
		return nil
	},
}

func init() {
	activityCmd.Flags().IntP("limit", "n", 0, "Number of events to show (0 = all)")
}
