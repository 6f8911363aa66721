package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/stepwise/internal/llm"
	"github.com/abhisek/stepwise/internal/store"
	"github.com/abhisek/stepwise/internal/ui/theme"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect the tutor's LLM requests",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent LLM requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")
		failedOnly, _ := cmd.Flags().GetBool("failed")

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.EventRepo().QueryLLMEvents(cmd.Context(), store.QueryOpts{Limit: limit})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}

		w := cmd.OutOrStdout()
		shown := 0
		for _, e := range events {
			if (purpose != "" && e.Purpose != purpose) || (failedOnly && e.Success) {
				continue
			}
			if shown == 0 {
				fmt.Fprintf(w, "%-5s  %-19s  %-16s  %-22s  %-24s  %9s  %6s  %s\n",
					"ID", "Time", "Component", "Purpose", "Model", "Tokens", "Ms", "OK")
				fmt.Fprintln(w, strings.Repeat("─", 116))
			}
			shown++
			ok := theme.Correct.Render("✓")
			if !e.Success {
				ok = theme.Incorrect.Render("✗ " + llm.FailureOutcome(e.Purpose))
			}
			fmt.Fprintf(w, "%-5d  %-19s  %-16s  %-22s  %-24s  %9s  %6d  %s\n",
				e.ID,
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				llm.Component(e.Purpose),
				truncate(e.Purpose, 22),
				truncate(e.Model, 24),
				fmt.Sprintf("%d/%d", e.InputTokens, e.OutputTokens),
				e.LatencyMs,
				ok)
		}
		if shown == 0 {
			fmt.Fprintln(w, "No LLM requests found.")
		}
		return nil
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show the prompt and reply of one LLM request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		e, err := s.EventRepo().GetLLMEvent(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		if e == nil {
			return fmt.Errorf("event %d not found", id)
		}

		w := cmd.OutOrStdout()
		lines := []string{
			theme.Title.Render(fmt.Sprintf("LLM request %d", e.ID)),
			field("Time", e.Timestamp.Local().Format("2006-01-02 15:04:05")),
			field("Component", llm.Component(e.Purpose)),
			field("Purpose", e.Purpose),
			field("Model", e.Provider+" / "+e.Model),
			field("Tokens", fmt.Sprintf("%d in / %d out", e.InputTokens, e.OutputTokens)),
			field("Latency", fmt.Sprintf("%dms", e.LatencyMs)),
		}
		if e.Success {
			lines = append(lines, field("Outcome", theme.Correct.Render("ok")))
		} else {
			lines = append(lines,
				field("Outcome", theme.Incorrect.Render("failed, "+llm.FailureOutcome(e.Purpose))),
				field("Error", e.ErrorMessage))
		}
		lipgloss.Fprintln(w, theme.Card.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))

		writeBody(w, "Prompt", e.RequestBody)
		writeBody(w, "Reply", e.ResponseBody)
		return nil
	},
}

func writeBody(w io.Writer, title, body string) {
	lipgloss.Fprintln(w, theme.Subtitle.Render(title))
	if body == "" {
		body = "(not captured)"
	}
	fmt.Fprintln(w, body)
	fmt.Fprintln(w)
}

// components is the display order of the stats table.
var components = []string{"scaffolding", "guided questions", "safety gate", "other"}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize LLM requests per tutoring component, with failures and cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		stats, err := s.EventRepo().LLMUsageByPurpose(ctx)
		if err != nil {
			return fmt.Errorf("query usage: %w", err)
		}
		w := cmd.OutOrStdout()
		if len(stats) == 0 {
			fmt.Fprintln(w, "No LLM usage recorded yet.")
			return nil
		}
		writeComponentStats(w, stats)

		modelUsage, err := s.EventRepo().LLMUsageByModel(ctx)
		if err != nil {
			return fmt.Errorf("query model usage: %w", err)
		}
		writeCost(w, modelUsage)
		return nil
	},
}

func writeComponentStats(w io.Writer, stats []store.LLMUsageStats) {
	byComponent := make(map[string][]store.LLMUsageStats)
	for _, st := range stats {
		c := llm.Component(st.Purpose)
		byComponent[c] = append(byComponent[c], st)
	}

	const rowFmt = "  %-22s  %6d  %6d  %7d  %10d\n"
	var failures []string
	for _, c := range components {
		rows := byComponent[c]
		if len(rows) == 0 {
			continue
		}
		lipgloss.Fprintln(w, theme.Subtitle.Render(c))
		fmt.Fprintf(w, "  %-22s  %6s  %6s  %7s  %10s\n", "Purpose", "Calls", "Failed", "Avg ms", "Tokens")
		var calls, failed, tokens int
		for _, st := range rows {
			fmt.Fprintf(w, rowFmt, st.Purpose, st.Requests, st.Failures, st.AvgLatencyMs(), st.InputTokens+st.OutputTokens)
			calls += st.Requests
			failed += st.Failures
			tokens += st.InputTokens + st.OutputTokens
			if st.Failures > 0 {
				failures = append(failures, fmt.Sprintf("%d %s → %s", st.Failures, st.Purpose, llm.FailureOutcome(st.Purpose)))
			}
		}
		if len(rows) > 1 {
			fmt.Fprintf(w, "  %-22s  %6d  %6d  %7s  %10d\n", "all", calls, failed, "", tokens)
		}
		fmt.Fprintln(w)
	}

	if len(failures) > 0 {
		lipgloss.Fprintln(w, theme.Subtitle.Render("Failed requests"))
		for _, f := range failures {
			lipgloss.Fprintln(w, theme.Partial.Render("  "+f))
		}
		fmt.Fprintln(w)
	}
}

func writeCost(w io.Writer, usage []store.LLMModelUsage) {
	if len(usage) == 0 {
		return
	}
	lipgloss.Fprintln(w, theme.Subtitle.Render("Estimated cost (USD)"))
	var total float64
	var unknown []string
	for _, mu := range usage {
		cost := "?"
		if price := llm.LookupCost(mu.Model); price != nil {
			c := price.Cost(mu.InputTokens, mu.OutputTokens)
			total += c
			cost = formatCost(c)
		} else {
			unknown = append(unknown, mu.Model)
		}
		fmt.Fprintf(w, "  %-32s  %6d calls  %9s\n", truncate(mu.Model, 32), mu.Requests, cost)
	}
	label := "total"
	if len(unknown) > 0 {
		label = "total (partial)"
	}
	fmt.Fprintf(w, "  %-32s  %12s  %9s\n", label, "", formatCost(total))
	if len(unknown) > 0 {
		fmt.Fprintf(w, "  no pricing for %s\n", strings.Join(unknown, ", "))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of requests to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Filter by purpose (scaffold-intro, scaffold-intervention, scaffold-hint, socratic-questions, safety-check)")
	llmListCmd.Flags().Bool("failed", false, "Only show failed requests")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmStatsCmd)
}
