package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/abhisek/smartrepeat/internal/llm"
	"github.com/abhisek/smartrepeat/internal/store"
	"github.com/spf13/cobra"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect recorded generation calls",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent generation calls",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")
		since, _ := cmd.Flags().GetDuration("since")
		failedOnly, _ := cmd.Flags().GetBool("failed")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		opts := store.QueryOpts{Limit: limit, Purpose: purpose}
		if since > 0 {
			opts.From = time.Now().Add(-since)
		}
		if failedOnly {
			ok := false
			opts.Success = &ok
		}
		events, err := s.EventRepo().QueryGenerationEvents(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(out, "No generation calls recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "ID\tTime\tPurpose\tModel\tIn\tOut\tMs\tStatus\t")
		for _, e := range events {
			status := "ok"
			if !e.Success {
				status = "failed"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t\n",
				e.ID, e.Timestamp.Local().Format("01-02 15:04"), e.Purpose, truncate(e.Model, 28),
				e.InputTokens, e.OutputTokens, e.LatencyMs, status)
		}
		return tw.Flush()
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "View the full request and response of a generation call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid event ID %q", args[0])
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		e, err := s.EventRepo().GetGenerationEvent(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		if e == nil {
			return fmt.Errorf("event %d not found", id)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Call %d  %s\n", e.ID, e.Timestamp.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "  purpose  %s\n", e.Purpose)
		fmt.Fprintf(out, "  model    %s (%s)\n", e.Model, e.Provider)
		fmt.Fprintf(out, "  tokens   %d in, %d out\n", e.InputTokens, e.OutputTokens)
		fmt.Fprintf(out, "  latency  %dms\n", e.LatencyMs)
		if cost := llm.LookupCost(e.Model); cost != nil {
			fmt.Fprintf(out, "  cost     %s\n", formatCost(cost.Cost(e.InputTokens, e.OutputTokens)))
		}
		if !e.Success {
			fmt.Fprintf(out, "  error    %s\n", e.ErrorMessage)
		}
		section(out, "request", e.RequestBody)
		section(out, "response", e.ResponseBody)
		return nil
	},
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show token usage and estimated cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		byPurpose, err := s.EventRepo().UsageByPurpose(ctx)
		if err != nil {
			return fmt.Errorf("usage by purpose: %w", err)
		}
		byModel, err := s.EventRepo().UsageByModel(ctx)
		if err != nil {
			return fmt.Errorf("usage by model: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(byPurpose) == 0 {
			fmt.Fprintln(out, "No generation usage recorded yet.")
			return nil
		}

		var sum store.PurposeUsage
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "Purpose\tCalls\tIn\tOut\tAvg ms\t")
		for _, u := range byPurpose {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t\n", u.Purpose, u.Calls, u.InputTokens, u.OutputTokens, u.AvgLatencyMs)
			sum.Calls += u.Calls
			sum.InputTokens += u.InputTokens
			sum.OutputTokens += u.OutputTokens
		}
		fmt.Fprintf(tw, "total\t%d\t%d\t%d\t\t\n", sum.Calls, sum.InputTokens, sum.OutputTokens)
		if err := tw.Flush(); err != nil {
			return err
		}

		var total float64
		var unpriced []string
		fmt.Fprintln(out)
		tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "Model\tCalls\tIn\tOut\tCost\t")
		for _, u := range byModel {
			cost := "?"
			if c := llm.LookupCost(u.Model); c != nil {
				usd := c.Cost(u.InputTokens, u.OutputTokens)
				total += usd
				cost = formatCost(usd)
			} else {
				unpriced = append(unpriced, u.Model)
			}
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t\n", truncate(u.Model, 32), u.Calls, u.InputTokens, u.OutputTokens, cost)
		}
		label := "total"
		if len(unpriced) > 0 {
			label = "total (partial)"
		}
		fmt.Fprintf(tw, "%s\t\t\t\t%s\t\n", label, formatCost(total))
		if err := tw.Flush(); err != nil {
			return err
		}
		if len(unpriced) > 0 {
			fmt.Fprintf(out, "\nNo pricing for: %s\n", strings.Join(unpriced, ", "))
		}
		return nil
	},
}

// section prints a titled block, or a note when body is empty.
func section(out io.Writer, title, body string) {
	fmt.Fprintf(out, "\n── %s %s\n", title, strings.Repeat("─", max(0, 56-len(title))))
	if body == "" {
		fmt.Fprintln(out, "(not captured)")
		return
	}
	fmt.Fprintln(out, body)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of calls to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Only calls with this purpose (text-drill, writing-analysis)")
	llmListCmd.Flags().Duration("since", 0, "Only calls newer than this, e.g. 24h")
	llmListCmd.Flags().Bool("failed", false, "Only failed calls")

	llmCmd.AddCommand(llmListCmd, llmViewCmd, llmStatsCmd)
}
