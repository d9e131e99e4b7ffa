package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show progress snapshots",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a user's profiles, streaks and recent completions",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		profiles, err := s.ProfileRepo().ListProfiles(ctx, user)
		if err != nil {
			return fmt.Errorf("list profiles: %w", err)
		}
		if len(profiles) == 0 {
			fmt.Fprintf(out, "No profiles for %s yet.\n", user)
			return nil
		}

		fmt.Fprintf(out, "%-16s  %6s  %5s  %6s  %7s  %-10s  %s\n",
			"Profile", "XP", "Level", "Streak", "Longest", "Last done", "In progress")
		fmt.Fprintln(out, strings.Repeat("─", 80))
		for _, p := range profiles {
			last := p.LastSmartRepeatDate
			if last == "" {
				last = "never"
			}
			running := p.InProgressStage
			if running == "" {
				running = "-"
			}
			fmt.Fprintf(out, "%-16s  %6d  %5d  %6d  %7d  %-10s  %s\n",
				truncate(p.Name, 16), p.XP, p.Level, p.Streak, p.LongestStreak, last, running)
		}

		completions, err := s.CompletionRepo().ListCompletions(ctx, user, limit)
		if err != nil {
			return fmt.Errorf("list completions: %w", err)
		}
		if len(completions) == 0 {
			return nil
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Recent completions")
		fmt.Fprintln(out, strings.Repeat("─", 48))
		for _, c := range completions {
			fmt.Fprintf(out, "%-10s  %-16s  +%d XP  streak %d\n", c.DateLocal, truncate(c.Profile, 16), c.XPAwarded, c.Streak)
		}
		return nil
	},
}

func init() {
	profileShowCmd.Flags().StringP("user", "u", defaultUser(), "User to show")
	profileShowCmd.Flags().IntP("limit", "n", 10, "Number of completions to show")
	profileCmd.AddCommand(profileShowCmd)
}
