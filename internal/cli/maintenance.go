package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fitQuestAPI/internal/achievement"
	"fitQuestAPI/internal/activity"
	"fitQuestAPI/services"
)

func init() {
	resetCmd.Flags().StringVar(&resetDate, "date", "", "Civil date to reset against, YYYY-MM-DD (default today)")
	recomputeCmd.Flags().StringVar(&recomputeUser, "user", "", "User id")
	recomputeCmd.Flags().StringVar(&recomputeType, "type", "", "Streak type: nutrition, exercise or hydration")
	recomputeCmd.MarkFlagRequired("user")
	recomputeCmd.MarkFlagRequired("type")
	catalogCmd.AddCommand(catalogValidateCmd)

	rootCmd.AddCommand(resetCmd, recomputeCmd, catalogCmd)
}

var (
	resetDate     string
	recomputeUser string
	recomputeType string
)

var resetCmd = &cobra.Command{
	Use:   "reset-streaks",
	Short: "Clear the active-today flag on streaks not touched today",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		today := activity.Today(time.Now(), a.cfg.Location)
		if resetDate != "" {
			today, err = activity.ParseDate(resetDate)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
		}

		n, err := a.streaks.ResetInactive(ctx, today)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reset %d streaks\n", n)
		return nil
	},
}

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Rebuild a user's streak and stats from retained events",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := services.ParseUserID(recomputeUser)
		if err != nil {
			return err
		}
		t, err := activity.ParseType(recomputeType)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.streaks.Recompute(ctx, userID, t)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s streak: current %d, longest %d (%d events, %d deferred, %d unlocks)\n",
			t, res.Streak.CurrentCount, res.Streak.LongestCount, res.EventsReplayed, res.DeferredEvents, len(res.Unlocks))
		return nil
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the achievement catalog",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a catalog file, or the built-in catalog when no path is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) == 1 {
			path = args[0]
		}
		c, err := achievement.Load(path)
		if err != nil {
			return err
		}
		if _, err := c.Curve(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "catalog %s: %d achievements in %d categories\n",
			c.Version, len(c.Achievements), len(c.Categories()))
		return nil
	},
}
