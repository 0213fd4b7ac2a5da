// Package cli implements the fitquest command line: the API server plus the
// maintenance commands operators run by hand.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fitquest",
	Short: "fitQuest progression engine",
	Long: `fitQuest turns logged meals, workouts and water into streaks,
achievements and XP levels.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
