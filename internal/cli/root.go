// Package cli implements the meal-board command line: the terminal board,
// offline rendering of plan files and database maintenance.
package cli

import (
	"fmt"
	"os"

	"meal-board/internal/config"

	"github.com/spf13/cobra"
)

// rootCmd is the root command for meal-board.
var rootCmd = &cobra.Command{
	Use:     "meal-board",
	Version: "dev",
	Short:   "Weekly meal planning board",
	Long: `meal-board plans a week of breakfasts, lunches and dinners on a 7x3 board
and exports the board as a JPEG image.

Run "meal-board board" for the interactive terminal board.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// loadConfig is replaced in tests.
var loadConfig = config.NewFromEnv

func SetVersion(v string) {
	if v == "" {
		return
	}
	rootCmd.Version = v
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "board",
		Title: "Board:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "maintenance",
		Title: "Maintenance:",
	})

	rootCmd.AddCommand(boardCmd, renderCmd, presetsCmd)
	rootCmd.AddCommand(sessionsCleanupCmd, metricsCleanupCmd, usageCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the meal-board version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(os.Stdout, rootCmd.Version)
		},
	}
	rootCmd.AddCommand(versionCmd)
}
