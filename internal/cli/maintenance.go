package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"meal-board/internal/config"
	"meal-board/internal/database"
	"meal-board/internal/locale"
	"meal-board/internal/metrics"
	"meal-board/internal/session"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	metricsDays int
	usageDays   int
)

var sessionsCleanupCmd = &cobra.Command{
	Use:     "sessions-cleanup",
	Short:   "Delete expired chat boards",
	GroupID: "maintenance",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		sessions := session.NewManager(session.NewRepository(db.SQL), cfg.SessionTTL, locale.ParseLang(cfg.DefaultLang))
		ctx := context.Background()
		removed, err := sessions.Cleanup(ctx)
		if err != nil {
			return fmt.Errorf("failed to clean up sessions: %w", err)
		}
		active, err := sessions.Active(ctx)
		if err != nil {
			return fmt.Errorf("failed to count sessions: %w", err)
		}
		printSuccess(cmd.OutOrStdout(), fmt.Sprintf("Removed %s, %d active",
			plural(int(removed), "expired board", "expired boards"), active))
		return nil
	},
}

var metricsCleanupCmd = &cobra.Command{
	Use:     "metrics-cleanup",
	Short:   "Delete old execution and export metrics",
	GroupID: "maintenance",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if metricsDays <= 0 {
			return fmt.Errorf("--days must be positive, got %d", metricsDays)
		}
		_, db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		removed, err := metrics.NewStore(db.SQL).Cleanup(metricsDays)
		if err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), fmt.Sprintf("Removed %s older than %d days",
			plural(int(removed), "metric", "metrics"), metricsDays))
		return nil
	},
}

var usageCmd = &cobra.Command{
	Use:     "usage",
	Short:   "Show daily LLM and export usage",
	GroupID: "maintenance",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		usage, err := metrics.NewStore(db.SQL).GetDailyUsage(usageDays)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printSection(out, fmt.Sprintf("Usage, last %d days", usageDays))
		if len(usage) == 0 {
			printEmptyState(out, "No usage recorded.")
		}
		for _, u := range usage {
			printKeyValue(out, u.Date, fmt.Sprintf("%d calls, %d/%d tokens, %d exports (%s)",
				u.TotalExecution, u.TotalPrompt, u.TotalCompletion, u.Exports, humanize.IBytes(uint64(u.ExportBytes))))
		}

		health := metrics.GetSysHealth(filepath.Dir(cfg.DatabasePath), cfg.ExportDir)
		_, _ = fmt.Fprintln(out)
		printSection(out, "Storage")
		printKeyValue(out, "Database", health.DataDiskSize)
		printKeyValue(out, "Exports", health.ExportsSize)
		return nil
	},
}

func init() {
	metricsCleanupCmd.Flags().IntVar(&metricsDays, "days", 30, "Delete metrics older than this many days")
	usageCmd.Flags().IntVar(&usageDays, "days", 7, "Number of days to show")
}

func openDB() (*config.Config, *database.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return cfg, db, nil
}
