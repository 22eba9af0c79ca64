package cliserver

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/polyglotgw/internal/config"
	"github.com/nextlevelbuilder/polyglotgw/internal/dispatch"
	"github.com/nextlevelbuilder/polyglotgw/internal/store"
)

func usageCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Print per-tool usage from the last N days",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := store.Open(config.ExpandHome(cfg.Storage.DatabasePath))
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()

			usage := dispatch.OpenUsageStore(db)
			since := time.Now().AddDate(0, 0, -days)
			stats, err := usage.GetDailyStats(since)
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Println("no usage recorded")
				return nil
			}
			fmt.Printf("%-12s %-12s %8s %10s %8s %10s\n", "date", "tool", "requests", "tokens", "errors", "rate_lim")
			for _, s := range stats {
				fmt.Printf("%-12s %-12s %8d %10d %8d %10d\n", s.Date, s.Tool, s.TotalRequests, s.TotalTokens, s.TotalErrors, s.RateLimitHits)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "number of days of history to show")
	return cmd
}
