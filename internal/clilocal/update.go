package clilocal

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/polyglotgw/internal/config"
)

func updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Check the configured update channel for a newer polyglotgw-local release",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Updates.CheckURL == "" {
				fmt.Println("no updates.check_url configured — skipping update check")
				return nil
			}

			client := &http.Client{Timeout: 10 * time.Second}
			resp, err := client.Get(cfg.Updates.CheckURL)
			if err != nil {
				return fmt.Errorf("update check: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("update check: unexpected status %s", resp.Status)
			}
			body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
			if err != nil {
				return fmt.Errorf("update check: read response: %w", err)
			}

			latest := string(body)
			fmt.Printf("running version: %s\n", Version)
			fmt.Printf("latest reported: %s\n", latest)
			if latest != Version && latest != "" {
				fmt.Println("a newer version may be available")
			} else {
				fmt.Println("up to date")
			}
			return nil
		},
	}
}
