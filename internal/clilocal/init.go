package clilocal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/polyglotgw/internal/config"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the local ~/.polyglotgw directory layout and a default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			base := filepath.Join(home, ".polyglotgw")
			if err := os.MkdirAll(filepath.Join(base, "sessions"), 0o755); err != nil {
				return err
			}

			path := resolveConfigPath()
			if _, err := os.Stat(path); os.IsNotExist(err) {
				if err := config.Save(path, config.Default()); err != nil {
					return fmt.Errorf("write config: %w", err)
				}
				fmt.Printf("wrote %s\n", path)
			} else {
				fmt.Printf("%s already exists, leaving it alone\n", path)
			}

			fmt.Printf("initialized %s\n", base)
			fmt.Println("next: edit the tools section of", path, "to point at any tool binaries")
			fmt.Println("not on PATH, then run `polyglotgw-local doctor` to confirm what's available.")
			return nil
		},
	}
}
