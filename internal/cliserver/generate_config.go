package cliserver

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/polyglotgw/internal/config"
)

func generateConfigCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "generate-config",
		Short: "Write a default config.json to the given path",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = resolveConfigPath()
			}
			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("refusing to overwrite existing %s", out)
			}
			if err := config.Save(out, config.Default()); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Printf("wrote %s\n", out)
			fmt.Println("set POLYGLOTGW_JWT_SECRET before starting the server — it is never stored in config.json")
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output path (default: --config or config.json)")
	return cmd
}
