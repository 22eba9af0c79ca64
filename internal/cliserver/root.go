// Package cliserver implements the polyglotgw-server CLI surface described
// in SPEC_FULL.md §6, grounded on the teacher's cmd/root.go persistent-flag
// + subcommand-registration idiom.
package cliserver

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "polyglotgw-server",
	Short: "polyglotgw-server — self-hosted AI coding assistant gateway",
	Long:  "polyglotgw-server multiplexes Claude, Gemini, Codex, Copilot, Perplexity, Cursor, and Ollama behind an authenticated, length-framed binary streaming protocol.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStart(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json or $POLYGLOTGW_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(addUserCmd())
	rootCmd.AddCommand(removeUserCmd())
	rootCmd.AddCommand(listUsersCmd())
	rootCmd.AddCommand(inviteCmd())
	rootCmd.AddCommand(usageCmd())
	rootCmd.AddCommand(infoCmd())
	rootCmd.AddCommand(generateConfigCmd())
	rootCmd.AddCommand(generateCertsCmd())
	rootCmd.AddCommand(updateCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("polyglotgw-server %s (protocol %d)\n", Version, protocol.ProtocolVersion)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("POLYGLOTGW_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
