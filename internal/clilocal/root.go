// Package clilocal implements the polyglotgw-local CLI surface described in
// SPEC_FULL.md §1/§9: a standalone single-user aggregator that runs the
// same dispatch core as polyglotgw-server in-process, with no listener and
// no wire protocol, grounded on original_source's crates/local/src/main.rs
// and the teacher's cmd/root.go persistent-flag + subcommand-registration
// idiom.
package clilocal

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile    string
	verbose    bool
	noTUI      bool
	projectDir string
)

var rootCmd = &cobra.Command{
	Use:   "polyglotgw-local",
	Short: "polyglotgw-local — run AI coding assistant tools locally without a server",
	Long:  "polyglotgw-local aggregates Claude, Gemini, Codex, Copilot, Perplexity, Cursor, and Ollama behind one CLI, rotating between them in-process when one hits a rate limit.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json or $POLYGLOTGW_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noTUI, "no-tui", false, "disable interactive prompts, use plain line output")
	rootCmd.PersistentFlags().StringVar(&projectDir, "project", "", "project directory (default: cwd), used as the adapter working dir and history partition key")

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(usageCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(envCmd())
	rootCmd.AddCommand(updateCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("polyglotgw-local %s\n", Version)
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

func resolveProjectDir() string {
	if projectDir != "" {
		return projectDir
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return ""
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
