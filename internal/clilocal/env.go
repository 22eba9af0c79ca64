package clilocal

import (
	"fmt"

	"github.com/spf13/cobra"
)

// envCmd reports the effective sandbox environment this process would run
// tools under: allowed paths (including the CWD auto-added per SPEC_FULL.md
// §4.6), network policy, and the env whitelist passed through to each
// adapter's subprocess — the in-process equivalent of original_source's
// show_environment status table (crates/local/src/main.rs). BYOK entries
// for a single run are passed with `ask --env KEY=VALUE` (`chat` takes no
// BYOK entries), since a clilocal process has no persistent session for a
// separate push-then-use step to apply to.
func envCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show the sandbox environment tools will run under",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newLocalRuntime()
			if err != nil {
				return err
			}

			fmt.Printf("sandbox enabled:   %t\n", rt.sb.Enabled)
			fmt.Printf("sandbox root:      %s\n", rt.sb.SandboxRoot)
			fmt.Printf("network access:    %s\n", rt.sb.NetworkAccess)
			fmt.Println("allowed read paths:")
			for _, p := range rt.sb.AllowedReadPaths {
				fmt.Printf("  %s\n", p)
			}
			fmt.Println("allowed write paths:")
			for _, p := range rt.sb.AllowedWritePaths {
				fmt.Printf("  %s\n", p)
			}
			if len(rt.sb.EnvWhitelist) > 0 {
				fmt.Println("env whitelist:")
				for k := range rt.sb.EnvWhitelist {
					fmt.Printf("  %s\n", k)
				}
			}

			fmt.Println()
			fmt.Println("tools:")
			for _, ti := range rt.mgr.ListToolInfo(cmd.Context()) {
				status := "unavailable"
				if ti.Available {
					status = "available"
				}
				fmt.Printf("  %-12s %s\n", ti.Tool.DisplayName(), status)
			}
			return nil
		},
	}
}
