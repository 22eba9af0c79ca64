package clilocal

import (
	"fmt"

	"github.com/spf13/cobra"
)

func usageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show this process's tool usage counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newLocalRuntime()
			if err != nil {
				return err
			}
			printUsage(rt)
			return nil
		},
	}
}

// printUsage reports Manager.GetUsage(), shared between the `usage`
// subcommand and chat's `/usage` slash command. Since a clilocal process
// builds a fresh Manager on every invocation, this only reflects activity
// from the current process (single-user, no persistent daemon) — unlike
// the server role, whose usage.go SQLite mirror survives across
// connections.
func printUsage(rt *localRuntime) {
	stats := rt.mgr.GetUsage()
	if len(stats) == 0 {
		fmt.Println("no usage data yet")
		return
	}
	fmt.Printf("%-12s %8s %10s %8s %10s %s\n", "tool", "reqs", "tokens", "errors", "rate_lim", "available")
	for _, u := range stats {
		avail := "no"
		if u.IsAvailable {
			avail = "yes"
		}
		fmt.Printf("%-12s %8d %10d %8d %10d %s\n", u.Tool, u.Requests, u.TokensUsed, u.Errors, u.RateLimitHits, avail)
	}
}
