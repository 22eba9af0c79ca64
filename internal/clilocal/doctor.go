package clilocal

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// doctorCmd diagnoses local tool availability by probing the same adapter
// registry ask/chat build, matching original_source's run_doctor
// (crates/local/src/main.rs). A server reachability check no longer
// applies since polyglotgw-local never dials one.
func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose local tool availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			rt, err := newLocalRuntime()
			if err != nil {
				return err
			}

			fmt.Println("checking installed tools...")
			var anyAvailable bool
			for _, ti := range rt.mgr.ListToolInfo(ctx) {
				status := "not found"
				if ti.Available {
					status = "found"
					anyAvailable = true
				}
				fmt.Printf("  %-20s %s\n", ti.Tool.DisplayName(), status)
			}

			fmt.Println()
			if anyAvailable {
				fmt.Println("at least one tool is available — you're ready to go")
			} else {
				fmt.Println("no tools found — install one of claude, gemini, codex, github-copilot-cli,")
				fmt.Println("pplx, cursor-agent, or ollama and make sure it's on PATH")
			}
			return nil
		},
	}
}
