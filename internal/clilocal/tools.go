package clilocal

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
)

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools this process can route to and which one is current",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newLocalRuntime()
			if err != nil {
				return err
			}
			printToolList(rt, cmd.Context(), rt.mgr.CurrentTool())
			return nil
		},
	}
}

// printToolList reports ListToolInfo the way handleListTools's ToolList
// reply does, sharing the format between the `tools` subcommand and chat's
// `/tools` slash command.
func printToolList(rt *localRuntime, ctx context.Context, current protocol.Tool) {
	for _, ti := range rt.mgr.ListToolInfo(ctx) {
		marker := ""
		if ti.Tool == current {
			marker = " (current)"
		}
		status := "unavailable"
		if ti.Available {
			status = "available"
		}
		fmt.Printf("%-12s %-20s %s%s\n", ti.Tool, ti.Tool.DisplayName(), status, marker)
	}
}
