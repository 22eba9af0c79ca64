package cliserver

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/polyglotgw/internal/config"
	"github.com/nextlevelbuilder/polyglotgw/internal/dispatch"
	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
	"github.com/nextlevelbuilder/polyglotgw/internal/toolset"
)

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print resolved config and per-tool availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			fmt.Printf("polyglotgw-server %s (protocol %d)\n", Version, protocol.ProtocolVersion)
			fmt.Printf("config: %s (hash %s)\n", resolveConfigPath(), cfg.Hash())
			fmt.Printf("tcp:    %s:%d\n", cfg.Server.Host, cfg.Server.Port)
			fmt.Printf("bridge: %s:%d\n", cfg.Server.Host, cfg.Server.BridgePort)
			fmt.Printf("rotation strategy: %s\n", cfg.Server.ToDispatchRotation())
			fmt.Println()

			sb := cfg.Sandbox.ToSandboxConfig(config.ExpandHome(cfg.Sandbox.Root))
			adapters := toolset.BuildAdapters(cfg.Tools, sb)
			if len(adapters) == 0 {
				fmt.Println("no tool adapters enabled")
				return nil
			}

			mgr := dispatch.NewManager(dispatch.Config{Adapters: adapters})
			infos := mgr.ListToolInfo(cmd.Context())
			fmt.Println("tools:")
			for _, ti := range infos {
				status := "unavailable"
				if ti.Available {
					status = "available"
				}
				fmt.Printf("  %-12s %s\n", ti.Tool, status)
			}
			return nil
		},
	}
}
