package clilocal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/polyglotgw/internal/chatcontext"
	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
)

// chatCmd runs the REPL described in original_source's run_simple_cli: a
// plain line-by-line loop (no TUI, per --no-tui's always-true local
// behavior here) that keeps one ChatSession alive for the process lifetime
// and drives it through the same in-process Manager ask uses.
func chatCmd() *cobra.Command {
	var toolName string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session, rotating tools locally on rate limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newLocalRuntime()
			if err != nil {
				return err
			}

			var tool *protocol.Tool
			if toolName != "" {
				t := protocol.Tool(toolName)
				tool = &t
			}
			currentTool := rt.mgr.CurrentTool()
			if tool != nil {
				currentTool = *tool
				_ = rt.mgr.SetCurrentTool(currentTool)
			}

			store, err := chatcontext.NewStore(sessionsDir(), chatcontext.DefaultSummarizerConfig())
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			sess := chatcontext.NewChatSession(currentTool, resolveProjectDir())
			if err := store.Create(sess); err != nil {
				return fmt.Errorf("create session: %w", err)
			}

			available := rt.mgr.AvailableTools(cmd.Context())
			if len(available) == 0 {
				fmt.Println("warning: no AI tools found! run `polyglotgw-local doctor` to check.")
			} else {
				names := make([]string, len(available))
				for i, t := range available {
					names[i] = t.DisplayName()
				}
				fmt.Printf("available: %s\n", strings.Join(names, ", "))
			}
			fmt.Println("type your message and press enter; /quit to exit, /tools to list tools, /usage for stats.")

			reader := bufio.NewReader(os.Stdin)
			for {
				fmt.Printf("[%s] > ", sess.Tool.DisplayName())
				line, err := reader.ReadString('\n')
				if err != nil {
					if err == io.EOF {
						fmt.Println()
						return nil
					}
					return err
				}
				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}

				switch {
				case line == "/quit" || line == "/exit" || line == "/q":
					return nil
				case line == "/tools":
					printToolList(rt, cmd.Context(), sess.Tool)
					continue
				case line == "/usage":
					printUsage(rt)
					continue
				case strings.HasPrefix(line, "/switch "):
					name := strings.TrimSpace(strings.TrimPrefix(line, "/switch "))
					t := protocol.Tool(name)
					if err := rt.mgr.SetCurrentTool(t); err != nil {
						fmt.Fprintln(os.Stderr, "error:", err)
						continue
					}
					sess.Tool = t
					fmt.Printf("switched to %s (context preserved)\n", t.DisplayName())
					continue
				case strings.HasPrefix(line, "/"):
					fmt.Println("unknown command. available: /tools /usage /switch <tool> /quit")
					continue
				}

				active := sess.Tool
				if err := runPrompt(cmd.Context(), rt, store, sess, &active, line, line, nil); err != nil {
					fmt.Fprintln(os.Stderr, "error:", err)
				}
				fmt.Println()
			}
		},
	}
	cmd.Flags().StringVar(&toolName, "tool", "", "start with a specific tool instead of the configured default")
	return cmd
}
