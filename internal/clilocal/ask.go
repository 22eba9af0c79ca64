package clilocal

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/polyglotgw/internal/adapter"
	"github.com/nextlevelbuilder/polyglotgw/internal/chatcontext"
	"github.com/nextlevelbuilder/polyglotgw/internal/dispatch"
	"github.com/nextlevelbuilder/polyglotgw/internal/protocol"
)

func askCmd() *cobra.Command {
	var toolName string
	var withContext bool
	var envEntries []string
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send a single prompt and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := args[0]
			for _, a := range args[1:] {
				message += " " + a
			}

			rt, err := newLocalRuntime()
			if err != nil {
				return err
			}
			extraEnv, err := parseEnvEntries(envEntries)
			if err != nil {
				return err
			}

			store, err := chatcontext.NewStore(sessionsDir(), chatcontext.DefaultSummarizerConfig())
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}

			var tool *protocol.Tool
			if toolName != "" {
				t := protocol.Tool(toolName)
				tool = &t
			}
			sess := chatcontext.NewChatSession(rt.mgr.CurrentTool(), resolveProjectDir())
			if tool != nil {
				sess.Tool = *tool
			}

			prompt := message
			if withContext {
				if transferred, ok := latestTransferContext(store, sess.ProjectPath); ok {
					transferred.CurrentQuestion = message
					prompt = transferred.AsPromptPrefix()
				}
			}

			if err := store.Create(sess); err != nil {
				return fmt.Errorf("create session: %w", err)
			}

			return runPrompt(cmd.Context(), rt, store, sess, tool, message, prompt, extraEnv)
		},
	}
	cmd.Flags().StringVar(&toolName, "tool", "", "force a specific tool instead of the configured default")
	cmd.Flags().BoolVar(&withContext, "with-context", false, "prepend the most recent session's transfer context")
	cmd.Flags().StringArrayVar(&envEntries, "env", nil, "KEY=VALUE BYOK environment entry, repeatable")
	return cmd
}

// latestTransferContext finds the project's most recently updated session
// (if any) and builds a TransferContext from it, for --with-context.
func latestTransferContext(store *chatcontext.Store, projectPath string) (chatcontext.TransferContext, bool) {
	for _, e := range store.List() {
		sess, ok := store.Get(e.ID)
		if !ok || sess.ProjectPath != projectPath {
			continue
		}
		return sess.CreateTransferContext(chatcontext.DefaultSummarizerConfig()), true
	}
	return chatcontext.TransferContext{}, false
}

// runPrompt executes promptText against rt.mgr, recording userMessage (not
// the possibly context-prefixed promptText) into sess, streaming output to
// stdout, and auto-retrying on the next available tool if rate limited —
// the local role's documented behavior (SPEC_FULL.md §9 design notes),
// unlike the server role which only advises and waits for the next Prompt.
func runPrompt(ctx context.Context, rt *localRuntime, store *chatcontext.Store, sess *chatcontext.ChatSession, tool *protocol.Tool, userMessage, promptText string, extraEnv [][2]string) error {
	_ = store.AddMessage(sess.ID, chatcontext.NewMessage(chatcontext.RoleUser, userMessage))
	sess.AutoTitle()

	for {
		req := adapter.Request{Message: promptText, WorkingDir: resolveProjectDir(), ExtraEnv: extraEnv}

		var responseBuf string
		emit := func(out adapter.Output) {
			switch out.Kind {
			case adapter.KindStdout, adapter.KindStatus:
				responseBuf += out.Line + "\n"
				fmt.Println(out.Line)
			case adapter.KindStderr:
				fmt.Fprintln(os.Stderr, out.Line)
			case adapter.KindDone:
				if out.Tokens != nil {
					fmt.Printf("\n(%d tokens)\n", *out.Tokens)
				}
			case adapter.KindError:
				fmt.Fprintln(os.Stderr, "error:", out.ErrText)
			}
		}

		used, err := rt.mgr.Execute(ctx, tool, req, emit)
		if responseBuf != "" {
			_ = store.AddMessage(sess.ID, chatcontext.NewMessage(chatcontext.RoleAssistant, responseBuf))
		}

		if err == nil {
			return nil
		}
		if !errors.Is(err, dispatch.ErrRateLimited) {
			return err
		}

		next, ok := rt.mgr.GetNextTool(ctx, used)
		if !ok {
			return fmt.Errorf("%s rate limited and no other tool is available", used)
		}
		fmt.Fprintf(os.Stderr, "\n%s rate limited, switching to %s (context preserved)...\n", used.DisplayName(), next.DisplayName())
		if err := rt.mgr.SetCurrentTool(next); err != nil {
			return err
		}
		sess.Tool = next
		tool = &next

		transfer := sess.CreateTransferContext(chatcontext.DefaultSummarizerConfig())
		promptText = transfer.AsPromptPrefix()
	}
}
