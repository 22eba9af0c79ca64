package clilocal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/polyglotgw/internal/chatcontext"
)

func sessionsDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".polyglotgw", "sessions")
}

func historyCmd() *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List locally saved chat sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := chatcontext.NewStore(sessionsDir(), chatcontext.DefaultSummarizerConfig())
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}

			var entries []chatcontext.HistoryEntry
			if search != "" {
				entries = store.Search(search)
			} else {
				entries = store.List()
			}
			if len(entries) == 0 {
				fmt.Println("no saved sessions")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %-12s %s\n", e.ID, e.Tool, e.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "filter by title/project path substring")
	return cmd
}
