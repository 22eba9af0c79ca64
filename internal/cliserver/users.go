package cliserver

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/polyglotgw/internal/auth"
	"github.com/nextlevelbuilder/polyglotgw/internal/config"
	"github.com/nextlevelbuilder/polyglotgw/internal/store"
)

func openUserStore() (*auth.UserStore, func(), error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := store.Open(config.ExpandHome(cfg.Storage.DatabasePath))
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return auth.NewUserStore(db), func() { db.Close() }, nil
}

func addUserCmd() *cobra.Command {
	var isAdmin bool
	cmd := &cobra.Command{
		Use:   "add-user <username>",
		Short: "Register a new user (not yet bound to a client certificate)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, closeFn, err := openUserStore()
			if err != nil {
				return err
			}
			defer closeFn()

			u, err := users.CreateUser(args[0], isAdmin)
			if err != nil {
				return err
			}
			fmt.Printf("created user %s (id=%s)\n", u.Username, u.ID)
			fmt.Println("note: this user has no certificate fingerprint yet and cannot")
			fmt.Println("authenticate until one is bound to it; no polyglotgw-server command")
			fmt.Println("does that, so bind it directly with your own tooling.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "grant admin privileges")
	return cmd
}

func removeUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-user <user-id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, closeFn, err := openUserStore()
			if err != nil {
				return err
			}
			defer closeFn()
			if err := users.DeleteUser(args[0]); err != nil {
				return err
			}
			fmt.Printf("removed user %s\n", args[0])
			return nil
		},
	}
}

func listUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-users",
		Short: "List registered users",
		RunE: func(cmd *cobra.Command, args []string) error {
			users, closeFn, err := openUserStore()
			if err != nil {
				return err
			}
			defer closeFn()

			all, err := users.ListUsers()
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Println("no users registered")
				return nil
			}
			for _, u := range all {
				fp := u.CertFingerprint
				if fp == "" {
					fp = "(unpaired)"
				}
				admin := ""
				if u.IsAdmin {
					admin = " [admin]"
				}
				fmt.Printf("%s  %-20s %s%s\n", u.ID, u.Username, fp, admin)
			}
			return nil
		},
	}
}
