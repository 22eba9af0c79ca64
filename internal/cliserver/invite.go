package cliserver

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/polyglotgw/internal/auth"
)

// inviteCmd generates and prints an invite code for operator communication
// (e.g. to paste into a Slack message or QR code for a new teammate).
//
// This is deliberately a standalone, throwaway InviteManager: auth.InviteManager
// holds codes in memory only (see internal/auth/invite.go), so a code minted by
// this one-shot CLI process is never visible to a separately running
// `polyglotgw-server start` process, and the wire protocol's Auth message
// (protocol.Auth{CertFingerprint}) has no field for redeeming an invite code
// in the first place — trust is actually established by a certificate
// fingerprint bound to a user row (add-user creates the row without one), not
// by code exchange over the wire.
// This command exists for documentation/bookkeeping continuity with
// original_source's admin CLI, not as a functioning onboarding channel.
func inviteCmd() *cobra.Command {
	var ttlHours int
	var maxUses int
	var isAdmin bool
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Generate an invite code for operator records (does not grant wire access by itself)",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := auth.NewInviteManager()
			inv, err := mgr.GenerateInvite(maxUses, time.Duration(ttlHours)*time.Hour, isAdmin, "cli")
			if err != nil {
				return err
			}
			fmt.Printf("invite code: %s\n", inv.Code)
			fmt.Println("this code is not redeemable over the wire protocol. to actually let the")
			fmt.Println("new user connect, run `polyglotgw-server add-user <name>` and bind their")
			fmt.Println("client certificate's SHA-256 fingerprint to that user record.")
			return nil
		},
	}
	cmd.Flags().IntVar(&ttlHours, "ttl-hours", 24, "invite expiry in hours (0 = no expiry)")
	cmd.Flags().IntVar(&maxUses, "max-uses", 1, "number of redemptions allowed")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "mark the invite as granting admin")
	return cmd
}
