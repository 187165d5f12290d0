package main

import (
	"fmt"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tracklane/tracklane/internal/commands"
	"github.com/tracklane/tracklane/internal/types"
	"github.com/tracklane/tracklane/internal/ui"
)

var memberCmd = &cobra.Command{
	Use:   "member",
	Short: "List members and manage invitations",
}

var memberListCmd = &cobra.Command{
	Use:   "list",
	Short: "List team members",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		res := orch.ListTeamMembers(cmd.Context(), teamID)
		return handleResult(res, func(entity any) string {
			return ui.MemberTable(entity.([]*types.Membership))
		})
	},
}

var inviteRole string

var memberInviteCmd = &cobra.Command{
	Use:   "invite <email>",
	Short: "Invite someone to the team by email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		return handleResult(orch.InviteTeamMember(cmd.Context(), actor(), teamID, commands.InviteTeamMemberInput{
			Email: args[0],
			Role:  inviteRole,
		}), nil)
	},
}

var invitationsCmd = &cobra.Command{
	Use:   "invitations",
	Short: "List the team's invitations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		res := orch.ListInvitations(cmd.Context(), teamID)
		return handleResult(res, func(entity any) string {
			invs := entity.([]*types.Invitation)
			if len(invs) == 0 {
				return "No invitations."
			}
			var b strings.Builder
			for _, inv := range invs {
				fmt.Fprintf(&b, "%s  %-30s %-10s %-9s expires %s\n",
					inv.ID, inv.Email, string(inv.Role), string(inv.Status), humanize.Time(inv.ExpiresAt))
			}
			return strings.TrimRight(b.String(), "\n")
		})
	},
}

var inviteResendCmd = &cobra.Command{
	Use:   "resend <invitation-id>",
	Short: "Resend a pending invitation and extend its expiry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		return handleResult(orch.ResendInvitation(cmd.Context(), actor(), teamID, args[0]), nil)
	},
}

var inviteAcceptCmd = &cobra.Command{
	Use:   "accept <invitation-id>",
	Short: "Accept an invitation sent to your email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		return handleResult(orch.AcceptInvitation(cmd.Context(), actor(), teamID, args[0]), nil)
	},
}

var inviteRejectCmd = &cobra.Command{
	Use:   "reject <invitation-id>",
	Short: "Decline an invitation sent to your email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		return handleResult(orch.RejectInvitation(cmd.Context(), actor(), teamID, args[0]), nil)
	},
}

func init() {
	memberInviteCmd.Flags().StringVar(&inviteRole, "role", "", "Role for the invitee (admin, developer, viewer)")

	memberCmd.AddCommand(memberListCmd, memberInviteCmd, invitationsCmd, inviteResendCmd, inviteAcceptCmd, inviteRejectCmd)
	rootCmd.AddCommand(memberCmd)
}
