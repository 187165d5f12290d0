package commands

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tracklane/tracklane/internal/storage"
	"github.com/tracklane/tracklane/internal/types"
)

// InviteTeamMemberInput is the payload for inviteTeamMember. Role defaults
// to developer.
type InviteTeamMemberInput struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// InviteTeamMember creates a pending invitation and dispatches the
// invitation email. The email send is best-effort: its failure is logged
// and does not roll back the invitation.
func (o *Orchestrator) InviteTeamMember(ctx context.Context, actor Actor, teamID string, in InviteTeamMemberInput) Result {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return failValidation("a valid email address is required")
	}
	role := types.Role(in.Role)
	if role == "" {
		role = types.RoleDeveloper
	}
	if !role.IsValid() {
		return failValidation("invalid role: %s", in.Role)
	}

	team, err := o.store.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return failNotFound("team", teamID, "team %q not found", teamID)
		}
		return o.dependency("inviteTeamMember", err)
	}

	if existing, err := o.store.GetPendingInvitation(ctx, teamID, email); err == nil && existing != nil {
		if !existing.Expired(time.Now()) {
			return failValidation("Invitation already sent to this email")
		}
	} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return o.dependency("inviteTeamMember", err)
	}

	now := time.Now().UTC()
	inv := &types.Invitation{
		ID:        uuid.NewString(),
		TeamID:    teamID,
		Email:     email,
		Role:      role,
		Status:    types.InvitePending,
		InviterID: actor.UserID,
		ExpiresAt: now.Add(types.InvitationTTL),
		CreatedAt: now,
	}
	if err := o.store.CreateInvitation(ctx, inv); err != nil {
		return o.dependency("inviteTeamMember", err)
	}

	if err := o.mailer.SendInvitation(ctx, inv, team, actor.DisplayName); err != nil {
		o.log.Warn("invitation email failed", "team_id", teamID, "email", email, "error", err)
	}
	return ok(inv, "Invitation sent to %s.", email)
}

// ResendInvitation re-sends a pending invitation's email and extends its
// expiry by the standard window.
func (o *Orchestrator) ResendInvitation(ctx context.Context, actor Actor, teamID, invitationID string) Result {
	team, err := o.store.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return failNotFound("team", teamID, "team %q not found", teamID)
		}
		return o.dependency("resendInvitation", err)
	}

	inv, res := o.pendingInvitation(ctx, teamID, invitationID, "resendInvitation")
	if inv == nil {
		return res
	}

	expires := time.Now().UTC().Add(types.InvitationTTL)
	unix := expires.Unix()
	if err := o.store.UpdateInvitation(ctx, teamID, inv.ID, storage.InvitationPatch{ExpiresAt: &unix}); err != nil {
		return o.dependency("resendInvitation", err)
	}
	inv.ExpiresAt = expires

	if err := o.mailer.SendInvitation(ctx, inv, team, actor.DisplayName); err != nil {
		o.log.Warn("invitation email failed", "team_id", teamID, "email", inv.Email, "error", err)
	}
	return ok(inv, "Invitation to %s has been resent.", inv.Email)
}

// AcceptInvitation converts a pending invitation into a membership for the
// accepting actor. The actor's email must match the invitation.
func (o *Orchestrator) AcceptInvitation(ctx context.Context, actor Actor, teamID, invitationID string) Result {
	inv, res := o.pendingInvitation(ctx, teamID, invitationID, "acceptInvitation")
	if inv == nil {
		return res
	}
	if !strings.EqualFold(inv.Email, actor.Email) {
		return failUnauthorized("this invitation was sent to a different email address")
	}
	if inv.Expired(time.Now()) {
		return failValidation("this invitation has expired")
	}

	accepted := types.InviteAccepted
	if err := o.store.UpdateInvitation(ctx, teamID, inv.ID, storage.InvitationPatch{Status: &accepted}); err != nil {
		return o.dependency("acceptInvitation", err)
	}
	m := &types.Membership{
		TeamID:   teamID,
		UserID:   actor.UserID,
		UserName: actor.DisplayName,
		Email:    actor.Email,
		Role:     inv.Role,
		JoinedAt: time.Now().UTC(),
	}
	if err := o.store.CreateMembership(ctx, m); err != nil && !errors.Is(err, storage.ErrDuplicate) {
		return o.dependency("acceptInvitation", err)
	}
	return ok(m, "You have joined the team as %s.", string(inv.Role))
}

// RejectInvitation marks a pending invitation as rejected.
func (o *Orchestrator) RejectInvitation(ctx context.Context, actor Actor, teamID, invitationID string) Result {
	inv, res := o.pendingInvitation(ctx, teamID, invitationID, "rejectInvitation")
	if inv == nil {
		return res
	}
	if !strings.EqualFold(inv.Email, actor.Email) {
		return failUnauthorized("this invitation was sent to a different email address")
	}

	rejected := types.InviteRejected
	if err := o.store.UpdateInvitation(ctx, teamID, inv.ID, storage.InvitationPatch{Status: &rejected}); err != nil {
		return o.dependency("rejectInvitation", err)
	}
	return ok(nil, "Invitation declined.")
}

func (o *Orchestrator) pendingInvitation(ctx context.Context, teamID, invitationID, op string) (*types.Invitation, Result) {
	invs, err := o.store.ListInvitations(ctx, teamID)
	if err != nil {
		return nil, o.dependency(op, err)
	}
	for _, inv := range invs {
		if inv.ID == invitationID {
			if inv.Status != types.InvitePending {
				return nil, failValidation("invitation is no longer pending")
			}
			return inv, Result{}
		}
	}
	return nil, failNotFound("invitation", invitationID, "invitation %q not found", invitationID)
}

// ListTeamMembers returns the team's memberships. Read-only, no resolution.
func (o *Orchestrator) ListTeamMembers(ctx context.Context, teamID string) Result {
	if exists, err := o.teamExists(ctx, teamID); err != nil {
		return o.dependency("listTeamMembers", err)
	} else if !exists {
		return failNotFound("team", teamID, "team %q not found", teamID)
	}

	members, err := o.store.ListMemberships(ctx, teamID)
	if err != nil {
		return o.dependency("listTeamMembers", err)
	}
	return ok(members, "Found %d team members", len(members))
}

// ListInvitations returns all invitations for the team.
func (o *Orchestrator) ListInvitations(ctx context.Context, teamID string) Result {
	if exists, err := o.teamExists(ctx, teamID); err != nil {
		return o.dependency("listInvitations", err)
	} else if !exists {
		return failNotFound("team", teamID, "team %q not found", teamID)
	}

	invs, err := o.store.ListInvitations(ctx, teamID)
	if err != nil {
		return o.dependency("listInvitations", err)
	}
	return ok(invs, "Found %d invitations", len(invs))
}
