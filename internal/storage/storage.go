// Package storage provides shared types for team-scoped entity storage.
//
// The concrete implementations live in the sqlite and memory sub-packages.
// This package holds the interface and sentinel errors referenced by both
// the implementations and their consumers (internal/commands, cmd/tracklane).
package storage

import (
	"context"
	"errors"

	"github.com/tracklane/tracklane/internal/types"
)

// ErrNotFound is returned when a requested entity does not exist in the team.
// Writes whose target belongs to a different team fail with ErrNotFound as
// well; cross-team access must never silently succeed.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a write would violate a per-team uniqueness
// constraint (workflow state name, label name, project name or key).
var ErrDuplicate = errors.New("duplicate")

// ErrInUse is returned when deleting an entity that issues still reference
// and the reference cannot be nulled out (workflow states).
var ErrInUse = errors.New("in use")

// IssuePatch is a partial update to an issue. Nil fields are left unchanged.
type IssuePatch struct {
	Title        *string
	Description  *string
	Priority     *types.Priority
	Estimate     *float64
	ProjectID    *string // empty string clears the project
	StateID      *string
	AssigneeID   *string // empty string clears the assignee
	AssigneeName *string
}

// ProjectPatch is a partial update to a project. Nil fields are left unchanged.
type ProjectPatch struct {
	Name     *string
	Key      *string
	Color    *string
	Icon     *string
	Status   *types.ProjectStatus
	LeadID   *string
	LeadName *string
}

// InvitationPatch is a partial update to an invitation.
type InvitationPatch struct {
	Status    *types.InvitationStatus
	ExpiresAt *int64 // unix seconds; pointer so resend can extend expiry
}

// Store is the team-scoped persistence contract. Every read takes a team id
// and returns only that team's rows; every write verifies team ownership
// before mutating. No cross-entity validation lives here; that belongs to
// the command orchestrator.
type Store interface {
	// Teams
	CreateTeam(ctx context.Context, team *types.Team) error
	GetTeam(ctx context.Context, teamID string) (*types.Team, error)

	// Memberships
	CreateMembership(ctx context.Context, m *types.Membership) error
	GetMembership(ctx context.Context, teamID, userID string) (*types.Membership, error)
	ListMemberships(ctx context.Context, teamID string) ([]*types.Membership, error)
	DeleteMembership(ctx context.Context, teamID, userID string) error

	// Workflow states
	CreateWorkflowState(ctx context.Context, state *types.WorkflowState) error
	ListWorkflowStates(ctx context.Context, teamID string) ([]*types.WorkflowState, error)
	DeleteWorkflowState(ctx context.Context, teamID, stateID string) error

	// Labels
	CreateLabel(ctx context.Context, label *types.Label) error
	ListLabels(ctx context.Context, teamID string) ([]*types.Label, error)
	DeleteLabel(ctx context.Context, teamID, labelID string) error

	// Issue-label links
	AddIssueLabel(ctx context.Context, teamID, issueID, labelID string) error
	RemoveIssueLabel(ctx context.Context, teamID, issueID, labelID string) error
	ListIssueLabels(ctx context.Context, teamID string) ([]*types.IssueLabel, error)

	// Projects
	CreateProject(ctx context.Context, project *types.Project) error
	GetProject(ctx context.Context, teamID, projectID string) (*types.Project, error)
	ListProjects(ctx context.Context, teamID string) ([]*types.Project, error)
	UpdateProject(ctx context.Context, teamID, projectID string, patch ProjectPatch) error
	DeleteProject(ctx context.Context, teamID, projectID string) error

	// Issues. CreateIssue assigns the per-team sequence number atomically.
	CreateIssue(ctx context.Context, issue *types.Issue) error
	GetIssue(ctx context.Context, teamID, issueID string) (*types.Issue, error)
	ListIssues(ctx context.Context, teamID string) ([]*types.Issue, error)
	UpdateIssue(ctx context.Context, teamID, issueID string, patch IssuePatch) error
	SetIssueCompleted(ctx context.Context, teamID, issueID string, completed bool) error
	DeleteIssue(ctx context.Context, teamID, issueID string) error
	CountIssues(ctx context.Context, teamID string) (int, error)

	// Comments
	AddComment(ctx context.Context, teamID string, comment *types.Comment) error
	ListComments(ctx context.Context, teamID, issueID string) ([]*types.Comment, error)
	CountCommentsByIssue(ctx context.Context, teamID string) (map[string]int, error)

	// Invitations
	CreateInvitation(ctx context.Context, inv *types.Invitation) error
	GetPendingInvitation(ctx context.Context, teamID, email string) (*types.Invitation, error)
	ListInvitations(ctx context.Context, teamID string) ([]*types.Invitation, error)
	UpdateInvitation(ctx context.Context, teamID, invitationID string, patch InvitationPatch) error

	// Conversation sessions. SaveSession replaces the whole stored
	// transcript (last write wins), never appends.
	SaveSession(ctx context.Context, session *types.Session) error
	GetSession(ctx context.Context, teamID, sessionID string) (*types.Session, error)
	ListSessions(ctx context.Context, teamID, userID string) ([]*types.Session, error)
	DeleteSession(ctx context.Context, teamID, sessionID string) error

	// Lifecycle
	Close() error
}
