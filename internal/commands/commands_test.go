package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracklane/tracklane/internal/mail"
	"github.com/tracklane/tracklane/internal/storage/memory"
	"github.com/tracklane/tracklane/internal/types"
)

var testActor = Actor{UserID: "user-1", DisplayName: "Ada Lovelace", Email: "ada@example.com"}

func newTestOrchestrator(t *testing.T, opts ...Option) (*Orchestrator, string) {
	t.Helper()
	o := New(memory.New(), opts...)
	res := o.CreateTeam(context.Background(), testActor, CreateTeamInput{Name: "Web", Key: "WEB"})
	require.True(t, res.Success, "create team: %+v", res.Error)
	team := res.Entity.(*types.Team)
	return o, team.ID
}

func TestCreateTeamProvisionsDefaults(t *testing.T) {
	ctx := context.Background()
	o, teamID := newTestOrchestrator(t)

	states, err := o.Store().ListWorkflowStates(ctx, teamID)
	require.NoError(t, err)
	require.Len(t, states, 4)
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = s.Name
	}
	require.Equal(t, []string{"Backlog", "Todo", "In Progress", "Done"}, names)

	m, err := o.Store().GetMembership(ctx, teamID, testActor.UserID)
	require.NoError(t, err)
	require.Equal(t, types.RoleAdmin, m.Role)
}

func TestCreateIssueResolvesAndDefaults(t *testing.T) {
	ctx := context.Background()
	o, teamID := newTestOrchestrator(t)

	res := o.CreateIssue(ctx, testActor, teamID, CreateIssueInput{
		Title:           "Fix login",
		WorkflowStateID: "Todo",
	})
	require.True(t, res.Success, "%+v", res.Error)
	issue := res.Entity.(*types.Issue)
	require.Equal(t, 1, issue.Number)
	require.Equal(t, types.PriorityNone, issue.Priority)
	require.Equal(t, `Issue #1 "Fix login" has been created successfully.`, res.Message)

	// State resolved to the team's "Todo" state id, not the raw name.
	states, err := o.Store().ListWorkflowStates(ctx, teamID)
	require.NoError(t, err)
	var todoID string
	for _, s := range states {
		if s.Name == "Todo" {
			todoID = s.ID
		}
	}
	require.Equal(t, todoID, issue.StateID)

	res = o.CreateIssue(ctx, testActor, teamID, CreateIssueInput{Title: "Second", WorkflowStateID: "Todo"})
	require.True(t, res.Success)
	require.Equal(t, 2, res.Entity.(*types.Issue).Number)
}

func TestCreateIssueRoundTrip(t *testing.T) {
	ctx := context.Background()
	o, teamID := newTestOrchestrator(t)

	pr := o.CreateProject(ctx, testActor, teamID, CreateProjectInput{Name: "Mobile", Key: "MOB"})
	require.True(t, pr.Success)
	project := pr.Entity.(*types.Project)

	res := o.CreateIssue(ctx, testActor, teamID, CreateIssueInput{
		Title:           "Polish onboarding",
		WorkflowStateID: "Backlog",
		ProjectID:       "Mobile",
		AssigneeID:      "Ada Lovelace",
	})
	require.True(t, res.Success, "%+v", res.Error)
	created := res.Entity.(*types.Issue)

	got := o.GetIssue(ctx, teamID, created.ID)
	require.True(t, got.Success)
	view := got.Entity.(*types.IssueView)
	require.Equal(t, created.StateID, view.StateID)
	require.Equal(t, project.ID, view.ProjectID)
	require.Equal(t, testActor.UserID, view.AssigneeID)
	require.Equal(t, "Ada Lovelace", view.AssigneeName)
}

func TestCreateIssueUnknownState(t *testing.T) {
	o, teamID := newTestOrchestrator(t)

	res := o.CreateIssue(context.Background(), testActor, teamID, CreateIssueInput{
		Title:           "No state",
		WorkflowStateID: "Shipped",
	})
	require.False(t, res.Success)
	require.Equal(t, FailureNotFound, res.Error.Kind)
	require.Equal(t, "Shipped", res.Error.Reference)
}

func TestCreateIssueDropsUnknownProject(t *testing.T) {
	ctx := context.Background()
	o, teamID := newTestOrchestrator(t)

	res := o.CreateIssue(ctx, testActor, teamID, CreateIssueInput{
		Title:           "Stale board filter",
		WorkflowStateID: "Todo",
		ProjectID:       "pr-from-another-team",
	})
	require.True(t, res.Success, "%+v", res.Error)
	require.Empty(t, res.Entity.(*types.Issue).ProjectID)
}

func TestCreateIssueUnassignedSentinel(t *testing.T) {
	o, teamID := newTestOrchestrator(t)

	res := o.CreateIssue(context.Background(), testActor, teamID, CreateIssueInput{
		Title:           "Nobody's problem",
		WorkflowStateID: "Todo",
		AssigneeID:      "unassigned",
	})
	require.True(t, res.Success, "%+v", res.Error)
	require.Empty(t, res.Entity.(*types.Issue).AssigneeID)
}

func TestUpdateIssueByTitle(t *testing.T) {
	ctx := context.Background()
	o, teamID := newTestOrchestrator(t)

	res := o.CreateIssue(ctx, testActor, teamID, CreateIssueInput{Title: "Fix login page", WorkflowStateID: "Todo"})
	require.True(t, res.Success)

	high := "high"
	upd := o.UpdateIssue(ctx, testActor, teamID, UpdateIssueInput{
		Title:    "login",
		Priority: &high,
	})
	require.True(t, upd.Success, "%+v", upd.Error)
	require.Equal(t, types.PriorityHigh, upd.Entity.(*types.Issue).Priority)
}

func TestUpdateIssueAmbiguousTitle(t *testing.T) {
	ctx := context.Background()
	o, teamID := newTestOrchestrator(t)

	for _, title := range []string{"Fix login page", "Fix logout flow"} {
		res := o.CreateIssue(ctx, testActor, teamID, CreateIssueInput{Title: title, WorkflowStateID: "Todo"})
		require.True(t, res.Success)
	}

	desc := "now with more detail"
	upd := o.UpdateIssue(ctx, testActor, teamID, UpdateIssueInput{Title: "Fix log", Description: &desc})
	require.False(t, upd.Success)
	require.Equal(t, FailureAmbiguous, upd.Error.Kind)
	require.Len(t, upd.Error.Candidates, 2)
	// Candidate labels carry issue numbers for re-prompting.
	require.Contains(t, upd.Error.Candidates[0].Label, "#")
}

func TestDeleteIssueByMissingTitle(t *testing.T) {
	ctx := context.Background()
	o, teamID := newTestOrchestrator(t)

	res := o.CreateIssue(ctx, testActor, teamID, CreateIssueInput{Title: "Keep me", WorkflowStateID: "Todo"})
	require.True(t, res.Success)

	del := o.DeleteIssue(ctx, testActor, teamID, "", "nonexistent")
	require.False(t, del.Success)
	require.Equal(t, FailureNotFound, del.Error.Kind)
	require.Contains(t, del.Error.Message, `"nonexistent"`)

	// Store unchanged.
	n, err := o.Store().CountIssues(ctx, teamID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestListIssuesMessages(t *testing.T) {
	ctx := context.Background()
	o, teamID := newTestOrchestrator(t)

	for i := 0; i < 3; i++ {
		res := o.CreateIssue(ctx, testActor, teamID, CreateIssueInput{
			Title:           fmt.Sprintf("Issue %d", i+1),
			WorkflowStateID: "Todo",
		})
		require.True(t, res.Success)
	}

	all := o.ListIssues(ctx, teamID, ListIssuesInput{})
	require.True(t, all.Success)
	require.Equal(t, "Found all 3 issues", all.Message)
	list := all.Entity.(*IssueList)
	require.Equal(t, 3, list.Count)
	require.Equal(t, 3, list.Total)

	capped := o.ListIssues(ctx, teamID, ListIssuesInput{Limit: 2})
	require.True(t, capped.Success)
	require.Equal(t, "Found 2 of 3 issues", capped.Message)
}

func TestListIssuesResolvesFilterReferences(t *testing.T) {
	ctx := context.Background()
	o, teamID := newTestOrchestrator(t)

	res := o.CreateIssue(ctx, testActor, teamID, CreateIssueInput{Title: "Mine", WorkflowStateID: "Todo", AssigneeID: "Ada Lovelace"})
	require.True(t, res.Success, "%+v", res.Error)
	res = o.CreateIssue(ctx, testActor, teamID, CreateIssueInput{Title: "Nobody's", WorkflowStateID: "Todo"})
	require.True(t, res.Success)

	mine := o.ListIssues(ctx, teamID, ListIssuesInput{Assignees: []string{"Ada Lovelace"}})
	require.True(t, mine.Success, "%+v", mine.Error)
	require.Equal(t, 1, mine.Entity.(*IssueList).Count)

	free := o.ListIssues(ctx, teamID, ListIssuesInput{Assignees: []string{"unassigned"}})
	require.True(t, free.Success)
	require.Equal(t, 1, free.Entity.(*IssueList).Count)
}

func TestUpdateProjectAmbiguousName(t *testing.T) {
	ctx := context.Background()
	o, teamID := newTestOrchestrator(t)

	for _, p := range []CreateProjectInput{{Name: "Web", Key: "WEBP"}, {Name: "Web App", Key: "APP"}} {
		res := o.CreateProject(ctx, testActor, teamID, p)
		require.True(t, res.Success, "%+v", res.Error)
	}

	status := "completed"
	upd := o.UpdateProject(ctx, testActor, teamID, UpdateProjectInput{Name: "Web", Status: &status})
	require.False(t, upd.Success)
	require.Equal(t, FailureAmbiguous, upd.Error.Kind)
	require.Len(t, upd.Error.Candidates, 2)

	// No mutation performed.
	projects, err := o.Store().ListProjects(ctx, teamID)
	require.NoError(t, err)
	for _, p := range projects {
		require.Equal(t, types.ProjectActive, p.Status)
	}
}

func TestCreateProjectDefaults(t *testing.T) {
	o, teamID := newTestOrchestrator(t)

	res := o.CreateProject(context.Background(), testActor, teamID, CreateProjectInput{Name: "Infra", Key: "inf"})
	require.True(t, res.Success, "%+v", res.Error)
	project := res.Entity.(*types.Project)
	require.Equal(t, "INF", project.Key)
	require.Equal(t, types.DefaultProjectColor, project.Color)
	require.Equal(t, types.ProjectActive, project.Status)
}

func TestInviteTeamMemberDuplicatePending(t *testing.T) {
	ctx := context.Background()
	o, teamID := newTestOrchestrator(t)

	first := o.InviteTeamMember(ctx, testActor, teamID, InviteTeamMemberInput{Email: "a@b.com"})
	require.True(t, first.Success, "%+v", first.Error)

	second := o.InviteTeamMember(ctx, testActor, teamID, InviteTeamMemberInput{Email: "a@b.com"})
	require.False(t, second.Success)
	require.Equal(t, "Invitation already sent to this email", second.Error.Message)

	invs, err := o.Store().ListInvitations(ctx, teamID)
	require.NoError(t, err)
	require.Len(t, invs, 1)
}

type failingMailer struct{}

func (failingMailer) SendInvitation(context.Context, *types.Invitation, *types.Team, string) error {
	return errors.New("smtp down")
}

var _ mail.Mailer = failingMailer{}

func TestInviteEmailFailureDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	o, teamID := newTestOrchestrator(t, WithMailer(failingMailer{}), WithLogger(slog.Default()))

	res := o.InviteTeamMember(ctx, testActor, teamID, InviteTeamMemberInput{Email: "a@b.com"})
	require.True(t, res.Success, "%+v", res.Error)

	invs, err := o.Store().ListInvitations(ctx, teamID)
	require.NoError(t, err)
	require.Len(t, invs, 1)
	require.Equal(t, types.InvitePending, invs[0].Status)
}

func TestAcceptInvitation(t *testing.T) {
	ctx := context.Background()
	o, teamID := newTestOrchestrator(t)

	res := o.InviteTeamMember(ctx, testActor, teamID, InviteTeamMemberInput{Email: "grace@example.com", Role: "viewer"})
	require.True(t, res.Success)
	inv := res.Entity.(*types.Invitation)

	grace := Actor{UserID: "user-2", DisplayName: "Grace Hopper", Email: "grace@example.com"}
	acc := o.AcceptInvitation(ctx, grace, teamID, inv.ID)
	require.True(t, acc.Success, "%+v", acc.Error)

	m, err := o.Store().GetMembership(ctx, teamID, "user-2")
	require.NoError(t, err)
	require.Equal(t, types.RoleViewer, m.Role)

	// Wrong email cannot accept.
	res = o.InviteTeamMember(ctx, testActor, teamID, InviteTeamMemberInput{Email: "other@example.com"})
	require.True(t, res.Success)
	inv = res.Entity.(*types.Invitation)
	bad := o.AcceptInvitation(ctx, grace, teamID, inv.ID)
	require.False(t, bad.Success)
	require.Equal(t, FailureUnauthorized, bad.Error.Kind)
}

func TestGetTeamStats(t *testing.T) {
	ctx := context.Background()
	o, teamID := newTestOrchestrator(t)

	res := o.CreateIssue(ctx, testActor, teamID, CreateIssueInput{Title: "One", WorkflowStateID: "Todo", Priority: "high"})
	require.True(t, res.Success)

	stats := o.GetTeamStats(ctx, teamID)
	require.True(t, stats.Success)
	ts := stats.Entity.(*types.TeamStats)
	require.Equal(t, 1, ts.Total)
	require.Equal(t, 1, ts.ByState["Todo"])
	require.Equal(t, 1, ts.ByPriority["high"])
}

func TestDispatchRoutesAndRejectsUnknown(t *testing.T) {
	ctx := context.Background()
	o, teamID := newTestOrchestrator(t)

	res := o.Dispatch(ctx, testActor, teamID, "createIssue",
		[]byte(`{"title":"Via tool","workflowStateId":"Todo"}`))
	require.True(t, res.Success, "%+v", res.Error)

	res = o.Dispatch(ctx, testActor, teamID, "listIssues", nil)
	require.True(t, res.Success)
	require.Equal(t, "Found all 1 issues", res.Message)

	res = o.Dispatch(ctx, testActor, teamID, "selfDestruct", []byte(`{}`))
	require.False(t, res.Success)
	require.Equal(t, FailureValidation, res.Error.Kind)
}

func TestMissingTeam(t *testing.T) {
	o := New(memory.New())
	res := o.ListProjects(context.Background(), "ghost")
	require.False(t, res.Success)
	require.Equal(t, FailureNotFound, res.Error.Kind)
}

func TestCreateIssueAssignsTimestamps(t *testing.T) {
	ctx := context.Background()
	o, teamID := newTestOrchestrator(t)

	res := o.CreateIssue(ctx, testActor, teamID, CreateIssueInput{
		Title:           "Fix login",
		WorkflowStateID: "Todo",
	})
	require.True(t, res.Success, "%+v", res.Error)
	issue := res.Entity.(*types.Issue)
	require.False(t, issue.CreatedAt.IsZero(), "created issue carries no CreatedAt")
	require.False(t, issue.UpdatedAt.IsZero(), "created issue carries no UpdatedAt")

	stored, err := o.Store().GetIssue(ctx, teamID, issue.ID)
	require.NoError(t, err)
	require.False(t, stored.CreatedAt.IsZero())
	require.False(t, stored.UpdatedAt.IsZero())
}

func TestUpdateIssueRejectsInvalidTitle(t *testing.T) {
	ctx := context.Background()
	o, teamID := newTestOrchestrator(t)

	res := o.CreateIssue(ctx, testActor, teamID, CreateIssueInput{Title: "Fix login", WorkflowStateID: "Todo"})
	require.True(t, res.Success)
	issue := res.Entity.(*types.Issue)

	for _, title := range []string{"", "   ", strings.Repeat("x", types.MaxTitleLength+1)} {
		bad := title
		res = o.UpdateIssue(ctx, testActor, teamID, UpdateIssueInput{ID: issue.ID, NewTitle: &bad})
		require.False(t, res.Success, "title %q accepted", title)
		require.Equal(t, FailureValidation, res.Error.Kind)
	}

	stored, err := o.Store().GetIssue(ctx, teamID, issue.ID)
	require.NoError(t, err)
	require.Equal(t, "Fix login", stored.Title)
}

func TestUpdateProjectRejectsInvalidKey(t *testing.T) {
	ctx := context.Background()
	o, teamID := newTestOrchestrator(t)

	res := o.CreateProject(ctx, testActor, teamID, CreateProjectInput{Name: "Mobile", Key: "MOB"})
	require.True(t, res.Success)
	project := res.Entity.(*types.Project)

	for _, key := range []string{"A B", "TOOLONGKEYXXXXX", ""} {
		bad := key
		res = o.UpdateProject(ctx, testActor, teamID, UpdateProjectInput{ID: project.ID, Key: &bad})
		require.False(t, res.Success, "key %q accepted", key)
		require.Equal(t, FailureValidation, res.Error.Kind)
	}

	empty := " "
	res = o.UpdateProject(ctx, testActor, teamID, UpdateProjectInput{ID: project.ID, NewName: &empty})
	require.False(t, res.Success)
	require.Equal(t, FailureValidation, res.Error.Kind)

	stored, err := o.Store().GetProject(ctx, teamID, project.ID)
	require.NoError(t, err)
	require.Equal(t, "MOB", stored.Key)
	require.Equal(t, "Mobile", stored.Name)
}
