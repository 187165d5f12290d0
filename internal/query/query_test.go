package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tracklane/tracklane/internal/storage/memory"
	"github.com/tracklane/tracklane/internal/types"
)

const teamID = "team-1"

func seedEngine(t *testing.T) (*Engine, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	require.NoError(t, store.CreateTeam(ctx, &types.Team{ID: teamID, Name: "Web", Key: "WEB"}))

	states := []*types.WorkflowState{
		{ID: "st-todo", TeamID: teamID, Name: "Todo", Type: types.StateUnstarted, Position: 1},
		{ID: "st-done", TeamID: teamID, Name: "Done", Type: types.StateCompleted, Position: 2},
	}
	for _, st := range states {
		require.NoError(t, store.CreateWorkflowState(ctx, st))
	}

	require.NoError(t, store.CreateProject(ctx, &types.Project{
		ID: "pr-web", TeamID: teamID, Name: "Website", Key: "WEB", Status: types.ProjectActive,
	}))
	require.NoError(t, store.CreateLabel(ctx, &types.Label{ID: "lb-bug", TeamID: teamID, Name: "bug"}))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	issues := []*types.Issue{
		{ID: "is-a", TeamID: teamID, Title: "Fix login page", Description: "OAuth broken",
			Priority: types.PriorityHigh, StateID: "st-todo", ProjectID: "pr-web",
			AssigneeID: "user-1", AssigneeName: "Ada", CreatorID: "user-1",
			CreatedAt: base, UpdatedAt: base},
		{ID: "is-b", TeamID: teamID, Title: "Update docs", Priority: types.PriorityNone,
			StateID: "st-todo", CreatorID: "user-1",
			CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour)},
		{ID: "is-c", TeamID: teamID, Title: "Ship release", Priority: types.PriorityUrgent,
			StateID: "st-done", AssigneeID: "user-2", AssigneeName: "Grace", CreatorID: "user-1",
			CreatedAt: base.Add(2 * time.Hour), UpdatedAt: base.Add(2 * time.Hour)},
	}
	for _, issue := range issues {
		require.NoError(t, store.CreateIssue(ctx, issue))
	}
	require.NoError(t, store.AddIssueLabel(ctx, teamID, "is-a", "lb-bug"))

	return New(store), store
}

func TestListIssuesEmptyFilterReturnsAll(t *testing.T) {
	engine, _ := seedEngine(t)
	views, err := engine.ListIssues(context.Background(), teamID, types.IssueFilter{}, types.DefaultSortSpec())
	require.NoError(t, err)
	require.Len(t, views, 3)

	// Default sort is createdAt desc.
	require.Equal(t, "is-c", views[0].ID)
	require.Equal(t, "is-b", views[1].ID)
	require.Equal(t, "is-a", views[2].ID)
}

func TestListIssuesFilterAndSemantics(t *testing.T) {
	engine, _ := seedEngine(t)
	ctx := context.Background()

	// State + assignee must both hold.
	views, err := engine.ListIssues(ctx, teamID, types.IssueFilter{
		States:    []string{"st-todo"},
		Assignees: []string{"user-1"},
	}, types.DefaultSortSpec())
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, "is-a", views[0].ID)

	// Same state, different assignee: no match.
	views, err = engine.ListIssues(ctx, teamID, types.IssueFilter{
		States:    []string{"st-todo"},
		Assignees: []string{"user-2"},
	}, types.DefaultSortSpec())
	require.NoError(t, err)
	require.Empty(t, views)
}

func TestListIssuesLabelFilter(t *testing.T) {
	engine, _ := seedEngine(t)
	views, err := engine.ListIssues(context.Background(), teamID, types.IssueFilter{
		Labels: []string{"lb-bug"},
	}, types.DefaultSortSpec())
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, "is-a", views[0].ID)
	require.Len(t, views[0].Labels, 1)
	require.Equal(t, "bug", views[0].Labels[0].Name)
}

func TestListIssuesSearchIsCaseInsensitive(t *testing.T) {
	engine, _ := seedEngine(t)
	ctx := context.Background()

	views, err := engine.ListIssues(ctx, teamID, types.IssueFilter{Search: "LOGIN"}, types.DefaultSortSpec())
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, "is-a", views[0].ID)

	// Description matches too.
	views, err = engine.ListIssues(ctx, teamID, types.IssueFilter{Search: "oauth"}, types.DefaultSortSpec())
	require.NoError(t, err)
	require.Len(t, views, 1)
}

func TestListIssuesUnknownFilterIDsMatchNothing(t *testing.T) {
	engine, _ := seedEngine(t)
	views, err := engine.ListIssues(context.Background(), teamID, types.IssueFilter{
		Projects: []string{"pr-ghost"},
	}, types.DefaultSortSpec())
	require.NoError(t, err)
	require.Empty(t, views)
}

func TestListIssuesLimit(t *testing.T) {
	engine, _ := seedEngine(t)
	views, err := engine.ListIssues(context.Background(), teamID, types.IssueFilter{Limit: 2}, types.DefaultSortSpec())
	require.NoError(t, err)
	require.Len(t, views, 2)
}

func TestSortPriorityWithIDTieBreak(t *testing.T) {
	now := time.Now()
	issues := []*types.Issue{
		{ID: "z", Priority: types.PriorityHigh, CreatedAt: now},
		{ID: "a", Priority: types.PriorityHigh, CreatedAt: now},
		{ID: "m", Priority: types.PriorityUrgent, CreatedAt: now},
	}
	Sort(issues, types.SortSpec{Field: types.SortFieldPriority, Direction: types.SortDesc})

	require.Equal(t, "m", issues[0].ID)
	// Equal priorities fall back to id ascending.
	require.Equal(t, "a", issues[1].ID)
	require.Equal(t, "z", issues[2].ID)
}

func TestSortIsDeterministicAcrossCalls(t *testing.T) {
	engine, _ := seedEngine(t)
	ctx := context.Background()
	spec := types.SortSpec{Field: types.SortFieldTitle, Direction: types.SortAsc}

	first, err := engine.ListIssues(ctx, teamID, types.IssueFilter{}, spec)
	require.NoError(t, err)
	second, err := engine.ListIssues(ctx, teamID, types.IssueFilter{}, spec)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestGetIssueProjection(t *testing.T) {
	engine, store := seedEngine(t)
	ctx := context.Background()
	require.NoError(t, store.AddComment(ctx, teamID, &types.Comment{
		ID: "cm-1", IssueID: "is-a", AuthorID: "user-1", Body: "on it",
	}))

	view, err := engine.GetIssue(ctx, teamID, "is-a")
	require.NoError(t, err)
	require.NotNil(t, view.Project)
	require.Equal(t, "Website", view.Project.Name)
	require.NotNil(t, view.State)
	require.Equal(t, "Todo", view.State.Name)
	require.Equal(t, 1, view.CommentCount)
}

func TestStats(t *testing.T) {
	engine, _ := seedEngine(t)
	stats, err := engine.Stats(context.Background(), teamID)
	require.NoError(t, err)

	require.Equal(t, 3, stats.Total)
	require.Equal(t, 2, stats.ByState["Todo"])
	require.Equal(t, 1, stats.ByState["Done"])
	require.Equal(t, 1, stats.ByPriority["high"])
	require.Equal(t, 1, stats.ByPriority["urgent"])
	require.Equal(t, 1, stats.ByPriority["none"])
	require.Equal(t, 1, stats.ByAssignee["Ada"])
	require.Equal(t, 1, stats.ByAssignee["Grace"])
	require.Equal(t, 1, stats.ByAssignee["unassigned"])
}
