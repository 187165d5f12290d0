package resolver

import (
	"context"
	"testing"

	"github.com/tracklane/tracklane/internal/storage/memory"
	"github.com/tracklane/tracklane/internal/types"
)

func testContext() *TeamContext {
	return &TeamContext{
		Team: &types.Team{ID: "team-1", Name: "Web", Key: "WEB"},
		States: []*types.WorkflowState{
			{ID: "st-1", TeamID: "team-1", Name: "Backlog", Type: types.StateBacklog, Position: 0},
			{ID: "st-2", TeamID: "team-1", Name: "Todo", Type: types.StateUnstarted, Position: 1},
			{ID: "st-3", TeamID: "team-1", Name: "In Progress", Type: types.StateStarted, Position: 2},
		},
		Projects: []*types.Project{
			{ID: "pr-1", TeamID: "team-1", Name: "Web", Key: "WEB"},
			{ID: "pr-2", TeamID: "team-1", Name: "Web App", Key: "APP"},
			{ID: "pr-3", TeamID: "team-1", Name: "Mobile", Key: "MOB"},
		},
		Members: []*types.Membership{
			{TeamID: "team-1", UserID: "user-1", UserName: "Ada Lovelace"},
			{TeamID: "team-1", UserID: "user-2", UserName: "Grace Hopper"},
		},
	}
}

func TestResolveWorkflowStateByID(t *testing.T) {
	res := testContext().ResolveWorkflowState("st-2")
	if !res.Resolved() || res.ID != "st-2" {
		t.Fatalf("expected resolved st-2, got %+v", res)
	}
}

func TestResolveWorkflowStateByNameCaseInsensitive(t *testing.T) {
	res := testContext().ResolveWorkflowState("todo")
	if !res.Resolved() || res.ID != "st-2" {
		t.Fatalf("expected resolved st-2, got %+v", res)
	}

	res = testContext().ResolveWorkflowState("IN PROGRESS")
	if !res.Resolved() || res.ID != "st-3" {
		t.Fatalf("expected resolved st-3, got %+v", res)
	}
}

func TestResolveWorkflowStateNotFound(t *testing.T) {
	res := testContext().ResolveWorkflowState("Shipped")
	if res.Status != StatusNotFound {
		t.Fatalf("expected not found, got %+v", res)
	}
	if res.Input != "Shipped" {
		t.Fatalf("expected input carried through, got %q", res.Input)
	}
}

func TestResolveProjectByKeyOrName(t *testing.T) {
	res := testContext().ResolveProject("MOB")
	if !res.Resolved() || res.ID != "pr-3" {
		t.Fatalf("expected resolved pr-3 by key, got %+v", res)
	}

	res = testContext().ResolveProject("mobile")
	if !res.Resolved() || res.ID != "pr-3" {
		t.Fatalf("expected resolved pr-3 by name, got %+v", res)
	}
}

func TestResolveProjectByNameSubstringAmbiguity(t *testing.T) {
	// "Web" is a substring of both "Web" and "Web App"; free-text mode must
	// surface both rather than guessing.
	res := testContext().ResolveProjectByName("Web")
	if res.Status != StatusAmbiguous {
		t.Fatalf("expected ambiguous, got %+v", res)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(res.Candidates))
	}
}

func TestResolveMember(t *testing.T) {
	res := testContext().ResolveMember("user-2")
	if !res.Resolved() || res.ID != "user-2" {
		t.Fatalf("expected resolved user-2, got %+v", res)
	}

	res = testContext().ResolveMember("grace hopper")
	if !res.Resolved() || res.ID != "user-2" {
		t.Fatalf("expected resolved by name, got %+v", res)
	}
}

func TestResolveIssueByTitle(t *testing.T) {
	issues := []*types.Issue{
		{ID: "is-1", Number: 1, Title: "Fix login page"},
		{ID: "is-2", Number: 2, Title: "Fix logout flow"},
		{ID: "is-3", Number: 3, Title: "Write docs"},
	}

	res := ResolveIssueByTitle(issues, "docs")
	if !res.Resolved() || res.ID != "is-3" {
		t.Fatalf("expected resolved is-3, got %+v", res)
	}

	res = ResolveIssueByTitle(issues, "fix log")
	if res.Status != StatusAmbiguous {
		t.Fatalf("expected ambiguous, got %+v", res)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(res.Candidates))
	}
	if res.Candidates[0].Label != "#1 Fix login page" {
		t.Fatalf("expected candidate label with issue number, got %q", res.Candidates[0].Label)
	}

	res = ResolveIssueByTitle(issues, "is-2")
	if !res.Resolved() || res.ID != "is-2" {
		t.Fatalf("expected exact id match, got %+v", res)
	}

	res = ResolveIssueByTitle(issues, "nonexistent")
	if res.Status != StatusNotFound {
		t.Fatalf("expected not found, got %+v", res)
	}
}

// Resolver totality: every resolution is exactly one of the three outcomes,
// never an id plus an error state.
func TestResolutionTotality(t *testing.T) {
	tc := testContext()
	refs := []string{"st-1", "Todo", "Web", "nothing", "", "user-1", "web"}
	for _, ref := range refs {
		for _, res := range []Resolution{
			tc.ResolveWorkflowState(ref),
			tc.ResolveProject(ref),
			tc.ResolveMember(ref),
			tc.ResolveProjectByName(ref),
		} {
			switch res.Status {
			case StatusResolved:
				if res.ID == "" || len(res.Candidates) > 0 {
					t.Fatalf("resolved outcome carrying extras: %+v", res)
				}
			case StatusNotFound:
				if res.ID != "" || len(res.Candidates) > 0 {
					t.Fatalf("not-found outcome carrying extras: %+v", res)
				}
			case StatusAmbiguous:
				if res.ID != "" || len(res.Candidates) < 2 {
					t.Fatalf("ambiguous outcome malformed: %+v", res)
				}
			default:
				t.Fatalf("unknown status %q", res.Status)
			}
		}
	}
}

func TestLoadTeamContext(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	if err := store.CreateTeam(ctx, &types.Team{ID: "team-1", Name: "Web", Key: "WEB"}); err != nil {
		t.Fatalf("create team: %v", err)
	}
	if err := store.CreateWorkflowState(ctx, &types.WorkflowState{ID: "st-1", TeamID: "team-1", Name: "Todo", Type: types.StateUnstarted}); err != nil {
		t.Fatalf("create state: %v", err)
	}
	if err := store.CreateMembership(ctx, &types.Membership{TeamID: "team-1", UserID: "user-1", UserName: "Ada", Role: types.RoleAdmin}); err != nil {
		t.Fatalf("create membership: %v", err)
	}

	tc, err := LoadTeamContext(ctx, store, "team-1")
	if err != nil {
		t.Fatalf("load context: %v", err)
	}
	if tc.Team.Key != "WEB" {
		t.Fatalf("unexpected team %+v", tc.Team)
	}
	if len(tc.States) != 1 || len(tc.Members) != 1 {
		t.Fatalf("incomplete context: %d states, %d members", len(tc.States), len(tc.Members))
	}
}

func TestLoadTeamContextMissingTeam(t *testing.T) {
	if _, err := LoadTeamContext(context.Background(), memory.New(), "ghost"); err == nil {
		t.Fatal("expected error for missing team")
	}
}
