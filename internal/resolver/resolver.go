// Package resolver converts ambiguous human-supplied references (a name, a
// key, or an id) into a single team-scoped entity id.
//
// Every resolution returns exactly one of three outcomes (Resolved,
// NotFound, or Ambiguous) as a tagged result, so call sites must handle all
// three branches. The resolver performs no writes; it is a pure function of
// (team snapshot, reference string, match mode).
package resolver

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tracklane/tracklane/internal/storage"
	"github.com/tracklane/tracklane/internal/types"
)

// Status tags the outcome of a resolution
type Status string

// Resolution outcome constants
const (
	StatusResolved  Status = "resolved"
	StatusNotFound  Status = "not_found"
	StatusAmbiguous Status = "ambiguous"
)

// Candidate is one possible match, surfaced to the caller for disambiguation.
type Candidate struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Resolution is the tagged result of resolving a reference. ID is set only
// when Status is StatusResolved; Candidates only when StatusAmbiguous. Input
// always carries the original reference string for error reporting.
type Resolution struct {
	Status     Status
	ID         string
	Input      string
	Candidates []Candidate
}

// Resolved reports whether the resolution produced a single id.
func (r Resolution) Resolved() bool { return r.Status == StatusResolved }

func resolved(input, id string) Resolution {
	return Resolution{Status: StatusResolved, ID: id, Input: input}
}

func notFound(input string) Resolution {
	return Resolution{Status: StatusNotFound, Input: input}
}

func ambiguous(input string, candidates []Candidate) Resolution {
	return Resolution{Status: StatusAmbiguous, Input: input, Candidates: candidates}
}

// TeamContext is the snapshot the resolver matches against: every project,
// workflow state, label, and member of one team.
type TeamContext struct {
	Team     *types.Team
	Projects []*types.Project
	States   []*types.WorkflowState
	Labels   []*types.Label
	Members  []*types.Membership
}

// LoadTeamContext assembles the resolution snapshot for a team. The four
// collection reads are independent and issued concurrently; a failure in any
// one fails the whole assembly, since resolution needs complete context.
func LoadTeamContext(ctx context.Context, store storage.Store, teamID string) (*TeamContext, error) {
	tc := &TeamContext{}

	team, err := store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("loading team: %w", err)
	}
	tc.Team = team

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		projects, err := store.ListProjects(ctx, teamID)
		if err != nil {
			return fmt.Errorf("loading projects: %w", err)
		}
		tc.Projects = projects
		return nil
	})
	g.Go(func() error {
		states, err := store.ListWorkflowStates(ctx, teamID)
		if err != nil {
			return fmt.Errorf("loading workflow states: %w", err)
		}
		tc.States = states
		return nil
	})
	g.Go(func() error {
		labels, err := store.ListLabels(ctx, teamID)
		if err != nil {
			return fmt.Errorf("loading labels: %w", err)
		}
		tc.Labels = labels
		return nil
	})
	g.Go(func() error {
		members, err := store.ListMemberships(ctx, teamID)
		if err != nil {
			return fmt.Errorf("loading members: %w", err)
		}
		tc.Members = members
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tc, nil
}

// ResolveWorkflowState resolves a reference to a workflow state id: exact id
// match first, then case-insensitive exact name match.
func (tc *TeamContext) ResolveWorkflowState(ref string) Resolution {
	ref = strings.TrimSpace(ref)
	for _, st := range tc.States {
		if st.ID == ref {
			return resolved(ref, st.ID)
		}
	}
	var matches []Candidate
	for _, st := range tc.States {
		if strings.EqualFold(st.Name, ref) {
			matches = append(matches, Candidate{ID: st.ID, Label: st.Name})
		}
	}
	return fromMatches(ref, matches)
}

// ResolveProject resolves a reference to a project id: exact id match first,
// then case-insensitive exact match on key or name.
func (tc *TeamContext) ResolveProject(ref string) Resolution {
	ref = strings.TrimSpace(ref)
	for _, p := range tc.Projects {
		if p.ID == ref {
			return resolved(ref, p.ID)
		}
	}
	var matches []Candidate
	for _, p := range tc.Projects {
		if strings.EqualFold(p.Key, ref) || strings.EqualFold(p.Name, ref) {
			matches = append(matches, Candidate{ID: p.ID, Label: p.Name})
		}
	}
	return fromMatches(ref, matches)
}

// ResolveMember resolves a reference to a member user id: exact user id match
// first, then case-insensitive exact match on display name.
func (tc *TeamContext) ResolveMember(ref string) Resolution {
	ref = strings.TrimSpace(ref)
	for _, m := range tc.Members {
		if m.UserID == ref {
			return resolved(ref, m.UserID)
		}
	}
	var matches []Candidate
	for _, m := range tc.Members {
		if strings.EqualFold(m.UserName, ref) {
			matches = append(matches, Candidate{ID: m.UserID, Label: m.UserName})
		}
	}
	return fromMatches(ref, matches)
}

// ResolveLabel resolves a reference to a label id: exact id match first,
// then case-insensitive exact name match.
func (tc *TeamContext) ResolveLabel(ref string) Resolution {
	ref = strings.TrimSpace(ref)
	for _, l := range tc.Labels {
		if l.ID == ref {
			return resolved(ref, l.ID)
		}
	}
	var matches []Candidate
	for _, l := range tc.Labels {
		if strings.EqualFold(l.Name, ref) {
			matches = append(matches, Candidate{ID: l.ID, Label: l.Name})
		}
	}
	return fromMatches(ref, matches)
}

// MemberName returns the display name snapshot for a member user id.
func (tc *TeamContext) MemberName(userID string) string {
	for _, m := range tc.Members {
		if m.UserID == userID {
			return m.UserName
		}
	}
	return ""
}

// ResolveProjectByName resolves in free-text mode for update/delete flows:
// exact id match first, then case-insensitive substring match against project
// names. More than one substring match is Ambiguous, carrying all candidates.
func (tc *TeamContext) ResolveProjectByName(ref string) Resolution {
	ref = strings.TrimSpace(ref)
	for _, p := range tc.Projects {
		if p.ID == ref {
			return resolved(ref, p.ID)
		}
	}
	needle := strings.ToLower(ref)
	var matches []Candidate
	for _, p := range tc.Projects {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			matches = append(matches, Candidate{ID: p.ID, Label: p.Name})
		}
	}
	return fromMatches(ref, matches)
}

// ResolveIssueByTitle resolves in free-text mode against a team's issues:
// exact id match first, then case-insensitive substring match against titles.
// Candidate labels carry the issue number so the caller can re-prompt with a
// disambiguated id.
func ResolveIssueByTitle(issues []*types.Issue, ref string) Resolution {
	ref = strings.TrimSpace(ref)
	for _, issue := range issues {
		if issue.ID == ref {
			return resolved(ref, issue.ID)
		}
	}
	needle := strings.ToLower(ref)
	var matches []Candidate
	for _, issue := range issues {
		if strings.Contains(strings.ToLower(issue.Title), needle) {
			matches = append(matches, Candidate{
				ID:    issue.ID,
				Label: fmt.Sprintf("#%d %s", issue.Number, issue.Title),
			})
		}
	}
	return fromMatches(ref, matches)
}

// fromMatches maps a candidate list to a resolution: zero is NotFound, one
// is Resolved, more is Ambiguous carrying every candidate. Ambiguity is a
// first-class outcome, never guessed through.
func fromMatches(ref string, matches []Candidate) Resolution {
	switch len(matches) {
	case 0:
		return notFound(ref)
	case 1:
		return resolved(ref, matches[0].ID)
	default:
		return ambiguous(ref, matches)
	}
}
