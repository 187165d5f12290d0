// Package query implements the issue query engine: multi-field filtering,
// deterministic ordering, denormalized projections, and aggregate stats.
//
// Filtering and sorting are pure functions over an in-memory snapshot; the
// engine only reads through the store and never mutates.
package query

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tracklane/tracklane/internal/storage"
	"github.com/tracklane/tracklane/internal/types"
)

// Engine serves issue list and stats queries for a store.
type Engine struct {
	store storage.Store
}

// New creates a query engine backed by the given store.
func New(store storage.Store) *Engine {
	return &Engine{store: store}
}

// snapshot holds one team's issue-related rows, fetched together so a single
// query sees a consistent projection.
type snapshot struct {
	issues        []*types.Issue
	projects      map[string]*types.Project
	states        map[string]*types.WorkflowState
	labels        map[string]*types.Label
	labelsByIssue map[string][]string
	commentCounts map[string]int
}

// load fetches the team snapshot. The reads are independent, so they run
// concurrently; any single failure fails the whole load.
func (e *Engine) load(ctx context.Context, teamID string) (*snapshot, error) {
	snap := &snapshot{
		projects:      make(map[string]*types.Project),
		states:        make(map[string]*types.WorkflowState),
		labels:        make(map[string]*types.Label),
		labelsByIssue: make(map[string][]string),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		issues, err := e.store.ListIssues(ctx, teamID)
		if err != nil {
			return err
		}
		snap.issues = issues
		return nil
	})
	g.Go(func() error {
		projects, err := e.store.ListProjects(ctx, teamID)
		if err != nil {
			return err
		}
		for _, p := range projects {
			snap.projects[p.ID] = p
		}
		return nil
	})
	g.Go(func() error {
		states, err := e.store.ListWorkflowStates(ctx, teamID)
		if err != nil {
			return err
		}
		for _, st := range states {
			snap.states[st.ID] = st
		}
		return nil
	})
	g.Go(func() error {
		labels, err := e.store.ListLabels(ctx, teamID)
		if err != nil {
			return err
		}
		for _, l := range labels {
			snap.labels[l.ID] = l
		}
		return nil
	})
	g.Go(func() error {
		links, err := e.store.ListIssueLabels(ctx, teamID)
		if err != nil {
			return err
		}
		for _, link := range links {
			snap.labelsByIssue[link.IssueID] = append(snap.labelsByIssue[link.IssueID], link.LabelID)
		}
		return nil
	})
	g.Go(func() error {
		counts, err := e.store.CountCommentsByIssue(ctx, teamID)
		if err != nil {
			return err
		}
		snap.commentCounts = counts
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// ListIssues returns the filtered, sorted issue views for a team.
func (e *Engine) ListIssues(ctx context.Context, teamID string, filter types.IssueFilter, spec types.SortSpec) ([]*types.IssueView, error) {
	snap, err := e.load(ctx, teamID)
	if err != nil {
		return nil, err
	}

	matched := make([]*types.Issue, 0, len(snap.issues))
	for _, issue := range snap.issues {
		if Match(issue, snap.labelsByIssue[issue.ID], &filter) {
			matched = append(matched, issue)
		}
	}

	Sort(matched, spec)

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	views := make([]*types.IssueView, 0, len(matched))
	for _, issue := range matched {
		views = append(views, snap.view(issue))
	}
	return views, nil
}

// GetIssue returns the denormalized view of a single issue.
func (e *Engine) GetIssue(ctx context.Context, teamID, issueID string) (*types.IssueView, error) {
	issue, err := e.store.GetIssue(ctx, teamID, issueID)
	if err != nil {
		return nil, err
	}
	snap, err := e.load(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return snap.view(issue), nil
}

// Stats returns aggregate counts for a team: total plus groupings by state,
// priority, and assignee.
func (e *Engine) Stats(ctx context.Context, teamID string) (*types.TeamStats, error) {
	snap, err := e.load(ctx, teamID)
	if err != nil {
		return nil, err
	}

	stats := &types.TeamStats{
		Total:      len(snap.issues),
		ByState:    make(map[string]int),
		ByPriority: make(map[string]int),
		ByAssignee: make(map[string]int),
	}
	for _, issue := range snap.issues {
		stateKey := issue.StateID
		if st, ok := snap.states[issue.StateID]; ok {
			stateKey = st.Name
		}
		stats.ByState[stateKey]++
		stats.ByPriority[string(issue.Priority)]++

		assigneeKey := "unassigned"
		if issue.AssigneeID != "" {
			assigneeKey = issue.AssigneeName
			if assigneeKey == "" {
				assigneeKey = issue.AssigneeID
			}
		}
		stats.ByAssignee[assigneeKey]++
	}
	return stats, nil
}

func (s *snapshot) view(issue *types.Issue) *types.IssueView {
	v := &types.IssueView{
		Issue:        *issue,
		CommentCount: s.commentCounts[issue.ID],
	}
	if p, ok := s.projects[issue.ProjectID]; ok {
		v.Project = p
	}
	if st, ok := s.states[issue.StateID]; ok {
		v.State = st
	}
	for _, labelID := range s.labelsByIssue[issue.ID] {
		if l, ok := s.labels[labelID]; ok {
			v.Labels = append(v.Labels, *l)
		}
	}
	return v
}

// Match reports whether an issue satisfies every non-empty field of the
// filter. Unknown ids in the filter simply match nothing; that is not an
// error.
func Match(issue *types.Issue, issueLabels []string, filter *types.IssueFilter) bool {
	if len(filter.States) > 0 && !containsString(filter.States, issue.StateID) {
		return false
	}
	if len(filter.Assignees) > 0 && !containsString(filter.Assignees, issue.AssigneeID) {
		return false
	}
	if len(filter.Projects) > 0 && !containsString(filter.Projects, issue.ProjectID) {
		return false
	}
	if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, issue.Priority) {
		return false
	}
	if len(filter.Labels) > 0 && !anyOverlap(filter.Labels, issueLabels) {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(issue.Title), needle) &&
			!strings.Contains(strings.ToLower(issue.Description), needle) {
			return false
		}
	}
	return true
}

// Sort orders issues by the given spec with a total-order tie-break on issue
// id ascending, so repeated calls over an unchanged set yield identical
// ordering.
func Sort(issues []*types.Issue, spec types.SortSpec) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if c := compareField(a, b, spec.Field); c != 0 {
			if spec.Direction == types.SortDesc {
				return c > 0
			}
			return c < 0
		}
		return a.ID < b.ID
	})
}

func compareField(a, b *types.Issue, field types.SortField) int {
	switch field {
	case types.SortFieldTitle:
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case types.SortFieldNumber:
		return a.Number - b.Number
	case types.SortFieldUpdated:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case types.SortFieldPriority:
		return a.Priority.Rank() - b.Priority.Rank()
	default: // SortFieldCreated
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func containsString(set []string, value string) bool {
	for _, s := range set {
		if s == value {
			return true
		}
	}
	return false
}

func containsPriority(set []types.Priority, value types.Priority) bool {
	for _, p := range set {
		if p == value {
			return true
		}
	}
	return false
}

func anyOverlap(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}
