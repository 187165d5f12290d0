package commands

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tracklane/tracklane/internal/resolver"
	"github.com/tracklane/tracklane/internal/storage"
	"github.com/tracklane/tracklane/internal/types"
)

// CreateIssueInput is the payload for createIssue. WorkflowStateID is
// required; it and ProjectID/AssigneeID accept ids or names.
type CreateIssueInput struct {
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	Priority        string   `json:"priority,omitempty"`
	Estimate        *float64 `json:"estimate,omitempty"`
	ProjectID       string   `json:"projectId,omitempty"`
	WorkflowStateID string   `json:"workflowStateId"`
	AssigneeID      string   `json:"assigneeId,omitempty"`
	Labels          []string `json:"labels,omitempty"`
}

// CreateIssue validates and resolves the input, then persists a new issue.
// The store assigns the per-team sequence number.
func (o *Orchestrator) CreateIssue(ctx context.Context, actor Actor, teamID string, in CreateIssueInput) Result {
	now := time.Now().UTC()
	issue := &types.Issue{
		ID:          uuid.NewString(),
		TeamID:      teamID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    types.Priority(in.Priority),
		Estimate:    in.Estimate,
		CreatorID:   actor.UserID,
		CreatorName: actor.DisplayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	issue.SetDefaults()

	tc, failed, isFail := o.loadContext(ctx, "createIssue", teamID)
	if isFail {
		return failed
	}

	if in.WorkflowStateID == "" {
		return failValidation("workflow state is required")
	}
	state := tc.ResolveWorkflowState(in.WorkflowStateID)
	if !state.Resolved() {
		return failFromResolution("workflow state", state)
	}
	issue.StateID = state.ID

	// A project reference that matches nothing in the team is dropped
	// rather than failing the create; out-of-team ids arrive here when a
	// client reuses a stale board filter. Ambiguity still fails.
	if in.ProjectID != "" {
		switch proj := tc.ResolveProject(in.ProjectID); proj.Status {
		case resolver.StatusResolved:
			issue.ProjectID = proj.ID
		case resolver.StatusAmbiguous:
			return failAmbiguous("project", proj)
		}
	}

	if assignee := types.NormalizeAssignee(in.AssigneeID); assignee != "" {
		member := tc.ResolveMember(assignee)
		if !member.Resolved() {
			return failFromResolution("assignee", member)
		}
		issue.AssigneeID = member.ID
		issue.AssigneeName = tc.MemberName(member.ID)
	}

	labelIDs := make([]string, 0, len(in.Labels))
	for _, ref := range in.Labels {
		label := tc.ResolveLabel(ref)
		if !label.Resolved() {
			return failFromResolution("label", label)
		}
		labelIDs = append(labelIDs, label.ID)
	}

	if err := issue.Validate(); err != nil {
		return failValidation("%s", err)
	}

	if err := o.store.CreateIssue(ctx, issue); err != nil {
		return o.dependency("createIssue", err)
	}
	for _, labelID := range labelIDs {
		if err := o.store.AddIssueLabel(ctx, teamID, issue.ID, labelID); err != nil {
			return o.dependency("createIssue", err)
		}
	}

	return ok(issue, "Issue #%d %q has been created successfully.", issue.Number, issue.Title)
}

// UpdateIssueInput locates an issue by ID or, when ID is empty, by Title
// (substring match against the team's issues). Nil fields are unchanged.
type UpdateIssueInput struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`

	NewTitle        *string  `json:"newTitle,omitempty"`
	Description     *string  `json:"description,omitempty"`
	Priority        *string  `json:"priority,omitempty"`
	Estimate        *float64 `json:"estimate,omitempty"`
	ProjectID       *string  `json:"projectId,omitempty"`
	WorkflowStateID *string  `json:"workflowStateId,omitempty"`
	AssigneeID      *string  `json:"assigneeId,omitempty"`
	Completed       *bool    `json:"completed,omitempty"`
}

// UpdateIssue applies a partial update to an issue.
func (o *Orchestrator) UpdateIssue(ctx context.Context, actor Actor, teamID string, in UpdateIssueInput) Result {
	tc, failed, isFail := o.loadContext(ctx, "updateIssue", teamID)
	if isFail {
		return failed
	}

	issue, res := o.locateIssue(ctx, teamID, in.ID, in.Title)
	if issue == nil {
		return res
	}

	var patch storage.IssuePatch
	if in.NewTitle != nil {
		if err := types.ValidateTitle(*in.NewTitle); err != nil {
			return failValidation("%s", err)
		}
		patch.Title = in.NewTitle
	}
	if in.Description != nil {
		patch.Description = in.Description
	}
	if in.Priority != nil {
		p := types.Priority(*in.Priority)
		if !p.IsValid() {
			return failValidation("invalid priority: %s", *in.Priority)
		}
		patch.Priority = &p
	}
	if in.Estimate != nil {
		if *in.Estimate < 0 {
			return failValidation("estimate cannot be negative")
		}
		patch.Estimate = in.Estimate
	}
	if in.WorkflowStateID != nil {
		state := tc.ResolveWorkflowState(*in.WorkflowStateID)
		if !state.Resolved() {
			return failFromResolution("workflow state", state)
		}
		patch.StateID = &state.ID
	}
	if in.ProjectID != nil {
		switch proj := tc.ResolveProject(*in.ProjectID); proj.Status {
		case resolver.StatusResolved:
			patch.ProjectID = &proj.ID
		case resolver.StatusAmbiguous:
			return failAmbiguous("project", proj)
		default:
			// Unresolvable project references clear the field.
			empty := ""
			patch.ProjectID = &empty
		}
	}
	if in.AssigneeID != nil {
		assignee := types.NormalizeAssignee(*in.AssigneeID)
		if assignee == "" {
			empty := ""
			patch.AssigneeID = &empty
			patch.AssigneeName = &empty
		} else {
			member := tc.ResolveMember(assignee)
			if !member.Resolved() {
				return failFromResolution("assignee", member)
			}
			name := tc.MemberName(member.ID)
			patch.AssigneeID = &member.ID
			patch.AssigneeName = &name
		}
	}

	if err := o.store.UpdateIssue(ctx, teamID, issue.ID, patch); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return failNotFound("issue", issue.ID, "issue %q not found", issue.ID)
		}
		return o.dependency("updateIssue", err)
	}
	if in.Completed != nil {
		if err := o.store.SetIssueCompleted(ctx, teamID, issue.ID, *in.Completed); err != nil {
			return o.dependency("updateIssue", err)
		}
	}

	updated, err := o.store.GetIssue(ctx, teamID, issue.ID)
	if err != nil {
		return o.dependency("updateIssue", err)
	}
	return ok(updated, "Issue #%d %q has been updated successfully.", updated.Number, updated.Title)
}

// DeleteIssue removes an issue located by id or title. Label links and
// comments go with it.
func (o *Orchestrator) DeleteIssue(ctx context.Context, actor Actor, teamID string, id, title string) Result {
	if exists, err := o.teamExists(ctx, teamID); err != nil {
		return o.dependency("deleteIssue", err)
	} else if !exists {
		return failNotFound("team", teamID, "team %q not found", teamID)
	}

	issue, res := o.locateIssue(ctx, teamID, id, title)
	if issue == nil {
		return res
	}

	if err := o.store.DeleteIssue(ctx, teamID, issue.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return failNotFound("issue", issue.ID, "issue %q not found", issue.ID)
		}
		return o.dependency("deleteIssue", err)
	}
	return ok(nil, "Issue #%d %q has been deleted.", issue.Number, issue.Title)
}

// locateIssue finds an issue by explicit id or by title substring match.
// On failure the returned issue is nil and the Result carries the error.
func (o *Orchestrator) locateIssue(ctx context.Context, teamID, id, title string) (*types.Issue, Result) {
	if id != "" {
		issue, err := o.store.GetIssue(ctx, teamID, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, failNotFound("issue", id, "issue %q not found", id)
			}
			return nil, o.dependency("locateIssue", err)
		}
		return issue, Result{}
	}
	if title == "" {
		return nil, failValidation("either an issue id or a title is required")
	}

	issues, err := o.store.ListIssues(ctx, teamID)
	if err != nil {
		return nil, o.dependency("locateIssue", err)
	}
	res := resolver.ResolveIssueByTitle(issues, title)
	switch res.Status {
	case resolver.StatusAmbiguous:
		return nil, failAmbiguous("issue", res)
	case resolver.StatusNotFound:
		return nil, failNotFound("issue", title, "no issue found with title %q", title)
	}
	for _, issue := range issues {
		if issue.ID == res.ID {
			return issue, Result{}
		}
	}
	return nil, failNotFound("issue", title, "no issue found with title %q", title)
}

// ListIssuesInput mirrors the query engine's filter with name-or-id
// references; limit 0 means unbounded.
type ListIssuesInput struct {
	States     []string `json:"states,omitempty"`
	Assignees  []string `json:"assignees,omitempty"`
	Projects   []string `json:"projects,omitempty"`
	Labels     []string `json:"labels,omitempty"`
	Priorities []string `json:"priorities,omitempty"`
	Search     string   `json:"search,omitempty"`
	Limit      int      `json:"limit,omitempty"`
	SortField  string   `json:"sortField,omitempty"`
	SortDir    string   `json:"sortDirection,omitempty"`
}

// IssueList is the entity attached to a successful listIssues result.
type IssueList struct {
	Issues []*types.IssueView `json:"issues"`
	Count  int                `json:"count"`
	Total  int                `json:"total"`
}

// ListIssues filters and sorts the team's issues. The message distinguishes
// a complete listing from a truncated one.
func (o *Orchestrator) ListIssues(ctx context.Context, teamID string, in ListIssuesInput) Result {
	tc, failed, isFail := o.loadContext(ctx, "listIssues", teamID)
	if isFail {
		return failed
	}

	filter := types.IssueFilter{
		Search: in.Search,
		Limit:  in.Limit,
	}
	for _, ref := range in.States {
		state := tc.ResolveWorkflowState(ref)
		if !state.Resolved() {
			return failFromResolution("workflow state", state)
		}
		filter.States = append(filter.States, state.ID)
	}
	for _, ref := range in.Projects {
		proj := tc.ResolveProject(ref)
		if !proj.Resolved() {
			return failFromResolution("project", proj)
		}
		filter.Projects = append(filter.Projects, proj.ID)
	}
	for _, ref := range in.Labels {
		label := tc.ResolveLabel(ref)
		if !label.Resolved() {
			return failFromResolution("label", label)
		}
		filter.Labels = append(filter.Labels, label.ID)
	}
	for _, ref := range in.Assignees {
		assignee := types.NormalizeAssignee(ref)
		if assignee == "" {
			filter.Assignees = append(filter.Assignees, "")
			continue
		}
		member := tc.ResolveMember(assignee)
		if !member.Resolved() {
			return failFromResolution("assignee", member)
		}
		filter.Assignees = append(filter.Assignees, member.ID)
	}
	for _, p := range in.Priorities {
		priority := types.Priority(p)
		if !priority.IsValid() {
			return failValidation("invalid priority: %s", p)
		}
		filter.Priorities = append(filter.Priorities, priority)
	}

	views, err := o.query.ListIssues(ctx, teamID, filter, types.ParseSortSpec(in.SortField, in.SortDir))
	if err != nil {
		return o.dependency("listIssues", err)
	}
	total, err := o.store.CountIssues(ctx, teamID)
	if err != nil {
		return o.dependency("listIssues", err)
	}

	list := &IssueList{Issues: views, Count: len(views), Total: total}
	if list.Count == total {
		return ok(list, "Found all %d issues", total)
	}
	return ok(list, "Found %d of %d issues", list.Count, total)
}

// GetIssue returns a single issue with its related entities attached.
func (o *Orchestrator) GetIssue(ctx context.Context, teamID, issueID string) Result {
	view, err := o.query.GetIssue(ctx, teamID, issueID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return failNotFound("issue", issueID, "issue %q not found", issueID)
		}
		return o.dependency("getIssue", err)
	}
	return ok(view, "Issue #%d %q", view.Number, view.Title)
}

// AddComment attaches a comment to an issue.
func (o *Orchestrator) AddComment(ctx context.Context, actor Actor, teamID, issueID, body string) Result {
	if body == "" {
		return failValidation("comment body is required")
	}
	if _, err := o.store.GetIssue(ctx, teamID, issueID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return failNotFound("issue", issueID, "issue %q not found", issueID)
		}
		return o.dependency("addComment", err)
	}

	comment := &types.Comment{
		ID:         uuid.NewString(),
		IssueID:    issueID,
		AuthorID:   actor.UserID,
		AuthorName: actor.DisplayName,
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}
	if err := o.store.AddComment(ctx, teamID, comment); err != nil {
		return o.dependency("addComment", err)
	}
	return ok(comment, "Comment added.")
}
