package commands

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/tracklane/tracklane/internal/resolver"
	"github.com/tracklane/tracklane/internal/storage"
	"github.com/tracklane/tracklane/internal/types"
)

// CreateProjectInput is the payload for createProject. Key is uppercased
// before validation; Color and Status receive fallbacks when absent.
type CreateProjectInput struct {
	Name   string `json:"name"`
	Key    string `json:"key"`
	Color  string `json:"color,omitempty"`
	Icon   string `json:"icon,omitempty"`
	Status string `json:"status,omitempty"`
	LeadID string `json:"leadId,omitempty"`
}

// CreateProject creates a project in the team.
func (o *Orchestrator) CreateProject(ctx context.Context, actor Actor, teamID string, in CreateProjectInput) Result {
	tc, failed, isFail := o.loadContext(ctx, "createProject", teamID)
	if isFail {
		return failed
	}

	project := &types.Project{
		ID:     uuid.NewString(),
		TeamID: teamID,
		Name:   in.Name,
		Key:    strings.ToUpper(strings.TrimSpace(in.Key)),
		Color:  in.Color,
		Icon:   in.Icon,
		Status: types.ProjectStatus(in.Status),
	}
	if project.Color == "" {
		project.Color = types.DefaultProjectColor
	}
	if project.Status == "" {
		project.Status = types.ProjectActive
	}

	if in.LeadID != "" {
		lead := tc.ResolveMember(in.LeadID)
		if !lead.Resolved() {
			return failFromResolution("lead", lead)
		}
		project.LeadID = lead.ID
		project.LeadName = tc.MemberName(lead.ID)
	}

	if err := project.Validate(); err != nil {
		return failValidation("%s", err)
	}

	if err := o.store.CreateProject(ctx, project); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return failValidation("a project named %q or keyed %q already exists", project.Name, project.Key)
		}
		return o.dependency("createProject", err)
	}
	return ok(project, "Project %q (%s) has been created successfully.", project.Name, project.Key)
}

// UpdateProjectInput locates a project by ID or, when ID is empty, by Name
// (substring match). Nil fields are unchanged.
type UpdateProjectInput struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`

	NewName *string `json:"newName,omitempty"`
	Key     *string `json:"key,omitempty"`
	Color   *string `json:"color,omitempty"`
	Icon    *string `json:"icon,omitempty"`
	Status  *string `json:"status,omitempty"`
	LeadID  *string `json:"leadId,omitempty"`
}

// UpdateProject applies a partial update. Name-based lookup uses substring
// matching, so a name that matches several projects fails as ambiguous with
// no mutation performed.
func (o *Orchestrator) UpdateProject(ctx context.Context, actor Actor, teamID string, in UpdateProjectInput) Result {
	tc, failed, isFail := o.loadContext(ctx, "updateProject", teamID)
	if isFail {
		return failed
	}

	projectID, res := locateProject(tc, in.ID, in.Name)
	if projectID == "" {
		return res
	}

	var patch storage.ProjectPatch
	if in.NewName != nil {
		if strings.TrimSpace(*in.NewName) == "" {
			return failValidation("project name is required")
		}
		patch.Name = in.NewName
	}
	if in.Key != nil {
		key := strings.ToUpper(strings.TrimSpace(*in.Key))
		if err := types.ValidateProjectKey(key); err != nil {
			return failValidation("%s", err)
		}
		patch.Key = &key
	}
	if in.Color != nil {
		patch.Color = in.Color
	}
	if in.Icon != nil {
		patch.Icon = in.Icon
	}
	if in.Status != nil {
		status := types.ProjectStatus(*in.Status)
		if !status.IsValid() {
			return failValidation("invalid project status: %s", *in.Status)
		}
		patch.Status = &status
	}
	if in.LeadID != nil {
		if *in.LeadID == "" {
			empty := ""
			patch.LeadID = &empty
			patch.LeadName = &empty
		} else {
			lead := tc.ResolveMember(*in.LeadID)
			if !lead.Resolved() {
				return failFromResolution("lead", lead)
			}
			name := tc.MemberName(lead.ID)
			patch.LeadID = &lead.ID
			patch.LeadName = &name
		}
	}

	if err := o.store.UpdateProject(ctx, teamID, projectID, patch); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return failNotFound("project", projectID, "project %q not found", projectID)
		}
		if errors.Is(err, storage.ErrDuplicate) {
			return failValidation("another project already uses that name or key")
		}
		return o.dependency("updateProject", err)
	}

	updated, err := o.store.GetProject(ctx, teamID, projectID)
	if err != nil {
		return o.dependency("updateProject", err)
	}
	return ok(updated, "Project %q has been updated successfully.", updated.Name)
}

// DeleteProject removes a project. Issues that referenced it keep existing
// with their project cleared.
func (o *Orchestrator) DeleteProject(ctx context.Context, actor Actor, teamID string, id, name string) Result {
	tc, failed, isFail := o.loadContext(ctx, "deleteProject", teamID)
	if isFail {
		return failed
	}

	projectID, res := locateProject(tc, id, name)
	if projectID == "" {
		return res
	}
	project, err := o.store.GetProject(ctx, teamID, projectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return failNotFound("project", projectID, "project %q not found", projectID)
		}
		return o.dependency("deleteProject", err)
	}

	if err := o.store.DeleteProject(ctx, teamID, projectID); err != nil {
		return o.dependency("deleteProject", err)
	}
	return ok(nil, "Project %q has been deleted.", project.Name)
}

// ListProjects returns the team's projects. Read-only, no resolution.
func (o *Orchestrator) ListProjects(ctx context.Context, teamID string) Result {
	if exists, err := o.teamExists(ctx, teamID); err != nil {
		return o.dependency("listProjects", err)
	} else if !exists {
		return failNotFound("team", teamID, "team %q not found", teamID)
	}

	projects, err := o.store.ListProjects(ctx, teamID)
	if err != nil {
		return o.dependency("listProjects", err)
	}
	return ok(projects, "Found %d projects", len(projects))
}

func locateProject(tc *resolver.TeamContext, id, name string) (string, Result) {
	ref := id
	if ref == "" {
		ref = name
	}
	if ref == "" {
		return "", failValidation("either a project id or a name is required")
	}
	res := tc.ResolveProjectByName(ref)
	switch res.Status {
	case resolver.StatusAmbiguous:
		return "", failAmbiguous("project", res)
	case resolver.StatusNotFound:
		return "", failNotFound("project", ref, "no project found matching %q", ref)
	}
	return res.ID, Result{}
}
