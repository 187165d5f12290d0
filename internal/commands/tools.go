package commands

import (
	"context"
	"encoding/json"
)

// Tool declares one catalogue operation for the conversational agent: a
// name, a description the model reads, and a JSON schema for the input.
// The agent layer converts these into provider-specific tool definitions.
type Tool struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

func arrayProp(desc string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": desc,
	}
}

// Tools returns the operation catalogue exposed to the agent. Schemas
// mirror the typed inputs the dispatcher decodes into.
func Tools() []Tool {
	return []Tool{
		{
			Name:        "createIssue",
			Description: "Create a new issue. workflowStateId is required and accepts a state name or id; projectId and assigneeId accept a name or id.",
			Properties: map[string]any{
				"title":           prop("string", "Issue title"),
				"description":     prop("string", "Issue description"),
				"priority":        prop("string", "One of: none, low, medium, high, urgent"),
				"estimate":        prop("number", "Point estimate"),
				"projectId":       prop("string", "Project name, key, or id"),
				"workflowStateId": prop("string", "Workflow state name or id"),
				"assigneeId":      prop("string", "Member name or id, or 'unassigned'"),
				"labels":          arrayProp("Label names or ids"),
			},
			Required: []string{"title", "workflowStateId"},
		},
		{
			Name:        "updateIssue",
			Description: "Update an existing issue. Locate it by id, or by title (substring match; an ambiguous title returns the candidate list). Only the fields provided are changed.",
			Properties: map[string]any{
				"id":              prop("string", "Issue id"),
				"title":           prop("string", "Title to locate the issue when id is unknown"),
				"newTitle":        prop("string", "Replacement title"),
				"description":     prop("string", "Replacement description"),
				"priority":        prop("string", "One of: none, low, medium, high, urgent"),
				"estimate":        prop("number", "Point estimate"),
				"projectId":       prop("string", "Project name, key, or id; empty clears the project"),
				"workflowStateId": prop("string", "Workflow state name or id"),
				"assigneeId":      prop("string", "Member name or id, or 'unassigned' to clear"),
				"completed":       prop("boolean", "Mark the issue completed or not"),
			},
		},
		{
			Name:        "deleteIssue",
			Description: "Delete an issue, located by id or by title (substring match with the same ambiguity handling as updateIssue).",
			Properties: map[string]any{
				"id":    prop("string", "Issue id"),
				"title": prop("string", "Title to locate the issue when id is unknown"),
			},
		},
		{
			Name:        "listIssues",
			Description: "List the team's issues. All filters are optional and combined with AND; omit limit to return every match.",
			Properties: map[string]any{
				"states":        arrayProp("Workflow state names or ids"),
				"assignees":     arrayProp("Member names or ids; 'unassigned' matches issues with no assignee"),
				"projects":      arrayProp("Project names, keys, or ids"),
				"labels":        arrayProp("Label names or ids"),
				"priorities":    arrayProp("Priorities: none, low, medium, high, urgent"),
				"search":        prop("string", "Case-insensitive text search over title and description"),
				"limit":         prop("integer", "Maximum number of issues to return; 0 means all"),
				"sortField":     prop("string", "One of: title, number, createdAt, updatedAt, priority"),
				"sortDirection": prop("string", "asc or desc"),
			},
		},
		{
			Name:        "getIssue",
			Description: "Fetch a single issue by id, including its project, workflow state, labels, and comment count.",
			Properties: map[string]any{
				"id": prop("string", "Issue id"),
			},
			Required: []string{"id"},
		},
		{
			Name:        "createProject",
			Description: "Create a project. Key is a short uppercase identifier; color defaults to the standard project color and status to active.",
			Properties: map[string]any{
				"name":   prop("string", "Project name"),
				"key":    prop("string", "Short uppercase key, e.g. WEB"),
				"color":  prop("string", "Hex color"),
				"icon":   prop("string", "Icon name"),
				"status": prop("string", "One of: active, completed, canceled"),
				"leadId": prop("string", "Member name or id for the project lead"),
			},
			Required: []string{"name", "key"},
		},
		{
			Name:        "updateProject",
			Description: "Update a project, located by id or by name (substring match; an ambiguous name returns the candidate list).",
			Properties: map[string]any{
				"id":      prop("string", "Project id"),
				"name":    prop("string", "Name to locate the project when id is unknown"),
				"newName": prop("string", "Replacement name"),
				"key":     prop("string", "Replacement key"),
				"color":   prop("string", "Hex color"),
				"icon":    prop("string", "Icon name"),
				"status":  prop("string", "One of: active, completed, canceled"),
				"leadId":  prop("string", "Member name or id; empty clears the lead"),
			},
		},
		{
			Name:        "listProjects",
			Description: "List the team's projects.",
			Properties:  map[string]any{},
		},
		{
			Name:        "inviteTeamMember",
			Description: "Invite someone to the team by email. Fails if a pending invitation already exists for that email.",
			Properties: map[string]any{
				"email": prop("string", "Invitee email address"),
				"role":  prop("string", "One of: admin, developer, viewer; defaults to developer"),
			},
			Required: []string{"email"},
		},
		{
			Name:        "listTeamMembers",
			Description: "List the team's members.",
			Properties:  map[string]any{},
		},
		{
			Name:        "getTeamStats",
			Description: "Aggregate issue counts for the team: total, by workflow state, by priority, by assignee.",
			Properties:  map[string]any{},
		},
	}
}

// Dispatch decodes a tool invocation and routes it to the matching
// operation. Unknown tool names and undecodable payloads come back as
// validation failures so the agent can correct itself.
func (o *Orchestrator) Dispatch(ctx context.Context, actor Actor, teamID, tool string, input json.RawMessage) Result {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	switch tool {
	case "createIssue":
		var in CreateIssueInput
		if err := json.Unmarshal(input, &in); err != nil {
			return failValidation("invalid createIssue input: %s", err)
		}
		return o.CreateIssue(ctx, actor, teamID, in)
	case "updateIssue":
		var in UpdateIssueInput
		if err := json.Unmarshal(input, &in); err != nil {
			return failValidation("invalid updateIssue input: %s", err)
		}
		return o.UpdateIssue(ctx, actor, teamID, in)
	case "deleteIssue":
		var in struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return failValidation("invalid deleteIssue input: %s", err)
		}
		return o.DeleteIssue(ctx, actor, teamID, in.ID, in.Title)
	case "listIssues":
		var in ListIssuesInput
		if err := json.Unmarshal(input, &in); err != nil {
			return failValidation("invalid listIssues input: %s", err)
		}
		return o.ListIssues(ctx, teamID, in)
	case "getIssue":
		var in struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return failValidation("invalid getIssue input: %s", err)
		}
		return o.GetIssue(ctx, teamID, in.ID)
	case "createProject":
		var in CreateProjectInput
		if err := json.Unmarshal(input, &in); err != nil {
			return failValidation("invalid createProject input: %s", err)
		}
		return o.CreateProject(ctx, actor, teamID, in)
	case "updateProject":
		var in UpdateProjectInput
		if err := json.Unmarshal(input, &in); err != nil {
			return failValidation("invalid updateProject input: %s", err)
		}
		return o.UpdateProject(ctx, actor, teamID, in)
	case "listProjects":
		return o.ListProjects(ctx, teamID)
	case "inviteTeamMember":
		var in InviteTeamMemberInput
		if err := json.Unmarshal(input, &in); err != nil {
			return failValidation("invalid inviteTeamMember input: %s", err)
		}
		return o.InviteTeamMember(ctx, actor, teamID, in)
	case "listTeamMembers":
		return o.ListTeamMembers(ctx, teamID)
	case "getTeamStats":
		return o.GetTeamStats(ctx, teamID)
	default:
		return failValidation("unknown tool %q", tool)
	}
}
