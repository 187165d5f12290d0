package commands

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tracklane/tracklane/internal/storage"
	"github.com/tracklane/tracklane/internal/types"
)

// defaultStatesYAML defines the workflow states every new team starts with.
const defaultStatesYAML = `
- name: Backlog
  type: backlog
  color: "#95999f"
- name: Todo
  type: unstarted
  color: "#e2e2e2"
- name: In Progress
  type: started
  color: "#f2c94c"
- name: Done
  type: completed
  color: "#5e6ad2"
`

type stateSeed struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Color string `yaml:"color"`
}

func defaultStates() []stateSeed {
	var seeds []stateSeed
	if err := yaml.Unmarshal([]byte(defaultStatesYAML), &seeds); err != nil {
		panic("invalid default state definitions: " + err.Error())
	}
	return seeds
}

// CreateTeamInput is the payload for createTeam.
type CreateTeamInput struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// CreateTeam provisions a new team: the team row, the default workflow
// states, and an admin membership for the creating actor.
func (o *Orchestrator) CreateTeam(ctx context.Context, actor Actor, in CreateTeamInput) Result {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return failValidation("team name is required")
	}
	key := strings.ToUpper(strings.TrimSpace(in.Key))
	if key == "" {
		return failValidation("team key is required")
	}

	team := &types.Team{
		ID:        uuid.NewString(),
		Name:      name,
		Key:       key,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.store.CreateTeam(ctx, team); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return failValidation("a team with that key already exists")
		}
		return o.dependency("createTeam", err)
	}

	for i, seed := range defaultStates() {
		state := &types.WorkflowState{
			ID:       uuid.NewString(),
			TeamID:   team.ID,
			Name:     seed.Name,
			Type:     types.StateType(seed.Type),
			Color:    seed.Color,
			Position: i,
		}
		if err := o.store.CreateWorkflowState(ctx, state); err != nil {
			return o.dependency("createTeam", err)
		}
	}

	m := &types.Membership{
		TeamID:   team.ID,
		UserID:   actor.UserID,
		UserName: actor.DisplayName,
		Email:    actor.Email,
		Role:     types.RoleAdmin,
		JoinedAt: time.Now().UTC(),
	}
	if err := o.store.CreateMembership(ctx, m); err != nil {
		return o.dependency("createTeam", err)
	}

	o.mu.Lock()
	o.knownTeams[team.ID] = struct{}{}
	o.mu.Unlock()

	return ok(team, "Team %q (%s) has been created.", team.Name, team.Key)
}

// CreateWorkflowState adds a pipeline stage to the team's board.
func (o *Orchestrator) CreateWorkflowState(ctx context.Context, teamID, name, stateType, color string, position int) Result {
	if strings.TrimSpace(name) == "" {
		return failValidation("state name is required")
	}
	st := types.StateType(stateType)
	if !st.IsValid() {
		return failValidation("invalid state type: %s", stateType)
	}
	if exists, err := o.teamExists(ctx, teamID); err != nil {
		return o.dependency("createWorkflowState", err)
	} else if !exists {
		return failNotFound("team", teamID, "team %q not found", teamID)
	}

	state := &types.WorkflowState{
		ID:       uuid.NewString(),
		TeamID:   teamID,
		Name:     strings.TrimSpace(name),
		Type:     st,
		Color:    color,
		Position: position,
	}
	if err := o.store.CreateWorkflowState(ctx, state); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return failValidation("a workflow state named %q already exists", state.Name)
		}
		return o.dependency("createWorkflowState", err)
	}
	return ok(state, "Workflow state %q has been created.", state.Name)
}

// DeleteWorkflowState removes a stage. Fails while issues still occupy it.
func (o *Orchestrator) DeleteWorkflowState(ctx context.Context, teamID, ref string) Result {
	tc, failed, isFail := o.loadContext(ctx, "deleteWorkflowState", teamID)
	if isFail {
		return failed
	}
	state := tc.ResolveWorkflowState(ref)
	if !state.Resolved() {
		return failFromResolution("workflow state", state)
	}

	if err := o.store.DeleteWorkflowState(ctx, teamID, state.ID); err != nil {
		if errors.Is(err, storage.ErrInUse) {
			return failValidation("issues still occupy this workflow state; move them first")
		}
		if errors.Is(err, storage.ErrNotFound) {
			return failNotFound("workflow state", ref, "no workflow state found matching %q", ref)
		}
		return o.dependency("deleteWorkflowState", err)
	}
	return ok(nil, "Workflow state has been deleted.")
}

// CreateLabel adds a label to the team.
func (o *Orchestrator) CreateLabel(ctx context.Context, teamID, name, color string) Result {
	if strings.TrimSpace(name) == "" {
		return failValidation("label name is required")
	}
	if exists, err := o.teamExists(ctx, teamID); err != nil {
		return o.dependency("createLabel", err)
	} else if !exists {
		return failNotFound("team", teamID, "team %q not found", teamID)
	}

	label := &types.Label{
		ID:     uuid.NewString(),
		TeamID: teamID,
		Name:   strings.TrimSpace(name),
		Color:  color,
	}
	if err := o.store.CreateLabel(ctx, label); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return failValidation("a label named %q already exists", label.Name)
		}
		return o.dependency("createLabel", err)
	}
	return ok(label, "Label %q has been created.", label.Name)
}

// DeleteLabel removes a label and its issue links.
func (o *Orchestrator) DeleteLabel(ctx context.Context, teamID, ref string) Result {
	tc, failed, isFail := o.loadContext(ctx, "deleteLabel", teamID)
	if isFail {
		return failed
	}
	label := tc.ResolveLabel(ref)
	if !label.Resolved() {
		return failFromResolution("label", label)
	}

	if err := o.store.DeleteLabel(ctx, teamID, label.ID); err != nil {
		return o.dependency("deleteLabel", err)
	}
	return ok(nil, "Label has been deleted.")
}

// GetTeamStats returns aggregate issue counts. Read-only, no resolution.
func (o *Orchestrator) GetTeamStats(ctx context.Context, teamID string) Result {
	if exists, err := o.teamExists(ctx, teamID); err != nil {
		return o.dependency("getTeamStats", err)
	} else if !exists {
		return failNotFound("team", teamID, "team %q not found", teamID)
	}

	stats, err := o.query.Stats(ctx, teamID)
	if err != nil {
		return o.dependency("getTeamStats", err)
	}
	return ok(stats, "Team has %d issues", stats.Total)
}
