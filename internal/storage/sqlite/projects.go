package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tracklane/tracklane/internal/storage"
	"github.com/tracklane/tracklane/internal/types"
)

// CreateWorkflowState inserts a workflow state. Names are unique per team.
func (s *Store) CreateWorkflowState(ctx context.Context, state *types.WorkflowState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workflow_states (id, team_id, name, type, color, position)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		state.ID, state.TeamID, state.Name, string(state.Type), state.Color, state.Position,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("inserting workflow state: %w", err)
	}
	return nil
}

// ListWorkflowStates returns a team's workflow states ordered by position.
func (s *Store) ListWorkflowStates(ctx context.Context, teamID string) ([]*types.WorkflowState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, team_id, name, type, color, position
		 FROM workflow_states WHERE team_id = ? ORDER BY position, id`, teamID)
	if err != nil {
		return nil, fmt.Errorf("querying workflow states: %w", err)
	}
	defer rows.Close()

	var states []*types.WorkflowState
	for rows.Next() {
		var st types.WorkflowState
		var stateType string
		if err := rows.Scan(&st.ID, &st.TeamID, &st.Name, &stateType, &st.Color, &st.Position); err != nil {
			return nil, fmt.Errorf("scanning workflow state: %w", err)
		}
		st.Type = types.StateType(stateType)
		states = append(states, &st)
	}
	return states, rows.Err()
}

// DeleteWorkflowState removes a state. Deletion is rejected with ErrInUse
// while any issue in the team still occupies the state.
func (s *Store) DeleteWorkflowState(ctx context.Context, teamID, stateID string) error {
	var inUse int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM issues WHERE team_id = ? AND state_id = ?`,
		teamID, stateID).Scan(&inUse)
	if err != nil {
		return fmt.Errorf("checking state references: %w", err)
	}
	if inUse > 0 {
		return storage.ErrInUse
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM workflow_states WHERE team_id = ? AND id = ?`, teamID, stateID)
	if err != nil {
		return fmt.Errorf("deleting workflow state: %w", err)
	}
	return requireAffected(res)
}

// CreateLabel inserts a label. Names are unique per team.
func (s *Store) CreateLabel(ctx context.Context, label *types.Label) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO labels (id, team_id, name, color) VALUES (?, ?, ?, ?)`,
		label.ID, label.TeamID, label.Name, label.Color,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("inserting label: %w", err)
	}
	return nil
}

// ListLabels returns all labels for a team.
func (s *Store) ListLabels(ctx context.Context, teamID string) ([]*types.Label, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, team_id, name, color FROM labels WHERE team_id = ? ORDER BY name`, teamID)
	if err != nil {
		return nil, fmt.Errorf("querying labels: %w", err)
	}
	defer rows.Close()

	var labels []*types.Label
	for rows.Next() {
		var l types.Label
		if err := rows.Scan(&l.ID, &l.TeamID, &l.Name, &l.Color); err != nil {
			return nil, fmt.Errorf("scanning label: %w", err)
		}
		labels = append(labels, &l)
	}
	return labels, rows.Err()
}

// DeleteLabel removes a label; issue links cascade via the schema.
func (s *Store) DeleteLabel(ctx context.Context, teamID, labelID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM labels WHERE team_id = ? AND id = ?`, teamID, labelID)
	if err != nil {
		return fmt.Errorf("deleting label: %w", err)
	}
	return requireAffected(res)
}

// AddIssueLabel links a label to an issue. Both must belong to the team.
func (s *Store) AddIssueLabel(ctx context.Context, teamID, issueID, labelID string) error {
	var ok int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM issues i, labels l
		 WHERE i.id = ? AND i.team_id = ? AND l.id = ? AND l.team_id = ?`,
		issueID, teamID, labelID, teamID).Scan(&ok)
	if err != nil {
		return fmt.Errorf("checking label link targets: %w", err)
	}
	if ok == 0 {
		return storage.ErrNotFound
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO issue_labels (team_id, issue_id, label_id) VALUES (?, ?, ?)`,
		teamID, issueID, labelID)
	if err != nil {
		return fmt.Errorf("linking label: %w", err)
	}
	return nil
}

// RemoveIssueLabel unlinks a label from an issue.
func (s *Store) RemoveIssueLabel(ctx context.Context, teamID, issueID, labelID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM issue_labels WHERE team_id = ? AND issue_id = ? AND label_id = ?`,
		teamID, issueID, labelID)
	if err != nil {
		return fmt.Errorf("unlinking label: %w", err)
	}
	return requireAffected(res)
}

// ListIssueLabels returns all issue-label links for a team.
func (s *Store) ListIssueLabels(ctx context.Context, teamID string) ([]*types.IssueLabel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT issue_id, label_id FROM issue_labels WHERE team_id = ?`, teamID)
	if err != nil {
		return nil, fmt.Errorf("querying issue labels: %w", err)
	}
	defer rows.Close()

	var links []*types.IssueLabel
	for rows.Next() {
		var link types.IssueLabel
		if err := rows.Scan(&link.IssueID, &link.LabelID); err != nil {
			return nil, fmt.Errorf("scanning issue label: %w", err)
		}
		links = append(links, &link)
	}
	return links, rows.Err()
}

// CreateProject inserts a project. Name and key are unique per team.
func (s *Store) CreateProject(ctx context.Context, project *types.Project) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, team_id, name, key, color, icon, status, lead_id, lead_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		project.ID, project.TeamID, project.Name, project.Key, project.Color,
		project.Icon, string(project.Status), project.LeadID, project.LeadName,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

// GetProject returns a project by id within the team.
func (s *Store) GetProject(ctx context.Context, teamID, projectID string) (*types.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, team_id, name, key, color, icon, status, lead_id, lead_name
		 FROM projects WHERE team_id = ? AND id = ?`, teamID, projectID)
	return scanProject(row)
}

// ListProjects returns all projects for a team.
func (s *Store) ListProjects(ctx context.Context, teamID string) ([]*types.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, team_id, name, key, color, icon, status, lead_id, lead_name
		 FROM projects WHERE team_id = ? ORDER BY name`, teamID)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var projects []*types.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject applies a partial update to a project.
func (s *Store) UpdateProject(ctx context.Context, teamID, projectID string, patch storage.ProjectPatch) error {
	var sets []string
	var args []any
	add := func(col string, val any) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Key != nil {
		add("key", *patch.Key)
	}
	if patch.Color != nil {
		add("color", *patch.Color)
	}
	if patch.Icon != nil {
		add("icon", *patch.Icon)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.LeadID != nil {
		add("lead_id", *patch.LeadID)
	}
	if patch.LeadName != nil {
		add("lead_name", *patch.LeadName)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, teamID, projectID)
	query := fmt.Sprintf(`UPDATE projects SET %s WHERE team_id = ? AND id = ?`, strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("updating project: %w", err)
	}
	return requireAffected(res)
}

// DeleteProject removes a project and clears the project reference on any
// issue that pointed at it. Issues themselves are preserved.
func (s *Store) DeleteProject(ctx context.Context, teamID, projectID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM projects WHERE team_id = ? AND id = ?`, teamID, projectID)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE issues SET project_id = '' WHERE team_id = ? AND project_id = ?`,
		teamID, projectID); err != nil {
		return fmt.Errorf("clearing project references: %w", err)
	}

	return tx.Commit()
}

func scanProject(sc scanner) (*types.Project, error) {
	var p types.Project
	var status string
	err := sc.Scan(&p.ID, &p.TeamID, &p.Name, &p.Key, &p.Color, &p.Icon, &status, &p.LeadID, &p.LeadName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scanning project: %w", err)
	}
	p.Status = types.ProjectStatus(status)
	return &p, nil
}
