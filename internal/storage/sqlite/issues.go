package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tracklane/tracklane/internal/storage"
	"github.com/tracklane/tracklane/internal/types"
)

const issueColumns = `id, team_id, number, title, description, priority, estimate,
	project_id, state_id, assignee_id, assignee_name, creator_id, creator_name,
	completed_at, created_at, updated_at`

// CreateIssue inserts an issue. The per-team sequence number is computed by
// the insert statement itself (COALESCE(MAX(number),0)+1 under the same
// write), so concurrent creates cannot allocate the same number.
func (s *Store) CreateIssue(ctx context.Context, issue *types.Issue) error {
	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM teams WHERE id = ?`, issue.TeamID).Scan(&exists); err != nil {
		return fmt.Errorf("checking team: %w", err)
	}
	if exists == 0 {
		return storage.ErrNotFound
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issues (id, team_id, number, title, description, priority, estimate,
			project_id, state_id, assignee_id, assignee_name, creator_id, creator_name,
			completed_at, created_at, updated_at)
		 VALUES (?, ?,
			(SELECT COALESCE(MAX(number), 0) + 1 FROM issues WHERE team_id = ?),
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		issue.ID, issue.TeamID, issue.TeamID,
		issue.Title, issue.Description, string(issue.Priority), issue.Estimate,
		issue.ProjectID, issue.StateID, issue.AssigneeID, issue.AssigneeName,
		issue.CreatorID, issue.CreatorName,
		issue.CreatedAt.UTC().Format(time.RFC3339),
		issue.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting issue: %w", err)
	}

	// Read the assigned number back so the caller sees the final record.
	return s.db.QueryRowContext(ctx,
		`SELECT number FROM issues WHERE id = ?`, issue.ID).Scan(&issue.Number)
}

// GetIssue returns an issue by id within the team.
func (s *Store) GetIssue(ctx context.Context, teamID, issueID string) (*types.Issue, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE team_id = ? AND id = ?`, teamID, issueID)
	return scanIssue(row)
}

// ListIssues returns all issues for a team.
func (s *Store) ListIssues(ctx context.Context, teamID string) ([]*types.Issue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE team_id = ?`, teamID)
	if err != nil {
		return nil, fmt.Errorf("querying issues: %w", err)
	}
	defer rows.Close()

	var issues []*types.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// UpdateIssue applies a partial update and bumps the updated timestamp.
func (s *Store) UpdateIssue(ctx context.Context, teamID, issueID string, patch storage.IssuePatch) error {
	var sets []string
	var args []any
	add := func(col string, val any) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Priority != nil {
		add("priority", string(*patch.Priority))
	}
	if patch.Estimate != nil {
		add("estimate", *patch.Estimate)
	}
	if patch.ProjectID != nil {
		add("project_id", *patch.ProjectID)
	}
	if patch.StateID != nil {
		add("state_id", *patch.StateID)
	}
	if patch.AssigneeID != nil {
		add("assignee_id", *patch.AssigneeID)
	}
	if patch.AssigneeName != nil {
		add("assignee_name", *patch.AssigneeName)
	}
	if len(sets) == 0 {
		return nil
	}
	add("updated_at", time.Now().UTC().Format(time.RFC3339))

	args = append(args, teamID, issueID)
	query := fmt.Sprintf(`UPDATE issues SET %s WHERE team_id = ? AND id = ?`, strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating issue: %w", err)
	}
	return requireAffected(res)
}

// SetIssueCompleted sets or clears the completion timestamp.
func (s *Store) SetIssueCompleted(ctx context.Context, teamID, issueID string, completed bool) error {
	now := time.Now().UTC().Format(time.RFC3339)
	var completedAt any
	if completed {
		completedAt = now
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE issues SET completed_at = ?, updated_at = ? WHERE team_id = ? AND id = ?`,
		completedAt, now, teamID, issueID)
	if err != nil {
		return fmt.Errorf("setting completion: %w", err)
	}
	return requireAffected(res)
}

// DeleteIssue removes an issue; label links and comments cascade via the schema.
func (s *Store) DeleteIssue(ctx context.Context, teamID, issueID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM issues WHERE team_id = ? AND id = ?`, teamID, issueID)
	if err != nil {
		return fmt.Errorf("deleting issue: %w", err)
	}
	return requireAffected(res)
}

// CountIssues returns the number of issues in a team.
func (s *Store) CountIssues(ctx context.Context, teamID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM issues WHERE team_id = ?`, teamID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting issues: %w", err)
	}
	return n, nil
}

// AddComment attaches a comment to an issue in the team.
func (s *Store) AddComment(ctx context.Context, teamID string, comment *types.Comment) error {
	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM issues WHERE team_id = ? AND id = ?`,
		teamID, comment.IssueID).Scan(&exists); err != nil {
		return fmt.Errorf("checking issue: %w", err)
	}
	if exists == 0 {
		return storage.ErrNotFound
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (id, team_id, issue_id, author_id, author_name, body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		comment.ID, teamID, comment.IssueID, comment.AuthorID, comment.AuthorName,
		comment.Body, comment.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting comment: %w", err)
	}
	return nil
}

// ListComments returns the comments on an issue, oldest first.
func (s *Store) ListComments(ctx context.Context, teamID, issueID string) ([]*types.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, issue_id, author_id, author_name, body, created_at
		 FROM comments WHERE team_id = ? AND issue_id = ? ORDER BY created_at, id`,
		teamID, issueID)
	if err != nil {
		return nil, fmt.Errorf("querying comments: %w", err)
	}
	defer rows.Close()

	var comments []*types.Comment
	for rows.Next() {
		var c types.Comment
		var createdAt string
		if err := rows.Scan(&c.ID, &c.IssueID, &c.AuthorID, &c.AuthorName, &c.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

// CountCommentsByIssue returns comment counts keyed by issue id.
func (s *Store) CountCommentsByIssue(ctx context.Context, teamID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT issue_id, COUNT(*) FROM comments WHERE team_id = ? GROUP BY issue_id`, teamID)
	if err != nil {
		return nil, fmt.Errorf("counting comments: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var issueID string
		var n int
		if err := rows.Scan(&issueID, &n); err != nil {
			return nil, fmt.Errorf("scanning comment count: %w", err)
		}
		counts[issueID] = n
	}
	return counts, rows.Err()
}

func scanIssue(sc scanner) (*types.Issue, error) {
	var issue types.Issue
	var priority, createdAt, updatedAt string
	var estimate sql.NullFloat64
	var completedAt sql.NullString
	err := sc.Scan(&issue.ID, &issue.TeamID, &issue.Number, &issue.Title, &issue.Description,
		&priority, &estimate, &issue.ProjectID, &issue.StateID,
		&issue.AssigneeID, &issue.AssigneeName, &issue.CreatorID, &issue.CreatorName,
		&completedAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scanning issue: %w", err)
	}
	issue.Priority = types.Priority(priority)
	if estimate.Valid {
		issue.Estimate = &estimate.Float64
	}
	issue.CompletedAt = nullableTime(completedAt)
	issue.CreatedAt = parseTime(createdAt)
	issue.UpdatedAt = parseTime(updatedAt)
	return &issue, nil
}
