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

// CreateTeam inserts a new team.
func (s *Store) CreateTeam(ctx context.Context, team *types.Team) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO teams (id, name, key, created_at) VALUES (?, ?, ?, ?)`,
		team.ID, team.Name, team.Key, team.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("inserting team: %w", err)
	}
	return nil
}

// GetTeam returns the team with the given id.
func (s *Store) GetTeam(ctx context.Context, teamID string) (*types.Team, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, key, created_at FROM teams WHERE id = ?`, teamID)

	var team types.Team
	var createdAt string
	if err := row.Scan(&team.ID, &team.Name, &team.Key, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scanning team: %w", err)
	}
	team.CreatedAt = parseTime(createdAt)
	return &team, nil
}

// CreateMembership inserts a membership row.
func (s *Store) CreateMembership(ctx context.Context, m *types.Membership) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memberships (team_id, user_id, user_name, email, role, joined_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.TeamID, m.UserID, m.UserName, m.Email, string(m.Role),
		m.JoinedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("inserting membership: %w", err)
	}
	return nil
}

// GetMembership returns the membership for (team, user).
func (s *Store) GetMembership(ctx context.Context, teamID, userID string) (*types.Membership, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT team_id, user_id, user_name, email, role, joined_at
		 FROM memberships WHERE team_id = ? AND user_id = ?`, teamID, userID)
	return scanMembership(row)
}

// ListMemberships returns all memberships for a team.
func (s *Store) ListMemberships(ctx context.Context, teamID string) ([]*types.Membership, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT team_id, user_id, user_name, email, role, joined_at
		 FROM memberships WHERE team_id = ? ORDER BY joined_at, user_id`, teamID)
	if err != nil {
		return nil, fmt.Errorf("querying memberships: %w", err)
	}
	defer rows.Close()

	var members []*types.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// DeleteMembership removes a membership.
func (s *Store) DeleteMembership(ctx context.Context, teamID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE team_id = ? AND user_id = ?`, teamID, userID)
	if err != nil {
		return fmt.Errorf("deleting membership: %w", err)
	}
	return requireAffected(res)
}

func scanMembership(sc scanner) (*types.Membership, error) {
	var m types.Membership
	var role, joinedAt string
	if err := sc.Scan(&m.TeamID, &m.UserID, &m.UserName, &m.Email, &role, &joinedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scanning membership: %w", err)
	}
	m.Role = types.Role(role)
	m.JoinedAt = parseTime(joinedAt)
	return &m, nil
}

// requireAffected maps a zero-row write to ErrNotFound. This is what makes
// cross-team writes fail instead of silently succeeding: the team_id
// predicate excludes the row, so nothing is affected.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableTime(raw sql.NullString) *time.Time {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	t := parseTime(raw.String)
	return &t
}
