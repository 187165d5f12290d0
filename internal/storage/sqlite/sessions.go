package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tracklane/tracklane/internal/storage"
	"github.com/tracklane/tracklane/internal/types"
)

// CreateInvitation inserts an invitation.
func (s *Store) CreateInvitation(ctx context.Context, inv *types.Invitation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invitations (id, team_id, email, role, status, inviter_id, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.TeamID, inv.Email, string(inv.Role), string(inv.Status), inv.InviterID,
		inv.ExpiresAt.UTC().Format(time.RFC3339), inv.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting invitation: %w", err)
	}
	return nil
}

// GetPendingInvitation returns the pending invitation for an email, if any.
func (s *Store) GetPendingInvitation(ctx context.Context, teamID, email string) (*types.Invitation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, team_id, email, role, status, inviter_id, expires_at, created_at
		 FROM invitations WHERE team_id = ? AND email = ? AND status = 'pending'
		 ORDER BY created_at DESC LIMIT 1`, teamID, email)
	return scanInvitation(row)
}

// ListInvitations returns all invitations for a team, newest first.
func (s *Store) ListInvitations(ctx context.Context, teamID string) ([]*types.Invitation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, team_id, email, role, status, inviter_id, expires_at, created_at
		 FROM invitations WHERE team_id = ? ORDER BY created_at DESC`, teamID)
	if err != nil {
		return nil, fmt.Errorf("querying invitations: %w", err)
	}
	defer rows.Close()

	var invitations []*types.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

// UpdateInvitation applies a partial update to an invitation.
func (s *Store) UpdateInvitation(ctx context.Context, teamID, invitationID string, patch storage.InvitationPatch) error {
	var sets []string
	var args []any

	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.ExpiresAt != nil {
		sets = append(sets, "expires_at = ?")
		args = append(args, time.Unix(*patch.ExpiresAt, 0).UTC().Format(time.RFC3339))
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, teamID, invitationID)
	query := fmt.Sprintf(`UPDATE invitations SET %s WHERE team_id = ? AND id = ?`, strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating invitation: %w", err)
	}
	return requireAffected(res)
}

// SaveSession stores a session, replacing any prior transcript for the id.
// The whole message list is serialized as one JSON document; persistence is
// last-write-wins by design, never an append.
func (s *Store) SaveSession(ctx context.Context, session *types.Session) error {
	messages, err := json.Marshal(session.Messages)
	if err != nil {
		return fmt.Errorf("encoding transcript: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, team_id, user_id, title, messages, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title,
			messages = excluded.messages, updated_at = excluded.updated_at`,
		session.ID, session.TeamID, session.UserID, session.Title, string(messages),
		session.CreatedAt.UTC().Format(time.RFC3339),
		session.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// GetSession returns a session by id within the team.
func (s *Store) GetSession(ctx context.Context, teamID, sessionID string) (*types.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, team_id, user_id, title, messages, created_at, updated_at
		 FROM sessions WHERE team_id = ? AND id = ?`, teamID, sessionID)
	return scanSession(row)
}

// ListSessions returns a user's sessions in a team, most recently updated first.
func (s *Store) ListSessions(ctx context.Context, teamID, userID string) ([]*types.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, team_id, user_id, title, messages, created_at, updated_at
		 FROM sessions WHERE team_id = ? AND user_id = ? ORDER BY updated_at DESC`,
		teamID, userID)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*types.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(ctx context.Context, teamID, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE team_id = ? AND id = ?`, teamID, sessionID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return requireAffected(res)
}

func scanInvitation(sc scanner) (*types.Invitation, error) {
	var inv types.Invitation
	var role, status, expiresAt, createdAt string
	err := sc.Scan(&inv.ID, &inv.TeamID, &inv.Email, &role, &status, &inv.InviterID, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scanning invitation: %w", err)
	}
	inv.Role = types.Role(role)
	inv.Status = types.InvitationStatus(status)
	inv.ExpiresAt = parseTime(expiresAt)
	inv.CreatedAt = parseTime(createdAt)
	return &inv, nil
}

func scanSession(sc scanner) (*types.Session, error) {
	var sess types.Session
	var messages, createdAt, updatedAt string
	err := sc.Scan(&sess.ID, &sess.TeamID, &sess.UserID, &sess.Title, &messages, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	if err := json.Unmarshal([]byte(messages), &sess.Messages); err != nil {
		return nil, fmt.Errorf("decoding transcript: %w", err)
	}
	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updatedAt)
	return &sess, nil
}
