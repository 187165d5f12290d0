// Package session manages conversation transcripts for the chat surface.
//
// A session moves through a simple lifecycle: created empty, titled from the
// first user message, then updated indefinitely until deleted. Persistence
// replaces the whole stored transcript on every save (last write wins);
// after a turn's response has been produced, a failed save is logged and
// swallowed so it never fails the user-visible response. Ownership is
// exclusive to the creating user.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tracklane/tracklane/internal/storage"
	"github.com/tracklane/tracklane/internal/types"
)

// ErrUnauthorized is returned when a user touches a session they do not own.
var ErrUnauthorized = errors.New("session belongs to a different user")

// Manager loads, titles, and persists sessions.
type Manager struct {
	store storage.Store
	log   *slog.Logger
}

// NewManager returns a session manager backed by the given store.
func NewManager(store storage.Store, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{store: store, log: log}
}

// Begin returns the session for a turn: a fresh one when sessionID is empty,
// otherwise the stored session after an ownership check.
func (m *Manager) Begin(ctx context.Context, teamID, userID, sessionID string) (*types.Session, error) {
	if sessionID == "" {
		now := time.Now().UTC()
		return &types.Session{
			ID:        uuid.NewString(),
			TeamID:    teamID,
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	}
	return m.Get(ctx, teamID, userID, sessionID)
}

// Get loads a session, enforcing ownership.
func (m *Manager) Get(ctx context.Context, teamID, userID, sessionID string) (*types.Session, error) {
	s, err := m.store.GetSession(ctx, teamID, sessionID)
	if err != nil {
		return nil, err
	}
	if s.UserID != userID {
		return nil, ErrUnauthorized
	}
	return s, nil
}

// AppendUser appends a user message, deriving the session title when this is
// the first user message of the transcript.
func (m *Manager) AppendUser(s *types.Session, content string) {
	if s.Title == "" {
		s.Title = types.DeriveSessionTitle(content)
	}
	s.Messages = append(s.Messages, types.Message{Role: types.RoleUser, Content: content})
}

// AppendAssistant appends an assistant message.
func (m *Manager) AppendAssistant(s *types.Session, content string) {
	s.Messages = append(s.Messages, types.Message{Role: types.RoleAssistant, Content: content})
}

// AppendToolCall records one tool execution in the transcript.
func (m *Manager) AppendToolCall(s *types.Session, record types.ToolCallRecord) {
	s.Messages = append(s.Messages, types.Message{
		Role:     types.RoleTool,
		Content:  record.Result,
		ToolCall: &record,
	})
}

// Persist saves the full transcript, replacing whatever was stored. The
// response has already been produced by the time this runs, so failure is
// logged, never propagated.
func (m *Manager) Persist(ctx context.Context, s *types.Session) {
	s.UpdatedAt = time.Now().UTC()
	if err := m.store.SaveSession(ctx, s); err != nil {
		m.log.Error("session persist failed", "session_id", s.ID, "team_id", s.TeamID, "error", err)
	}
}

// List returns the user's sessions in the team.
func (m *Manager) List(ctx context.Context, teamID, userID string) ([]*types.Session, error) {
	return m.store.ListSessions(ctx, teamID, userID)
}

// Delete removes a session after an ownership check.
func (m *Manager) Delete(ctx context.Context, teamID, userID, sessionID string) error {
	if _, err := m.Get(ctx, teamID, userID, sessionID); err != nil {
		return err
	}
	return m.store.DeleteSession(ctx, teamID, sessionID)
}
