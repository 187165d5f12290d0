// Package memory implements the storage interface with in-process maps.
//
// The memory store backs the unit suites for the query engine, resolver,
// orchestrator, and session manager. It applies the same team-scoping and
// uniqueness rules as the sqlite implementation.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tracklane/tracklane/internal/storage"
	"github.com/tracklane/tracklane/internal/types"
)

// Store is an in-memory storage.Store implementation guarded by one mutex.
// Issue number assignment happens under the lock, so concurrent creates for
// the same team cannot observe the same max.
type Store struct {
	mu          sync.RWMutex
	teams       map[string]*types.Team
	memberships map[string][]*types.Membership // keyed by team id
	states      map[string][]*types.WorkflowState
	labels      map[string][]*types.Label
	links       map[string][]*types.IssueLabel
	projects    map[string][]*types.Project
	issues      map[string][]*types.Issue
	comments    map[string][]*types.Comment
	invitations map[string][]*types.Invitation
	sessions    map[string][]*types.Session
}

var _ storage.Store = (*Store)(nil)

// New creates an empty memory store.
func New() *Store {
	return &Store{
		teams:       make(map[string]*types.Team),
		memberships: make(map[string][]*types.Membership),
		states:      make(map[string][]*types.WorkflowState),
		labels:      make(map[string][]*types.Label),
		links:       make(map[string][]*types.IssueLabel),
		projects:    make(map[string][]*types.Project),
		issues:      make(map[string][]*types.Issue),
		comments:    make(map[string][]*types.Comment),
		invitations: make(map[string][]*types.Invitation),
		sessions:    make(map[string][]*types.Session),
	}
}

// CreateTeam stores a new team.
func (s *Store) CreateTeam(_ context.Context, team *types.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[team.ID]; ok {
		return storage.ErrDuplicate
	}
	t := *team
	s.teams[team.ID] = &t
	return nil
}

// GetTeam returns the team with the given id.
func (s *Store) GetTeam(_ context.Context, teamID string) (*types.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	team, ok := s.teams[teamID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	t := *team
	return &t, nil
}

// CreateMembership stores a membership; the (team, user) pair must be unique.
func (s *Store) CreateMembership(_ context.Context, m *types.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.memberships[m.TeamID] {
		if existing.UserID == m.UserID {
			return storage.ErrDuplicate
		}
	}
	cp := *m
	s.memberships[m.TeamID] = append(s.memberships[m.TeamID], &cp)
	return nil
}

// GetMembership returns the membership for (team, user).
func (s *Store) GetMembership(_ context.Context, teamID, userID string) (*types.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.memberships[teamID] {
		if m.UserID == userID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

// ListMemberships returns all memberships for a team.
func (s *Store) ListMemberships(_ context.Context, teamID string) ([]*types.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySlice(s.memberships[teamID]), nil
}

// DeleteMembership removes a membership.
func (s *Store) DeleteMembership(_ context.Context, teamID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.memberships[teamID]
	for i, m := range members {
		if m.UserID == userID {
			s.memberships[teamID] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

// CreateWorkflowState stores a workflow state; names are unique per team.
func (s *Store) CreateWorkflowState(_ context.Context, state *types.WorkflowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.states[state.TeamID] {
		if strings.EqualFold(existing.Name, state.Name) {
			return storage.ErrDuplicate
		}
	}
	cp := *state
	s.states[state.TeamID] = append(s.states[state.TeamID], &cp)
	return nil
}

// ListWorkflowStates returns a team's workflow states ordered by position.
func (s *Store) ListWorkflowStates(_ context.Context, teamID string) ([]*types.WorkflowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	states := copySlice(s.states[teamID])
	sort.SliceStable(states, func(i, j int) bool { return states[i].Position < states[j].Position })
	return states, nil
}

// DeleteWorkflowState removes a state. Deletion is rejected with ErrInUse
// while any issue in the team still occupies the state.
func (s *Store) DeleteWorkflowState(_ context.Context, teamID, stateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	states := s.states[teamID]
	idx := -1
	for i, st := range states {
		if st.ID == stateID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return storage.ErrNotFound
	}
	for _, issue := range s.issues[teamID] {
		if issue.StateID == stateID {
			return storage.ErrInUse
		}
	}
	s.states[teamID] = append(states[:idx], states[idx+1:]...)
	return nil
}

// CreateLabel stores a label; names are unique per team.
func (s *Store) CreateLabel(_ context.Context, label *types.Label) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.labels[label.TeamID] {
		if strings.EqualFold(existing.Name, label.Name) {
			return storage.ErrDuplicate
		}
	}
	cp := *label
	s.labels[label.TeamID] = append(s.labels[label.TeamID], &cp)
	return nil
}

// ListLabels returns all labels for a team.
func (s *Store) ListLabels(_ context.Context, teamID string) ([]*types.Label, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySlice(s.labels[teamID]), nil
}

// DeleteLabel removes a label and all issue links referencing it.
func (s *Store) DeleteLabel(_ context.Context, teamID, labelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	labels := s.labels[teamID]
	idx := -1
	for i, l := range labels {
		if l.ID == labelID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return storage.ErrNotFound
	}
	s.labels[teamID] = append(labels[:idx], labels[idx+1:]...)

	kept := s.links[teamID][:0]
	for _, link := range s.links[teamID] {
		if link.LabelID != labelID {
			kept = append(kept, link)
		}
	}
	s.links[teamID] = kept
	return nil
}

// AddIssueLabel links a label to an issue. Both must belong to the team.
func (s *Store) AddIssueLabel(_ context.Context, teamID, issueID, labelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findIssue(teamID, issueID) == nil {
		return storage.ErrNotFound
	}
	if !s.labelExists(teamID, labelID) {
		return storage.ErrNotFound
	}
	for _, link := range s.links[teamID] {
		if link.IssueID == issueID && link.LabelID == labelID {
			return nil // already linked
		}
	}
	s.links[teamID] = append(s.links[teamID], &types.IssueLabel{IssueID: issueID, LabelID: labelID})
	return nil
}

// RemoveIssueLabel unlinks a label from an issue.
func (s *Store) RemoveIssueLabel(_ context.Context, teamID, issueID, labelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	links := s.links[teamID]
	for i, link := range links {
		if link.IssueID == issueID && link.LabelID == labelID {
			s.links[teamID] = append(links[:i], links[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

// ListIssueLabels returns all issue-label links for a team.
func (s *Store) ListIssueLabels(_ context.Context, teamID string) ([]*types.IssueLabel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySlice(s.links[teamID]), nil
}

// CreateProject stores a project; name and key are unique per team.
func (s *Store) CreateProject(_ context.Context, project *types.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.projects[project.TeamID] {
		if strings.EqualFold(existing.Name, project.Name) || strings.EqualFold(existing.Key, project.Key) {
			return storage.ErrDuplicate
		}
	}
	cp := *project
	s.projects[project.TeamID] = append(s.projects[project.TeamID], &cp)
	return nil
}

// GetProject returns a project by id within the team.
func (s *Store) GetProject(_ context.Context, teamID, projectID string) (*types.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects[teamID] {
		if p.ID == projectID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

// ListProjects returns all projects for a team.
func (s *Store) ListProjects(_ context.Context, teamID string) ([]*types.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySlice(s.projects[teamID]), nil
}

// UpdateProject applies a partial update to a project.
func (s *Store) UpdateProject(_ context.Context, teamID, projectID string, patch storage.ProjectPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects[teamID] {
		if p.ID != projectID {
			continue
		}
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Key != nil {
			p.Key = *patch.Key
		}
		if patch.Color != nil {
			p.Color = *patch.Color
		}
		if patch.Icon != nil {
			p.Icon = *patch.Icon
		}
		if patch.Status != nil {
			p.Status = *patch.Status
		}
		if patch.LeadID != nil {
			p.LeadID = *patch.LeadID
		}
		if patch.LeadName != nil {
			p.LeadName = *patch.LeadName
		}
		return nil
	}
	return storage.ErrNotFound
}

// DeleteProject removes a project and clears the project reference on any
// issue that pointed at it. Issues themselves are preserved.
func (s *Store) DeleteProject(_ context.Context, teamID, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	projects := s.projects[teamID]
	idx := -1
	for i, p := range projects {
		if p.ID == projectID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return storage.ErrNotFound
	}
	s.projects[teamID] = append(projects[:idx], projects[idx+1:]...)
	for _, issue := range s.issues[teamID] {
		if issue.ProjectID == projectID {
			issue.ProjectID = ""
		}
	}
	return nil
}

// CreateIssue stores an issue, assigning the next per-team sequence number
// under the store lock.
func (s *Store) CreateIssue(_ context.Context, issue *types.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[issue.TeamID]; !ok {
		return storage.ErrNotFound
	}
	max := 0
	for _, existing := range s.issues[issue.TeamID] {
		if existing.Number > max {
			max = existing.Number
		}
	}
	issue.Number = max + 1
	cp := *issue
	s.issues[issue.TeamID] = append(s.issues[issue.TeamID], &cp)
	return nil
}

// GetIssue returns an issue by id within the team.
func (s *Store) GetIssue(_ context.Context, teamID, issueID string) (*types.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issue := s.findIssue(teamID, issueID)
	if issue == nil {
		return nil, storage.ErrNotFound
	}
	cp := *issue
	return &cp, nil
}

// ListIssues returns all issues for a team.
func (s *Store) ListIssues(_ context.Context, teamID string) ([]*types.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySlice(s.issues[teamID]), nil
}

// UpdateIssue applies a partial update and bumps the updated timestamp.
func (s *Store) UpdateIssue(_ context.Context, teamID, issueID string, patch storage.IssuePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue := s.findIssue(teamID, issueID)
	if issue == nil {
		return storage.ErrNotFound
	}
	if patch.Title != nil {
		issue.Title = *patch.Title
	}
	if patch.Description != nil {
		issue.Description = *patch.Description
	}
	if patch.Priority != nil {
		issue.Priority = *patch.Priority
	}
	if patch.Estimate != nil {
		issue.Estimate = patch.Estimate
	}
	if patch.ProjectID != nil {
		issue.ProjectID = *patch.ProjectID
	}
	if patch.StateID != nil {
		issue.StateID = *patch.StateID
	}
	if patch.AssigneeID != nil {
		issue.AssigneeID = *patch.AssigneeID
	}
	if patch.AssigneeName != nil {
		issue.AssigneeName = *patch.AssigneeName
	}
	issue.UpdatedAt = time.Now().UTC()
	return nil
}

// SetIssueCompleted sets or clears the completion timestamp.
func (s *Store) SetIssueCompleted(_ context.Context, teamID, issueID string, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue := s.findIssue(teamID, issueID)
	if issue == nil {
		return storage.ErrNotFound
	}
	if completed {
		now := time.Now().UTC()
		issue.CompletedAt = &now
	} else {
		issue.CompletedAt = nil
	}
	issue.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteIssue removes an issue and cascades to its label links and comments.
func (s *Store) DeleteIssue(_ context.Context, teamID, issueID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	issues := s.issues[teamID]
	idx := -1
	for i, issue := range issues {
		if issue.ID == issueID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return storage.ErrNotFound
	}
	s.issues[teamID] = append(issues[:idx], issues[idx+1:]...)

	keptLinks := s.links[teamID][:0]
	for _, link := range s.links[teamID] {
		if link.IssueID != issueID {
			keptLinks = append(keptLinks, link)
		}
	}
	s.links[teamID] = keptLinks

	keptComments := s.comments[teamID][:0]
	for _, c := range s.comments[teamID] {
		if c.IssueID != issueID {
			keptComments = append(keptComments, c)
		}
	}
	s.comments[teamID] = keptComments
	return nil
}

// CountIssues returns the number of issues in a team.
func (s *Store) CountIssues(_ context.Context, teamID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.issues[teamID]), nil
}

// AddComment attaches a comment to an issue in the team.
func (s *Store) AddComment(_ context.Context, teamID string, comment *types.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findIssue(teamID, comment.IssueID) == nil {
		return storage.ErrNotFound
	}
	cp := *comment
	s.comments[teamID] = append(s.comments[teamID], &cp)
	return nil
}

// ListComments returns the comments on an issue, oldest first.
func (s *Store) ListComments(_ context.Context, teamID, issueID string) ([]*types.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Comment
	for _, c := range s.comments[teamID] {
		if c.IssueID == issueID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// CountCommentsByIssue returns comment counts keyed by issue id.
func (s *Store) CountCommentsByIssue(_ context.Context, teamID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, c := range s.comments[teamID] {
		counts[c.IssueID]++
	}
	return counts, nil
}

// CreateInvitation stores an invitation.
func (s *Store) CreateInvitation(_ context.Context, inv *types.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *inv
	s.invitations[inv.TeamID] = append(s.invitations[inv.TeamID], &cp)
	return nil
}

// GetPendingInvitation returns the pending invitation for an email, if any.
func (s *Store) GetPendingInvitation(_ context.Context, teamID, email string) (*types.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invitations[teamID] {
		if inv.Status == types.InvitePending && strings.EqualFold(inv.Email, email) {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

// ListInvitations returns all invitations for a team.
func (s *Store) ListInvitations(_ context.Context, teamID string) ([]*types.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySlice(s.invitations[teamID]), nil
}

// UpdateInvitation applies a partial update to an invitation.
func (s *Store) UpdateInvitation(_ context.Context, teamID, invitationID string, patch storage.InvitationPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invitations[teamID] {
		if inv.ID != invitationID {
			continue
		}
		if patch.Status != nil {
			inv.Status = *patch.Status
		}
		if patch.ExpiresAt != nil {
			inv.ExpiresAt = time.Unix(*patch.ExpiresAt, 0).UTC()
		}
		return nil
	}
	return storage.ErrNotFound
}

// SaveSession stores a session, replacing any prior transcript for the id.
func (s *Store) SaveSession(_ context.Context, session *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	cp.Messages = append([]types.Message(nil), session.Messages...)
	sessions := s.sessions[session.TeamID]
	for i, existing := range sessions {
		if existing.ID == session.ID {
			sessions[i] = &cp
			return nil
		}
	}
	s.sessions[session.TeamID] = append(sessions, &cp)
	return nil
}

// GetSession returns a session by id within the team.
func (s *Store) GetSession(_ context.Context, teamID, sessionID string) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions[teamID] {
		if sess.ID == sessionID {
			cp := *sess
			cp.Messages = append([]types.Message(nil), sess.Messages...)
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

// ListSessions returns a user's sessions in a team, most recently updated first.
func (s *Store) ListSessions(_ context.Context, teamID, userID string) ([]*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Session
	for _, sess := range s.sessions[teamID] {
		if sess.UserID == userID {
			cp := *sess
			cp.Messages = append([]types.Message(nil), sess.Messages...)
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(_ context.Context, teamID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := s.sessions[teamID]
	for i, sess := range sessions {
		if sess.ID == sessionID {
			s.sessions[teamID] = append(sessions[:i], sessions[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

func (s *Store) findIssue(teamID, issueID string) *types.Issue {
	for _, issue := range s.issues[teamID] {
		if issue.ID == issueID {
			return issue
		}
	}
	return nil
}

func (s *Store) labelExists(teamID, labelID string) bool {
	for _, l := range s.labels[teamID] {
		if l.ID == labelID {
			return true
		}
	}
	return false
}

func copySlice[T any](in []*T) []*T {
	out := make([]*T, 0, len(in))
	for _, item := range in {
		cp := *item
		out = append(out, &cp)
	}
	return out
}
