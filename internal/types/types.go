// Package types defines core data structures for the tracklane issue engine.
package types

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Role controls what a team member may do.
type Role string

// Membership role constants
const (
	RoleAdmin     Role = "admin"
	RoleDeveloper Role = "developer"
	RoleViewer    Role = "viewer"
)

// IsValid checks if the role value is valid
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDeveloper, RoleViewer:
		return true
	}
	return false
}

// Priority represents the urgency of an issue
type Priority string

// Issue priority constants, lowest to highest
const (
	PriorityNone   Priority = "none"
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid checks if the priority value is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Rank returns a numeric weight for sorting, higher = more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// StateType is the semantic category of a workflow state
type StateType string

// Workflow state type constants
const (
	StateBacklog   StateType = "backlog"
	StateUnstarted StateType = "unstarted"
	StateStarted   StateType = "started"
	StateCompleted StateType = "completed"
	StateCanceled  StateType = "canceled"
)

// IsValid checks if the state type value is valid
func (s StateType) IsValid() bool {
	switch s {
	case StateBacklog, StateUnstarted, StateStarted, StateCompleted, StateCanceled:
		return true
	}
	return false
}

// ProjectStatus represents the lifecycle stage of a project
type ProjectStatus string

// Project status constants
const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectCanceled  ProjectStatus = "canceled"
)

// IsValid checks if the project status value is valid
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectActive, ProjectCompleted, ProjectCanceled:
		return true
	}
	return false
}

// InvitationStatus tracks the lifecycle of a team invitation
type InvitationStatus string

// Invitation status constants
const (
	InvitePending  InvitationStatus = "pending"
	InviteAccepted InvitationStatus = "accepted"
	InviteRejected InvitationStatus = "rejected"
)

// IsValid checks if the invitation status value is valid
func (s InvitationStatus) IsValid() bool {
	switch s {
	case InvitePending, InviteAccepted, InviteRejected:
		return true
	}
	return false
}

// InvitationTTL is how long an invitation stays valid. Resending an
// invitation extends the expiry by another TTL from the resend time.
const InvitationTTL = 7 * 24 * time.Hour

// UnassignedSentinel is the literal callers may pass to mean "no assignee".
// It is normalized to the empty string and never stored.
const UnassignedSentinel = "unassigned"

// NormalizeAssignee maps the unassigned sentinel to the empty string.
func NormalizeAssignee(assignee string) string {
	if strings.EqualFold(strings.TrimSpace(assignee), UnassignedSentinel) {
		return ""
	}
	return strings.TrimSpace(assignee)
}

// DefaultProjectColor is used when a project is created without a color.
const DefaultProjectColor = "#6366f1"

// MaxTitleLength bounds issue titles.
const MaxTitleLength = 255

// Team is the tenant boundary; every other entity belongs to exactly one team.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"` // stable uppercase identifier, e.g. "WEB"
	CreatedAt time.Time `json:"created_at"`
}

// Membership links a user to a team with a role. The user's display name and
// email are snapshotted at join time.
type Membership struct {
	TeamID   string    `json:"team_id"`
	UserID   string    `json:"user_id"`
	UserName string    `json:"user_name"`
	Email    string    `json:"email,omitempty"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// WorkflowState is a named, ordered, colored pipeline stage an issue occupies.
// Position defines board-column order, ascending; it is not globally unique.
type WorkflowState struct {
	ID       string    `json:"id"`
	TeamID   string    `json:"team_id"`
	Name     string    `json:"name"`
	Type     StateType `json:"type"`
	Color    string    `json:"color,omitempty"`
	Position int       `json:"position"`
}

// Label is a tag applied to issues via IssueLabel links.
type Label struct {
	ID     string `json:"id"`
	TeamID string `json:"team_id"`
	Name   string `json:"name"`
	Color  string `json:"color,omitempty"`
}

// IssueLabel is the many-to-many link between issues and labels.
type IssueLabel struct {
	IssueID string `json:"issue_id"`
	LabelID string `json:"label_id"`
}

// Project groups issues under a short uppercase key.
type Project struct {
	ID       string        `json:"id"`
	TeamID   string        `json:"team_id"`
	Name     string        `json:"name"`
	Key      string        `json:"key"` // unique per team, <=10 chars, uppercase+digits
	Color    string        `json:"color,omitempty"`
	Icon     string        `json:"icon,omitempty"`
	Status   ProjectStatus `json:"status"`
	LeadID   string        `json:"lead_id,omitempty"`
	LeadName string        `json:"lead_name,omitempty"`
}

var projectKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,9}$`)

// ValidateProjectKey checks the per-team project key format. Shared by
// create and partial-update paths.
func ValidateProjectKey(key string) error {
	if !projectKeyPattern.MatchString(key) {
		return fmt.Errorf("project key must be 1-10 uppercase letters or digits (got %q)", key)
	}
	return nil
}

// Validate checks project field constraints.
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("project name is required")
	}
	if err := ValidateProjectKey(p.Key); err != nil {
		return err
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("invalid project status: %s", p.Status)
	}
	return nil
}

// Issue represents a trackable work item.
//
// Number is a per-team monotonically increasing sequence starting at 1; it is
// combined with the team or project key to build the human-facing identifier
// (e.g. "WEB-42"). CreatorID and CreatorName are immutable after creation.
type Issue struct {
	ID           string     `json:"id"`
	TeamID       string     `json:"team_id"`
	Number       int        `json:"number"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Priority     Priority   `json:"priority"`
	Estimate     *float64   `json:"estimate,omitempty"`
	ProjectID    string     `json:"project_id,omitempty"`
	StateID      string     `json:"state_id"`
	AssigneeID   string     `json:"assignee_id,omitempty"`
	AssigneeName string     `json:"assignee_name,omitempty"`
	CreatorID    string     `json:"creator_id"`
	CreatorName  string     `json:"creator_name,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ValidateTitle checks the issue title constraints. The bound counts runes
// so multibyte titles are not penalized for their encoding.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("title is required")
	}
	if n := utf8.RuneCountInString(title); n > MaxTitleLength {
		return fmt.Errorf("title must be %d characters or less (got %d)", MaxTitleLength, n)
	}
	return nil
}

// Validate checks if the issue has valid field values
func (i *Issue) Validate() error {
	if err := ValidateTitle(i.Title); err != nil {
		return err
	}
	if !i.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", i.Priority)
	}
	if i.StateID == "" {
		return fmt.Errorf("workflow state is required")
	}
	if i.Estimate != nil && *i.Estimate < 0 {
		return fmt.Errorf("estimate cannot be negative")
	}
	return nil
}

// SetDefaults applies default values for fields omitted at creation time.
func (i *Issue) SetDefaults() {
	if i.Priority == "" {
		i.Priority = PriorityNone
	}
}

// DisplayCode renders the human-facing identifier for an issue using the
// given key (the owning project's key, or the team key when the issue has
// no project).
func (i *Issue) DisplayCode(key string) string {
	return fmt.Sprintf("%s-%d", key, i.Number)
}

// Comment is a remark attached to an issue. Comments are deleted with the issue.
type Comment struct {
	ID         string    `json:"id"`
	IssueID    string    `json:"issue_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name,omitempty"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// Invitation is a pending offer of team membership sent to an email address.
type Invitation struct {
	ID        string           `json:"id"`
	TeamID    string           `json:"team_id"`
	Email     string           `json:"email"`
	Role      Role             `json:"role"`
	Status    InvitationStatus `json:"status"`
	InviterID string           `json:"inviter_id"`
	ExpiresAt time.Time        `json:"expires_at"`
	CreatedAt time.Time        `json:"created_at"`
}

// Expired reports whether the invitation has passed its expiry.
func (inv *Invitation) Expired(now time.Time) bool {
	return now.After(inv.ExpiresAt)
}

// IssueView is a read-only projection of an issue with denormalized
// related entities attached. Returned by the query engine; never written back.
type IssueView struct {
	Issue
	Project      *Project       `json:"project,omitempty"`
	State        *WorkflowState `json:"state,omitempty"`
	Labels       []Label        `json:"labels,omitempty"`
	CommentCount int            `json:"comment_count"`
}

// TeamStats provides aggregate issue counts for a team.
type TeamStats struct {
	Total      int            `json:"total"`
	ByState    map[string]int `json:"by_state"`
	ByPriority map[string]int `json:"by_priority"`
	ByAssignee map[string]int `json:"by_assignee"`
}
