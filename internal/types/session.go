package types

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

// MessageRole identifies who produced a conversation message
type MessageRole string

// Conversation message role constants
const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// IsValid checks if the message role value is valid
func (r MessageRole) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ToolCallRecord captures a single tool execution inside an agent turn.
type ToolCallRecord struct {
	Name   string          `json:"name"`
	Input  json.RawMessage `json:"input,omitempty"`
	Result string          `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Message is one entry in a conversation transcript.
type Message struct {
	Role     MessageRole     `json:"role"`
	Content  string          `json:"content"`
	ToolCall *ToolCallRecord `json:"tool_call,omitempty"`
}

// Session is a bounded conversation transcript owned by one (team, user) pair.
type Session struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"team_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title,omitempty"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionTitleLimit is the maximum derived title length in runes.
const SessionTitleLimit = 50

// DeriveSessionTitle builds a session title from the first user message,
// truncated to SessionTitleLimit runes with an ellipsis when cut.
func DeriveSessionTitle(firstMessage string) string {
	title := strings.TrimSpace(firstMessage)
	if title == "" {
		return ""
	}
	if utf8.RuneCountInString(title) <= SessionTitleLimit {
		return title
	}
	runes := []rune(title)
	return string(runes[:SessionTitleLimit]) + "..."
}
