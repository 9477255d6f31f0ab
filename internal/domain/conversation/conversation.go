// Package conversation defines the persisted conversation-turn entity.
package conversation

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one append-only unit of conversation. An assistant turn that
// carries ToolCalls is always immediately followed by a user turn carrying
// the matching ToolResults; results are never embedded in the assistant
// turn's own record.
type Turn struct {
	ID          int64           `json:"id"`
	SessionID   string          `json:"session_id,omitempty"`
	Role        Role            `json:"role"`
	Content     string          `json:"content"`
	ToolCalls   json.RawMessage `json:"tool_calls,omitempty"`
	ToolResults json.RawMessage `json:"tool_results,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ToolCall is one element of a turn's tool_calls payload.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is one element of a turn's tool_results payload.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
}
