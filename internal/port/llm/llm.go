// Package llm defines the streaming LLM client port consumed by the agent.
package llm

import (
	"context"
	"encoding/json"

	"github.com/voxtask/voxtask/internal/domain/cost"
)

// Message is one entry of the model-facing message list.
type Message struct {
	Role    string  `json:"role"`
	Content []Block `json:"content"`
}

// Block is a content unit inside a message: plain text, a tool invocation
// issued by the model, or a tool result fed back on the next user message.
type Block struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

// TextBlock builds a text content block.
func TextBlock(s string) Block { return Block{Type: "text", Text: s} }

// ToolUseBlock builds a tool_use content block.
func ToolUseBlock(id, name string, input json.RawMessage) Block {
	return Block{Type: "tool_use", ID: id, Name: name, Input: input}
}

// ToolResultBlock builds a tool_result content block.
func ToolResultBlock(toolUseID, content string) Block {
	return Block{Type: "tool_result", ToolUseID: toolUseID, Content: content}
}

// Tool is one model-facing tool schema.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Request is one streaming completion call.
type Request struct {
	System    string
	Tools     []Tool
	Messages  []Message
	MaxTokens int
}

// EventKind discriminates stream events.
type EventKind int

const (
	// KindBlockStart signals a new content block. For tool_use blocks
	// BlockID and Name identify the invocation.
	KindBlockStart EventKind = iota
	// KindTextDelta carries an incremental text fragment.
	KindTextDelta
	// KindInputDelta carries an incremental tool-argument JSON fragment.
	KindInputDelta
	// KindBlockStop signals the current content block is complete.
	KindBlockStop
)

// StreamEvent is one normalized unit of the provider stream.
type StreamEvent struct {
	Kind      EventKind
	BlockType string // "text" or "tool_use" on KindBlockStart
	BlockID   string
	Name      string
	Text      string
	Partial   string
}

// Streamer is the streaming LLM client. Stream invokes fn for every event
// in order and returns the call's token usage once the stream ends.
type Streamer interface {
	Stream(ctx context.Context, req Request, fn func(StreamEvent) error) (cost.Usage, error)
	Model() string
}
