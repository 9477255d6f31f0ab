package anthropic

import (
	"encoding/json"
	"fmt"
)

const (
	messagesPath = "/v1/messages"
	apiVersion   = "2023-06-01"
)

// CacheControl marks a prompt segment for provider-side caching.
type CacheControl struct {
	Type string `json:"type"`
}

// SystemBlock is one segment of the system prompt.
type SystemBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// ToolParam is a model-facing tool schema.
type ToolParam struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"input_schema"`
	CacheControl *CacheControl   `json:"cache_control,omitempty"`
}

// ContentBlock is a content unit inside a message.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

// MessageParam is one entry of the request message list.
type MessageParam struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// MessageRequest is the Messages API request body.
type MessageRequest struct {
	Model     string         `json:"model"`
	MaxTokens int            `json:"max_tokens"`
	System    []SystemBlock  `json:"system,omitempty"`
	Tools     []ToolParam    `json:"tools,omitempty"`
	Messages  []MessageParam `json:"messages"`
	Stream    bool           `json:"stream"`
}

// Usage carries the four billing token buckets.
type Usage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

// streamEnvelope is the minimal shape shared by all SSE payloads.
type streamEnvelope struct {
	Type string `json:"type"`
}

type messageStartEvent struct {
	Message struct {
		Usage Usage `json:"usage"`
	} `json:"message"`
}

type contentBlockStartEvent struct {
	Index        int `json:"index"`
	ContentBlock struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
}

type contentBlockDeltaEvent struct {
	Index int `json:"index"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
	} `json:"delta"`
}

type messageDeltaEvent struct {
	Usage Usage `json:"usage"`
}

// APIError is a non-2xx Messages API response.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("anthropic api %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("anthropic api %d: %s", e.StatusCode, e.Message)
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
