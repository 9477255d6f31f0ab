// Package event defines the normalized event stream emitted by the agent.
package event

import "encoding/json"

// Type discriminates the event union.
type Type string

const (
	TypeThinking     Type = "thinking"
	TypeToolUseStart Type = "tool_use_start"
	TypeToolUse      Type = "tool_use"
	TypeToolResult   Type = "tool_result"
	TypeText         Type = "text"
	TypeError        Type = "error"
	TypeDone         Type = "done"
)

// Event is one unit of the orchestrator's downstream stream. Exactly one
// Done event terminates every request, success or failure.
type Event struct {
	Type    Type            `json:"type"`
	Tool    string          `json:"tool,omitempty"`
	Input   json.RawMessage `json:"input,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Content string          `json:"content,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Thinking is the immediate acknowledgement sent before the first LLM call.
func Thinking() Event { return Event{Type: TypeThinking} }

// ToolUseStart signals that the model began invoking the named tool.
func ToolUseStart(tool string) Event { return Event{Type: TypeToolUseStart, Tool: tool} }

// ToolUse carries the fully parsed input of a tool invocation.
func ToolUse(tool string, input json.RawMessage) Event {
	return Event{Type: TypeToolUse, Tool: tool, Input: input}
}

// ToolResult carries the executor's result for a tool invocation.
func ToolResult(tool string, result json.RawMessage) Event {
	return Event{Type: TypeToolResult, Tool: tool, Result: result}
}

// Text carries one ordered chunk of assistant text.
func Text(content string) Event { return Event{Type: TypeText, Content: content} }

// Error carries a short human-readable failure message.
func Error(msg string) Event { return Event{Type: TypeError, Message: msg} }

// Done is the guaranteed terminal event.
func Done() Event { return Event{Type: TypeDone} }
