package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/voxtask/voxtask/internal/domain/event"
)

// Message type constants.
const (
	// MsgFluxEvent relays a transcription frame verbatim.
	MsgFluxEvent = "flux_event"
	// MsgAgentEvent carries one agent stream event.
	MsgAgentEvent = "agent_event"
	// MsgAgentError reports a turn that failed after retries.
	MsgAgentError = "agent_error"

	// Task change notifications for the update feed.
	EventTaskCreated = "task.created"
	EventTaskUpdated = "task.updated"
	EventTaskDeleted = "task.deleted"
)

// TaskChangedEvent is broadcast when a task is created, updated, or deleted.
type TaskChangedEvent struct {
	TaskID int64  `json:"task_id"`
	Title  string `json:"title,omitempty"`
	Status string `json:"status,omitempty"`
}

// AgentErrorEvent is sent on the voice connection when a query fails.
type AgentErrorEvent struct {
	Message string `json:"message"`
}

// BroadcastEvent marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}

// fluxEnvelope wraps a raw transcription frame for the client.
func fluxEnvelope(raw json.RawMessage) Message {
	return Message{Type: MsgFluxEvent, Payload: raw}
}

// agentEnvelope wraps one agent stream event for the client.
func agentEnvelope(ev event.Event) Message {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("marshal agent event", "type", ev.Type, "error", err)
		data = []byte(`{"type":"error","message":"internal: unencodable event"}`)
	}
	return Message{Type: MsgAgentEvent, Payload: data}
}

// errorEnvelope wraps a terminal turn failure for the client.
func errorEnvelope(msg string) Message {
	data, _ := json.Marshal(AgentErrorEvent{Message: msg})
	return Message{Type: MsgAgentError, Payload: data}
}
