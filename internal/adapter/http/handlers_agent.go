package http

import (
	"net/http"

	"github.com/voxtask/voxtask/internal/domain/event"
)

// AgentQuery handles POST /api/v1/agent/query. It runs one query to
// completion and returns the collected event stream, a non-streaming
// convenience for clients without a WebSocket.
func (h *Handlers) AgentQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Query     string `json:"query"`
		SessionID string `json:"session_id"`
	}](w, r)
	if !ok {
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	var events []event.Event
	err := h.Agent.Process(r.Context(), req.SessionID, req.Query, func(ev event.Event) {
		events = append(events, ev)
	})

	resp := map[string]any{"events": events}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
