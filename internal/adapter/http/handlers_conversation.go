package http

import (
	"net/http"

	"github.com/voxtask/voxtask/internal/domain/conversation"
)

// ConversationHistory handles GET /api/v1/conversation/history
func (h *Handlers) ConversationHistory(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	sessionID := r.URL.Query().Get("session_id")

	turns, total, err := h.Store.ListTurns(r.Context(), sessionID, skip, limit)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if turns == nil {
		turns = []conversation.Turn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"turns": turns,
		"total": total,
		"skip":  skip,
		"limit": limit,
	})
}

// ClearConversation handles DELETE /api/v1/conversation/history
func (h *Handlers) ClearConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	count, err := h.Store.ClearTurns(r.Context(), sessionID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": count})
}
