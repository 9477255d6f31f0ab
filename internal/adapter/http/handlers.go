package http

import (
	"net/http"
	"time"

	"github.com/voxtask/voxtask/internal/adapter/ws"
	"github.com/voxtask/voxtask/internal/port/database"
	"github.com/voxtask/voxtask/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Store database.Store
	Agent *service.AgentService
	Costs *service.CostService
	Hub   *ws.Hub

	now func() time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(store database.Store, agent *service.AgentService, costs *service.CostService, hub *ws.Hub) *Handlers {
	return &Handlers{Store: store, Agent: agent, Costs: costs, Hub: hub, now: time.Now}
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
