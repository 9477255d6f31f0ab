package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Tasks
		r.Get("/tasks", h.ListTasks)
		r.Post("/tasks", h.CreateTask)
		r.Get("/tasks/stats/summary", h.TaskStats)
		r.Get("/tasks/{id}", h.GetTask)
		r.Patch("/tasks/{id}", h.UpdateTask)
		r.Delete("/tasks/{id}", h.DeleteTask)

		// Conversation
		r.Get("/conversation/history", h.ConversationHistory)
		r.Delete("/conversation/history", h.ClearConversation)

		// Costs
		r.Get("/costs/history", h.CostHistory)
		r.Get("/costs/summary", h.CostSummary)

		// Agent
		r.Post("/agent/query", h.AgentQuery)
	})
}
