package http

import (
	"net/http"
	"time"

	"github.com/voxtask/voxtask/internal/domain/cost"
)

// CostHistory handles GET /api/v1/costs/history
func (h *Handlers) CostHistory(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)

	records, total, err := h.Costs.History(r.Context(), skip, limit)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if records == nil {
		records = []cost.Record{}
	}

	summary, err := h.Store.CostSummary(r.Context(), time.Time{})
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"total":   total,
		"skip":    skip,
		"limit":   limit,
		"summary": summary,
	})
}

// CostSummary handles GET /api/v1/costs/summary
func (h *Handlers) CostSummary(w http.ResponseWriter, r *http.Request) {
	report, err := h.Costs.Report(r.Context(), h.now())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
