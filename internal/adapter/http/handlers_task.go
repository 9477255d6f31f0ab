package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voxtask/voxtask/internal/adapter/ws"
	"github.com/voxtask/voxtask/internal/domain/task"
)

func taskID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

// ListTasks handles GET /api/v1/tasks
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, limit := pagination(r)

	f := task.Filter{
		Status:   task.Status(q.Get("status")),
		Priority: task.Priority(q.Get("priority")),
		Search:   q.Get("search"),
		Skip:     skip,
		Limit:    limit,
	}
	for _, bind := range []struct {
		name string
		dst  **time.Time
	}{
		{"scheduled_after", &f.ScheduledAfter},
		{"scheduled_before", &f.ScheduledBefore},
		{"deadline_after", &f.DeadlineAfter},
		{"deadline_before", &f.DeadlineBefore},
	} {
		raw := q.Get(bind.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+bind.name)
			return
		}
		*bind.dst = &t
	}
	for _, bind := range []struct {
		name string
		dst  **bool
	}{
		{"has_deadline", &f.HasDeadline},
		{"is_missed", &f.IsMissed},
	} {
		raw := q.Get(bind.name)
		if raw == "" {
			continue
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+bind.name)
			return
		}
		*bind.dst = &b
	}

	tasks, err := h.Store.ListTasks(r.Context(), f)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

type createTaskRequest struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Notes         string     `json:"notes"`
	Priority      string     `json:"priority"`
	Status        string     `json:"status"`
	ScheduledDate time.Time  `json:"scheduled_date"`
	Deadline      *time.Time `json:"deadline"`
}

// CreateTask handles POST /api/v1/tasks
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[createTaskRequest](w, r)
	if !ok {
		return
	}

	t := &task.Task{
		Title:         req.Title,
		Description:   req.Description,
		Notes:         req.Notes,
		Priority:      task.PriorityMedium,
		Status:        task.StatusTodo,
		ScheduledDate: req.ScheduledDate,
		Deadline:      req.Deadline,
	}
	if req.Priority != "" {
		t.Priority = task.Priority(req.Priority)
	}
	if req.Status != "" {
		t.Status = task.Status(req.Status)
	}
	if err := t.Validate(); err != nil {
		writeDomainError(w, err, "invalid task")
		return
	}

	created, err := h.Store.CreateTask(r.Context(), t)
	if err != nil {
		writeDomainError(w, err, "task creation failed")
		return
	}

	h.Hub.BroadcastEvent(r.Context(), ws.EventTaskCreated, ws.TaskChangedEvent{
		TaskID: created.ID, Title: created.Title, Status: string(created.Status),
	})
	writeJSON(w, http.StatusCreated, created)
}

// GetTask handles GET /api/v1/tasks/{id}
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	t, err := h.Store.GetTask(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type updateTaskRequest struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	Notes         *string    `json:"notes"`
	Priority      *string    `json:"priority"`
	Status        *string    `json:"status"`
	ScheduledDate *time.Time `json:"scheduled_date"`
	Deadline      *time.Time `json:"deadline"`
	ClearDeadline bool       `json:"clear_deadline"`
}

// UpdateTask handles PATCH /api/v1/tasks/{id}
func (h *Handlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	req, ok := readJSON[updateTaskRequest](w, r)
	if !ok {
		return
	}

	current, err := h.Store.GetTask(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}

	u := task.Update{
		Title:         req.Title,
		Description:   req.Description,
		Notes:         req.Notes,
		ScheduledDate: req.ScheduledDate,
		Deadline:      req.Deadline,
		ClearDeadline: req.ClearDeadline,
	}
	if req.Priority != nil {
		p := task.Priority(*req.Priority)
		u.Priority = &p
	}
	if req.Status != nil {
		s := task.Status(*req.Status)
		u.Status = &s
	}

	u.Apply(current, h.now())
	if err := current.Validate(); err != nil {
		writeDomainError(w, err, "invalid task")
		return
	}

	updated, err := h.Store.UpdateTask(r.Context(), current)
	if err != nil {
		writeDomainError(w, err, "task update failed")
		return
	}

	h.Hub.BroadcastEvent(r.Context(), ws.EventTaskUpdated, ws.TaskChangedEvent{
		TaskID: updated.ID, Title: updated.Title, Status: string(updated.Status),
	})
	writeJSON(w, http.StatusOK, updated)
}

// DeleteTask handles DELETE /api/v1/tasks/{id}
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	if err := h.Store.DeleteTask(r.Context(), id); err != nil {
		writeDomainError(w, err, "task not found")
		return
	}

	h.Hub.BroadcastEvent(r.Context(), ws.EventTaskDeleted, ws.TaskChangedEvent{TaskID: id})
	w.WriteHeader(http.StatusNoContent)
}

// TaskStats handles GET /api/v1/tasks/stats/summary
func (h *Handlers) TaskStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.TaskStats(r.Context(), h.now())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
