package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/voxtask/voxtask/internal/domain/task"
)

// parseWhen accepts the timestamp shapes the model produces: full RFC 3339,
// a local datetime without zone, or a bare date.
func parseWhen(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

type taskFields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Notes       string `json:"notes"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	Scheduled   string `json:"scheduled_date"`
	Deadline    string `json:"deadline"`
}

// buildTask turns raw tool fields into a validated entity with
// normalized dates.
func (r *Registry) buildTask(f taskFields) (*task.Task, error) {
	now := r.now()

	t := &task.Task{
		Title:       strings.TrimSpace(f.Title),
		Description: f.Description,
		Notes:       f.Notes,
		Priority:    task.PriorityMedium,
		Status:      task.StatusTodo,
	}
	if f.Priority != "" {
		t.Priority = task.Priority(f.Priority)
	}
	if f.Status != "" {
		t.Status = task.Status(f.Status)
	}

	if f.Scheduled == "" {
		return nil, errors.New("scheduled_date is required")
	}
	sched, err := parseWhen(f.Scheduled)
	if err != nil {
		return nil, err
	}
	t.ScheduledDate = task.NormalizeIncoming(sched, now)

	if f.Deadline != "" {
		d, err := parseWhen(f.Deadline)
		if err != nil {
			return nil, err
		}
		nd := task.NormalizeIncoming(d, now)
		t.Deadline = &nd
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Registry) createTask(ctx context.Context, input json.RawMessage) (Result, error) {
	var f taskFields
	if err := json.Unmarshal(input, &f); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	t, err := r.buildTask(f)
	if err != nil {
		return nil, err
	}

	created, err := r.store.CreateTask(ctx, t)
	if err != nil {
		return nil, err
	}

	res := Result{"task": created}
	if hint := hintForShift(task.ShiftDays(r.now(), created.ScheduledDate), created.ScheduledDate); hint != nil {
		res["navigation_hint"] = hint
	}
	return res, nil
}

func (r *Registry) createMultipleTasks(ctx context.Context, input json.RawMessage) (Result, error) {
	var in struct {
		Tasks []taskFields `json:"tasks"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	if len(in.Tasks) == 0 {
		return nil, errors.New("tasks must not be empty")
	}

	// Validate the whole batch before touching the store.
	var (
		batch    []*task.Task
		problems []string
	)
	for i, f := range in.Tasks {
		t, err := r.buildTask(f)
		if err != nil {
			problems = append(problems, fmt.Sprintf("task %d (%q): %v", i+1, f.Title, err))
			continue
		}
		batch = append(batch, t)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("no tasks created: %s", strings.Join(problems, "; "))
	}

	created, err := r.store.CreateTasks(ctx, batch)
	if err != nil {
		return nil, err
	}
	return Result{"tasks": created, "count": len(created)}, nil
}

type updateFields struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	Notes           *string `json:"notes"`
	Priority        *string `json:"priority"`
	Status          *string `json:"status"`
	Scheduled       *string `json:"scheduled_date"`
	ShiftDays       *int    `json:"scheduled_date_shift_days"`
	ShiftDeadline   bool    `json:"shift_deadline_too"`
	Deadline        *string `json:"deadline"`
	ClearDeadline   bool    `json:"clear_deadline"`
}

// applyUpdate mutates a copy of t according to f. It returns the updated
// entity and the scheduling shift in days (0 when scheduling untouched).
// A schedule moving past an unshifted deadline fails with
// needsConfirmation set so the model can ask the user.
func (r *Registry) applyUpdate(t task.Task, f updateFields) (*task.Task, int, bool, error) {
	now := r.now()

	if f.Scheduled != nil && f.ShiftDays != nil {
		return nil, 0, false, errors.New("scheduled_date and scheduled_date_shift_days are mutually exclusive")
	}

	u := task.Update{ClearDeadline: f.ClearDeadline}
	if f.Title != nil {
		u.Title = f.Title
	}
	if f.Description != nil {
		u.Description = f.Description
	}
	if f.Notes != nil {
		u.Notes = f.Notes
	}
	if f.Priority != nil {
		p := task.Priority(*f.Priority)
		u.Priority = &p
	}
	if f.Status != nil {
		s := task.Status(*f.Status)
		u.Status = &s
	}

	oldSched := t.ScheduledDate
	var newSched *time.Time
	switch {
	case f.ShiftDays != nil:
		ns := t.ScheduledDate.AddDate(0, 0, *f.ShiftDays)
		newSched = &ns
	case f.Scheduled != nil:
		parsed, err := parseWhen(*f.Scheduled)
		if err != nil {
			return nil, 0, false, err
		}
		ns := task.NormalizeIncoming(parsed, now)
		newSched = &ns
	}

	if f.Deadline != nil {
		if f.ClearDeadline {
			return nil, 0, false, errors.New("deadline and clear_deadline are mutually exclusive")
		}
		parsed, err := parseWhen(*f.Deadline)
		if err != nil {
			return nil, 0, false, err
		}
		nd := task.NormalizeIncoming(parsed, now)
		u.Deadline = &nd
	}

	if newSched != nil {
		deadline := t.Deadline
		if u.Deadline != nil {
			deadline = u.Deadline
		}
		if deadline != nil && !f.ClearDeadline && newSched.After(*deadline) {
			if !f.ShiftDeadline {
				return nil, 0, true, fmt.Errorf(
					"new scheduled date %s would be after deadline %s; pass shift_deadline_too to move both",
					newSched.Format("2006-01-02 15:04"), deadline.Format("2006-01-02 15:04"))
			}
			shifted := deadline.Add(newSched.Sub(oldSched))
			u.Deadline = &shifted
		}
		u.ScheduledDate = newSched
	}

	u.Apply(&t, now)
	if err := t.Validate(); err != nil {
		return nil, 0, false, err
	}

	shift := 0
	if newSched != nil {
		shift = task.ShiftDays(oldSched, *newSched)
	}
	return &t, shift, false, nil
}

func (r *Registry) updateTask(ctx context.Context, input json.RawMessage) (Result, error) {
	var in struct {
		TaskID int64 `json:"task_id"`
		updateFields
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	current, err := r.store.GetTask(ctx, in.TaskID)
	if err != nil {
		return nil, err
	}

	updated, shift, needsConfirm, err := r.applyUpdate(*current, in.updateFields)
	if err != nil {
		if needsConfirm {
			return Result{"needs_confirmation": true}, err
		}
		return nil, err
	}

	saved, err := r.store.UpdateTask(ctx, updated)
	if err != nil {
		return nil, err
	}

	res := Result{"task": saved}
	if hint := hintForShift(shift, saved.ScheduledDate); hint != nil {
		res["navigation_hint"] = hint
	}
	return res, nil
}

func (r *Registry) updateMultipleTasks(ctx context.Context, input json.RawMessage) (Result, error) {
	var in struct {
		TaskIDs []int64      `json:"task_ids"`
		Updates updateFields `json:"updates"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	if len(in.TaskIDs) == 0 {
		return nil, errors.New("task_ids must not be empty")
	}

	// Resolve and validate every task before writing anything.
	var (
		batch        []*task.Task
		problems     []string
		maxShift     int
		lastSched    time.Time
		needsConfirm bool
	)
	for _, id := range in.TaskIDs {
		current, err := r.store.GetTask(ctx, id)
		if err != nil {
			problems = append(problems, fmt.Sprintf("task %d: %v", id, err))
			continue
		}
		updated, shift, confirm, err := r.applyUpdate(*current, in.Updates)
		if err != nil {
			needsConfirm = needsConfirm || confirm
			problems = append(problems, fmt.Sprintf("task %d: %v", id, err))
			continue
		}
		if shift > maxShift {
			maxShift = shift
			lastSched = updated.ScheduledDate
		}
		batch = append(batch, updated)
	}
	if len(problems) > 0 {
		err := fmt.Errorf("no tasks updated: %s", strings.Join(problems, "; "))
		if needsConfirm {
			return Result{"needs_confirmation": true}, err
		}
		return nil, err
	}

	saved, err := r.store.UpdateTasks(ctx, batch)
	if err != nil {
		return nil, err
	}

	res := Result{"tasks": saved, "count": len(saved)}
	if hint := hintForShift(maxShift, lastSched); hint != nil {
		res["navigation_hint"] = hint
	}
	return res, nil
}

func (r *Registry) deleteTask(ctx context.Context, input json.RawMessage) (Result, error) {
	var in struct {
		TaskID int64 `json:"task_id"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	if err := r.store.DeleteTask(ctx, in.TaskID); err != nil {
		return nil, err
	}
	// Deliberately no navigation hint after deletes.
	return Result{"deleted_id": in.TaskID}, nil
}

func (r *Registry) deleteMultipleTasks(ctx context.Context, input json.RawMessage) (Result, error) {
	var in struct {
		TaskIDs []int64 `json:"task_ids"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	if len(in.TaskIDs) == 0 {
		return nil, errors.New("task_ids must not be empty")
	}

	// Name every missing id up front so the aggregate error is complete.
	var problems []string
	for _, id := range in.TaskIDs {
		if _, err := r.store.GetTask(ctx, id); err != nil {
			problems = append(problems, fmt.Sprintf("task %d: %v", id, err))
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("no tasks deleted: %s", strings.Join(problems, "; "))
	}

	if err := r.store.DeleteTasks(ctx, in.TaskIDs); err != nil {
		return nil, err
	}
	return Result{"deleted_ids": in.TaskIDs, "count": len(in.TaskIDs)}, nil
}

func (r *Registry) listTasks(ctx context.Context, input json.RawMessage) (Result, error) {
	var in struct {
		Status          string `json:"status"`
		Priority        string `json:"priority"`
		HasDeadline     *bool  `json:"has_deadline"`
		DeadlineBefore  string `json:"deadline_before"`
		DeadlineAfter   string `json:"deadline_after"`
		ScheduledBefore string `json:"scheduled_before"`
		ScheduledAfter  string `json:"scheduled_after"`
		IsMissed        *bool  `json:"is_missed"`
		Limit           int    `json:"limit"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	f := task.Filter{
		Status:      task.Status(in.Status),
		Priority:    task.Priority(in.Priority),
		HasDeadline: in.HasDeadline,
		IsMissed:    in.IsMissed,
		Limit:       in.Limit,
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}

	for _, bind := range []struct {
		raw string
		dst **time.Time
	}{
		{in.DeadlineBefore, &f.DeadlineBefore},
		{in.DeadlineAfter, &f.DeadlineAfter},
		{in.ScheduledBefore, &f.ScheduledBefore},
		{in.ScheduledAfter, &f.ScheduledAfter},
	} {
		if bind.raw == "" {
			continue
		}
		t, err := parseWhen(bind.raw)
		if err != nil {
			return nil, err
		}
		*bind.dst = &t
	}

	tasks, err := r.store.ListTasks(ctx, f)
	if err != nil {
		return nil, err
	}
	return Result{"tasks": tasks, "count": len(tasks)}, nil
}

func (r *Registry) getTaskStats(ctx context.Context, _ json.RawMessage) (Result, error) {
	stats, err := r.store.TaskStats(ctx, r.now())
	if err != nil {
		return nil, err
	}
	return Result{"stats": stats}, nil
}
