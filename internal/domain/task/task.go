// Package task defines the Task domain entity and its validation rules.
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/voxtask/voxtask/internal/domain"
)

// Status represents the current state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Priority represents the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// MaxTitleLength is the longest title the store accepts.
const MaxTitleLength = 500

// Task represents a scheduled unit of work managed by voice or REST.
type Task struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	Priority      Priority   `json:"priority"`
	Status        Status     `json:"status"`
	ScheduledDate time.Time  `json:"scheduled_date"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ValidStatus reports whether s is one of the known status values.
func ValidStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ValidPriority reports whether p is one of the known priority values.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Validate checks the entity against the domain rules. It returns
// domain.ErrValidation wrapped with a description of every violation.
func (t *Task) Validate() error {
	var problems []string
	if strings.TrimSpace(t.Title) == "" {
		problems = append(problems, "title is required")
	}
	if len(t.Title) > MaxTitleLength {
		problems = append(problems, fmt.Sprintf("title exceeds %d characters", MaxTitleLength))
	}
	if !ValidPriority(t.Priority) {
		problems = append(problems, fmt.Sprintf("invalid priority %q", t.Priority))
	}
	if !ValidStatus(t.Status) {
		problems = append(problems, fmt.Sprintf("invalid status %q", t.Status))
	}
	if t.ScheduledDate.IsZero() {
		problems = append(problems, "scheduled_date is required")
	}
	if t.Deadline != nil && !t.ScheduledDate.IsZero() && t.Deadline.Before(t.ScheduledDate) {
		problems = append(problems, "deadline must not precede scheduled_date")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// Update holds the mutable fields of a task. Nil pointers mean "leave as is";
// ClearDeadline distinguishes "set deadline to null" from "do not touch".
type Update struct {
	Title         *string
	Description   *string
	Notes         *string
	Priority      *Priority
	Status        *Status
	ScheduledDate *time.Time
	Deadline      *time.Time
	ClearDeadline bool
}

// Apply copies the set fields of u onto t and keeps completed_at in sync
// with status transitions.
func (u Update) Apply(t *Task, now time.Time) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Notes != nil {
		t.Notes = *u.Notes
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.Status != nil {
		if *u.Status == StatusCompleted && t.Status != StatusCompleted {
			at := now
			t.CompletedAt = &at
		}
		if *u.Status != StatusCompleted {
			t.CompletedAt = nil
		}
		t.Status = *u.Status
	}
	if u.ScheduledDate != nil {
		t.ScheduledDate = *u.ScheduledDate
	}
	if u.ClearDeadline {
		t.Deadline = nil
	} else if u.Deadline != nil {
		d := *u.Deadline
		t.Deadline = &d
	}
	t.UpdatedAt = now
}

// Filter narrows a task listing. Zero values mean "no constraint".
type Filter struct {
	Status          Status
	Priority        Priority
	Search          string
	HasDeadline     *bool
	DeadlineBefore  *time.Time
	DeadlineAfter   *time.Time
	ScheduledBefore *time.Time
	ScheduledAfter  *time.Time
	IsMissed        *bool
	Skip            int
	Limit           int
}

// Stats holds aggregate task counts.
type Stats struct {
	Total      int64 `json:"total"`
	Todo       int64 `json:"todo"`
	InProgress int64 `json:"in_progress"`
	Completed  int64 `json:"completed"`
	Cancelled  int64 `json:"cancelled"`
	Overdue    int64 `json:"overdue"`
	DueToday   int64 `json:"due_today"`
}
