// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/voxtask/voxtask/internal/domain/conversation"
	"github.com/voxtask/voxtask/internal/domain/cost"
	"github.com/voxtask/voxtask/internal/domain/task"
)

// Store is the port interface for database operations.
type Store interface {
	TaskStore
	ConversationStore
	CostStore
}

// TaskStore covers the task table. Batch methods are transactional: either
// every item commits or none does.
type TaskStore interface {
	CreateTask(ctx context.Context, t *task.Task) (*task.Task, error)
	CreateTasks(ctx context.Context, ts []*task.Task) ([]*task.Task, error)
	GetTask(ctx context.Context, id int64) (*task.Task, error)
	UpdateTask(ctx context.Context, t *task.Task) (*task.Task, error)
	UpdateTasks(ctx context.Context, ts []*task.Task) ([]*task.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	DeleteTasks(ctx context.Context, ids []int64) error
	ListTasks(ctx context.Context, f task.Filter) ([]task.Task, error)
	SearchTasks(ctx context.Context, query string, limit int) ([]task.Task, error)
	TaskStats(ctx context.Context, now time.Time) (*task.Stats, error)
}

// ConversationStore is an append-only log of conversation turns.
type ConversationStore interface {
	AppendTurn(ctx context.Context, t *conversation.Turn) error
	// RecentTurns returns the last limit turns in ascending chronological
	// order, filtered by session when sessionID is nonempty.
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]conversation.Turn, error)
	ListTurns(ctx context.Context, sessionID string, skip, limit int) ([]conversation.Turn, int64, error)
	ClearTurns(ctx context.Context, sessionID string) (int64, error)
}

// CostStore persists and aggregates per-request cost records.
type CostStore interface {
	CreateCostRecord(ctx context.Context, r *cost.Record) error
	ListCostRecords(ctx context.Context, skip, limit int) ([]cost.Record, int64, error)
	CostSummary(ctx context.Context, since time.Time) (*cost.Summary, error)
}
