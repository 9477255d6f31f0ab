package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/voxtask/voxtask/internal/domain"
	"github.com/voxtask/voxtask/internal/domain/task"
)

const taskColumns = `id, title, description, notes, priority, status, scheduled_date, deadline, completed_at, created_at, updated_at`

func (s *Store) CreateTask(ctx context.Context, t *task.Task) (*task.Task, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO tasks (title, description, notes, priority, status, scheduled_date, deadline, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+taskColumns,
		t.Title, t.Description, t.Notes, string(t.Priority), string(t.Status), t.ScheduledDate, t.Deadline, t.CompletedAt)

	created, err := scanTaskRow(row)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &created, nil
}

// CreateTasks inserts a batch of tasks in one transaction. Either every
// task commits or none does.
func (s *Store) CreateTasks(ctx context.Context, ts []*task.Task) ([]*task.Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	created := make([]*task.Task, 0, len(ts))
	for i, t := range ts {
		row := tx.QueryRow(ctx,
			`INSERT INTO tasks (title, description, notes, priority, status, scheduled_date, deadline, completed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING `+taskColumns,
			t.Title, t.Description, t.Notes, string(t.Priority), string(t.Status), t.ScheduledDate, t.Deadline, t.CompletedAt)
		c, err := scanTaskRow(row)
		if err != nil {
			return nil, fmt.Errorf("create task %d of %d: %w", i+1, len(ts), err)
		}
		created = append(created, &c)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create tasks: %w", err)
	}
	return created, nil
}

func (s *Store) GetTask(ctx context.Context, id int64) (*task.Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)

	t, err := scanTaskRow(row)
	if err != nil {
		return nil, notFoundWrap(err, "get task %d", id)
	}
	return &t, nil
}

func (s *Store) UpdateTask(ctx context.Context, t *task.Task) (*task.Task, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE tasks SET title = $2, description = $3, notes = $4, priority = $5, status = $6,
		        scheduled_date = $7, deadline = $8, completed_at = $9, updated_at = now()
		 WHERE id = $1
		 RETURNING `+taskColumns,
		t.ID, t.Title, t.Description, t.Notes, string(t.Priority), string(t.Status),
		t.ScheduledDate, t.Deadline, t.CompletedAt)

	updated, err := scanTaskRow(row)
	if err != nil {
		return nil, notFoundWrap(err, "update task %d", t.ID)
	}
	return &updated, nil
}

// UpdateTasks writes a batch of already-mutated tasks in one transaction.
// A missing id fails the whole batch.
func (s *Store) UpdateTasks(ctx context.Context, ts []*task.Task) ([]*task.Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	updated := make([]*task.Task, 0, len(ts))
	for _, t := range ts {
		row := tx.QueryRow(ctx,
			`UPDATE tasks SET title = $2, description = $3, notes = $4, priority = $5, status = $6,
			        scheduled_date = $7, deadline = $8, completed_at = $9, updated_at = now()
			 WHERE id = $1
			 RETURNING `+taskColumns,
			t.ID, t.Title, t.Description, t.Notes, string(t.Priority), string(t.Status),
			t.ScheduledDate, t.Deadline, t.CompletedAt)
		u, err := scanTaskRow(row)
		if err != nil {
			return nil, notFoundWrap(err, "update task %d", t.ID)
		}
		updated = append(updated, &u)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update tasks: %w", err)
	}
	return updated, nil
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete task %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteTasks removes a batch of tasks in one transaction. A missing id
// rolls back the whole batch.
func (s *Store) DeleteTasks(ctx context.Context, ids []int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, id := range ids {
		tag, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete task %d: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("delete task %d: %w", id, domain.ErrNotFound)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete tasks: %w", err)
	}
	return nil
}

func (s *Store) ListTasks(ctx context.Context, f task.Filter) ([]task.Task, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if f.Priority != "" {
		where = append(where, "priority = "+arg(string(f.Priority)))
	}
	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		where = append(where, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s OR notes ILIKE %s)", p, p, p))
	}
	if f.HasDeadline != nil {
		if *f.HasDeadline {
			where = append(where, "deadline IS NOT NULL")
		} else {
			where = append(where, "deadline IS NULL")
		}
	}
	if f.DeadlineBefore != nil {
		where = append(where, "deadline < "+arg(*f.DeadlineBefore))
	}
	if f.DeadlineAfter != nil {
		where = append(where, "deadline > "+arg(*f.DeadlineAfter))
	}
	if f.ScheduledBefore != nil {
		where = append(where, "scheduled_date < "+arg(*f.ScheduledBefore))
	}
	if f.ScheduledAfter != nil {
		where = append(where, "scheduled_date > "+arg(*f.ScheduledAfter))
	}
	if f.IsMissed != nil {
		// A missed task is still open past its scheduled date.
		cond := fmt.Sprintf("(scheduled_date < now() AND status IN (%s, %s))",
			arg(string(task.StatusTodo)), arg(string(task.StatusInProgress)))
		if *f.IsMissed {
			where = append(where, cond)
		} else {
			where = append(where, "NOT "+cond)
		}
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY scheduled_date ASC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Skip > 0 {
		query += " OFFSET " + arg(f.Skip)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// SearchTasks runs the case-insensitive keyword leg of task search.
// Fuzzy fallback ranking happens above the store.
func (s *Store) SearchTasks(ctx context.Context, query string, limit int) ([]task.Task, error) {
	p := "%" + query + "%"
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE title ILIKE $1 OR description ILIKE $1 OR notes ILIKE $1
		 ORDER BY scheduled_date ASC, id ASC
		 LIMIT $2`, p, limit)
	if err != nil {
		return nil, fmt.Errorf("search tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

func (s *Store) TaskStats(ctx context.Context, now time.Time) (*task.Stats, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var st task.Stats
	err := s.pool.QueryRow(ctx,
		`SELECT
		    count(*),
		    count(*) FILTER (WHERE status = 'todo'),
		    count(*) FILTER (WHERE status = 'in_progress'),
		    count(*) FILTER (WHERE status = 'completed'),
		    count(*) FILTER (WHERE status = 'cancelled'),
		    count(*) FILTER (WHERE deadline < $1 AND status IN ('todo', 'in_progress')),
		    count(*) FILTER (WHERE scheduled_date >= $2 AND scheduled_date < $3 AND status IN ('todo', 'in_progress'))
		 FROM tasks`, now, dayStart, dayEnd,
	).Scan(&st.Total, &st.Todo, &st.InProgress, &st.Completed, &st.Cancelled, &st.Overdue, &st.DueToday)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	return &st, nil
}

func collectTasks(rows pgx.Rows) ([]task.Task, error) {
	var tasks []task.Task
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func scanTaskRow(row scannable) (task.Task, error) {
	var t task.Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Notes, &t.Priority, &t.Status,
		&t.ScheduledDate, &t.Deadline, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}
