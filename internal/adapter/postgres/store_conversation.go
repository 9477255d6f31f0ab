package postgres

import (
	"context"
	"fmt"

	"github.com/voxtask/voxtask/internal/domain/conversation"
)

const turnColumns = `id, session_id, role, content, tool_calls, tool_results, created_at`

func (s *Store) AppendTurn(ctx context.Context, t *conversation.Turn) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO conversation_turns (session_id, role, content, tool_calls, tool_results)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		t.SessionID, string(t.Role), t.Content, nullJSON(t.ToolCalls), nullJSON(t.ToolResults),
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// RecentTurns returns the last limit turns in ascending chronological order.
// When sessionID is empty the history is global.
func (s *Store) RecentTurns(ctx context.Context, sessionID string, limit int) ([]conversation.Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+turnColumns+` FROM (
		    SELECT `+turnColumns+` FROM conversation_turns
		    WHERE ($1 = '' OR session_id = $1)
		    ORDER BY id DESC
		    LIMIT $2
		 ) recent ORDER BY id ASC`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	defer rows.Close()

	var turns []conversation.Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *Store) ListTurns(ctx context.Context, sessionID string, skip, limit int) ([]conversation.Turn, int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM conversation_turns WHERE ($1 = '' OR session_id = $1)`, sessionID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count turns: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+turnColumns+` FROM conversation_turns
		 WHERE ($1 = '' OR session_id = $1)
		 ORDER BY id ASC
		 OFFSET $2 LIMIT $3`, sessionID, skip, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []conversation.Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, total, rows.Err()
}

func (s *Store) ClearTurns(ctx context.Context, sessionID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM conversation_turns WHERE ($1 = '' OR session_id = $1)`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("clear turns: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanTurn(row scannable) (conversation.Turn, error) {
	var t conversation.Turn
	err := row.Scan(&t.ID, &t.SessionID, &t.Role, &t.Content, &t.ToolCalls, &t.ToolResults, &t.CreatedAt)
	return t, err
}

// nullJSON converts an empty RawMessage to nil so JSONB columns store NULL
// instead of an empty string.
func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
