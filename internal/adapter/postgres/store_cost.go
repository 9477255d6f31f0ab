package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/voxtask/voxtask/internal/domain/cost"
)

func (s *Store) CreateCostRecord(ctx context.Context, r *cost.Record) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO api_costs (user_query, model, input_tokens, output_tokens, cache_write_tokens,
		        cache_read_tokens, total_tokens, input_cost, output_cost, total_cost, iterations, tool_calls_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, created_at`,
		r.UserQuery, r.Model, r.InputTokens, r.OutputTokens, r.CacheWriteTokens,
		r.CacheReadTokens, r.TotalTokens, r.InputCost, r.OutputCost, r.TotalCost,
		r.Iterations, r.ToolCallsCount,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return fmt.Errorf("create cost record: %w", err)
	}
	return nil
}

func (s *Store) ListCostRecords(ctx context.Context, skip, limit int) ([]cost.Record, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM api_costs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cost records: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_query, model, input_tokens, output_tokens, cache_write_tokens,
		        cache_read_tokens, total_tokens, input_cost, output_cost, total_cost,
		        iterations, tool_calls_count, created_at
		 FROM api_costs ORDER BY created_at DESC, id DESC
		 OFFSET $1 LIMIT $2`, skip, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list cost records: %w", err)
	}
	defer rows.Close()

	var records []cost.Record
	for rows.Next() {
		var r cost.Record
		if err := rows.Scan(&r.ID, &r.UserQuery, &r.Model, &r.InputTokens, &r.OutputTokens,
			&r.CacheWriteTokens, &r.CacheReadTokens, &r.TotalTokens, &r.InputCost,
			&r.OutputCost, &r.TotalCost, &r.Iterations, &r.ToolCallsCount, &r.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan cost record: %w", err)
		}
		records = append(records, r)
	}
	return records, total, rows.Err()
}

// CostSummary aggregates all records created at or after since.
// A zero since means lifetime totals.
func (s *Store) CostSummary(ctx context.Context, since time.Time) (*cost.Summary, error) {
	var sum cost.Summary
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(sum(total_cost), 0),
		        COALESCE(sum(input_tokens + cache_write_tokens + cache_read_tokens), 0),
		        COALESCE(sum(output_tokens), 0),
		        count(*)
		 FROM api_costs WHERE created_at >= $1`, since,
	).Scan(&sum.TotalCostUSD, &sum.TotalTokensIn, &sum.TotalTokensOut, &sum.RequestCount)
	if err != nil {
		return nil, fmt.Errorf("cost summary: %w", err)
	}
	if sum.RequestCount > 0 {
		sum.AvgCostUSD = sum.TotalCostUSD / float64(sum.RequestCount)
	}
	return &sum, nil
}
