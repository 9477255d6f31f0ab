package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxtask/voxtask/internal/domain/cost"
	"github.com/voxtask/voxtask/internal/port/database"
)

// pricing is USD per million tokens, one rate per usage bucket.
type pricing struct {
	input      float64
	cacheWrite float64
	cacheRead  float64
	output     float64
}

var modelPricing = map[string]pricing{
	"claude-sonnet-4-20250514": {input: 3, cacheWrite: 3.75, cacheRead: 0.30, output: 15},
	"claude-3-5-haiku-latest":  {input: 0.80, cacheWrite: 1, cacheRead: 0.08, output: 4},
}

// defaultPricing covers unknown models at the sonnet tier.
var defaultPricing = pricing{input: 3, cacheWrite: 3.75, cacheRead: 0.30, output: 15}

func priceFor(model string) pricing {
	if p, ok := modelPricing[model]; ok {
		return p
	}
	return defaultPricing
}

// queryPreviewLimit caps the stored user query text.
const queryPreviewLimit = 1000

// CostService composes and persists per-request cost records and serves
// the aggregation windows of the costs API.
type CostService struct {
	store database.CostStore
	log   *slog.Logger
}

// NewCostService creates a CostService.
func NewCostService(store database.CostStore, log *slog.Logger) *CostService {
	return &CostService{store: store, log: log}
}

// Compose prices a request's summed usage into a record.
func (s *CostService) Compose(model, query string, usage cost.Usage, iterations, toolCalls int) *cost.Record {
	p := priceFor(model)

	inputCost := float64(usage.InputTokens)/1e6*p.input +
		float64(usage.CacheWriteTokens)/1e6*p.cacheWrite +
		float64(usage.CacheReadTokens)/1e6*p.cacheRead
	outputCost := float64(usage.OutputTokens) / 1e6 * p.output

	if runes := []rune(query); len(runes) > queryPreviewLimit {
		query = string(runes[:queryPreviewLimit])
	}

	return &cost.Record{
		UserQuery:        query,
		Model:            model,
		InputTokens:      usage.InputTokens,
		OutputTokens:     usage.OutputTokens,
		CacheWriteTokens: usage.CacheWriteTokens,
		CacheReadTokens:  usage.CacheReadTokens,
		TotalTokens:      usage.Total(),
		InputCost:        inputCost,
		OutputCost:       outputCost,
		TotalCost:        inputCost + outputCost,
		Iterations:       iterations,
		ToolCallsCount:   toolCalls,
	}
}

// Record persists a record. Accounting must never fail a user request, so
// storage errors are logged and swallowed.
func (s *CostService) Record(ctx context.Context, r *cost.Record) {
	if err := s.store.CreateCostRecord(ctx, r); err != nil {
		s.log.Error("persist cost record failed", "model", r.Model, "cost", r.TotalCost, "error", err)
	}
}

// History returns persisted records, newest first, with the total count.
func (s *CostService) History(ctx context.Context, skip, limit int) ([]cost.Record, int64, error) {
	return s.store.ListCostRecords(ctx, skip, limit)
}

// Report aggregates the all-time, today, and this-month windows.
func (s *CostService) Report(ctx context.Context, now time.Time) (*cost.Report, error) {
	allTime, err := s.store.CostSummary(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := s.store.CostSummary(ctx, midnight)
	if err != nil {
		return nil, err
	}
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	month, err := s.store.CostSummary(ctx, monthStart)
	if err != nil {
		return nil, err
	}
	return &cost.Report{AllTime: *allTime, Today: *today, ThisMonth: *month}, nil
}
