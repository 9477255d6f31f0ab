// Package cost defines domain types for token and cost accounting.
package cost

import "time"

// Usage holds the four token buckets reported by one or more LLM calls.
// Counters from multiple iterations of a single request are summed here
// before a record is written.
type Usage struct {
	InputTokens      int64 `json:"input_tokens"`
	OutputTokens     int64 `json:"output_tokens"`
	CacheWriteTokens int64 `json:"cache_write_tokens"`
	CacheReadTokens  int64 `json:"cache_read_tokens"`
}

// Add accumulates another usage report into u.
func (u *Usage) Add(o Usage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.CacheWriteTokens += o.CacheWriteTokens
	u.CacheReadTokens += o.CacheReadTokens
}

// Total returns the sum of all four buckets.
func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens + u.CacheWriteTokens + u.CacheReadTokens
}

// Record is the persisted cost of one completed agent request, summed
// across every LLM iteration of that request.
type Record struct {
	ID               int64     `json:"id"`
	UserQuery        string    `json:"user_query"`
	Model            string    `json:"model"`
	InputTokens      int64     `json:"input_tokens"`
	OutputTokens     int64     `json:"output_tokens"`
	CacheWriteTokens int64     `json:"cache_write_tokens"`
	CacheReadTokens  int64     `json:"cache_read_tokens"`
	TotalTokens      int64     `json:"total_tokens"`
	InputCost        float64   `json:"input_cost"`
	OutputCost       float64   `json:"output_cost"`
	TotalCost        float64   `json:"total_cost"`
	Iterations       int       `json:"iterations"`
	ToolCallsCount   int       `json:"tool_calls_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// Summary holds aggregate cost metrics over a time window.
type Summary struct {
	TotalCostUSD   float64 `json:"total_cost_usd"`
	TotalTokensIn  int64   `json:"total_tokens_in"`
	TotalTokensOut int64   `json:"total_tokens_out"`
	RequestCount   int64   `json:"request_count"`
	AvgCostUSD     float64 `json:"avg_cost_usd"`
}

// Report groups the summary windows served by the costs API.
type Report struct {
	AllTime   Summary `json:"all_time"`
	Today     Summary `json:"today"`
	ThisMonth Summary `json:"this_month"`
}
