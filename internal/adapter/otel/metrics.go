package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "voxtask"

// Metrics holds all VoxTask metric instruments.
type Metrics struct {
	QueriesStarted   metric.Int64Counter
	QueriesCompleted metric.Int64Counter
	QueriesFailed    metric.Int64Counter
	ToolCalls        metric.Int64Counter
	QueryDuration    metric.Float64Histogram
	QueryCost        metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.QueriesStarted, err = meter.Int64Counter("voxtask.queries.started",
		metric.WithDescription("Number of agent queries started"))
	if err != nil {
		return nil, err
	}

	m.QueriesCompleted, err = meter.Int64Counter("voxtask.queries.completed",
		metric.WithDescription("Number of agent queries completed"))
	if err != nil {
		return nil, err
	}

	m.QueriesFailed, err = meter.Int64Counter("voxtask.queries.failed",
		metric.WithDescription("Number of agent queries failed"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("voxtask.toolcalls",
		metric.WithDescription("Number of tool calls"))
	if err != nil {
		return nil, err
	}

	m.QueryDuration, err = meter.Float64Histogram("voxtask.query.duration_seconds",
		metric.WithDescription("Agent query duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.QueryCost, err = meter.Float64Histogram("voxtask.query.cost_usd",
		metric.WithDescription("Agent query cost in USD"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
