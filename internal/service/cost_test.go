package service

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/voxtask/voxtask/internal/domain/cost"
)

func TestComposePricesAllBuckets(t *testing.T) {
	svc := NewCostService(&memCostStore{}, testLogger())

	rec := svc.Compose("claude-sonnet-4-20250514", "add milk", cost.Usage{
		InputTokens:      1_000_000,
		OutputTokens:     1_000_000,
		CacheWriteTokens: 1_000_000,
		CacheReadTokens:  1_000_000,
	}, 2, 3)

	if math.Abs(rec.InputCost-(3+3.75+0.30)) > 1e-9 {
		t.Fatalf("input cost = %v", rec.InputCost)
	}
	if math.Abs(rec.OutputCost-15) > 1e-9 {
		t.Fatalf("output cost = %v", rec.OutputCost)
	}
	if math.Abs(rec.TotalCost-(3+3.75+0.30+15)) > 1e-9 {
		t.Fatalf("total cost = %v", rec.TotalCost)
	}
	if rec.TotalTokens != 4_000_000 || rec.Iterations != 2 || rec.ToolCallsCount != 3 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestComposeUnknownModelUsesDefaultTier(t *testing.T) {
	svc := NewCostService(&memCostStore{}, testLogger())
	rec := svc.Compose("claude-next-99", "x", cost.Usage{OutputTokens: 1_000_000}, 1, 0)
	if math.Abs(rec.OutputCost-15) > 1e-9 {
		t.Fatalf("output cost = %v", rec.OutputCost)
	}
}

func TestComposeTruncatesQueryPreview(t *testing.T) {
	svc := NewCostService(&memCostStore{}, testLogger())
	long := strings.Repeat("a", queryPreviewLimit+500)
	rec := svc.Compose("claude-sonnet-4-20250514", long, cost.Usage{}, 1, 0)
	if len([]rune(rec.UserQuery)) != queryPreviewLimit {
		t.Fatalf("preview length = %d", len(rec.UserQuery))
	}
}

func TestRecordSwallowsStorageErrors(t *testing.T) {
	store := &memCostStore{failing: true}
	svc := NewCostService(store, testLogger())

	// Must not panic or propagate.
	svc.Record(context.Background(), &cost.Record{Model: "m", TotalCost: 0.01})
	if len(store.records) != 0 {
		t.Fatal("failing store should hold no records")
	}
}

func TestReportWindows(t *testing.T) {
	store := &memCostStore{}
	svc := NewCostService(store, testLogger())
	_ = store.CreateCostRecord(context.Background(), &cost.Record{TotalCost: 0.5, InputTokens: 100, OutputTokens: 10})
	_ = store.CreateCostRecord(context.Background(), &cost.Record{TotalCost: 1.5, InputTokens: 300, OutputTokens: 30})

	now := time.Date(2025, 1, 12, 15, 0, 0, 0, time.UTC)
	report, err := svc.Report(context.Background(), now)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if math.Abs(report.AllTime.TotalCostUSD-2.0) > 1e-9 {
		t.Fatalf("all time = %+v", report.AllTime)
	}
	if report.AllTime.RequestCount != 2 || math.Abs(report.AllTime.AvgCostUSD-1.0) > 1e-9 {
		t.Fatalf("all time = %+v", report.AllTime)
	}
}
