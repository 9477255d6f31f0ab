package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxtask/voxtask/internal/config"
	"github.com/voxtask/voxtask/internal/domain/conversation"
	"github.com/voxtask/voxtask/internal/domain/cost"
	"github.com/voxtask/voxtask/internal/domain/event"
	"github.com/voxtask/voxtask/internal/port/llm"
)

// script is one canned Stream call.
type script struct {
	events []llm.StreamEvent
	usage  cost.Usage
	err    error
}

type fakeStreamer struct {
	scripts []script
	calls   int
}

func (f *fakeStreamer) Stream(_ context.Context, _ llm.Request, fn func(llm.StreamEvent) error) (cost.Usage, error) {
	if f.calls >= len(f.scripts) {
		return cost.Usage{}, errors.New("unexpected extra llm call")
	}
	sc := f.scripts[f.calls]
	f.calls++
	for _, ev := range sc.events {
		if err := fn(ev); err != nil {
			return sc.usage, err
		}
	}
	return sc.usage, sc.err
}

func (f *fakeStreamer) Model() string { return "claude-sonnet-4-20250514" }

type fakeRunner struct {
	result    string
	panicWith string
	inputs    []json.RawMessage
	names     []string
}

func (f *fakeRunner) Schemas() []llm.Tool { return nil }

func (f *fakeRunner) DispatchJSON(_ context.Context, name string, input json.RawMessage) json.RawMessage {
	if f.panicWith != "" {
		panic(f.panicWith)
	}
	f.names = append(f.names, name)
	f.inputs = append(f.inputs, input)
	if f.result == "" {
		return json.RawMessage(`{"success":true}`)
	}
	return json.RawMessage(f.result)
}

// memConversationStore is an in-memory append-only turn log.
type memConversationStore struct {
	mu       sync.Mutex
	turns    []conversation.Turn
	failNext bool
}

func (m *memConversationStore) AppendTurn(_ context.Context, t *conversation.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return errors.New("disk full")
	}
	c := *t
	c.ID = int64(len(m.turns) + 1)
	c.CreatedAt = time.Now()
	m.turns = append(m.turns, c)
	return nil
}

func (m *memConversationStore) RecentTurns(_ context.Context, sessionID string, limit int) ([]conversation.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []conversation.Turn
	for _, t := range m.turns {
		if sessionID != "" && t.SessionID != sessionID {
			continue
		}
		out = append(out, t)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memConversationStore) ListTurns(_ context.Context, sessionID string, skip, limit int) ([]conversation.Turn, int64, error) {
	turns, err := m.RecentTurns(context.Background(), sessionID, 1<<30)
	if err != nil {
		return nil, 0, err
	}
	total := int64(len(turns))
	if skip > len(turns) {
		skip = len(turns)
	}
	turns = turns[skip:]
	if limit > 0 && len(turns) > limit {
		turns = turns[:limit]
	}
	return turns, total, nil
}

func (m *memConversationStore) ClearTurns(_ context.Context, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []conversation.Turn
	removed := int64(0)
	for _, t := range m.turns {
		if sessionID == "" || t.SessionID == sessionID {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	m.turns = kept
	return removed, nil
}

// memCostStore captures cost records and summary windows.
type memCostStore struct {
	mu          sync.Mutex
	records     []cost.Record
	failing     bool
	writeCtxErr error
}

func (m *memCostStore) CreateCostRecord(ctx context.Context, r *cost.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCtxErr = ctx.Err()
	if m.failing {
		return errors.New("disk full")
	}
	c := *r
	c.ID = int64(len(m.records) + 1)
	m.records = append(m.records, c)
	return nil
}

func (m *memCostStore) ListCostRecords(_ context.Context, skip, limit int) ([]cost.Record, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]cost.Record(nil), m.records...), int64(len(m.records)), nil
}

func (m *memCostStore) CostSummary(_ context.Context, since time.Time) (*cost.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &cost.Summary{}
	for _, r := range m.records {
		s.TotalCostUSD += r.TotalCost
		s.TotalTokensIn += r.InputTokens
		s.TotalTokensOut += r.OutputTokens
		s.RequestCount++
	}
	if s.RequestCount > 0 {
		s.AvgCostUSD = s.TotalCostUSD / float64(s.RequestCount)
	}
	return s, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAgent(streamer *fakeStreamer, runner ToolRunner) (*AgentService, *memConversationStore, *memCostStore) {
	convs := &memConversationStore{}
	costs := &memCostStore{}
	cfg := config.Agent{MaxIterations: 3, HistoryLimit: 3}
	svc := NewAgentService(convs, streamer, runner, NewCostService(costs, testLogger()), nil, cfg, testLogger())
	svc.now = func() time.Time { return time.Date(2025, 1, 12, 15, 40, 0, 0, time.UTC) }
	return svc, convs, costs
}

func collect(events *[]event.Event) func(event.Event) {
	return func(ev event.Event) { *events = append(*events, ev) }
}

func eventTypes(events []event.Event) []event.Type {
	out := make([]event.Type, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func countDone(events []event.Event) int {
	n := 0
	for _, ev := range events {
		if ev.Type == event.TypeDone {
			n++
		}
	}
	return n
}

func textDeltas(chunks ...string) []llm.StreamEvent {
	out := []llm.StreamEvent{{Kind: llm.KindBlockStart, BlockType: "text"}}
	for _, c := range chunks {
		out = append(out, llm.StreamEvent{Kind: llm.KindTextDelta, Text: c})
	}
	return append(out, llm.StreamEvent{Kind: llm.KindBlockStop})
}

func toolUse(id, name string, partials ...string) []llm.StreamEvent {
	out := []llm.StreamEvent{{Kind: llm.KindBlockStart, BlockType: "tool_use", BlockID: id, Name: name}}
	for _, p := range partials {
		out = append(out, llm.StreamEvent{Kind: llm.KindInputDelta, Partial: p})
	}
	return append(out, llm.StreamEvent{Kind: llm.KindBlockStop})
}

func TestProcessNaturalFinal(t *testing.T) {
	streamer := &fakeStreamer{scripts: []script{
		{events: textDeltas("You have ", "3 tasks today."), usage: cost.Usage{InputTokens: 100, OutputTokens: 20}},
	}}
	svc, _, costs := newTestAgent(streamer, &fakeRunner{})

	var events []event.Event
	if err := svc.Process(context.Background(), "s1", "what's on today?", collect(&events)); err != nil {
		t.Fatalf("process: %v", err)
	}

	want := []event.Type{event.TypeThinking, event.TypeText, event.TypeDone}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
	if events[1].Content != "You have 3 tasks today." {
		t.Fatalf("text = %q", events[1].Content)
	}
	if streamer.calls != 1 {
		t.Fatalf("llm calls = %d, want 1", streamer.calls)
	}
	if len(costs.records) != 1 || costs.records[0].Iterations != 1 {
		t.Fatalf("cost records = %+v", costs.records)
	}
}

func TestProcessSingleTurnCompletion(t *testing.T) {
	// Tool calls plus spoken text in the same iteration terminate the
	// turn without another model call.
	events1 := textDeltas("Created! It's on ", "Wednesday at noon.")
	events1 = append(events1, toolUse("tu_1", "create_task", `{"title":"Buy`, ` milk"}`)...)
	streamer := &fakeStreamer{scripts: []script{
		{events: events1, usage: cost.Usage{InputTokens: 200, OutputTokens: 50}},
	}}
	runner := &fakeRunner{}
	svc, convs, costs := newTestAgent(streamer, runner)

	var events []event.Event
	if err := svc.Process(context.Background(), "s1", "add buy milk", collect(&events)); err != nil {
		t.Fatalf("process: %v", err)
	}

	if streamer.calls != 1 {
		t.Fatalf("llm calls = %d, want 1", streamer.calls)
	}
	want := []event.Type{
		event.TypeThinking,
		event.TypeToolUseStart, event.TypeToolUse, event.TypeToolResult,
		event.TypeText, event.TypeDone,
	}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
	if events[4].Content != "Created! It's on Wednesday at noon." {
		t.Fatalf("text = %q", events[4].Content)
	}
	if string(runner.inputs[0]) != `{"title":"Buy milk"}` {
		t.Fatalf("tool input = %s", runner.inputs[0])
	}

	// user turn, assistant turn with tool_calls, tool results turn.
	if len(convs.turns) != 3 {
		t.Fatalf("turns = %d, want 3", len(convs.turns))
	}
	if len(convs.turns[1].ToolCalls) == 0 || len(convs.turns[2].ToolResults) == 0 {
		t.Fatalf("tool columns not persisted: %+v", convs.turns)
	}
	if len(costs.records) != 1 || costs.records[0].ToolCallsCount != 1 {
		t.Fatalf("cost records = %+v", costs.records)
	}
}

func TestProcessToolLoopThenFinal(t *testing.T) {
	streamer := &fakeStreamer{scripts: []script{
		{events: toolUse("tu_1", "list_tasks", `{}`), usage: cost.Usage{InputTokens: 100, OutputTokens: 10}},
		{events: textDeltas("Nothing due today."), usage: cost.Usage{InputTokens: 150, OutputTokens: 15}},
	}}
	svc, _, costs := newTestAgent(streamer, &fakeRunner{})

	var events []event.Event
	if err := svc.Process(context.Background(), "s1", "anything today?", collect(&events)); err != nil {
		t.Fatalf("process: %v", err)
	}

	if streamer.calls != 2 {
		t.Fatalf("llm calls = %d, want 2", streamer.calls)
	}
	if countDone(events) != 1 {
		t.Fatalf("done events = %d, want 1", countDone(events))
	}
	if len(costs.records) != 1 {
		t.Fatalf("cost records = %d, want 1", len(costs.records))
	}
	rec := costs.records[0]
	if rec.Iterations != 2 || rec.InputTokens != 250 || rec.OutputTokens != 25 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestProcessIterationCap(t *testing.T) {
	tool := func(id string) script {
		return script{events: toolUse(id, "list_tasks", `{}`), usage: cost.Usage{InputTokens: 10, OutputTokens: 1}}
	}
	streamer := &fakeStreamer{scripts: []script{tool("tu_1"), tool("tu_2"), tool("tu_3")}}
	svc, _, costs := newTestAgent(streamer, &fakeRunner{})

	var events []event.Event
	if err := svc.Process(context.Background(), "s1", "loop forever", collect(&events)); err != nil {
		t.Fatalf("process: %v", err)
	}

	if streamer.calls != 3 {
		t.Fatalf("llm calls = %d, want 3 (cap)", streamer.calls)
	}
	if countDone(events) != 1 {
		t.Fatalf("done events = %d, want 1", countDone(events))
	}
	if len(costs.records) != 1 || costs.records[0].Iterations != 3 {
		t.Fatalf("cost records = %+v", costs.records)
	}
}

func TestProcessStreamErrorEmitsErrorThenDone(t *testing.T) {
	streamer := &fakeStreamer{scripts: []script{
		{events: nil, usage: cost.Usage{InputTokens: 80}, err: errors.New("connection reset")},
	}}
	svc, _, costs := newTestAgent(streamer, &fakeRunner{})

	var events []event.Event
	err := svc.Process(context.Background(), "s1", "hello", collect(&events))
	if err == nil {
		t.Fatal("expected error")
	}

	got := eventTypes(events)
	if got[len(got)-2] != event.TypeError || got[len(got)-1] != event.TypeDone {
		t.Fatalf("expected ...error,done; got %v", got)
	}
	if countDone(events) != 1 {
		t.Fatalf("done events = %d, want 1", countDone(events))
	}
	// Partial usage accrued before the failure is still billed.
	if len(costs.records) != 1 || costs.records[0].InputTokens != 80 {
		t.Fatalf("cost records = %+v", costs.records)
	}
}

func TestProcessPanicStillEmitsDone(t *testing.T) {
	events1 := toolUse("tu_1", "create_task", `{"title":"x"}`)
	streamer := &fakeStreamer{scripts: []script{{events: events1}}}
	svc, _, _ := newTestAgent(streamer, &fakeRunner{panicWith: "kaput"})

	var events []event.Event
	err := svc.Process(context.Background(), "s1", "add x", collect(&events))
	if err == nil || !strings.Contains(err.Error(), "kaput") {
		t.Fatalf("expected panic error, got %v", err)
	}
	if countDone(events) != 1 {
		t.Fatalf("done events = %d, want 1", countDone(events))
	}
}

func TestProcessPanicAfterUsageRecordsCost(t *testing.T) {
	events1 := toolUse("tu_1", "create_task", `{"title":"x"}`)
	streamer := &fakeStreamer{scripts: []script{
		{events: events1, usage: cost.Usage{InputTokens: 500, OutputTokens: 40}},
	}}
	svc, _, costs := newTestAgent(streamer, &fakeRunner{panicWith: "kaput"})

	var events []event.Event
	err := svc.Process(context.Background(), "s1", "add x", collect(&events))
	if err == nil || !strings.Contains(err.Error(), "kaput") {
		t.Fatalf("expected panic error, got %v", err)
	}
	if countDone(events) != 1 {
		t.Fatalf("done events = %d, want 1", countDone(events))
	}
	// The iteration's usage was summed before the tool ran; the panic
	// must not drop the bill.
	if len(costs.records) != 1 {
		t.Fatalf("cost records = %d, want 1", len(costs.records))
	}
	rec := costs.records[0]
	if rec.InputTokens != 500 || rec.OutputTokens != 40 || rec.Iterations != 1 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestProcessRecordsCostOnDeadContext(t *testing.T) {
	// The same expiry that killed the stream must not also kill the
	// ledger write.
	streamer := &fakeStreamer{scripts: []script{
		{events: nil, usage: cost.Usage{InputTokens: 80}, err: context.DeadlineExceeded},
	}}
	svc, _, costs := newTestAgent(streamer, &fakeRunner{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var events []event.Event
	if err := svc.Process(ctx, "s1", "hello", collect(&events)); err == nil {
		t.Fatal("expected error")
	}
	if len(costs.records) != 1 {
		t.Fatalf("cost records = %d, want 1", len(costs.records))
	}
	if costs.writeCtxErr != nil {
		t.Fatalf("ledger write saw a live cancellation: %v", costs.writeCtxErr)
	}
}

func TestProcessMalformedToolInputBecomesEmptyObject(t *testing.T) {
	streamer := &fakeStreamer{scripts: []script{
		{events: toolUse("tu_1", "list_tasks", `{"status": "tod`)},
		{events: textDeltas("All done.")},
	}}
	runner := &fakeRunner{}
	svc, _, _ := newTestAgent(streamer, runner)

	var events []event.Event
	if err := svc.Process(context.Background(), "s1", "list", collect(&events)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if string(runner.inputs[0]) != `{}` {
		t.Fatalf("malformed input should degrade to {}, got %s", runner.inputs[0])
	}
}

func TestProcessAppendFailureDoesNotFailQuery(t *testing.T) {
	streamer := &fakeStreamer{scripts: []script{{events: textDeltas("hi")}}}
	svc, convs, _ := newTestAgent(streamer, &fakeRunner{})
	convs.failNext = true

	var events []event.Event
	if err := svc.Process(context.Background(), "s1", "hello", collect(&events)); err != nil {
		t.Fatalf("turn loss must not fail the query: %v", err)
	}
	if countDone(events) != 1 {
		t.Fatalf("done events = %d, want 1", countDone(events))
	}
}

func TestProcessGlobalHistoryWhenNotSessionScoped(t *testing.T) {
	streamer := &fakeStreamer{scripts: []script{{events: textDeltas("hi")}}}
	svc, convs, _ := newTestAgent(streamer, &fakeRunner{})
	// cfg.SessionScoped is false: turns persist under the empty session.

	var events []event.Event
	if err := svc.Process(context.Background(), "session-abc", "hello", collect(&events)); err != nil {
		t.Fatalf("process: %v", err)
	}
	for _, turn := range convs.turns {
		if turn.SessionID != "" {
			t.Fatalf("expected global session, got %q", turn.SessionID)
		}
	}
}
