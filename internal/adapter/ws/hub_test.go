package ws

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/voxtask/voxtask/internal/config"
	"github.com/voxtask/voxtask/internal/domain/event"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("expected non-nil hub")
	}
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestHubBroadcastNoConnections(t *testing.T) {
	hub := NewHub()

	// Broadcast with no connections should not panic.
	hub.Broadcast(context.Background(), Message{
		Type:    "test",
		Payload: []byte(`{"key":"value"}`),
	})
}

func TestHubBroadcastEventNoConnections(t *testing.T) {
	hub := NewHub()

	hub.BroadcastEvent(context.Background(), EventTaskUpdated, TaskChangedEvent{
		TaskID: 1,
		Title:  "Buy milk",
		Status: "completed",
	})
}

func TestHubBroadcastEventMarshalError(t *testing.T) {
	hub := NewHub()

	// A channel cannot be marshaled to JSON; should log error, not panic.
	hub.BroadcastEvent(context.Background(), "bad", make(chan int))
}

func TestHubRemoveNonexistent(t *testing.T) {
	hub := NewHub()

	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &conn{ws: nil, cancel: cancel}
	hub.remove(c)
}

// fakeAgent fails a configurable number of times before succeeding.
type fakeAgent struct {
	failures int
	calls    int
}

func (f *fakeAgent) Process(_ context.Context, _, query string, emit func(event.Event)) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("upstream hiccup")
	}
	emit(event.Text("done with " + query))
	emit(event.Done())
	return nil
}

func testBridge(agent Agent) *Bridge {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Agent{ProcessTimeout: time.Second, Retries: 1}
	return NewBridge(nil, agent, cfg, log)
}

func collectMessages(sink *[]Message) func(context.Context, Message) error {
	return func(_ context.Context, msg Message) error {
		*sink = append(*sink, msg)
		return nil
	}
}

func TestRunTurnRetriesOnceThenSucceeds(t *testing.T) {
	agent := &fakeAgent{failures: 1}
	b := testBridge(agent)

	var got []Message
	b.runTurn(context.Background(), "s1", "buy milk", collectMessages(&got))

	if agent.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", agent.calls)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 relayed events, got %d", len(got))
	}
	for _, msg := range got {
		if msg.Type != MsgAgentEvent {
			t.Fatalf("unexpected message type %q", msg.Type)
		}
	}
}

func TestRunTurnReportsErrorAfterRetries(t *testing.T) {
	agent := &fakeAgent{failures: 5}
	b := testBridge(agent)

	var got []Message
	b.runTurn(context.Background(), "s1", "buy milk", collectMessages(&got))

	if agent.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", agent.calls)
	}
	if len(got) != 1 || got[0].Type != MsgAgentError {
		t.Fatalf("expected one agent_error message, got %+v", got)
	}
}

func TestRunTurnStopsWhenContextCancelled(t *testing.T) {
	agent := &fakeAgent{failures: 5}
	b := testBridge(agent)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got []Message
	b.runTurn(ctx, "s1", "buy milk", collectMessages(&got))

	if agent.calls != 1 {
		t.Fatalf("cancelled context must not retry, got %d attempts", agent.calls)
	}
}
