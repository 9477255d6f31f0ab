package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/voxtask/voxtask/internal/config"
	"github.com/voxtask/voxtask/internal/port/llm"
	"github.com/voxtask/voxtask/internal/resilience"
)

const sampleStream = `event: message_start
data: {"type":"message_start","message":{"usage":{"input_tokens":120,"output_tokens":1,"cache_creation_input_tokens":50,"cache_read_input_tokens":1000}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text"}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Task "}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"created."}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: content_block_start
data: {"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_01","name":"create_task"}}

event: content_block_delta
data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"title\":"}}

event: content_block_delta
data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"Buy milk\"}"}}

event: content_block_stop
data: {"type":"content_block_stop","index":1}

event: message_delta
data: {"type":"message_delta","usage":{"output_tokens":42}}

event: message_stop
data: {"type":"message_stop"}

`

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.Anthropic{
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		Model:        "claude-sonnet-4-20250514",
		MaxTokens:    1024,
		CacheControl: true,
		Timeout:      5 * time.Second,
	}, resilience.NewBreaker(3, time.Second))
}

func TestStreamEventsAndUsage(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") != apiVersion {
			t.Errorf("missing version header")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(sampleStream))
	})

	var events []llm.StreamEvent
	usage, err := c.Stream(context.Background(), llm.Request{
		System:   "persona",
		Messages: []llm.Message{{Role: "user", Content: []llm.Block{llm.TextBlock("hi")}}},
	}, func(ev llm.StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	if usage.InputTokens != 120 || usage.OutputTokens != 42 ||
		usage.CacheWriteTokens != 50 || usage.CacheReadTokens != 1000 {
		t.Fatalf("unexpected usage: %+v", usage)
	}

	if len(events) != 8 {
		t.Fatalf("expected 8 events, got %d: %+v", len(events), events)
	}
	if events[0].Kind != llm.KindBlockStart || events[0].BlockType != "text" {
		t.Fatalf("event 0: %+v", events[0])
	}
	if events[1].Text != "Task " || events[2].Text != "created." {
		t.Fatalf("text deltas wrong: %+v %+v", events[1], events[2])
	}
	if events[4].Kind != llm.KindBlockStart || events[4].Name != "create_task" || events[4].BlockID != "toolu_01" {
		t.Fatalf("tool block start wrong: %+v", events[4])
	}
	// Split tool-argument JSON must concatenate to valid JSON.
	joined := events[5].Partial + events[6].Partial
	var input map[string]any
	if err := json.Unmarshal([]byte(joined), &input); err != nil {
		t.Fatalf("joined partial json invalid: %v", err)
	}
	if input["title"] != "Buy milk" {
		t.Fatalf("unexpected input: %v", input)
	}
}

func TestStreamAPIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	})

	_, err := c.Stream(context.Background(), llm.Request{}, func(llm.StreamEvent) error { return nil })
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Type != "rate_limit_error" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
}

func TestBuildPayloadCacheControl(t *testing.T) {
	c := NewClient(config.Anthropic{Model: "m", MaxTokens: 100, CacheControl: true}, nil)

	payload := c.buildPayload(llm.Request{
		System: "persona",
		Tools: []llm.Tool{
			{Name: "a", InputSchema: json.RawMessage(`{}`)},
			{Name: "b", InputSchema: json.RawMessage(`{}`)},
		},
	})

	if len(payload.System) != 1 || payload.System[0].CacheControl == nil {
		t.Fatal("system block should carry cache_control")
	}
	if payload.Tools[0].CacheControl != nil {
		t.Fatal("only the last tool should carry cache_control")
	}
	if payload.Tools[1].CacheControl == nil || payload.Tools[1].CacheControl.Type != "ephemeral" {
		t.Fatal("last tool missing ephemeral cache_control")
	}
	if !payload.Stream {
		t.Fatal("payload must request streaming")
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 3; i++ {
		_, _ = c.Stream(context.Background(), llm.Request{}, func(llm.StreamEvent) error { return nil })
	}

	_, err := c.Stream(context.Background(), llm.Request{}, func(llm.StreamEvent) error { return nil })
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}
