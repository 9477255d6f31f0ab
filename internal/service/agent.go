// Package service implements the application services: the streaming agent
// orchestrator and the cost ledger.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	otelx "github.com/voxtask/voxtask/internal/adapter/otel"
	"github.com/voxtask/voxtask/internal/config"
	"github.com/voxtask/voxtask/internal/domain/conversation"
	"github.com/voxtask/voxtask/internal/domain/cost"
	"github.com/voxtask/voxtask/internal/domain/event"
	"github.com/voxtask/voxtask/internal/port/database"
	"github.com/voxtask/voxtask/internal/port/llm"
)

// ToolRunner is the tool registry surface the agent consumes.
type ToolRunner interface {
	Schemas() []llm.Tool
	DispatchJSON(ctx context.Context, name string, input json.RawMessage) json.RawMessage
}

// AgentService runs the multi-turn tool loop for one query at a time and
// streams normalized events to the caller.
type AgentService struct {
	store   database.ConversationStore
	llm     llm.Streamer
	tools   ToolRunner
	costs   *CostService
	metrics *otelx.Metrics
	cfg     config.Agent
	log     *slog.Logger
	now     func() time.Time
}

// NewAgentService creates an AgentService. metrics may be nil.
func NewAgentService(store database.ConversationStore, streamer llm.Streamer, runner ToolRunner,
	costs *CostService, metrics *otelx.Metrics, cfg config.Agent, log *slog.Logger) *AgentService {
	return &AgentService{
		store:   store,
		llm:     streamer,
		tools:   runner,
		costs:   costs,
		metrics: metrics,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// Process runs one query to completion. Every call emits exactly one
// terminal done event, on success, failure, and panic alike; failures emit
// an error event first.
func (s *AgentService) Process(ctx context.Context, sessionID, query string, emit func(event.Event)) (err error) {
	start := s.now()
	if s.metrics != nil {
		s.metrics.QueriesStarted.Add(ctx, 1)
	}

	defer func() {
		if p := recover(); p != nil {
			s.log.Error("agent query panicked", "panic", p)
			err = fmt.Errorf("agent query panicked: %v", p)
		}
		if s.metrics != nil {
			if err != nil {
				s.metrics.QueriesFailed.Add(ctx, 1)
			} else {
				s.metrics.QueriesCompleted.Add(ctx, 1)
			}
			s.metrics.QueryDuration.Record(ctx, s.now().Sub(start).Seconds())
		}
		if err != nil {
			emit(event.Error(err.Error()))
		}
		emit(event.Done())
	}()

	if !s.cfg.SessionScoped {
		sessionID = ""
	}
	return s.process(ctx, sessionID, query, emit)
}

// pendingTool accumulates one tool_use block while its argument JSON
// streams in fragments.
type pendingTool struct {
	id    string
	name  string
	parts []string
}

// input joins the streamed fragments. Empty or malformed argument JSON
// degrades to an empty object so the tool still runs and can report its
// own validation error.
func (p *pendingTool) input(log *slog.Logger) json.RawMessage {
	joined := strings.Join(p.parts, "")
	if joined == "" {
		return json.RawMessage(`{}`)
	}
	if !json.Valid([]byte(joined)) {
		log.Warn("malformed tool input, substituting empty object", "tool", p.name, "input", joined)
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(joined)
}

func (s *AgentService) process(ctx context.Context, sessionID, query string, emit func(event.Event)) (err error) {
	emit(event.Thinking())

	messages, err := s.loadHistory(ctx, sessionID)
	if err != nil {
		// A lost history degrades the answer; it must not block the query.
		s.log.Warn("history load failed, continuing without context", "error", err)
		messages = nil
	}
	messages = append(messages, llm.Message{Role: "user", Content: []llm.Block{llm.TextBlock(query)}})

	// Turn loss is tolerated over request failure: append errors are
	// logged, never raised.
	if err := s.store.AppendTurn(ctx, &conversation.Turn{
		SessionID: sessionID,
		Role:      conversation.RoleUser,
		Content:   query,
	}); err != nil {
		s.log.Error("append user turn failed", "error", err)
	}

	req := llm.Request{
		System: systemPrompt(s.cfg.SystemPrompt, s.now()),
		Tools:  s.tools.Schemas(),
	}

	var (
		total      cost.Usage
		iterations int
		toolCalls  int
	)
	record := func() {
		if total.Total() == 0 {
			return
		}
		// The ledger write must outlive the request: the context that
		// expired killing the stream must not also drop the bill.
		dctx := context.WithoutCancel(ctx)
		rec := s.costs.Compose(s.llm.Model(), query, total, iterations, toolCalls)
		s.costs.Record(dctx, rec)
		if s.metrics != nil {
			s.metrics.QueryCost.Record(dctx, rec.TotalCost)
		}
	}

	// A panic mid-loop still owes a cost record for the usage summed so
	// far; recover here where the totals are in scope.
	defer func() {
		if p := recover(); p != nil {
			s.log.Error("agent query panicked", "panic", p)
			record()
			err = fmt.Errorf("agent query panicked: %v", p)
		}
	}()

	for iterations < s.cfg.MaxIterations {
		iterations++

		var (
			textBuf strings.Builder
			pending []*pendingTool
			current *pendingTool
		)
		req.Messages = messages
		usage, err := s.llm.Stream(ctx, req, func(ev llm.StreamEvent) error {
			switch ev.Kind {
			case llm.KindBlockStart:
				if ev.BlockType == "tool_use" {
					current = &pendingTool{id: ev.BlockID, name: ev.Name}
					pending = append(pending, current)
				}
			case llm.KindTextDelta:
				textBuf.WriteString(ev.Text)
			case llm.KindInputDelta:
				if current != nil {
					current.parts = append(current.parts, ev.Partial)
				}
			case llm.KindBlockStop:
				current = nil
			}
			return nil
		})
		total.Add(usage)
		if err != nil {
			record()
			return fmt.Errorf("llm stream (iteration %d): %w", iterations, err)
		}

		text := textBuf.String()

		// Persist the assistant turn and extend the message list before
		// any tool runs, so a later failure never loses model output.
		assistant := llm.Message{Role: "assistant"}
		if text != "" {
			assistant.Content = append(assistant.Content, llm.TextBlock(text))
		}
		var calls []conversation.ToolCall
		for _, p := range pending {
			input := p.input(s.log)
			assistant.Content = append(assistant.Content, llm.ToolUseBlock(p.id, p.name, input))
			calls = append(calls, conversation.ToolCall{ID: p.id, Name: p.name, Input: input})
		}
		messages = append(messages, assistant)

		turn := &conversation.Turn{SessionID: sessionID, Role: conversation.RoleAssistant, Content: text}
		if len(calls) > 0 {
			if data, err := json.Marshal(calls); err == nil {
				turn.ToolCalls = data
			}
		}
		if err := s.store.AppendTurn(ctx, turn); err != nil {
			s.log.Error("append assistant turn failed", "error", err)
		}

		if len(pending) == 0 {
			if text != "" {
				emit(event.Text(text))
			}
			record()
			return nil
		}

		var results []conversation.ToolResult
		resultBlocks := make([]llm.Block, 0, len(pending))
		for _, p := range pending {
			input := p.input(s.log)
			emit(event.ToolUseStart(p.name))
			emit(event.ToolUse(p.name, input))

			res := s.tools.DispatchJSON(ctx, p.name, input)
			emit(event.ToolResult(p.name, res))

			toolCalls++
			if s.metrics != nil {
				s.metrics.ToolCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", p.name)))
			}

			resultBlocks = append(resultBlocks, llm.ToolResultBlock(p.id, string(res)))
			results = append(results, conversation.ToolResult{ToolUseID: p.id, Content: string(res)})
		}
		messages = append(messages, llm.Message{Role: "user", Content: resultBlocks})

		resultTurn := &conversation.Turn{SessionID: sessionID, Role: conversation.RoleUser}
		if data, err := json.Marshal(results); err == nil {
			resultTurn.ToolResults = data
		}
		if err := s.store.AppendTurn(ctx, resultTurn); err != nil {
			s.log.Error("append tool results turn failed", "error", err)
		}

		// Tool calls accompanied by spoken text complete the turn; the
		// text is the answer and another model call would only repeat it.
		if text != "" {
			emit(event.Text(text))
			record()
			return nil
		}
	}

	// Iteration cap reached with the model still asking for tools. All
	// turns so far are persisted; the stream just ends without a final
	// narration.
	s.log.Warn("iteration cap reached", "session_id", sessionID, "iterations", iterations)
	record()
	return nil
}
