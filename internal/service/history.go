package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/voxtask/voxtask/internal/domain/conversation"
	"github.com/voxtask/voxtask/internal/port/llm"
)

// loadHistory converts the most recent persisted turns into model-facing
// messages. The limit counts turns, not messages; tool invocations and
// their results round-trip through the stored JSON columns.
func (s *AgentService) loadHistory(ctx context.Context, sessionID string) ([]llm.Message, error) {
	if s.cfg.HistoryLimit <= 0 {
		return nil, nil
	}

	turns, err := s.store.RecentTurns(ctx, sessionID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}

	messages := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		msg, ok := turnToMessage(t)
		if !ok {
			continue
		}
		messages = append(messages, msg)
	}

	// A truncated window can open on a tool-result message whose tool_use
	// partner fell outside the window; the API rejects the orphan.
	for len(messages) > 0 && startsWithToolResult(messages[0]) {
		messages = messages[1:]
	}
	return messages, nil
}

func turnToMessage(t conversation.Turn) (llm.Message, bool) {
	var blocks []llm.Block

	switch t.Role {
	case conversation.RoleAssistant:
		if t.Content != "" {
			blocks = append(blocks, llm.TextBlock(t.Content))
		}
		if len(t.ToolCalls) > 0 {
			var calls []conversation.ToolCall
			if err := json.Unmarshal(t.ToolCalls, &calls); err == nil {
				for _, c := range calls {
					blocks = append(blocks, llm.ToolUseBlock(c.ID, c.Name, c.Input))
				}
			}
		}
	case conversation.RoleUser:
		if len(t.ToolResults) > 0 {
			var results []conversation.ToolResult
			if err := json.Unmarshal(t.ToolResults, &results); err == nil {
				for _, r := range results {
					blocks = append(blocks, llm.ToolResultBlock(r.ToolUseID, r.Content))
				}
			}
		} else if t.Content != "" {
			blocks = append(blocks, llm.TextBlock(t.Content))
		}
	}

	if len(blocks) == 0 {
		return llm.Message{}, false
	}
	return llm.Message{Role: string(t.Role), Content: blocks}, true
}

func startsWithToolResult(m llm.Message) bool {
	return m.Role == string(conversation.RoleUser) &&
		len(m.Content) > 0 && m.Content[0].Type == "tool_result"
}
