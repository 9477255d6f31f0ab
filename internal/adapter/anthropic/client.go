// Package anthropic implements the streaming Messages API client.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/voxtask/voxtask/internal/config"
	"github.com/voxtask/voxtask/internal/domain/cost"
	"github.com/voxtask/voxtask/internal/port/llm"
	"github.com/voxtask/voxtask/internal/resilience"
)

// Client is a streaming Messages API client implementing llm.Streamer.
type Client struct {
	http    *http.Client
	breaker *resilience.Breaker
	cfg     config.Anthropic
}

// NewClient creates a Client from config. The breaker guards every
// outbound call; a nil breaker disables it.
func NewClient(cfg config.Anthropic, breaker *resilience.Breaker) *Client {
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		cfg:     cfg,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.cfg.Model }

// Stream performs one streaming completion call, invoking fn for every
// normalized stream event in order, and returns the call's token usage.
func (c *Client) Stream(ctx context.Context, req llm.Request, fn func(llm.StreamEvent) error) (cost.Usage, error) {
	var usage cost.Usage
	call := func() error {
		u, err := c.stream(ctx, req, fn)
		usage = u
		return err
	}
	if c.breaker != nil {
		return usage, c.breaker.Execute(call)
	}
	return usage, call()
}

func (c *Client) stream(ctx context.Context, req llm.Request, fn func(llm.StreamEvent) error) (cost.Usage, error) {
	var usage cost.Usage

	resp, err := c.doRequest(ctx, c.buildPayload(req))
	if err != nil {
		return usage, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return usage, readAPIError(resp)
	}

	err = consumeSSE(ctx, resp.Body, func(_ string, data string) error {
		var envelope streamEnvelope
		if err := json.Unmarshal([]byte(data), &envelope); err != nil {
			return fmt.Errorf("decode stream envelope: %w", err)
		}

		switch envelope.Type {
		case "message_start":
			var ev messageStartEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				return fmt.Errorf("decode message_start: %w", err)
			}
			usage.InputTokens += ev.Message.Usage.InputTokens
			usage.CacheWriteTokens += ev.Message.Usage.CacheCreationInputTokens
			usage.CacheReadTokens += ev.Message.Usage.CacheReadInputTokens
			return nil
		case "content_block_start":
			var ev contentBlockStartEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				return fmt.Errorf("decode content_block_start: %w", err)
			}
			return fn(llm.StreamEvent{
				Kind:      llm.KindBlockStart,
				BlockType: ev.ContentBlock.Type,
				BlockID:   ev.ContentBlock.ID,
				Name:      ev.ContentBlock.Name,
			})
		case "content_block_delta":
			var ev contentBlockDeltaEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				return fmt.Errorf("decode content_block_delta: %w", err)
			}
			switch ev.Delta.Type {
			case "text_delta":
				return fn(llm.StreamEvent{Kind: llm.KindTextDelta, Text: ev.Delta.Text})
			case "input_json_delta":
				return fn(llm.StreamEvent{Kind: llm.KindInputDelta, Partial: ev.Delta.PartialJSON})
			}
			return nil
		case "content_block_stop":
			return fn(llm.StreamEvent{Kind: llm.KindBlockStop})
		case "message_delta":
			var ev messageDeltaEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				return fmt.Errorf("decode message_delta: %w", err)
			}
			usage.OutputTokens += ev.Usage.OutputTokens
			return nil
		case "message_stop", "ping":
			return nil
		default:
			return nil
		}
	})

	return usage, err
}

// buildPayload assembles the request body. When cache_control is enabled
// the system prompt and the last tool schema are marked ephemeral so the
// whole prefix is cached provider-side.
func (c *Client) buildPayload(req llm.Request) MessageRequest {
	payload := MessageRequest{
		Model:     c.cfg.Model,
		MaxTokens: req.MaxTokens,
		Stream:    true,
	}
	if payload.MaxTokens <= 0 {
		payload.MaxTokens = c.cfg.MaxTokens
	}

	if req.System != "" {
		block := SystemBlock{Type: "text", Text: req.System}
		if c.cfg.CacheControl {
			block.CacheControl = &CacheControl{Type: "ephemeral"}
		}
		payload.System = []SystemBlock{block}
	}

	payload.Tools = make([]ToolParam, len(req.Tools))
	for i, t := range req.Tools {
		payload.Tools[i] = ToolParam{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
	}
	if c.cfg.CacheControl && len(payload.Tools) > 0 {
		payload.Tools[len(payload.Tools)-1].CacheControl = &CacheControl{Type: "ephemeral"}
	}

	payload.Messages = make([]MessageParam, len(req.Messages))
	for i, m := range req.Messages {
		blocks := make([]ContentBlock, len(m.Content))
		for j, b := range m.Content {
			blocks[j] = ContentBlock{
				Type:      b.Type,
				Text:      b.Text,
				ID:        b.ID,
				Name:      b.Name,
				Input:     b.Input,
				ToolUseID: b.ToolUseID,
				Content:   b.Content,
			}
		}
		payload.Messages[i] = MessageParam{Role: m.Role, Content: blocks}
	}

	return payload
}

func (c *Client) doRequest(ctx context.Context, payload MessageRequest) (*http.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("encode anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+messagesPath, &buf)
	if err != nil {
		return nil, fmt.Errorf("create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic request: %w", err)
	}
	return resp, nil
}

func readAPIError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("anthropic api status %d: %w", resp.StatusCode, err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	var apiErr errorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return APIError{StatusCode: resp.StatusCode, Type: apiErr.Error.Type, Message: apiErr.Error.Message}
	}

	return APIError{StatusCode: resp.StatusCode, Message: string(body)}
}
