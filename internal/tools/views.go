package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Choice is one option presented by show_choices.
type Choice struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Value       string `json:"value,omitempty"`
}

// showChoices and changeUIView mutate nothing; their results are consumed
// by the client as UI directives.

func (r *Registry) showChoices(_ context.Context, input json.RawMessage) (Result, error) {
	var in struct {
		Title   string   `json:"title"`
		Choices []Choice `json:"choices"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	if in.Title == "" {
		return nil, errors.New("title is required")
	}
	if len(in.Choices) == 0 {
		return nil, errors.New("choices must not be empty")
	}
	for i, c := range in.Choices {
		if c.ID == "" || c.Label == "" {
			return nil, fmt.Errorf("choice %d: id and label are required", i+1)
		}
	}
	return Result{"ui_directive": "show_choices", "title": in.Title, "choices": in.Choices}, nil
}

func (r *Registry) changeUIView(_ context.Context, input json.RawMessage) (Result, error) {
	var in struct {
		ViewMode       string `json:"view_mode"`
		TargetDate     string `json:"target_date"`
		SortBy         string `json:"sort_by"`
		SortOrder      string `json:"sort_order"`
		FilterStatus   string `json:"filter_status"`
		FilterPriority string `json:"filter_priority"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	switch in.ViewMode {
	case "daily", "weekly", "monthly", "list":
	default:
		return nil, fmt.Errorf("invalid view_mode %q", in.ViewMode)
	}
	if in.TargetDate != "" {
		if _, err := parseWhen(in.TargetDate); err != nil {
			return nil, err
		}
	}

	res := Result{"ui_directive": "change_view", "view_mode": in.ViewMode}
	for k, v := range map[string]string{
		"target_date":     in.TargetDate,
		"sort_by":         in.SortBy,
		"sort_order":      in.SortOrder,
		"filter_status":   in.FilterStatus,
		"filter_priority": in.FilterPriority,
	} {
		if v != "" {
			res[k] = v
		}
	}
	return res, nil
}
