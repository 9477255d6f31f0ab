// Package tools implements the model-facing tool registry: schemas,
// executors, and dispatch against the task store.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxtask/voxtask/internal/port/database"
	"github.com/voxtask/voxtask/internal/port/llm"
)

// Result is the shape every executor returns. Success is always present;
// the remaining fields are tool-specific.
type Result map[string]any

// executor runs one tool against the task store.
type executor func(ctx context.Context, input json.RawMessage) (Result, error)

// tool pairs a model-facing schema with its executor.
type tool struct {
	name        string
	description string
	inputSchema json.RawMessage
	run         executor
}

// Registry is the closed set of operations the model may invoke.
type Registry struct {
	store database.TaskStore
	log   *slog.Logger
	now   func() time.Time
	tools []tool
	index map[string]int
}

// NewRegistry builds the registry with every tool registered. The clock
// is injectable for date-normalization tests.
func NewRegistry(store database.TaskStore, log *slog.Logger, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	r := &Registry{
		store: store,
		log:   log,
		now:   now,
		index: make(map[string]int),
	}
	r.register("create_task", createTaskDescription, createTaskSchema, r.createTask)
	r.register("create_multiple_tasks", createMultipleDescription, createMultipleSchema, r.createMultipleTasks)
	r.register("update_task", updateTaskDescription, updateTaskSchema, r.updateTask)
	r.register("update_multiple_tasks", updateMultipleDescription, updateMultipleSchema, r.updateMultipleTasks)
	r.register("delete_task", deleteTaskDescription, deleteTaskSchema, r.deleteTask)
	r.register("delete_multiple_tasks", deleteMultipleDescription, deleteMultipleSchema, r.deleteMultipleTasks)
	r.register("list_tasks", listTasksDescription, listTasksSchema, r.listTasks)
	r.register("search_tasks", searchTasksDescription, searchTasksSchema, r.searchTasks)
	r.register("show_choices", showChoicesDescription, showChoicesSchema, r.showChoices)
	r.register("change_ui_view", changeUIViewDescription, changeUIViewSchema, r.changeUIView)
	r.register("get_task_stats", getTaskStatsDescription, getTaskStatsSchema, r.getTaskStats)
	return r
}

func (r *Registry) register(name, description string, schema json.RawMessage, run executor) {
	r.index[name] = len(r.tools)
	r.tools = append(r.tools, tool{name: name, description: description, inputSchema: schema, run: run})
}

// Schemas returns the full tool list in registration order for the
// model request.
func (r *Registry) Schemas() []llm.Tool {
	out := make([]llm.Tool, len(r.tools))
	for i, t := range r.tools {
		out[i] = llm.Tool{Name: t.name, Description: t.description, InputSchema: t.inputSchema}
	}
	return out
}

// Dispatch runs the named tool. Unknown names, executor errors, and
// executor panics all come back as a {success:false, error} result;
// nothing escapes past this boundary.
func (r *Registry) Dispatch(ctx context.Context, name string, input json.RawMessage) (result Result) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("tool panicked", "tool", name, "panic", p)
			result = Result{"success": false, "error": fmt.Sprintf("tool %s failed: %v", name, p)}
		}
	}()

	i, ok := r.index[name]
	if !ok {
		return Result{"success": false, "error": "Unknown tool: " + name}
	}

	res, err := r.tools[i].run(ctx, input)
	if err != nil {
		r.log.Warn("tool failed", "tool", name, "error", err)
		out := Result{"success": false, "error": err.Error()}
		// Executors attach advisory fields (needs_confirmation) to the
		// result even on failure.
		for k, v := range res {
			if k != "success" && k != "error" {
				out[k] = v
			}
		}
		return out
	}
	if res == nil {
		res = Result{}
	}
	res["success"] = true
	return res
}

// DispatchJSON runs Dispatch and marshals the result for the wire.
func (r *Registry) DispatchJSON(ctx context.Context, name string, input json.RawMessage) json.RawMessage {
	res := r.Dispatch(ctx, name, input)
	data, err := json.Marshal(res)
	if err != nil {
		r.log.Error("marshal tool result", "tool", name, "error", err)
		return json.RawMessage(`{"success":false,"error":"internal: unencodable tool result"}`)
	}
	return data
}
