package tools

import "encoding/json"

// Descriptions and input schemas for every registered tool. The schemas
// are what the model sees; keep enums and required lists in sync with
// the executors.

const (
	createTaskDescription = "Create a single task. Requires a title and a scheduled date. " +
		"Dates without a time of day are moved to a sensible hour automatically."
	createMultipleDescription = "Create several tasks at once. The batch is atomic: if any " +
		"task is invalid, none are created."
	updateTaskDescription = "Update fields of an existing task. Use scheduled_date_shift_days " +
		"to move the schedule relative to its current date, or scheduled_date to set it " +
		"absolutely; never both. Set shift_deadline_too to move the deadline along with the schedule."
	updateMultipleDescription = "Apply the same update to several tasks at once. The batch is " +
		"atomic: if any update is invalid, none are applied."
	deleteTaskDescription     = "Permanently delete a task by id."
	deleteMultipleDescription = "Permanently delete several tasks at once. The batch is atomic: " +
		"if any id does not exist, nothing is deleted."
	listTasksDescription = "List tasks with optional filters. is_missed selects open tasks " +
		"whose scheduled date has passed."
	searchTasksDescription = "Search tasks by keyword over title, description and notes. " +
		"Falls back to approximate matching when few exact hits exist."
	showChoicesDescription = "Present the user a set of choices to pick from. Purely a UI " +
		"directive; changes nothing."
	changeUIViewDescription = "Switch the user's task view (daily, weekly, monthly or list), " +
		"optionally focusing a date or changing sort/filter. Purely a UI directive."
	getTaskStatsDescription = "Get aggregate task counts by status plus overdue and due-today counts."
)

var createTaskSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "title": {"type": "string", "description": "Short task title"},
    "description": {"type": "string"},
    "notes": {"type": "string"},
    "priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"], "default": "medium"},
    "status": {"type": "string", "enum": ["todo", "in_progress", "completed", "cancelled"], "default": "todo"},
    "scheduled_date": {"type": "string", "description": "ISO 8601 date or datetime"},
    "deadline": {"type": "string", "description": "ISO 8601 date or datetime, must not precede scheduled_date"}
  },
  "required": ["title", "scheduled_date"]
}`)

var createMultipleSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "description": {"type": "string"},
          "notes": {"type": "string"},
          "priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]},
          "status": {"type": "string", "enum": ["todo", "in_progress", "completed", "cancelled"]},
          "scheduled_date": {"type": "string"},
          "deadline": {"type": "string"}
        },
        "required": ["title", "scheduled_date"]
      }
    }
  },
  "required": ["tasks"]
}`)

var updateTaskSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "task_id": {"type": "integer"},
    "title": {"type": "string"},
    "description": {"type": "string"},
    "notes": {"type": "string"},
    "priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]},
    "status": {"type": "string", "enum": ["todo", "in_progress", "completed", "cancelled"]},
    "scheduled_date": {"type": "string", "description": "Absolute new scheduled date"},
    "scheduled_date_shift_days": {"type": "integer", "description": "Days to shift the current scheduled date, may be negative"},
    "shift_deadline_too": {"type": "boolean", "description": "Shift the deadline by the same amount"},
    "deadline": {"type": "string"},
    "clear_deadline": {"type": "boolean"}
  },
  "required": ["task_id"]
}`)

var updateMultipleSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "task_ids": {"type": "array", "items": {"type": "integer"}},
    "updates": {
      "type": "object",
      "properties": {
        "title": {"type": "string"},
        "description": {"type": "string"},
        "notes": {"type": "string"},
        "priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]},
        "status": {"type": "string", "enum": ["todo", "in_progress", "completed", "cancelled"]},
        "scheduled_date": {"type": "string"},
        "scheduled_date_shift_days": {"type": "integer"},
        "shift_deadline_too": {"type": "boolean"},
        "deadline": {"type": "string"},
        "clear_deadline": {"type": "boolean"}
      }
    }
  },
  "required": ["task_ids", "updates"]
}`)

var deleteTaskSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "task_id": {"type": "integer"}
  },
  "required": ["task_id"]
}`)

var deleteMultipleSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "task_ids": {"type": "array", "items": {"type": "integer"}}
  },
  "required": ["task_ids"]
}`)

var listTasksSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "status": {"type": "string", "enum": ["todo", "in_progress", "completed", "cancelled"]},
    "priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]},
    "has_deadline": {"type": "boolean"},
    "deadline_before": {"type": "string"},
    "deadline_after": {"type": "string"},
    "scheduled_before": {"type": "string"},
    "scheduled_after": {"type": "string"},
    "is_missed": {"type": "boolean"},
    "limit": {"type": "integer", "default": 50}
  }
}`)

var searchTasksSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string"},
    "limit": {"type": "integer", "default": 20}
  },
  "required": ["query"]
}`)

var showChoicesSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "choices": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "label": {"type": "string"},
          "description": {"type": "string"},
          "value": {"type": "string"}
        },
        "required": ["id", "label"]
      }
    }
  },
  "required": ["title", "choices"]
}`)

var changeUIViewSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "view_mode": {"type": "string", "enum": ["daily", "weekly", "monthly", "list"]},
    "target_date": {"type": "string"},
    "sort_by": {"type": "string", "enum": ["scheduled_date", "deadline", "priority", "created_at"]},
    "sort_order": {"type": "string", "enum": ["asc", "desc"]},
    "filter_status": {"type": "string", "enum": ["todo", "in_progress", "completed", "cancelled"]},
    "filter_priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]}
  },
  "required": ["view_mode"]
}`)

var getTaskStatsSchema = json.RawMessage(`{
  "type": "object",
  "properties": {}
}`)
