package asana

import (
	"context"
	"errors"
	"fmt"

	"taskbridge/server/internal/modules"
	"taskbridge/server/internal/secrets"
	"taskbridge/server/pkg/asanaapi"
)

// Module implements the Module interface for Asana task management.
type Module struct {
	clients  *provider
	handlers map[string]func(ctx context.Context, params map[string]any) (string, error)
}

// New creates the Asana module backed by the given secret store.
func New(store secrets.Store) *Module {
	m := &Module{clients: newProvider(store)}
	m.handlers = map[string]func(ctx context.Context, params map[string]any) (string, error){
		"create_task":   m.createTask,
		"update_task":   m.updateTask,
		"get_task":      m.getTask,
		"list_projects": m.listProjects,
		"search_tasks":  m.searchTasks,
	}
	return m
}

// Name returns the module name
func (m *Module) Name() string {
	return "asana"
}

// Description returns the module description
func (m *Module) Description() string {
	return "Asana task management - create, update, retrieve, and search tasks and projects"
}

// Tools returns all available tools
func (m *Module) Tools() []modules.Tool {
	return toolDefinitions
}

// ExecuteTool executes a tool by name
func (m *Module) ExecuteTool(ctx context.Context, name string, params map[string]any) (string, error) {
	handler, ok := m.handlers[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return handler(ctx, params)
}

// priorityNames maps accepted priority values to Asana's display form.
var priorityNames = map[string]string{
	"low":    "Low",
	"medium": "Medium",
	"high":   "High",
}

// =============================================================================
// Tool Definitions
// =============================================================================

var toolDefinitions = []modules.Tool{
	{
		ID:          "asana:create_task",
		Name:        "create_task",
		Description: "Create a new task in Asana.",
		Annotations: modules.AnnotateCreate,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"name":         {Type: "string", Description: "The name/title of the task"},
				"notes":        {Type: "string", Description: "Detailed description of the task"},
				"project_gid":  {Type: "string", Description: "GID of the project to add the task to"},
				"assignee_gid": {Type: "string", Description: "GID of the user to assign the task to"},
				"due_date":     {Type: "string", Description: "Due date in YYYY-MM-DD format"},
				"priority":     {Type: "string", Description: "Task priority", Enum: []string{"low", "medium", "high"}},
			},
			Required: []string{"name"},
		},
	},
	{
		ID:          "asana:update_task",
		Name:        "update_task",
		Description: "Update an existing Asana task. With no fields given the task is returned unchanged.",
		Annotations: modules.AnnotateUpdate,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"task_gid":  {Type: "string", Description: "GID of the task to update"},
				"name":      {Type: "string", Description: "New name/title for the task"},
				"notes":     {Type: "string", Description: "New description for the task"},
				"completed": {Type: "string", Description: "Mark task as completed", Enum: []string{"true", "false"}},
				"due_date":  {Type: "string", Description: "New due date in YYYY-MM-DD format"},
				"priority":  {Type: "string", Description: "New priority", Enum: []string{"low", "medium", "high"}},
			},
			Required: []string{"task_gid"},
		},
	},
	{
		ID:          "asana:get_task",
		Name:        "get_task",
		Description: "Get details of an Asana task.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"task_gid": {Type: "string", Description: "GID of the task to retrieve"},
			},
			Required: []string{"task_gid"},
		},
	},
	{
		ID:          "asana:list_projects",
		Name:        "list_projects",
		Description: "List all projects owned by the authenticated user.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type:       "object",
			Properties: map[string]modules.Property{},
		},
	},
	{
		ID:          "asana:search_tasks",
		Name:        "search_tasks",
		Description: "Search for tasks in the user's primary workspace. An empty query matches all tasks.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"query":       {Type: "string", Description: "Search text to find tasks"},
				"project_gid": {Type: "string", Description: "Limit search to a specific project"},
				"completed":   {Type: "string", Description: "Include completed tasks (default: false)", Enum: []string{"true", "false"}},
			},
		},
	},
}

// =============================================================================
// Tool Handlers
// =============================================================================

func (m *Module) createTask(ctx context.Context, params map[string]any) (string, error) {
	name := stringParam(params, "name")
	fields := asanaapi.TaskFields{Name: &name}

	if notes := stringParam(params, "notes"); notes != "" {
		fields.Notes = &notes
	}
	if gid := stringParam(params, "project_gid"); gid != "" {
		fields.ProjectGIDs = []string{gid}
	}
	if gid := stringParam(params, "assignee_gid"); gid != "" {
		fields.AssigneeGID = &gid
	}
	if due := stringParam(params, "due_date"); due != "" {
		fields.DueOn = &due
	}
	if p := stringParam(params, "priority"); p != "" {
		// Enum validation upstream guarantees membership
		mapped := priorityNames[p]
		fields.Priority = &mapped
	}

	client, err := m.clients.get(ctx)
	if err != nil {
		return "", err
	}

	task, err := client.CreateTask(ctx, fields)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Created task %s\n\n%s", task.GID, taskToCompact(task)), nil
}

func (m *Module) updateTask(ctx context.Context, params map[string]any) (string, error) {
	gid := stringParam(params, "task_gid")

	var fields asanaapi.TaskFields
	if name := stringParam(params, "name"); name != "" {
		fields.Name = &name
	}
	if notes := stringParam(params, "notes"); notes != "" {
		fields.Notes = &notes
	}
	if due := stringParam(params, "due_date"); due != "" {
		fields.DueOn = &due
	}
	if v := stringParam(params, "completed"); v != "" {
		done := v == "true"
		fields.Completed = &done
	}
	if p := stringParam(params, "priority"); p != "" {
		mapped := priorityNames[p]
		fields.Priority = &mapped
	}

	client, err := m.clients.get(ctx)
	if err != nil {
		return "", err
	}

	// Nothing to change: report the current state without issuing a write.
	if fields.Empty() {
		task, err := client.GetTask(ctx, gid)
		if err != nil {
			return "", taskError(err, gid)
		}
		return fmt.Sprintf("No fields to update; task %s unchanged\n\n%s", task.GID, taskToCompact(task)), nil
	}

	task, err := client.UpdateTask(ctx, gid, fields)
	if err != nil {
		return "", taskError(err, gid)
	}

	return fmt.Sprintf("Updated task %s\n\n%s", task.GID, taskToCompact(task)), nil
}

func (m *Module) getTask(ctx context.Context, params map[string]any) (string, error) {
	gid := stringParam(params, "task_gid")

	client, err := m.clients.get(ctx)
	if err != nil {
		return "", err
	}

	task, err := client.GetTask(ctx, gid)
	if err != nil {
		return "", taskError(err, gid)
	}

	return taskToCompact(task), nil
}

func (m *Module) listProjects(ctx context.Context, _ map[string]any) (string, error) {
	client, err := m.clients.get(ctx)
	if err != nil {
		return "", err
	}

	me, err := client.Me(ctx)
	if err != nil {
		return "", err
	}

	projects, err := client.ListProjects(ctx, me.GID)
	if err != nil {
		return "", err
	}

	return projectsToCSV(projects), nil
}

func (m *Module) searchTasks(ctx context.Context, params map[string]any) (string, error) {
	q := asanaapi.SearchQuery{
		Text:       stringParam(params, "query"),
		ProjectGID: stringParam(params, "project_gid"),
	}

	// Completed tasks are excluded unless explicitly requested.
	completed := stringParam(params, "completed") == "true"
	q.Completed = &completed

	client, err := m.clients.get(ctx)
	if err != nil {
		return "", err
	}

	me, err := client.Me(ctx)
	if err != nil {
		return "", err
	}
	if len(me.Workspaces) == 0 {
		return "", fmt.Errorf("no workspaces available for the authenticated user")
	}

	tasks, err := client.SearchTasks(ctx, me.Workspaces[0].GID, q)
	if err != nil {
		return "", err
	}

	return tasksToCSV(tasks), nil
}

// =============================================================================
// Helpers
// =============================================================================

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

// taskError rewrites a 404 from the API as a task-not-found message.
func taskError(err error, gid string) error {
	var apiErr *asanaapi.Error
	if errors.As(err, &apiErr) && apiErr.NotFound() {
		return fmt.Errorf("task not found: %s", gid)
	}
	return err
}
