package modules

import (
	"context"
	"fmt"
	"sort"
	"time"

	"taskbridge/server/internal/middleware"
	"taskbridge/server/internal/observability"
)

// =============================================================================
// Registry
// =============================================================================

// registry holds all registered modules
var registry = make(map[string]Module)

// RegisterModule adds a module to the registry
func RegisterModule(m Module) {
	registry[m.Name()] = m
}

// GetModule returns a module by name
func GetModule(name string) (Module, bool) {
	m, ok := registry[name]
	return m, ok
}

// ListModules returns all registered module names, sorted
func ListModules() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResetRegistry clears all registered modules. Intended for tests.
func ResetRegistry() {
	registry = make(map[string]Module)
}

// AllTools returns every tool from every registered module, sorted by name.
// Tool names are the flat execution keys exposed via tools/list.
func AllTools() []Tool {
	var all []Tool
	for _, name := range ListModules() {
		all = append(all, registry[name].Tools()...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// lookupTool finds the module owning a tool name.
func lookupTool(name string) (Module, Tool, bool) {
	for _, m := range registry {
		if tool, found := findTool(m.Tools(), name); found {
			return m, tool, true
		}
	}
	return nil, Tool{}, false
}

// =============================================================================
// Tool Execution
// =============================================================================

// toolTimeout is the maximum duration for a single tool execution.
const toolTimeout = 30 * time.Second

// Run executes a tool by its flat name. Params are validated against the
// tool's InputSchema before the handler runs, so schema violations never
// reach a module. Any failure is returned as a non-error ToolCallResult
// carrying the uniform "Error: <message>" text; the error return is
// reserved for internal faults.
func Run(ctx context.Context, toolName string, params map[string]interface{}) (*ToolCallResult, error) {
	start := time.Now()

	m, tool, ok := lookupTool(toolName)
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown tool: %s", toolName)), nil
	}

	validated, err := ValidateParams(tool.InputSchema, params)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}
	params = validated

	// Apply timeout to prevent external API calls from hanging indefinitely
	ctx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	ctx, span := observability.StartToolSpan(ctx, m.Name(), toolName)
	result, err := m.ExecuteTool(ctx, toolName, params)
	observability.EndToolSpan(span, err)

	duration := time.Since(start)
	requestID := middleware.GetRequestID(ctx)
	client := ""
	if clientCtx := middleware.GetClientContext(ctx); clientCtx != nil {
		client = clientCtx.Subject
	}

	if err != nil {
		errMsg := err.Error()
		if ctx.Err() == context.DeadlineExceeded {
			errMsg = fmt.Sprintf("request to %s timed out after %s", m.Name(), toolTimeout)
		}
		observability.RecordToolCall(ctx, m.Name(), toolName, "error", duration)
		observability.LogToolCall(requestID, client, m.Name(), toolName, duration.Milliseconds(), "error", errMsg)
		return ErrorResult(errMsg), nil
	}

	observability.RecordToolCall(ctx, m.Name(), toolName, "success", duration)
	observability.LogToolCall(requestID, client, m.Name(), toolName, duration.Milliseconds(), "success", "")
	return TextResult(result), nil
}
