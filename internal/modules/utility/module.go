package utility

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/jx"

	"taskbridge/server/internal/modules"
)

// Module provides small self-contained tools with no external dependencies.
type Module struct{}

// New creates a new utility module instance
func New() *Module {
	return &Module{}
}

// Name returns the module name
func (m *Module) Name() string {
	return "utility"
}

// Description returns the module description
func (m *Module) Description() string {
	return "Utility tools - greeting, echo, current time, arithmetic, and JSON formatting"
}

// Tools returns all available tools
func (m *Module) Tools() []modules.Tool {
	return toolDefinitions
}

// ExecuteTool executes a tool by name
func (m *Module) ExecuteTool(ctx context.Context, name string, params map[string]any) (string, error) {
	handler, ok := toolHandlers[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return handler(ctx, params)
}

var toolDefinitions = []modules.Tool{
	{
		ID:          "utility:greet",
		Name:        "greet",
		Description: "Return a friendly greeting.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"name": {Type: "string", Description: "The name of the person to greet (optional)"},
			},
		},
	},
	{
		ID:          "utility:echo",
		Name:        "echo",
		Description: "Echo the provided text back to the caller.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"text": {Type: "string", Description: "The text to echo back"},
			},
			Required: []string{"text"},
		},
	},
	{
		ID:          "utility:get_current_time",
		Name:        "get_current_time",
		Description: "Get the current date and time.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type:       "object",
			Properties: map[string]modules.Property{},
		},
	},
	{
		ID:          "utility:calculate",
		Name:        "calculate",
		Description: "Evaluate an arithmetic expression (e.g. \"2 + 3 * 4\"). Only numbers and + - * / ( ) are allowed.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"expression": {Type: "string", Description: "Arithmetic expression to evaluate"},
			},
			Required: []string{"expression"},
		},
	},
	{
		ID:          "utility:format_json",
		Name:        "format_json",
		Description: "Format a JSON string with two-space indentation.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"json_string": {Type: "string", Description: "The JSON string to format"},
			},
			Required: []string{"json_string"},
		},
	},
}

var toolHandlers = map[string]func(ctx context.Context, params map[string]any) (string, error){
	"greet":            greet,
	"echo":             echo,
	"get_current_time": getCurrentTime,
	"calculate":        calculate,
	"format_json":      formatJSON,
}

func greet(_ context.Context, params map[string]any) (string, error) {
	name, _ := params["name"].(string)
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hello, %s! Welcome to taskbridge.", name), nil
}

func echo(_ context.Context, params map[string]any) (string, error) {
	text, _ := params["text"].(string)
	return text, nil
}

func getCurrentTime(_ context.Context, _ map[string]any) (string, error) {
	return time.Now().Format(time.RFC3339), nil
}

func calculate(_ context.Context, params map[string]any) (string, error) {
	expression, _ := params["expression"].(string)
	return evaluate(expression)
}

func formatJSON(_ context.Context, params map[string]any) (string, error) {
	input, _ := params["json_string"].(string)

	d := jx.DecodeStr(input)
	if err := d.Skip(); err != nil {
		return "", modules.Validationf("invalid JSON: %v", err)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, []byte(input), "", "  "); err != nil {
		return "", modules.Validationf("invalid JSON: %v", err)
	}
	return out.String(), nil
}
