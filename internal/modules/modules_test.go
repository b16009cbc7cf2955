package modules

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// stubModule records executions for dispatch tests.
type stubModule struct {
	name  string
	tools []Tool
	calls int
	fail  error
}

func (m *stubModule) Name() string        { return m.name }
func (m *stubModule) Description() string { return "stub" }
func (m *stubModule) Tools() []Tool       { return m.tools }

func (m *stubModule) ExecuteTool(_ context.Context, name string, _ map[string]any) (string, error) {
	m.calls++
	if m.fail != nil {
		return "", m.fail
	}
	return "ran " + name, nil
}

func newStub() *stubModule {
	return &stubModule{
		name: "stub",
		tools: []Tool{
			{
				ID:   "stub:do_thing",
				Name: "do_thing",
				InputSchema: InputSchema{
					Type: "object",
					Properties: map[string]Property{
						"mode": {Type: "string", Enum: []string{"fast", "slow"}},
					},
					Required: []string{"mode"},
				},
			},
		},
	}
}

func TestRun_Success(t *testing.T) {
	ResetRegistry()
	stub := newStub()
	RegisterModule(stub)

	result, err := Run(context.Background(), "do_thing", map[string]any{"mode": "fast"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Content[0].Text)
	}
	if result.Content[0].Text != "ran do_thing" {
		t.Errorf("unexpected result text: %q", result.Content[0].Text)
	}
	if stub.calls != 1 {
		t.Errorf("expected 1 execution, got %d", stub.calls)
	}
}

func TestRun_UnknownTool(t *testing.T) {
	ResetRegistry()
	RegisterModule(newStub())

	result, err := Run(context.Background(), "nope", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if result.Content[0].Text != "Error: unknown tool: nope" {
		t.Errorf("unexpected text: %q", result.Content[0].Text)
	}
}

func TestRun_ValidationFailureSkipsExecution(t *testing.T) {
	ResetRegistry()
	stub := newStub()
	RegisterModule(stub)

	tests := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{
			"missing required",
			map[string]any{},
			"Error: missing required parameter(s): mode",
		},
		{
			"enum violation",
			map[string]any{"mode": "warp"},
			`Error: parameter "mode": must be one of fast, slow (got "warp")`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(context.Background(), "do_thing", tt.params)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Fatal("expected error result")
			}
			if result.Content[0].Text != tt.want {
				t.Errorf("expected %q, got %q", tt.want, result.Content[0].Text)
			}
		})
	}

	if stub.calls != 0 {
		t.Errorf("handler ran %d times on invalid input, want 0", stub.calls)
	}
}

func TestRun_HandlerErrorRendersUniformly(t *testing.T) {
	ResetRegistry()
	stub := newStub()
	stub.fail = fmt.Errorf("Asana API error (500): upstream exploded")
	RegisterModule(stub)

	result, err := Run(context.Background(), "do_thing", map[string]any{"mode": "slow"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.HasPrefix(result.Content[0].Text, "Error: ") {
		t.Errorf("expected Error: prefix, got %q", result.Content[0].Text)
	}
	if !strings.Contains(result.Content[0].Text, "upstream exploded") {
		t.Errorf("expected cause in message, got %q", result.Content[0].Text)
	}
}

func TestAllTools_SortedAcrossModules(t *testing.T) {
	ResetRegistry()
	RegisterModule(&stubModule{name: "b", tools: []Tool{{Name: "zeta"}, {Name: "alpha"}}})
	RegisterModule(&stubModule{name: "a", tools: []Tool{{Name: "mid"}}})

	tools := AllTools()
	if len(tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(tools))
	}
	for i := 1; i < len(tools); i++ {
		if tools[i-1].Name > tools[i].Name {
			t.Errorf("tools not sorted: %s before %s", tools[i-1].Name, tools[i].Name)
		}
	}
}
