package utility

import (
	"strings"
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		want       string
	}{
		{"precedence", "2 + 2 * 2", "6"},
		{"parentheses", "(2 + 2) * 2", "8"},
		{"division", "10 / 4", "2.5"},
		{"power", "2 ** 10", "1024"},
		{"power right assoc", "2 ** 3 ** 2", "512"},
		{"power binds tighter than unary minus", "-2 ** 2", "-4"},
		{"negative exponent", "2 ** -2", "0.25"},
		{"parenthesized negative base", "(-2) ** 2", "4"},
		{"unary minus", "-3 + 5", "2"},
		{"double negative", "--4", "4"},
		{"decimals", "0.5 + 0.25 * 10", "3"},
		{"nested parens", "((1 + 2) * (3 + 4))", "21"},
		{"integral prints without point", "6 / 2", "3"},
		{"spaces everywhere", "  1   +   1  ", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluate(tt.expression)
			if err != nil {
				t.Fatalf("evaluate(%q) failed: %v", tt.expression, err)
			}
			if got != tt.want {
				t.Errorf("evaluate(%q) = %q, want %q", tt.expression, got, tt.want)
			}
		})
	}
}

func TestEvaluate_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		errMsg     string
	}{
		{
			"letters rejected",
			"__import__('os')",
			"invalid characters in expression; only numbers and + - * / ( ) are allowed",
		},
		{
			"variable reference rejected",
			"x + 1",
			"invalid characters in expression; only numbers and + - * / ( ) are allowed",
		},
		{
			"division by zero",
			"1 / 0",
			"division by zero",
		},
		{
			"unbalanced paren",
			"(1 + 2",
			"missing closing parenthesis",
		},
		{
			"trailing garbage",
			"1 + 2 )",
			`unexpected ')' at position 6`,
		},
		{
			"empty expression",
			"",
			"expected a number at position 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := evaluate(tt.expression)
			if err == nil {
				t.Fatalf("evaluate(%q) succeeded, want error", tt.expression)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("evaluate(%q) error = %q, want %q", tt.expression, err.Error(), tt.errMsg)
			}
		})
	}
}
