package tools

import (
	"context"
	"encoding/json"

	"github.com/rendis/composer/pkg/schema"
)

// RegisterBuiltins registers the built-in tool set on a registry.
func RegisterBuiltins(r *Registry) error {
	builtins := []Tool{
		&echoTool{},
		newJQTool(),
		newExprTool(),
		newAssertTool(),
	}
	for _, t := range builtins {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// estimateTokens approximates token usage from output size. Four characters
// per token is the usual rough ratio.
func estimateTokens(output string) int {
	return len(output) / 4
}

// --- echo ---

// echoTool returns its arguments as JSON. Useful for wiring tests and for
// shaping values inside a workflow without an external tool.
type echoTool struct{}

func (t *echoTool) Name() string        { return "echo" }
func (t *echoTool) Description() string { return "Return the resolved arguments as JSON" }

func (t *echoTool) Execute(_ context.Context, args map[string]any, _ *ExecutionContext) (*Result, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "echo: marshal args: %v", err)
	}
	out := string(b)
	return &Result{Success: true, Output: out, TokensUsed: estimateTokens(out)}, nil
}
