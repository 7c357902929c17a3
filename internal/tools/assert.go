package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rendis/composer/pkg/schema"
)

// assertTool evaluates a CEL expression against the "data" argument and fails
// when it does not hold. A failed assertion is a tool error so the step's
// error policy decides what happens next.
type assertTool struct {
	env *cel.Env

	mu    sync.RWMutex
	cache map[string]cel.Program
}

func newAssertTool() *assertTool {
	env, err := cel.NewEnv(cel.Variable("data", cel.DynType))
	if err != nil {
		// The environment is built from static declarations; this cannot
		// fail at runtime.
		panic(fmt.Sprintf("assert: build CEL environment: %v", err))
	}
	return &assertTool{
		env:   env,
		cache: make(map[string]cel.Program),
	}
}

func (t *assertTool) Name() string        { return "assert" }
func (t *assertTool) Description() string { return "Fail unless a CEL expression over 'data' holds" }

func (t *assertTool) Execute(_ context.Context, args map[string]any, _ *ExecutionContext) (*Result, error) {
	expression, ok := args["expression"].(string)
	if !ok || expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "assert requires a non-empty 'expression' string argument")
	}

	prg, err := t.getOrCompile(expression)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "assert: invalid expression: %v", err)
	}

	out, _, err := prg.Eval(map[string]any{"data": args["data"]})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "assert: %v", err)
	}

	holds, isBool := out.Value().(bool)
	if !isBool {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "assert: expression %q is not boolean", expression)
	}
	if !holds {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "assertion failed: %s", expression)
	}

	return &Result{Success: true, Output: "true", TokensUsed: 1}, nil
}

func (t *assertTool) getOrCompile(expression string) (cel.Program, error) {
	t.mu.RLock()
	if prg, ok := t.cache[expression]; ok {
		t.mu.RUnlock()
		return prg, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	if prg, ok := t.cache[expression]; ok {
		return prg, nil
	}

	ast, iss := t.env.Compile(expression)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	prg, err := t.env.Program(ast)
	if err != nil {
		return nil, err
	}
	t.cache[expression] = prg
	return prg, nil
}
