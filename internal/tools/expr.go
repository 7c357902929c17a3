package tools

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rendis/composer/pkg/schema"
)

// exprTool evaluates an Expr expression. All resolved arguments are in scope;
// the conventional "data" argument carries the primary value.
type exprTool struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

func newExprTool() *exprTool {
	return &exprTool{cache: make(map[string]*vm.Program)}
}

func (t *exprTool) Name() string { return "expr.eval" }
func (t *exprTool) Description() string {
	return "Evaluate an Expr expression over the resolved arguments"
}

func (t *exprTool) Execute(_ context.Context, args map[string]any, _ *ExecutionContext) (*Result, error) {
	expression, ok := args["expression"].(string)
	if !ok || expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "expr.eval requires a non-empty 'expression' string argument")
	}

	prg, err := t.getOrCompile(expression)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "expr.eval: invalid expression: %v", err)
	}

	env := make(map[string]any, len(args))
	for k, v := range args {
		if k == "expression" {
			continue
		}
		env[k] = v
	}

	result, err := vm.Run(prg, env)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "expr.eval: %v", err)
	}

	b, err := json.Marshal(result)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "expr.eval: marshal result: %v", err)
	}
	s := string(b)
	return &Result{Success: true, Output: s, TokensUsed: estimateTokens(s)}, nil
}

func (t *exprTool) getOrCompile(expression string) (*vm.Program, error) {
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

	prg, err := expr.Compile(expression, expr.Env(map[string]any{}), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	t.cache[expression] = prg
	return prg, nil
}
