package tools

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/itchyny/gojq"

	"github.com/rendis/composer/pkg/schema"
)

// jqTool evaluates a jq query against the "data" argument. Compiled queries
// are cached since workflows tend to run the same query repeatedly.
type jqTool struct {
	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

func newJQTool() *jqTool {
	return &jqTool{cache: make(map[string]*gojq.Code)}
}

func (t *jqTool) Name() string        { return "jq" }
func (t *jqTool) Description() string { return "Run a jq query over the 'data' argument" }

func (t *jqTool) Execute(ctx context.Context, args map[string]any, _ *ExecutionContext) (*Result, error) {
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "jq requires a non-empty 'query' string argument")
	}

	code, err := t.getOrCompile(query)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "jq: invalid query: %v", err)
	}

	data, err := toJQValue(args["data"])
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "jq: normalize data: %v", err)
	}

	var results []any
	iter := code.RunWithContext(ctx, data)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if iterErr, isErr := v.(error); isErr {
			return nil, schema.NewErrorf(schema.ErrCodeExecution, "jq: %v", iterErr)
		}
		results = append(results, v)
	}

	var out any
	switch len(results) {
	case 0:
		out = nil
	case 1:
		out = results[0]
	default:
		out = results
	}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "jq: marshal result: %v", err)
	}
	s := string(b)
	return &Result{Success: true, Output: s, TokensUsed: estimateTokens(s)}, nil
}

func (t *jqTool) getOrCompile(query string) (*gojq.Code, error) {
	t.mu.RLock()
	if code, ok := t.cache[query]; ok {
		t.mu.RUnlock()
		return code, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	if code, ok := t.cache[query]; ok {
		return code, nil
	}

	q, err := gojq.Parse(query)
	if err != nil {
		return nil, err
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return nil, err
	}
	t.cache[query] = code
	return code, nil
}

// toJQValue round-trips a value through JSON so gojq sees only the value
// types it accepts (nil, bool, float64, string, []any, map[string]any).
func toJQValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
