package transform

import (
	"log/slog"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rendis/composer/pkg/schema"
)

// Transformer performs pure value-path extraction, typed value transforms,
// binding resolution, and condition evaluation. It holds no per-run state
// beyond a compiled-expression cache and is safe to share across concurrent
// runs.
type Transformer struct {
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewTransformer creates a Transformer. logger may be nil (defaults to slog.Default).
func NewTransformer(logger *slog.Logger) *Transformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transformer{
		logger: logger,
		cache:  make(map[string]*vm.Program),
	}
}

// getOrCompile returns a cached compiled program or compiles and caches a new one.
// Programs are compiled with an open environment so map/filter expressions can
// reference "item" and "index" without a typed env.
func (t *Transformer) getOrCompile(expression string) (*vm.Program, error) {
	t.mu.RLock()
	if prg, ok := t.cache[expression]; ok {
		t.mu.RUnlock()
		return prg, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Double-check after acquiring write lock.
	if prg, ok := t.cache[expression]; ok {
		return prg, nil
	}

	prg, err := expr.Compile(expression,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"expr compile error in %q: %s", expression, err.Error()).WithCause(err)
	}

	t.cache[expression] = prg
	return t.cache[expression], nil
}
