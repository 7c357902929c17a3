package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateConditionComparisons(t *testing.T) {
	tr := NewTransformer(nil)
	vars := map[string]any{
		"status": "done",
		"count":  float64(5),
		"flag":   true,
		"stepA":  map[string]any{"result": map[string]any{"ok": true}},
	}

	tests := []struct {
		expr string
		want bool
	}{
		{`status == "done"`, true},
		{`status == "pending"`, false},
		{`status != "pending"`, true},
		{`status === "done"`, true},
		{"count > 3", true},
		{"count >= 5", true},
		{"count < 5", false},
		{"count <= 4", false},
		{"count == 5", true},
		{"count === 5", true},
		{"flag == true", true},
		{"flag != true", false},
		{"stepA.result.ok == true", true},
		{"missing == null", true},
		{"status == null", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, tr.EvaluateCondition(tt.expr, vars), "expr: %s", tt.expr)
		})
	}
}

func TestEvaluateConditionBarePath(t *testing.T) {
	tr := NewTransformer(nil)
	vars := map[string]any{
		"present": "x",
		"zero":    float64(0),
		"empty":   "",
		"list":    []any{1},
		"nothing": []any{},
	}

	assert.True(t, tr.EvaluateCondition("present", vars))
	assert.False(t, tr.EvaluateCondition("zero", vars))
	assert.False(t, tr.EvaluateCondition("empty", vars))
	assert.False(t, tr.EvaluateCondition("missing", vars))
	assert.True(t, tr.EvaluateCondition("list", vars))
	assert.False(t, tr.EvaluateCondition("nothing", vars))
}

func TestEvaluateConditionStrictVsLoose(t *testing.T) {
	tr := NewTransformer(nil)
	vars := map[string]any{"n": float64(5), "s": "5"}

	// Loose equality coerces across types.
	assert.True(t, tr.EvaluateCondition(`s == 5`, vars))
	assert.True(t, tr.EvaluateCondition(`n == "5"`, vars))

	// Strict equality requires matching kinds.
	assert.False(t, tr.EvaluateCondition(`n === "5"`, vars))
	assert.True(t, tr.EvaluateCondition(`n === 5`, vars))
	assert.True(t, tr.EvaluateCondition(`n !== "5"`, vars))
}

func TestEvaluateConditionQuotedOperator(t *testing.T) {
	tr := NewTransformer(nil)
	vars := map[string]any{"expr": "a>b"}

	// Operator characters inside the quoted literal must not split the
	// condition.
	assert.True(t, tr.EvaluateCondition(`expr == "a>b"`, vars))
}

func TestEvaluateConditionFailClosed(t *testing.T) {
	tr := NewTransformer(nil)
	vars := map[string]any{"x": float64(1)}

	assert.False(t, tr.EvaluateCondition("", vars))
	assert.False(t, tr.EvaluateCondition("== 5", vars))
	assert.False(t, tr.EvaluateCondition(`x == "unterminated`, vars))
	// Non-numeric value in a numeric comparison is false.
	assert.False(t, tr.EvaluateCondition("missing > 3", vars))
}
