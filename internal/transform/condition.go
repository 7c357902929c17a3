package transform

import (
	"log/slog"
	"strconv"
	"strings"
)

// Condition grammar:
//
//	condition = path
//	          | path operator literal
//	operator  = "===" | "!==" | "==" | "!=" | ">=" | "<=" | ">" | "<"
//	literal   = "true" | "false" | "null" | number | quoted string | raw string
//
// A bare path evaluates to the truthiness of the value it addresses.
// Conditions are lexed into tokens before parsing so quoted strings may
// contain operator characters. Unparseable conditions log a warning and
// evaluate to false (fail-closed).

// condOperators in match order: longer operators first so "==" never
// mis-splits "===" and ">" never mis-splits ">=".
var condOperators = []string{"===", "!==", "==", "!=", ">=", "<=", ">", "<"}

// condExpr is the parsed form of a condition.
type condExpr struct {
	left  string  // path into the variables map
	op    string  // empty for bare-path truthiness
	right condLit // zero value when op is empty
}

// condLit is a coerced right-hand literal.
type condLit struct {
	kind string // "bool" | "null" | "number" | "string"
	b    bool
	n    float64
	s    string
}

// EvaluateCondition evaluates a condition expression against the variables
// map. Bare paths evaluate to the truthiness of the addressed value; binary
// comparisons coerce the right-hand literal and compare. Returns false for
// unparseable conditions.
func (t *Transformer) EvaluateCondition(expression string, variables map[string]any) bool {
	parsed, ok := parseCondition(expression)
	if !ok {
		t.logger.Warn("unparseable condition evaluates to false",
			slog.String("condition", expression))
		return false
	}

	leftVal, _ := ExtractValue(variables, parsed.left)

	if parsed.op == "" {
		return IsTruthy(leftVal)
	}

	switch parsed.op {
	case ">", ">=", "<", "<=":
		return compareNumeric(leftVal, parsed.right, parsed.op)
	case "==", "===":
		return conditionEqual(leftVal, parsed.right, parsed.op == "===")
	case "!=", "!==":
		return !conditionEqual(leftVal, parsed.right, parsed.op == "!==")
	}
	return false
}

// parseCondition lexes and parses a condition expression.
func parseCondition(expression string) (condExpr, bool) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return condExpr{}, false
	}

	opIdx, op := findOperator(expression)
	if opIdx < 0 {
		// Bare path truthiness.
		return condExpr{left: expression}, true
	}

	left := strings.TrimSpace(expression[:opIdx])
	rightRaw := strings.TrimSpace(expression[opIdx+len(op):])
	if left == "" || rightRaw == "" {
		return condExpr{}, false
	}

	right, ok := coerceLiteral(rightRaw)
	if !ok {
		return condExpr{}, false
	}

	return condExpr{left: left, op: op, right: right}, true
}

// findOperator scans left to right for the first operator occurrence outside
// quoted regions, preferring longer operators at each position.
func findOperator(s string) (int, string) {
	inQuote := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inQuote != 0 {
			if c == inQuote {
				inQuote = 0
			}
			continue
		}
		if c == '"' || c == '\'' {
			inQuote = c
			continue
		}
		for _, op := range condOperators {
			if strings.HasPrefix(s[i:], op) {
				return i, op
			}
		}
	}
	return -1, ""
}

// coerceLiteral interprets the right-hand side of a comparison:
// true/false/null, integer/float, "quoted string", else raw string.
// An unterminated quote is a parse failure.
func coerceLiteral(raw string) (condLit, bool) {
	switch raw {
	case "true":
		return condLit{kind: "bool", b: true}, true
	case "false":
		return condLit{kind: "bool", b: false}, true
	case "null":
		return condLit{kind: "null"}, true
	}

	if raw[0] == '"' || raw[0] == '\'' {
		if len(raw) < 2 || raw[len(raw)-1] != raw[0] {
			return condLit{}, false
		}
		return condLit{kind: "string", s: raw[1 : len(raw)-1]}, true
	}

	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return condLit{kind: "number", n: n}, true
	}

	return condLit{kind: "string", s: raw}, true
}

// compareNumeric casts both sides to number; a side that cannot be cast
// makes the comparison false.
func compareNumeric(left any, right condLit, op string) bool {
	ln, lok := toNumber(left)
	rn, rok := litToNumber(right)
	if !lok || !rok {
		return false
	}
	switch op {
	case ">":
		return ln > rn
	case ">=":
		return ln >= rn
	case "<":
		return ln < rn
	case "<=":
		return ln <= rn
	}
	return false
}

// conditionEqual compares the extracted value with the literal. Strict mode
// requires matching kinds; loose mode compares numerically when both sides
// are numeric and by string form otherwise.
func conditionEqual(left any, right condLit, strict bool) bool {
	switch right.kind {
	case "null":
		return left == nil
	case "bool":
		lb, isBool := left.(bool)
		if isBool {
			return lb == right.b
		}
		if strict {
			return false
		}
		return IsTruthy(left) == right.b
	case "number":
		ln, lok := toNumber(left)
		if lok {
			if strict {
				if _, isNum := numericValue(left); !isNum {
					return false
				}
			}
			return ln == right.n
		}
		return false
	case "string":
		ls, isStr := left.(string)
		if isStr {
			return ls == right.s
		}
		if strict {
			return false
		}
		// Loose: compare numeric string literal with numeric value.
		if ln, lok := numericValue(left); lok {
			if rn, err := strconv.ParseFloat(right.s, 64); err == nil {
				return ln == rn
			}
		}
		return false
	}
	return false
}

// numericValue unwraps the numeric types that flow through the engine.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

// litToNumber coerces a literal to a number with the same rules as toNumber:
// numbers directly, bools to 0/1, numeric strings parsed.
func litToNumber(l condLit) (float64, bool) {
	switch l.kind {
	case "number":
		return l.n, true
	case "bool":
		if l.b {
			return 1, true
		}
		return 0, true
	case "string":
		n, err := strconv.ParseFloat(strings.TrimSpace(l.s), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// toNumber coerces a value to a number: numerics directly, bools to 0/1,
// numeric strings parsed.
func toNumber(v any) (float64, bool) {
	if n, ok := numericValue(v); ok {
		return n, true
	}
	switch val := v.(type) {
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// IsTruthy reports value truthiness: false, nil, numeric zero, empty string,
// empty array, and empty object are falsy; everything else is truthy.
func IsTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case map[string]any:
		return len(val) > 0
	}
	if n, ok := numericValue(v); ok {
		return n != 0
	}
	if arr, ok := asSlice(v); ok {
		return len(arr) > 0
	}
	return true
}
