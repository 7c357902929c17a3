package transform

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/expr-lang/expr/vm"

	"github.com/rendis/composer/pkg/schema"
)

// Apply runs a typed transform on a value. Unknown kinds and identity are
// no-ops. Transforms never fail: a transform that cannot apply to the value's
// shape passes the value through (json_parse failures additionally log).
func (t *Transformer) Apply(value any, kind schema.TransformKind, cfg *schema.TransformConfig) any {
	switch kind {
	case "", schema.TransformIdentity:
		return value

	case schema.TransformJSONParse:
		s, isStr := value.(string)
		if !isStr {
			return value
		}
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			t.logger.Warn("json_parse transform failed, keeping original string",
				slog.String("error", err.Error()))
			return s
		}
		return parsed

	case schema.TransformJSONStringify:
		b, err := json.Marshal(value)
		if err != nil {
			t.logger.Warn("json_stringify transform failed, keeping original value",
				slog.String("error", err.Error()))
			return value
		}
		return string(b)

	case schema.TransformSplit:
		s, isStr := value.(string)
		if !isStr {
			return value
		}
		lines := strings.Split(s, "\n")
		out := make([]any, len(lines))
		for i, line := range lines {
			out[i] = line
		}
		return out

	case schema.TransformJoin:
		arr, isArr := asSlice(value)
		if !isArr {
			return value
		}
		parts := make([]string, len(arr))
		for i, item := range arr {
			parts[i] = stringify(item)
		}
		return strings.Join(parts, "\n")

	case schema.TransformFlatten:
		arr, isArr := asSlice(value)
		if !isArr {
			return value
		}
		out := make([]any, 0, len(arr))
		for _, item := range arr {
			if inner, ok := asSlice(item); ok {
				out = append(out, inner...)
			} else {
				out = append(out, item)
			}
		}
		return out

	case schema.TransformFirst:
		arr, isArr := asSlice(value)
		if !isArr {
			return value
		}
		if len(arr) == 0 {
			return nil
		}
		return arr[0]

	case schema.TransformLast:
		arr, isArr := asSlice(value)
		if !isArr {
			return value
		}
		if len(arr) == 0 {
			return nil
		}
		return arr[len(arr)-1]

	case schema.TransformCount:
		if arr, isArr := asSlice(value); isArr {
			return len(arr)
		}
		if s, isStr := value.(string); isStr {
			return len(s)
		}
		return 0

	case schema.TransformMap:
		return t.applyMap(value, cfg)

	case schema.TransformFilter:
		return t.applyFilter(value, cfg)

	case schema.TransformExtractProperty:
		return t.applyExtractProperty(value, cfg)

	default:
		t.logger.Warn("unknown transform kind, passing value through",
			slog.String("transform", string(kind)))
		return value
	}
}

// applyMap evaluates cfg.Expression per element, producing a new array.
// Without a configured expression the value passes through unchanged.
func (t *Transformer) applyMap(value any, cfg *schema.TransformConfig) any {
	if cfg == nil || cfg.Expression == "" {
		return value
	}
	arr, isArr := asSlice(value)
	if !isArr {
		return value
	}

	prg, err := t.getOrCompile(cfg.Expression)
	if err != nil {
		t.logger.Warn("map transform expression failed to compile, passing through",
			slog.String("expression", cfg.Expression), slog.String("error", err.Error()))
		return value
	}

	out := make([]any, len(arr))
	for i, item := range arr {
		mapped, evalErr := runElement(prg, item, i)
		if evalErr != nil {
			t.logger.Warn("map transform evaluation failed, keeping element",
				slog.String("expression", cfg.Expression), slog.String("error", evalErr.Error()))
			out[i] = item
			continue
		}
		out[i] = mapped
	}
	return out
}

// applyFilter keeps elements for which cfg.Expression evaluates truthy.
// Evaluation errors drop the element (fail-closed, matching conditions).
func (t *Transformer) applyFilter(value any, cfg *schema.TransformConfig) any {
	if cfg == nil || cfg.Expression == "" {
		return value
	}
	arr, isArr := asSlice(value)
	if !isArr {
		return value
	}

	prg, err := t.getOrCompile(cfg.Expression)
	if err != nil {
		t.logger.Warn("filter transform expression failed to compile, passing through",
			slog.String("expression", cfg.Expression), slog.String("error", err.Error()))
		return value
	}

	out := make([]any, 0, len(arr))
	for i, item := range arr {
		keep, evalErr := runElement(prg, item, i)
		if evalErr != nil {
			t.logger.Warn("filter transform evaluation failed, dropping element",
				slog.String("expression", cfg.Expression), slog.String("error", evalErr.Error()))
			continue
		}
		if IsTruthy(keep) {
			out = append(out, item)
		}
	}
	return out
}

// applyExtractProperty extracts cfg.Property from each array element, or from
// the value itself when it is not an array.
func (t *Transformer) applyExtractProperty(value any, cfg *schema.TransformConfig) any {
	if cfg == nil || cfg.Property == "" {
		return value
	}

	if arr, isArr := asSlice(value); isArr {
		out := make([]any, len(arr))
		for i, item := range arr {
			v, _ := ExtractValue(item, cfg.Property)
			out[i] = v
		}
		return out
	}

	v, _ := ExtractValue(value, cfg.Property)
	return v
}

// runElement evaluates a compiled expression with item/index in scope.
func runElement(prg *vm.Program, item any, index int) (any, error) {
	return vm.Run(prg, map[string]any{
		"item":  item,
		"index": index,
	})
}

// stringify renders a value for join: strings as-is, everything else as JSON.
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
