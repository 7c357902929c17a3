package transform

import "github.com/rendis/composer/pkg/schema"

// ApplyBinding resolves one binding against the variables map: look up the
// source, extract the source path, then apply the transform. The literal
// source "input" always resolves (to nil when absent); a missing step source
// likewise yields nil rather than an error.
func (t *Transformer) ApplyBinding(b schema.Binding, variables map[string]any) any {
	source := variables[b.Source]

	val, _ := ExtractValue(source, b.SourcePath)

	if b.Transform != "" && b.Transform != schema.TransformIdentity {
		val = t.Apply(val, b.Transform, b.TransformConfig)
	}
	return val
}

// ResolveBindings applies each binding in list order. Bindings to the same
// target overwrite earlier ones.
func (t *Transformer) ResolveBindings(bindings []schema.Binding, variables map[string]any) map[string]any {
	resolved := make(map[string]any, len(bindings))
	for _, b := range bindings {
		resolved[b.Target] = t.ApplyBinding(b, variables)
	}
	return resolved
}

// MergeArgs shallow-merges resolved bindings over static args. Bindings win
// on key collision. Neither input map is mutated.
func MergeArgs(staticArgs, resolvedBindings map[string]any) map[string]any {
	merged := make(map[string]any, len(staticArgs)+len(resolvedBindings))
	for k, v := range staticArgs {
		merged[k] = v
	}
	for k, v := range resolvedBindings {
		merged[k] = v
	}
	return merged
}

// DeepCopyMap creates a deep copy of a map[string]any.
func DeepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = DeepCopyAny(v)
	}
	return cp
}

// DeepCopyAny recursively deep-copies a value.
// Handles maps, slices, and primitives (which are inherently immutable).
func DeepCopyAny(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return DeepCopyMap(val)
	case []any:
		cp := make([]any, len(val))
		for i, item := range val {
			cp[i] = DeepCopyAny(item)
		}
		return cp
	case []string:
		cp := make([]string, len(val))
		copy(cp, val)
		return cp
	default:
		// Primitives (string, float64, bool, nil, int, int64) are value types.
		return v
	}
}
