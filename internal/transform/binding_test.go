package transform

import (
	"reflect"
	"testing"

	"github.com/rendis/composer/pkg/schema"
)

func TestApplyBinding(t *testing.T) {
	tr := NewTransformer(nil)
	vars := map[string]any{
		"input": map[string]any{"query": "q"},
		"stepA": map[string]any{"items": []any{"x", "y"}},
	}

	got := tr.ApplyBinding(schema.Binding{
		Source: "input", SourcePath: "query", Target: "q",
	}, vars)
	if got != "q" {
		t.Fatalf("binding from input = %v, want q", got)
	}

	got = tr.ApplyBinding(schema.Binding{
		Source: "stepA", SourcePath: "items", Target: "n",
		Transform: schema.TransformCount,
	}, vars)
	if got != 2 {
		t.Fatalf("binding with count transform = %v, want 2", got)
	}

	// Missing source resolves to nil, not an error.
	got = tr.ApplyBinding(schema.Binding{
		Source: "stepZ", SourcePath: "anything", Target: "v",
	}, vars)
	if got != nil {
		t.Fatalf("binding from missing source = %v, want nil", got)
	}
}

func TestResolveBindingsOverwrite(t *testing.T) {
	tr := NewTransformer(nil)
	vars := map[string]any{
		"input": map[string]any{"a": "first", "b": "second"},
	}

	resolved := tr.ResolveBindings([]schema.Binding{
		{Source: "input", SourcePath: "a", Target: "v"},
		{Source: "input", SourcePath: "b", Target: "v"},
	}, vars)

	if resolved["v"] != "second" {
		t.Fatalf("later binding should win, got %v", resolved["v"])
	}
}

func TestMergeArgs(t *testing.T) {
	static := map[string]any{"a": 1, "b": 2}
	bound := map[string]any{"b": 20, "c": 30}

	merged := MergeArgs(static, bound)
	want := map[string]any{"a": 1, "b": 20, "c": 30}
	if !reflect.DeepEqual(merged, want) {
		t.Fatalf("MergeArgs = %v, want %v", merged, want)
	}

	// Inputs are not mutated.
	if static["b"] != 2 {
		t.Fatalf("static args mutated: %v", static)
	}
}

func TestDeepCopyMap(t *testing.T) {
	original := map[string]any{
		"nested": map[string]any{"k": "v"},
		"list":   []any{1, 2},
	}

	cp := DeepCopyMap(original)
	cp["nested"].(map[string]any)["k"] = "changed"
	cp["list"].([]any)[0] = 99

	if original["nested"].(map[string]any)["k"] != "v" {
		t.Fatal("nested map was shared, not copied")
	}
	if original["list"].([]any)[0] != 1 {
		t.Fatal("slice was shared, not copied")
	}

	if DeepCopyMap(nil) != nil {
		t.Fatal("copy of nil map should be nil")
	}
}
