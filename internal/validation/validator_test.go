package validation

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/rendis/composer/pkg/schema"
)

func testWorkflow(steps ...schema.Step) *schema.Workflow {
	return &schema.Workflow{
		ID:          "wf-test",
		Name:        "test workflow",
		Description: "a workflow used by validator tests",
		Steps:       steps,
	}
}

func step(id string, deps ...string) schema.Step {
	return schema.Step{ID: id, ToolName: "echo", DependsOn: deps}
}

func hasErrorCode(result *schema.ValidationResult, code string) bool {
	for _, e := range result.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

func TestValidateLeveling(t *testing.T) {
	v := NewWorkflowValidator(Config{})
	wf := testWorkflow(
		step("a"),
		step("b", "a"),
		step("c", "a"),
		step("d", "b", "c"),
	)

	result := v.Validate(wf)
	if !result.Valid() {
		t.Fatalf("expected valid workflow, got errors: %v", result.Errors)
	}

	want := [][]string{{"a"}, {"b", "c"}, {"d"}}
	if !reflect.DeepEqual(result.ExecutionOrder, want) {
		t.Fatalf("ExecutionOrder = %v, want %v", result.ExecutionOrder, want)
	}
}

func TestValidateLevelingIndependentRoots(t *testing.T) {
	v := NewWorkflowValidator(Config{})
	wf := testWorkflow(step("a"), step("b"), step("c", "b"))

	result := v.Validate(wf)
	if !result.Valid() {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}

	want := [][]string{{"a", "b"}, {"c"}}
	if !reflect.DeepEqual(result.ExecutionOrder, want) {
		t.Fatalf("ExecutionOrder = %v, want %v", result.ExecutionOrder, want)
	}
}

func TestValidateCycle(t *testing.T) {
	v := NewWorkflowValidator(Config{})
	wf := testWorkflow(
		step("a", "c"),
		step("b", "a"),
		step("c", "b"),
	)

	result := v.Validate(wf)
	if result.Valid() {
		t.Fatal("expected cycle to be rejected")
	}
	if !hasErrorCode(result, schema.ErrCodeCircularDependency) {
		t.Fatalf("expected CIRCULAR_DEPENDENCY, got %v", result.Errors)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected exactly one cycle error, got %d", len(result.Errors))
	}
	if result.ExecutionOrder != nil {
		t.Fatal("ExecutionOrder must be nil when invalid")
	}
}

func TestValidateSelfDependency(t *testing.T) {
	v := NewWorkflowValidator(Config{})
	wf := testWorkflow(step("a", "a"), step("b", "a"))

	result := v.Validate(wf)
	if result.Valid() {
		t.Fatal("expected self-dependency to be rejected")
	}
	if !hasErrorCode(result, schema.ErrCodeSelfDependency) {
		t.Fatalf("expected SELF_DEPENDENCY, got %v", result.Errors)
	}
	if hasErrorCode(result, schema.ErrCodeCircularDependency) {
		t.Fatal("self-dependency must not also report a cycle")
	}
}

func TestValidateIdempotent(t *testing.T) {
	v := NewWorkflowValidator(Config{})
	wf := testWorkflow(step("a"), step("b", "a"))

	first := v.Validate(wf)
	second := v.Validate(wf)

	if !reflect.DeepEqual(first.ExecutionOrder, second.ExecutionOrder) {
		t.Fatalf("validation is not idempotent: %v vs %v", first.ExecutionOrder, second.ExecutionOrder)
	}
	if len(first.Errors) != len(second.Errors) || len(first.Warnings) != len(second.Warnings) {
		t.Fatal("issue counts differ between runs")
	}
}

func TestValidateBasicErrors(t *testing.T) {
	v := NewWorkflowValidator(Config{})

	result := v.Validate(&schema.Workflow{})
	if result.Valid() {
		t.Fatal("empty workflow must be invalid")
	}

	result = v.Validate(nil)
	if result.Valid() {
		t.Fatal("nil workflow must be invalid")
	}

	dup := testWorkflow(step("a"), step("a"))
	if v.Validate(dup).Valid() {
		t.Fatal("duplicate step ids must be rejected")
	}

	noTool := testWorkflow(schema.Step{ID: "a"})
	if v.Validate(noTool).Valid() {
		t.Fatal("step without tool name must be rejected")
	}

	badPolicy := testWorkflow(schema.Step{ID: "a", ToolName: "echo", OnError: "explode"})
	if v.Validate(badPolicy).Valid() {
		t.Fatal("unknown error policy must be rejected")
	}
}

func TestValidateWarnings(t *testing.T) {
	v := NewWorkflowValidator(Config{})

	retryStep := step("a")
	retryStep.OnError = schema.ErrorPolicyRetry
	fallbackStep := step("b")
	fallbackStep.OnError = schema.ErrorPolicyFallback
	bindStep := step("c")
	bindStep.Bindings = []schema.Binding{{Source: "a", SourcePath: "x", Target: "x"}}

	wf := testWorkflow(retryStep, fallbackStep, bindStep)
	result := v.Validate(wf)
	if !result.Valid() {
		t.Fatalf("warnings must not make the workflow invalid: %v", result.Errors)
	}
	if len(result.Warnings) != 3 {
		t.Fatalf("expected 3 warnings (retry count, fallback value, binding outside depends_on), got %v", result.Warnings)
	}
}

func TestValidateShortDescriptionWarning(t *testing.T) {
	v := NewWorkflowValidator(Config{})
	wf := &schema.Workflow{ID: "wf", Name: "wf", Steps: []schema.Step{step("a")}}

	result := v.Validate(wf)
	if !result.Valid() {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a description warning")
	}
}

func TestValidateMaxDepth(t *testing.T) {
	v := NewWorkflowValidator(Config{MaxSteps: 100, MaxDepth: 50})

	steps := []schema.Step{step("s0")}
	for i := 1; i < 60; i++ {
		steps = append(steps, step(fmt.Sprintf("s%d", i), fmt.Sprintf("s%d", i-1)))
	}
	result := v.Validate(testWorkflow(steps...))
	if result.Valid() {
		t.Fatal("expected depth limit error")
	}
}

func TestValidateMaxSteps(t *testing.T) {
	v := NewWorkflowValidator(Config{})

	steps := make([]schema.Step, 0, 51)
	for i := 0; i < 51; i++ {
		steps = append(steps, step(fmt.Sprintf("s%d", i)))
	}
	result := v.Validate(testWorkflow(steps...))
	if result.Valid() {
		t.Fatal("expected step count limit error")
	}
}

func TestValidateWideLevelWarning(t *testing.T) {
	v := NewWorkflowValidator(Config{})

	steps := make([]schema.Step, 0, 11)
	for i := 0; i < 11; i++ {
		steps = append(steps, step(fmt.Sprintf("s%d", i)))
	}
	result := v.Validate(testWorkflow(steps...))
	if !result.Valid() {
		t.Fatalf("wide level must be a warning, got errors: %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected wide level warning")
	}
}

func TestValidateDependenciesExist(t *testing.T) {
	v := NewWorkflowValidator(Config{})
	toolNames := map[string]bool{"echo": true}

	missingTool := step("a")
	missingTool.ToolName = "no-such-tool"
	wf := testWorkflow(
		missingTool,
		step("b", "ghost"),
	)

	result := v.ValidateDependenciesExist(wf, toolNames)
	if result.Valid() {
		t.Fatal("expected errors")
	}
	if !hasErrorCode(result, schema.ErrCodeToolNotFound) {
		t.Fatalf("expected TOOL_NOT_FOUND, got %v", result.Errors)
	}
	if !hasErrorCode(result, schema.ErrCodeDependencyNotFound) {
		t.Fatalf("expected DEPENDENCY_NOT_FOUND, got %v", result.Errors)
	}
}

func TestValidateDependenciesExistBindingSource(t *testing.T) {
	v := NewWorkflowValidator(Config{})

	bound := step("a")
	bound.Bindings = []schema.Binding{{Source: "ghost", SourcePath: "x", Target: "x"}}
	result := v.ValidateDependenciesExist(testWorkflow(bound), map[string]bool{"echo": true})
	if !hasErrorCode(result, schema.ErrCodeDependencyNotFound) {
		t.Fatalf("expected DEPENDENCY_NOT_FOUND for binding source, got %v", result.Errors)
	}
}
