package validation

import "github.com/rendis/composer/pkg/schema"

// WorkflowValidator runs the structural validation pipeline over one workflow
// definition:
//  1. Basic field checks (id, name, step count)
//  2. Per-step checks (ids, tool names, bindings, error policies)
//  3. Cycle detection (DFS with recursion stack, first cycle only)
//  4. Topological leveling (Kahn's algorithm, whole ready queue per level)
//  5. Complexity checks (max depth, wide levels)
//
// Tool existence is validated separately via ValidateDependenciesExist since
// tool availability is an external, possibly time-varying fact.
//
// The validator is stateless: validating the same definition twice yields
// identical results, and one instance is safe to share across runs.
type WorkflowValidator struct {
	cfg Config
}

// Config bounds the complexity checks.
type Config struct {
	MaxSteps      int // maximum steps per workflow (default 50)
	MaxDepth      int // maximum execution levels (default 50)
	WideLevelWarn int // steps per level above which a warning is raised (default 10)
}

// DefaultConfig returns the default validation limits.
func DefaultConfig() Config {
	return Config{
		MaxSteps:      50,
		MaxDepth:      50,
		WideLevelWarn: 10,
	}
}

// NewWorkflowValidator creates a WorkflowValidator. Zero config fields fall
// back to defaults.
func NewWorkflowValidator(cfg Config) *WorkflowValidator {
	def := DefaultConfig()
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = def.MaxSteps
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.WideLevelWarn <= 0 {
		cfg.WideLevelWarn = def.WideLevelWarn
	}
	return &WorkflowValidator{cfg: cfg}
}

// Validate runs the full structural pipeline and returns an aggregated
// result. The execution order is computed only when stages 1-3 report no
// errors; when errors are present ExecutionOrder is nil.
func (v *WorkflowValidator) Validate(wf *schema.Workflow) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	if wf == nil {
		result.AddError("/", schema.ErrCodeValidation, "workflow is nil")
		return result
	}

	v.validateBasic(wf, result)
	v.validateSteps(wf, result)

	if result.Valid() {
		detectCycle(wf.Steps, result)
	}

	if !result.Valid() {
		return result
	}

	levels, ok := computeLevels(wf.Steps)
	if !ok {
		// Defensive double-check: Kahn found a cycle the DFS missed.
		result.AddError("steps", schema.ErrCodeCircularDependency,
			"workflow contains a dependency cycle")
		return result
	}

	v.validateComplexity(levels, result)
	if !result.Valid() {
		return result
	}

	result.ExecutionOrder = levels
	return result
}

// ValidateDefinition is the error-returning form of Validate.
func (v *WorkflowValidator) ValidateDefinition(wf *schema.Workflow) error {
	return v.Validate(wf).ToError()
}
