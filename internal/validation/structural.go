package validation

import (
	"fmt"

	"github.com/rendis/composer/pkg/schema"
)

// shortDescriptionLen is the threshold below which a description is flagged.
const shortDescriptionLen = 10

// validateBasic checks workflow-level fields.
func (v *WorkflowValidator) validateBasic(wf *schema.Workflow, result *schema.ValidationResult) {
	if wf.ID == "" {
		result.AddError("id", schema.ErrCodeValidation, "workflow id is empty")
	}
	if wf.Name == "" {
		result.AddError("name", schema.ErrCodeValidation, "workflow name is empty")
	}
	if len(wf.Steps) == 0 {
		result.AddError("steps", schema.ErrCodeValidation, "workflow has no steps")
	}
	if len(wf.Steps) > v.cfg.MaxSteps {
		result.AddError("steps", schema.ErrCodeValidation,
			fmt.Sprintf("workflow has %d steps, maximum is %d", len(wf.Steps), v.cfg.MaxSteps))
	}
	if len(wf.Description) < shortDescriptionLen {
		result.AddWarning("description", schema.ErrCodeValidation,
			"workflow description is missing or very short")
	}
}

// validateSteps checks each step definition: ids, tool names, dependency
// entries, bindings, and error policies.
func (v *WorkflowValidator) validateSteps(wf *schema.Workflow, result *schema.ValidationResult) {
	seen := make(map[string]bool, len(wf.Steps))

	for i := range wf.Steps {
		step := &wf.Steps[i]
		path := fmt.Sprintf("steps[%d]", i)

		if step.ID == "" {
			result.AddError(path+".id", schema.ErrCodeValidation, "step id is empty")
		} else if seen[step.ID] {
			result.AddError(path+".id", schema.ErrCodeValidation,
				fmt.Sprintf("duplicate step id %q", step.ID))
		}
		seen[step.ID] = true

		if step.ToolName == "" {
			result.AddError(path+".tool_name", schema.ErrCodeValidation,
				fmt.Sprintf("step %q has no tool name", step.ID))
		}

		declared := make(map[string]bool, len(step.DependsOn))
		for j, dep := range step.DependsOn {
			if dep == "" {
				result.AddError(fmt.Sprintf("%s.depends_on[%d]", path, j),
					schema.ErrCodeValidation,
					fmt.Sprintf("step %q has an empty depends_on entry", step.ID))
				continue
			}
			if dep == step.ID {
				result.AddError(fmt.Sprintf("%s.depends_on[%d]", path, j),
					schema.ErrCodeSelfDependency,
					fmt.Sprintf("step %q depends on itself", step.ID))
			}
			declared[dep] = true
		}

		for j, b := range step.Bindings {
			bPath := fmt.Sprintf("%s.bindings[%d]", path, j)
			if b.Source == "" {
				result.AddError(bPath+".source", schema.ErrCodeValidation,
					fmt.Sprintf("step %q binding has no source", step.ID))
			}
			if b.Target == "" {
				result.AddError(bPath+".target", schema.ErrCodeValidation,
					fmt.Sprintf("step %q binding has no target", step.ID))
			}
			// Bindings may reference steps outside the declared dependency
			// set, but that is likely unintended: the referenced output may
			// not exist yet when this step runs.
			if b.Source != "" && b.Source != schema.BindingSourceInput && !declared[b.Source] {
				result.AddWarning(bPath+".source", schema.ErrCodeValidation,
					fmt.Sprintf("step %q binds from %q which is not in its depends_on", step.ID, b.Source))
			}
		}

		if step.OnError != "" && !schema.ValidErrorPolicies[step.OnError] {
			result.AddError(path+".on_error", schema.ErrCodeValidation,
				fmt.Sprintf("step %q has unknown error policy %q", step.ID, step.OnError))
		}
		if step.OnError == schema.ErrorPolicyRetry && step.RetryCount <= 0 {
			result.AddWarning(path+".retry_count", schema.ErrCodeValidation,
				fmt.Sprintf("step %q uses retry without a positive retry_count; default %d applies", step.ID, schema.DefaultRetryCount))
		}
		if step.OnError == schema.ErrorPolicyFallback && step.FallbackValue == nil {
			result.AddWarning(path+".fallback_value", schema.ErrCodeValidation,
				fmt.Sprintf("step %q uses fallback without a fallback_value", step.ID))
		}
	}
}

// validateComplexity bounds the leveled execution order: too many levels is
// an error, a very wide level is only a warning (parallelism is allowed,
// just flagged).
func (v *WorkflowValidator) validateComplexity(levels [][]string, result *schema.ValidationResult) {
	if len(levels) > v.cfg.MaxDepth {
		result.AddError("steps", schema.ErrCodeValidation,
			fmt.Sprintf("workflow has %d execution levels, maximum depth is %d", len(levels), v.cfg.MaxDepth))
	}
	for i, level := range levels {
		if len(level) > v.cfg.WideLevelWarn {
			result.AddWarning(fmt.Sprintf("steps(level %d)", i), schema.ErrCodeValidation,
				fmt.Sprintf("level %d has %d parallel steps; consider splitting", i, len(level)))
		}
	}
}
