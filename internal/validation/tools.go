package validation

import (
	"fmt"

	"github.com/rendis/composer/pkg/schema"
)

// ValidateDependenciesExist checks the workflow against its runtime
// surroundings: every tool a step names must be registered, and every
// depends_on entry must refer to a defined step. Kept out of Validate because
// the available tool set is external to the definition and may differ per
// deployment.
func (v *WorkflowValidator) ValidateDependenciesExist(wf *schema.Workflow, toolNames map[string]bool) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if wf == nil {
		result.AddError("/", schema.ErrCodeValidation, "workflow is nil")
		return result
	}

	known := make(map[string]bool, len(wf.Steps))
	for _, s := range wf.Steps {
		known[s.ID] = true
	}

	for i := range wf.Steps {
		step := &wf.Steps[i]
		path := fmt.Sprintf("steps[%d]", i)

		if step.ToolName != "" && !toolNames[step.ToolName] {
			result.AddError(path+".tool_name", schema.ErrCodeToolNotFound,
				fmt.Sprintf("step %q references unknown tool %q", step.ID, step.ToolName))
		}

		for j, dep := range step.DependsOn {
			if dep == "" || dep == step.ID {
				continue
			}
			if !known[dep] {
				result.AddError(fmt.Sprintf("%s.depends_on[%d]", path, j),
					schema.ErrCodeDependencyNotFound,
					fmt.Sprintf("step %q depends on undefined step %q", step.ID, dep))
			}
		}

		for j, b := range step.Bindings {
			if b.Source == "" || b.Source == schema.BindingSourceInput {
				continue
			}
			if !known[b.Source] {
				result.AddError(fmt.Sprintf("%s.bindings[%d].source", path, j),
					schema.ErrCodeDependencyNotFound,
					fmt.Sprintf("step %q binds from undefined step %q", step.ID, b.Source))
			}
		}
	}

	return result
}
