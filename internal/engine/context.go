package engine

import (
	"time"

	"github.com/rendis/composer/pkg/schema"
)

// ExecutionContext is the mutable state of one workflow run. It is only
// written between batches, from the run goroutine, so it needs no locking.
type ExecutionContext struct {
	WorkflowID  string
	RunID       string
	Input       map[string]any
	Variables   map[string]any
	StepOutputs map[string]*schema.StepResult
	StartedAt   time.Time
	TokensUsed  int
}

func newExecutionContext(wf *schema.Workflow, runID string, input map[string]any) *ExecutionContext {
	variables := map[string]any{
		schema.BindingSourceInput: input,
	}
	return &ExecutionContext{
		WorkflowID:  wf.ID,
		RunID:       runID,
		Input:       input,
		Variables:   variables,
		StepOutputs: make(map[string]*schema.StepResult, len(wf.Steps)),
		StartedAt:   time.Now(),
	}
}

// recordResult folds a step result into the run state. Outputs of successful,
// non-skipped steps become visible to later levels under the step id and,
// when set, under the step's output alias.
func (ec *ExecutionContext) recordResult(step *schema.Step, res *schema.StepResult) {
	ec.StepOutputs[step.ID] = res
	ec.TokensUsed += res.TokensUsed

	if !res.Success || res.Skipped {
		return
	}
	ec.Variables[step.ID] = res.Output
	if step.OutputAs != "" {
		ec.Variables[step.OutputAs] = res.Output
	}
}

// ElapsedMs returns milliseconds since the run started.
func (ec *ExecutionContext) ElapsedMs() int64 {
	return time.Since(ec.StartedAt).Milliseconds()
}
