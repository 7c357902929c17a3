package schema

// ExecutionResult is the outcome of one workflow run. Execute always returns
// a result: run-level failures surface as Success=false plus Error, never as
// a panic or a bare error.
type ExecutionResult struct {
	WorkflowID      string        `json:"workflow_id"`
	Success         bool          `json:"success"`
	Output          any           `json:"output,omitempty"`
	Error           string        `json:"error,omitempty"`
	StepResults     []*StepResult `json:"step_results"`
	TotalDurationMs int64         `json:"total_duration_ms"`
	TokensUsed      int           `json:"tokens_used"`
}

// StepResult summarizes the outcome of a single step.
// A skipped step counts as success for flow-control purposes.
type StepResult struct {
	StepID     string `json:"step_id"`
	Success    bool   `json:"success"`
	Output     any    `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	TokensUsed int    `json:"tokens_used,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
}

// Progress is pushed to the caller at each level boundary.
// EstimatedRemainingMs is zero (omitted) until at least one step completed,
// since the estimate is undefined at the start.
type Progress struct {
	WorkflowID           string `json:"workflow_id"`
	TotalSteps           int    `json:"total_steps"`
	CompletedSteps       int    `json:"completed_steps"`
	CurrentStep          string `json:"current_step,omitempty"`
	Percentage           int    `json:"percentage"`
	ElapsedMs            int64  `json:"elapsed_ms"`
	EstimatedRemainingMs int64  `json:"estimated_remaining_ms,omitempty"`
}
