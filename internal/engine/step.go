package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rendis/composer/internal/logging"
	"github.com/rendis/composer/internal/tools"
	"github.com/rendis/composer/internal/transform"
	"github.com/rendis/composer/pkg/schema"
)

// stepRunner executes single steps: condition gate, argument resolution,
// tool invocation with retries, and error policy application. It reads run
// state but never writes it; the composer merges results between batches.
type stepRunner struct {
	registry    *tools.Registry
	transformer *transform.Transformer
	logger      *slog.Logger
	backoffBase time.Duration
}

// Run executes one step against the current run state and returns its result.
// It never returns nil and never panics.
func (r *stepRunner) Run(ctx context.Context, step *schema.Step, ec *ExecutionContext, toolCtx *tools.ExecutionContext) *schema.StepResult {
	started := time.Now()
	ctx = logging.WithStepID(ctx, step.ID)

	if step.Condition != "" && !r.transformer.EvaluateCondition(step.Condition, ec.Variables) {
		r.logger.InfoContext(ctx, "step skipped, condition not met",
			slog.String("condition", step.Condition))
		return &schema.StepResult{
			StepID:     step.ID,
			Success:    true,
			Skipped:    true,
			SkipReason: fmt.Sprintf("condition not met: %s", step.Condition),
			DurationMs: time.Since(started).Milliseconds(),
		}
	}

	tool, err := r.registry.Get(step.ToolName)
	if err != nil {
		// No point retrying a tool that does not exist.
		return r.failed(step, started, fmt.Sprintf("Tool not found: %s", step.ToolName))
	}

	if toolCtx == nil {
		return r.failed(step, started, "tool execution context is missing")
	}

	args := transform.MergeArgs(
		transform.DeepCopyMap(step.StaticArgs),
		r.transformer.ResolveBindings(step.Bindings, ec.Variables),
	)

	stepCtx := *toolCtx
	stepCtx.WorkflowID = ec.WorkflowID
	stepCtx.RunID = ec.RunID
	stepCtx.StepID = step.ID

	attempts := 1
	if step.OnError == schema.ErrorPolicyRetry {
		attempts = step.RetryCount
		if attempts <= 0 {
			attempts = schema.DefaultRetryCount
		}
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return r.failed(step, started, fmt.Sprintf("step cancelled: %v", ctx.Err()))
		}
		if attempt > 0 {
			if err := WaitForBackoff(ctx, BackoffDelay(r.backoffBase, attempt-1)); err != nil {
				return r.failed(step, started, fmt.Sprintf("step cancelled: %v", err))
			}
			r.logger.InfoContext(ctx, "retrying step",
				slog.Int("attempt", attempt+1), slog.Int("max_attempts", attempts))
		}

		result, execErr := r.attempt(ctx, tool, args, &stepCtx)
		if execErr != nil {
			lastErr = execErr
			r.logger.WarnContext(ctx, "step attempt failed",
				slog.Int("attempt", attempt+1), slog.String("error", execErr.Error()))
			continue
		}

		return &schema.StepResult{
			StepID:     step.ID,
			Success:    true,
			Output:     parseOutput(result.Output),
			DurationMs: time.Since(started).Milliseconds(),
			TokensUsed: result.TokensUsed,
		}
	}

	errMsg := "step failed"
	if lastErr != nil {
		errMsg = lastErr.Error()
	}
	if attempts > 1 {
		errMsg = fmt.Sprintf("retry exhausted after %d attempts: %s", attempts, errMsg)
	}

	switch step.OnError {
	case schema.ErrorPolicyFallback:
		r.logger.InfoContext(ctx, "step failed, using fallback value",
			slog.String("error", errMsg))
		return &schema.StepResult{
			StepID:     step.ID,
			Success:    true,
			Output:     step.FallbackValue,
			DurationMs: time.Since(started).Milliseconds(),
		}
	case schema.ErrorPolicySkip:
		r.logger.InfoContext(ctx, "step failed and skipped",
			slog.String("error", errMsg))
		return &schema.StepResult{
			StepID:     step.ID,
			Success:    true,
			Skipped:    true,
			SkipReason: fmt.Sprintf("failed and skipped: %s", errMsg),
			DurationMs: time.Since(started).Milliseconds(),
		}
	}

	return r.failed(step, started, errMsg)
}

// attempt runs the tool once, converting panics into errors so a misbehaving
// tool cannot take the run down.
func (r *stepRunner) attempt(ctx context.Context, tool tools.Tool, args map[string]any, toolCtx *tools.ExecutionContext) (result *tools.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = schema.NewErrorf(schema.ErrCodeExecution, "tool panicked: %v", rec)
		}
	}()

	result, err = tool.Execute(ctx, args, toolCtx)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, schema.NewError(schema.ErrCodeExecution, "tool returned no result")
	}
	if !result.Success {
		msg := result.Output
		if msg == "" {
			msg = "tool reported failure"
		}
		return nil, schema.NewError(schema.ErrCodeStepFailed, msg)
	}
	return result, nil
}

func (r *stepRunner) failed(step *schema.Step, started time.Time, msg string) *schema.StepResult {
	return &schema.StepResult{
		StepID:     step.ID,
		Success:    false,
		Error:      msg,
		DurationMs: time.Since(started).Milliseconds(),
	}
}

// parseOutput turns tool output into a structured value when it is valid
// JSON, otherwise keeps the raw string. Downstream bindings can then address
// into structured outputs with source paths.
func parseOutput(output string) any {
	var parsed any
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		return output
	}
	return parsed
}
