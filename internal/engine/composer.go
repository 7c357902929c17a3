package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/composer/internal/logging"
	"github.com/rendis/composer/internal/tools"
	"github.com/rendis/composer/internal/transform"
	"github.com/rendis/composer/internal/validation"
	"github.com/rendis/composer/pkg/schema"
)

// DefaultMaxParallel caps how many steps of one level run at the same time.
const DefaultMaxParallel = 5

// Config tunes a Composer.
type Config struct {
	// MaxParallel bounds concurrent steps within a level (default 5).
	MaxParallel int
	// BackoffBase is the first retry delay; attempt n waits n*BackoffBase
	// (default 1s).
	BackoffBase time.Duration
	// Validation bounds the structural validator.
	Validation validation.Config
}

// Options configures one workflow run.
type Options struct {
	// ToolContext carries caller identity into tool executions. Required:
	// steps fail without it.
	ToolContext *tools.ExecutionContext
	// TimeoutMs overrides the workflow's own timeout when positive.
	TimeoutMs int64
	// TokenBudget overrides the workflow's own budget when positive.
	TokenBudget int
	// MaxParallel overrides the composer's parallelism cap when positive.
	MaxParallel int
	// ContinueOnError keeps the run going past abort-policy step failures.
	// Remaining levels still execute; the final result reports the first
	// failure.
	ContinueOnError bool
	// OnProgress, when set, is called at each level boundary and once after
	// the last level with a progress snapshot. Called from the run
	// goroutine; keep it fast.
	OnProgress func(schema.Progress)
}

// Composer validates and executes workflows. Levels run sequentially; steps
// within a level run in batches of at most MaxParallel, and each batch is
// fully awaited before its outputs merge into run state. Because merging is
// single-threaded, step execution needs no shared-state locking.
type Composer struct {
	cfg         Config
	registry    *tools.Registry
	validator   *validation.WorkflowValidator
	transformer *transform.Transformer
	runner      *stepRunner
	dispatcher  *dispatcher
	logger      *slog.Logger

	mu     sync.Mutex
	active map[string]*activeRun
}

// activeRun tracks one in-flight workflow, keyed by workflow id.
type activeRun struct {
	runID    string
	cancel   context.CancelFunc
	progress schema.Progress
}

// NewComposer creates a Composer over a tool registry. A nil logger falls
// back to slog.Default().
func NewComposer(registry *tools.Registry, cfg Config, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}

	transformer := transform.NewTransformer(logger)
	return &Composer{
		cfg:         cfg,
		registry:    registry,
		validator:   validation.NewWorkflowValidator(cfg.Validation),
		transformer: transformer,
		runner: &stepRunner{
			registry:    registry,
			transformer: transformer,
			logger:      logger,
			backoffBase: cfg.BackoffBase,
		},
		dispatcher: &dispatcher{},
		logger:     logger,
		active:     make(map[string]*activeRun),
	}
}

// Validate runs the structural pipeline plus the tool and dependency
// existence checks against the current registry.
func (c *Composer) Validate(wf *schema.Workflow) *schema.ValidationResult {
	result := c.validator.Validate(wf)
	result.Merge(c.validator.ValidateDependenciesExist(wf, c.registry.Names()))
	return result
}

// Execute runs a workflow to completion. Run-level failures (validation,
// step abort, timeout, budget) come back as a result with Success=false; the
// error return is reserved for a nil workflow.
func (c *Composer) Execute(ctx context.Context, wf *schema.Workflow, input map[string]any, opts Options) (*schema.ExecutionResult, error) {
	if wf == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow is nil")
	}

	validated := c.Validate(wf)
	if !validated.Valid() {
		return &schema.ExecutionResult{
			WorkflowID: wf.ID,
			Success:    false,
			Error:      validated.ToError().Error(),
		}, nil
	}

	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	timeoutMs := opts.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = wf.TimeoutMs
	}
	if timeoutMs > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, time.Duration(timeoutMs)*time.Millisecond)
		defer cancel()
	}

	c.mu.Lock()
	if _, running := c.active[wf.ID]; running {
		c.mu.Unlock()
		return &schema.ExecutionResult{
			WorkflowID: wf.ID,
			Success:    false,
			Error:      fmt.Sprintf("workflow %q is already running", wf.ID),
		}, nil
	}
	run := &activeRun{runID: runID, cancel: cancel}
	c.active[wf.ID] = run
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.active, wf.ID)
		c.mu.Unlock()
	}()

	runCtx = logging.WithWorkflowID(runCtx, wf.ID)
	runCtx = logging.WithRunID(runCtx, runID)
	c.logger.InfoContext(runCtx, "workflow started",
		slog.Int("steps", len(wf.Steps)),
		slog.Int("levels", len(validated.ExecutionOrder)))

	result := c.executeLevels(runCtx, wf, input, opts, run, runID, validated.ExecutionOrder, timeoutMs)

	if result.Success {
		c.logger.InfoContext(runCtx, "workflow finished",
			slog.Int64("duration_ms", result.TotalDurationMs),
			slog.Int("tokens_used", result.TokensUsed),
			slog.Int64("tasks_dispatched_total", c.dispatcher.Executed()))
	} else {
		c.logger.WarnContext(runCtx, "workflow failed",
			slog.String("error", result.Error),
			slog.Int64("duration_ms", result.TotalDurationMs),
			slog.Int64("tasks_dispatched_total", c.dispatcher.Executed()))
	}
	if n := c.dispatcher.Panicked(); n > 0 {
		c.logger.WarnContext(runCtx, "step panics recovered so far",
			slog.Int64("panics_total", n))
	}
	return result, nil
}

// executeLevels walks the leveled execution order.
func (c *Composer) executeLevels(ctx context.Context, wf *schema.Workflow, input map[string]any, opts Options, run *activeRun, runID string, levels [][]string, timeoutMs int64) *schema.ExecutionResult {
	ec := newExecutionContext(wf, runID, input)

	stepsByID := make(map[string]*schema.Step, len(wf.Steps))
	for i := range wf.Steps {
		stepsByID[wf.Steps[i].ID] = &wf.Steps[i]
	}

	budget := opts.TokenBudget
	if budget <= 0 {
		budget = wf.TokenBudget
	}

	maxParallel := opts.MaxParallel
	if maxParallel <= 0 {
		maxParallel = c.cfg.MaxParallel
	}

	total := len(wf.Steps)
	completed := 0
	var ordered []*schema.StepResult
	var firstFailure *schema.StepResult

	fail := func(msg string) *schema.ExecutionResult {
		return &schema.ExecutionResult{
			WorkflowID:      wf.ID,
			Success:         false,
			Error:           msg,
			StepResults:     ordered,
			TotalDurationMs: ec.ElapsedMs(),
			TokensUsed:      ec.TokensUsed,
		}
	}

	for levelIdx, level := range levels {
		// Timeout, abort, and budget are enforced at level boundaries so a
		// started batch always finishes and its results are kept.
		if err := ctx.Err(); err != nil {
			if err == context.DeadlineExceeded {
				return fail(fmt.Sprintf("Workflow timed out after %dms", timeoutMs))
			}
			return fail("Workflow aborted")
		}
		if budget > 0 && ec.TokensUsed >= budget {
			return fail(fmt.Sprintf("Token budget exceeded: used %d of %d", ec.TokensUsed, budget))
		}

		c.logger.InfoContext(ctx, "executing level",
			slog.Int("level", levelIdx), slog.Int("steps", len(level)))

		// The caller-visible progress cadence is the level boundary: one
		// snapshot per level, pointing at the level's first step.
		c.publishProgress(run, c.snapshotProgress(wf.ID, ec, total, completed, level[0]), opts.OnProgress)

		for start := 0; start < len(level); start += maxParallel {
			end := start + maxParallel
			if end > len(level) {
				end = len(level)
			}
			batch := level[start:end]

			tasks := make([]stepTask, len(batch))
			for i, stepID := range batch {
				step := stepsByID[stepID]
				tasks[i] = stepTask{
					stepID: stepID,
					run: func(taskCtx context.Context) *schema.StepResult {
						return c.runner.Run(taskCtx, step, ec, opts.ToolContext)
					},
				}
			}

			results := c.dispatcher.RunBatch(ctx, tasks)

			for i, res := range results {
				ec.recordResult(stepsByID[batch[i]], res)
				ordered = append(ordered, res)
				completed++
				if !res.Success && firstFailure == nil {
					firstFailure = res
				}
			}

			// Keep GetStatus fresh between boundaries without widening the
			// callback cadence.
			c.publishProgress(run, c.snapshotProgress(wf.ID, ec, total, completed, batch[len(batch)-1]), nil)

			if firstFailure != nil && !opts.ContinueOnError {
				// A failure caused by the run context going down is reported
				// as the timeout or abort, not as a step failure.
				if err := ctx.Err(); err != nil {
					if err == context.DeadlineExceeded {
						return fail(fmt.Sprintf("Workflow timed out after %dms", timeoutMs))
					}
					return fail("Workflow aborted")
				}
				return fail(fmt.Sprintf("Step %s failed: %s", firstFailure.StepID, firstFailure.Error))
			}
		}
	}

	c.publishProgress(run, c.snapshotProgress(wf.ID, ec, total, completed, ""), opts.OnProgress)

	if firstFailure != nil {
		return fail(fmt.Sprintf("Step %s failed: %s", firstFailure.StepID, firstFailure.Error))
	}

	output := c.extractOutput(wf, ec)

	return &schema.ExecutionResult{
		WorkflowID:      wf.ID,
		Success:         true,
		Output:          output,
		StepResults:     ordered,
		TotalDurationMs: ec.ElapsedMs(),
		TokensUsed:      ec.TokensUsed,
	}
}

// extractOutput resolves the workflow's output extraction bindings against
// final run state. Without explicit extraction the output is the last
// successful, non-skipped step's output in definition order.
func (c *Composer) extractOutput(wf *schema.Workflow, ec *ExecutionContext) any {
	if len(wf.OutputExtraction) > 0 {
		return c.transformer.ResolveBindings(wf.OutputExtraction, ec.Variables)
	}

	var output any
	for i := range wf.Steps {
		res, ok := ec.StepOutputs[wf.Steps[i].ID]
		if ok && res.Success && !res.Skipped {
			output = res.Output
		}
	}
	return output
}

func (c *Composer) snapshotProgress(workflowID string, ec *ExecutionContext, total, completed int, currentStep string) schema.Progress {
	elapsed := ec.ElapsedMs()
	p := schema.Progress{
		WorkflowID:     workflowID,
		TotalSteps:     total,
		CompletedSteps: completed,
		CurrentStep:    currentStep,
		ElapsedMs:      elapsed,
	}
	if total > 0 {
		p.Percentage = int(math.Round(float64(completed) / float64(total) * 100))
	}
	if completed > 0 && completed < total {
		p.EstimatedRemainingMs = elapsed / int64(completed) * int64(total-completed)
	}
	return p
}

func (c *Composer) publishProgress(run *activeRun, p schema.Progress, onProgress func(schema.Progress)) {
	c.mu.Lock()
	run.progress = p
	c.mu.Unlock()

	if onProgress != nil {
		onProgress(p)
	}
}

// Abort cancels a running workflow. The run stops at the next level boundary
// and its result reports the abort with partial step results.
func (c *Composer) Abort(workflowID string) error {
	c.mu.Lock()
	run, ok := c.active[workflowID]
	c.mu.Unlock()

	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q is not running", workflowID)
	}
	run.cancel()
	return nil
}

// GetStatus returns the latest progress snapshot of a running workflow.
func (c *Composer) GetStatus(workflowID string) (*schema.Progress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	run, ok := c.active[workflowID]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q is not running", workflowID)
	}
	p := run.progress
	return &p, nil
}

// IsActive reports whether a workflow is currently running.
func (c *Composer) IsActive(workflowID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[workflowID]
	return ok
}

// ActiveWorkflowIDs lists the ids of all in-flight workflows.
func (c *Composer) ActiveWorkflowIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.active))
	for id := range c.active {
		ids = append(ids, id)
	}
	return ids
}
