// Package builder offers a fluent API for assembling workflow definitions
// in code.
package builder

import (
	"time"

	"github.com/google/uuid"

	"github.com/rendis/composer/pkg/schema"
)

// WorkflowBuilder accumulates a workflow definition step by step. Zero
// validation happens here; the result is validated like any other definition
// when it reaches the engine.
type WorkflowBuilder struct {
	wf   schema.Workflow
	last *schema.Step
}

// NewWorkflow starts a builder. An empty id gets a generated UUID.
func NewWorkflow(id, name string) *WorkflowBuilder {
	if id == "" {
		id = uuid.NewString()
	}
	return &WorkflowBuilder{
		wf: schema.Workflow{
			ID:        id,
			Name:      name,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// Description sets the workflow description.
func (b *WorkflowBuilder) Description(d string) *WorkflowBuilder {
	b.wf.Description = d
	return b
}

// Timeout sets the workflow timeout.
func (b *WorkflowBuilder) Timeout(d time.Duration) *WorkflowBuilder {
	b.wf.TimeoutMs = d.Milliseconds()
	return b
}

// TokenBudget caps the tokens a run may consume.
func (b *WorkflowBuilder) TokenBudget(budget int) *WorkflowBuilder {
	b.wf.TokenBudget = budget
	return b
}

// Metadata sets a metadata entry.
func (b *WorkflowBuilder) Metadata(key string, value any) *WorkflowBuilder {
	if b.wf.Metadata == nil {
		b.wf.Metadata = make(map[string]any)
	}
	b.wf.Metadata[key] = value
	return b
}

// Step appends a step. Subsequent step-scoped calls apply to it until the
// next Step call.
func (b *WorkflowBuilder) Step(id, toolName string) *WorkflowBuilder {
	b.wf.Steps = append(b.wf.Steps, schema.Step{ID: id, ToolName: toolName})
	b.last = &b.wf.Steps[len(b.wf.Steps)-1]
	return b
}

// DependsOn adds dependencies to the current step.
func (b *WorkflowBuilder) DependsOn(stepIDs ...string) *WorkflowBuilder {
	if b.last != nil {
		b.last.DependsOn = append(b.last.DependsOn, stepIDs...)
	}
	return b
}

// Bind adds an argument binding to the current step.
func (b *WorkflowBuilder) Bind(source, sourcePath, target string) *WorkflowBuilder {
	if b.last != nil {
		b.last.Bindings = append(b.last.Bindings, schema.Binding{
			Source:     source,
			SourcePath: sourcePath,
			Target:     target,
		})
	}
	return b
}

// BindTransformed adds a binding with a transform to the current step.
func (b *WorkflowBuilder) BindTransformed(source, sourcePath, target string, transform schema.TransformKind, cfg *schema.TransformConfig) *WorkflowBuilder {
	if b.last != nil {
		b.last.Bindings = append(b.last.Bindings, schema.Binding{
			Source:          source,
			SourcePath:      sourcePath,
			Target:          target,
			Transform:       transform,
			TransformConfig: cfg,
		})
	}
	return b
}

// StaticArg sets a static argument on the current step.
func (b *WorkflowBuilder) StaticArg(key string, value any) *WorkflowBuilder {
	if b.last != nil {
		if b.last.StaticArgs == nil {
			b.last.StaticArgs = make(map[string]any)
		}
		b.last.StaticArgs[key] = value
	}
	return b
}

// Condition gates the current step on an expression.
func (b *WorkflowBuilder) Condition(expression string) *WorkflowBuilder {
	if b.last != nil {
		b.last.Condition = expression
	}
	return b
}

// OnError sets the current step's error policy.
func (b *WorkflowBuilder) OnError(policy schema.ErrorPolicy) *WorkflowBuilder {
	if b.last != nil {
		b.last.OnError = policy
	}
	return b
}

// Retry sets the retry policy with the given attempt count.
func (b *WorkflowBuilder) Retry(count int) *WorkflowBuilder {
	if b.last != nil {
		b.last.OnError = schema.ErrorPolicyRetry
		b.last.RetryCount = count
	}
	return b
}

// Fallback sets the fallback policy with the given value.
func (b *WorkflowBuilder) Fallback(value any) *WorkflowBuilder {
	if b.last != nil {
		b.last.OnError = schema.ErrorPolicyFallback
		b.last.FallbackValue = value
	}
	return b
}

// OutputAs aliases the current step's output.
func (b *WorkflowBuilder) OutputAs(alias string) *WorkflowBuilder {
	if b.last != nil {
		b.last.OutputAs = alias
	}
	return b
}

// ExtractOutput adds a workflow output extraction binding.
func (b *WorkflowBuilder) ExtractOutput(source, sourcePath, target string) *WorkflowBuilder {
	b.wf.OutputExtraction = append(b.wf.OutputExtraction, schema.Binding{
		Source:     source,
		SourcePath: sourcePath,
		Target:     target,
	})
	return b
}

// Build returns the assembled workflow.
func (b *WorkflowBuilder) Build() *schema.Workflow {
	wf := b.wf
	return &wf
}
