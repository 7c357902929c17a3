// Package composer is the public entry point: a facade over the tool
// registry, workflow registry, validation, and the execution engine.
package composer

import (
	"context"
	"log/slog"
	"time"

	"github.com/rendis/composer/internal/engine"
	"github.com/rendis/composer/internal/registry"
	"github.com/rendis/composer/internal/scheduler"
	"github.com/rendis/composer/internal/tools"
	"github.com/rendis/composer/internal/validation"
	"github.com/rendis/composer/pkg/schema"
)

// Config tunes a Service.
type Config struct {
	// MaxParallel bounds concurrent steps within a level (default 5).
	MaxParallel int
	// BackoffBase is the first retry delay (default 1s).
	BackoffBase time.Duration
	// Builtins controls whether the built-in tool set is registered
	// (default true via DefaultConfig).
	Builtins bool
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		MaxParallel: engine.DefaultMaxParallel,
		BackoffBase: time.Second,
		Builtins:    true,
	}
}

// Service wires the engine together and owns workflow storage. It satisfies
// the scheduler's WorkflowRunner interface.
type Service struct {
	tools     *tools.Registry
	workflows *registry.WorkflowRegistry
	composer  *engine.Composer
	schemaVal *validation.SchemaValidator
	logger    *slog.Logger
}

// New creates a Service.
func New(cfg Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	toolReg := tools.NewRegistry()
	if cfg.Builtins {
		if err := tools.RegisterBuiltins(toolReg); err != nil {
			return nil, err
		}
	}

	schemaVal, err := validation.NewSchemaValidator()
	if err != nil {
		return nil, err
	}

	return &Service{
		tools:     toolReg,
		workflows: registry.NewWorkflowRegistry(),
		composer: engine.NewComposer(toolReg, engine.Config{
			MaxParallel: cfg.MaxParallel,
			BackoffBase: cfg.BackoffBase,
		}, logger),
		schemaVal: schemaVal,
		logger:    logger,
	}, nil
}

// RegisterTool adds a tool to the registry.
func (s *Service) RegisterTool(t tools.Tool) error {
	return s.tools.Register(t)
}

// Tools lists registered tools.
func (s *Service) Tools() []tools.ToolInfo {
	return s.tools.List()
}

// RegisterWorkflow validates a workflow and stores it. Validation warnings
// are logged but do not block registration.
func (s *Service) RegisterWorkflow(wf *schema.Workflow) (*schema.ValidationResult, error) {
	result := s.composer.Validate(wf)
	for _, w := range result.Warnings {
		s.logger.Warn("workflow validation warning",
			slog.String("workflow_id", wf.ID),
			slog.String("path", w.Path),
			slog.String("message", w.Message))
	}
	if err := result.ToError(); err != nil {
		return result, err
	}
	if err := s.workflows.Save(wf); err != nil {
		return result, err
	}
	return result, nil
}

// RegisterWorkflowJSON decodes, schema-checks, and registers a raw JSON
// workflow document.
func (s *Service) RegisterWorkflowJSON(raw []byte) (*schema.Workflow, error) {
	if err := s.schemaVal.ValidateDocument(raw); err != nil {
		return nil, err
	}
	wf, err := schema.DecodeJSON(raw)
	if err != nil {
		return nil, err
	}
	if _, err := s.RegisterWorkflow(wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// RegisterWorkflowYAML decodes and registers a raw YAML workflow document.
func (s *Service) RegisterWorkflowYAML(raw []byte) (*schema.Workflow, error) {
	wf, err := schema.DecodeYAML(raw)
	if err != nil {
		return nil, err
	}
	if _, err := s.RegisterWorkflow(wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// Workflow retrieves a stored workflow by id.
func (s *Service) Workflow(id string) (*schema.Workflow, error) {
	return s.workflows.Get(id)
}

// Workflows lists stored workflows.
func (s *Service) Workflows() []*schema.Workflow {
	return s.workflows.List()
}

// DeleteWorkflow removes a stored workflow.
func (s *Service) DeleteWorkflow(id string) error {
	return s.workflows.Delete(id)
}

// Validate runs full validation (structure plus tool existence) without
// executing or storing anything.
func (s *Service) Validate(wf *schema.Workflow) *schema.ValidationResult {
	return s.composer.Validate(wf)
}

// Execute runs a workflow definition directly with default options.
func (s *Service) Execute(ctx context.Context, wf *schema.Workflow, input map[string]any, opts engine.Options) (*schema.ExecutionResult, error) {
	if opts.ToolContext == nil {
		opts.ToolContext = &tools.ExecutionContext{}
	}
	return s.composer.Execute(ctx, wf, input, opts)
}

// Run executes a stored workflow by id. This is the scheduler's entry point.
func (s *Service) Run(ctx context.Context, workflowID string, input map[string]any) (*schema.ExecutionResult, error) {
	wf, err := s.workflows.Get(workflowID)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, wf, input, engine.Options{})
}

// Abort cancels a running workflow.
func (s *Service) Abort(workflowID string) error {
	return s.composer.Abort(workflowID)
}

// Status returns the progress of a running workflow.
func (s *Service) Status(workflowID string) (*schema.Progress, error) {
	return s.composer.GetStatus(workflowID)
}

// NewScheduler creates a scheduler bound to this service.
func (s *Service) NewScheduler() *scheduler.Scheduler {
	return scheduler.NewScheduler(s, s.logger)
}
