// Command composer runs a workflow definition from a file.
//
// Usage:
//
//	composer -workflow flow.json [-input '{"key":"value"}'] [-timeout 30000]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/rendis/composer/internal/engine"
	"github.com/rendis/composer/internal/logging"
	"github.com/rendis/composer/internal/tools"
	"github.com/rendis/composer/pkg/composer"
	"github.com/rendis/composer/pkg/schema"
)

func main() {
	var (
		workflowPath = flag.String("workflow", "", "path to a workflow definition (.json or .yaml)")
		inputJSON    = flag.String("input", "{}", "workflow input as a JSON object")
		timeoutMs    = flag.Int64("timeout", 0, "run timeout in milliseconds (0 uses the workflow's own)")
		validateOnly = flag.Bool("validate", false, "validate the workflow and exit")
		verbose      = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *workflowPath == "" {
		fmt.Fprintln(os.Stderr, "composer: -workflow is required")
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	base := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(logging.NewCorrelationHandler(base))
	slog.SetDefault(logger)

	if err := run(*workflowPath, *inputJSON, *timeoutMs, *validateOnly, logger); err != nil {
		fmt.Fprintf(os.Stderr, "composer: %v\n", err)
		os.Exit(1)
	}
}

func run(workflowPath, inputJSON string, timeoutMs int64, validateOnly bool, logger *slog.Logger) error {
	raw, err := os.ReadFile(workflowPath)
	if err != nil {
		return err
	}

	var input map[string]any
	if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
		return fmt.Errorf("parse -input: %w", err)
	}

	svc, err := composer.New(composer.DefaultConfig(), logger)
	if err != nil {
		return err
	}

	var wf *schema.Workflow
	if strings.HasSuffix(workflowPath, ".yaml") || strings.HasSuffix(workflowPath, ".yml") {
		wf, err = svc.RegisterWorkflowYAML(raw)
	} else {
		wf, err = svc.RegisterWorkflowJSON(raw)
	}
	if err != nil {
		return err
	}

	if validateOnly {
		fmt.Printf("workflow %q is valid\n", wf.ID)
		return nil
	}

	result, err := svc.Execute(context.Background(), wf, input, engine.Options{
		ToolContext: &tools.ExecutionContext{SessionID: "cli"},
		TimeoutMs:   timeoutMs,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !result.Success {
		os.Exit(1)
	}
	return nil
}
