package composer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/composer/internal/engine"
	"github.com/rendis/composer/pkg/builder"
	"github.com/rendis/composer/pkg/schema"
)

func newService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(DefaultConfig(), nil)
	require.NoError(t, err)
	return svc
}

func TestServiceRegistersBuiltins(t *testing.T) {
	svc := newService(t)

	names := make(map[string]bool)
	for _, info := range svc.Tools() {
		names[info.Name] = true
	}
	for _, want := range []string{"echo", "jq", "expr.eval", "assert"} {
		assert.True(t, names[want], "missing builtin %q", want)
	}
}

func TestServiceRegisterAndRun(t *testing.T) {
	svc := newService(t)

	wf := builder.NewWorkflow("wf-e2e", "end to end").
		Description("echo the input back through two levels").
		Step("shape", "echo").
		Bind("input", "msg", "msg").
		Step("length", "expr.eval").
		DependsOn("shape").
		StaticArg("expression", "len(data.msg)").
		Bind("shape", "", "data").
		Build()

	_, err := svc.RegisterWorkflow(wf)
	require.NoError(t, err)

	result, err := svc.Run(context.Background(), "wf-e2e", map[string]any{"msg": "hello"})
	require.NoError(t, err)
	require.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, float64(5), result.Output)
}

func TestServiceRegisterWorkflowJSON(t *testing.T) {
	svc := newService(t)

	wf, err := svc.RegisterWorkflowJSON([]byte(`{
		"id": "wf-json",
		"name": "json workflow",
		"description": "registered from a raw document",
		"steps": [
			{"id": "a", "tool_name": "echo", "static_args": {"v": 1}}
		]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "wf-json", wf.ID)

	stored, err := svc.Workflow("wf-json")
	require.NoError(t, err)
	assert.Equal(t, "json workflow", stored.Name)
}

func TestServiceRegisterWorkflowJSONRejectsBadDocument(t *testing.T) {
	svc := newService(t)

	_, err := svc.RegisterWorkflowJSON([]byte(`{"id": "x", "name": "x"}`))
	assert.Error(t, err)
}

func TestServiceRegisterWorkflowYAML(t *testing.T) {
	svc := newService(t)

	wf, err := svc.RegisterWorkflowYAML([]byte(`
id: wf-yaml
name: yaml workflow
description: registered from a yaml document
steps:
  - id: a
    tool_name: echo
    static_args:
      v: 1
`))
	require.NoError(t, err)
	assert.Equal(t, "wf-yaml", wf.ID)
}

func TestServiceRegisterRejectsInvalidWorkflow(t *testing.T) {
	svc := newService(t)

	wf := &schema.Workflow{
		ID:   "bad",
		Name: "bad",
		Steps: []schema.Step{
			{ID: "a", ToolName: "echo", DependsOn: []string{"a"}},
		},
	}
	result, err := svc.RegisterWorkflow(wf)
	require.Error(t, err)
	assert.False(t, result.Valid())

	_, getErr := svc.Workflow("bad")
	assert.Error(t, getErr, "invalid workflow must not be stored")
}

func TestServiceRunUnknownWorkflow(t *testing.T) {
	svc := newService(t)
	_, err := svc.Run(context.Background(), "ghost", nil)
	require.Error(t, err)
	var cerr *schema.ComposerError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, schema.ErrCodeNotFound, cerr.Code)
}

func TestServiceExecuteDirect(t *testing.T) {
	svc := newService(t)

	wf := builder.NewWorkflow("wf-direct", "direct").
		Description("single echo step run directly").
		Step("a", "echo").
		StaticArg("v", 7).
		Build()

	result, err := svc.Execute(context.Background(), wf, nil, engine.Options{})
	require.NoError(t, err)
	assert.True(t, result.Success, "error: %s", result.Error)
}

func TestServiceDeleteWorkflow(t *testing.T) {
	svc := newService(t)

	wf := builder.NewWorkflow("wf-del", "deletable").
		Description("workflow registered then deleted").
		Step("a", "echo").
		Build()
	_, err := svc.RegisterWorkflow(wf)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteWorkflow("wf-del"))
	assert.Error(t, svc.DeleteWorkflow("wf-del"))
}
