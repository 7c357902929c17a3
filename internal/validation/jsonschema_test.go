package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidatorAcceptsValidDocument(t *testing.T) {
	v, err := NewSchemaValidator()
	require.NoError(t, err)

	doc := []byte(`{
		"id": "wf-1",
		"name": "demo",
		"steps": [
			{
				"id": "a",
				"tool_name": "echo",
				"bindings": [
					{"source": "input", "source_path": "q", "target": "query"}
				]
			},
			{
				"id": "b",
				"tool_name": "echo",
				"depends_on": ["a"],
				"on_error": "retry",
				"retry_count": 2
			}
		]
	}`)

	assert.NoError(t, v.ValidateDocument(doc))
}

func TestSchemaValidatorRejectsBadDocuments(t *testing.T) {
	v, err := NewSchemaValidator()
	require.NoError(t, err)

	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"missing steps", `{"id": "wf", "name": "wf"}`},
		{"empty steps", `{"id": "wf", "name": "wf", "steps": []}`},
		{"step without tool", `{"id": "wf", "name": "wf", "steps": [{"id": "a"}]}`},
		{"bad error policy", `{"id": "wf", "name": "wf", "steps": [{"id": "a", "tool_name": "echo", "on_error": "explode"}]}`},
		{"bad transform", `{"id": "wf", "name": "wf", "steps": [{"id": "a", "tool_name": "echo", "bindings": [{"source": "input", "target": "x", "transform": "bogus"}]}]}`},
		{"unknown field", `{"id": "wf", "name": "wf", "steps": [{"id": "a", "tool_name": "echo", "mystery": 1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, v.ValidateDocument([]byte(tt.doc)))
		})
	}
}
