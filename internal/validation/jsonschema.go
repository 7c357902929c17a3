package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/composer/pkg/schema"
)

// workflowSchemaJSON is the JSON Schema for raw workflow documents.
// Embedded as a constant to avoid filesystem dependencies.
const workflowSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://composer.dev/schemas/workflow.json",
  "type": "object",
  "required": ["id", "name", "steps"],
  "properties": {
    "id": { "type": "string", "minLength": 1 },
    "name": { "type": "string", "minLength": 1 },
    "description": { "type": "string" },
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/step" }
    },
    "output_extraction": {
      "type": "array",
      "items": { "$ref": "#/$defs/binding" }
    },
    "timeout_ms": { "type": "integer", "minimum": 0 },
    "token_budget": { "type": "integer", "minimum": 0 },
    "created_by": { "type": "string" },
    "created_at": { "type": "string" },
    "metadata": { "type": "object" }
  },
  "additionalProperties": false,
  "$defs": {
    "step": {
      "type": "object",
      "required": ["id", "tool_name"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "tool_name": { "type": "string", "minLength": 1 },
        "depends_on": {
          "type": "array",
          "items": { "type": "string" }
        },
        "bindings": {
          "type": "array",
          "items": { "$ref": "#/$defs/binding" }
        },
        "static_args": { "type": "object" },
        "condition": { "type": "string" },
        "on_error": {
          "type": "string",
          "enum": ["abort", "skip", "retry", "fallback"]
        },
        "retry_count": { "type": "integer", "minimum": 0 },
        "fallback_value": {},
        "output_as": { "type": "string" }
      },
      "additionalProperties": false
    },
    "binding": {
      "type": "object",
      "required": ["source", "target"],
      "properties": {
        "source": { "type": "string", "minLength": 1 },
        "source_path": { "type": "string" },
        "target": { "type": "string", "minLength": 1 },
        "transform": {
          "type": "string",
          "enum": [
            "identity", "json_parse", "json_stringify", "split", "join",
            "flatten", "first", "last", "count", "map", "filter",
            "extract_property"
          ]
        },
        "transform_config": {
          "type": "object",
          "properties": {
            "expression": { "type": "string" },
            "property": { "type": "string" }
          },
          "additionalProperties": false
        }
      },
      "additionalProperties": false
    }
  }
}`

// SchemaValidator validates raw workflow documents against the embedded JSON
// Schema (Draft 2020-12) before they are decoded into typed definitions. It
// is safe for concurrent use.
type SchemaValidator struct {
	workflowSchema *jsonschema.Schema
}

// NewSchemaValidator compiles the embedded workflow schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(workflowSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal workflow schema: %w", err)
	}
	if err := c.AddResource("https://composer.dev/schemas/workflow.json", doc); err != nil {
		return nil, fmt.Errorf("add workflow schema resource: %w", err)
	}

	compiled, err := c.Compile("https://composer.dev/schemas/workflow.json")
	if err != nil {
		return nil, fmt.Errorf("compile workflow schema: %w", err)
	}

	return &SchemaValidator{workflowSchema: compiled}, nil
}

// ValidateDocument checks a raw JSON workflow document against the schema.
func (v *SchemaValidator) ValidateDocument(raw []byte) error {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "workflow document is not valid JSON").WithCause(err)
	}
	if err := v.workflowSchema.Validate(doc); err != nil {
		return toComposerError(err)
	}
	return nil
}

// ValidateWorkflow round-trips a typed workflow through JSON and checks it
// against the schema. Catches shape problems a hand-built definition may
// carry before the structural pipeline runs.
func (v *SchemaValidator) ValidateWorkflow(wf *schema.Workflow) error {
	if wf == nil {
		return schema.NewError(schema.ErrCodeValidation, "workflow is nil")
	}
	doc, err := toJSONValue(wf)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize workflow").WithCause(err)
	}
	if err := v.workflowSchema.Validate(doc); err != nil {
		return toComposerError(err)
	}
	return nil
}

// toJSONValue round-trips a Go value through JSON encoding so numbers become
// json.Number, which the jsonschema library requires.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toComposerError flattens a jsonschema.ValidationError tree into one error
// with per-violation detail.
func toComposerError(err error) *schema.ComposerError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}
	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}
	return schema.NewError(schema.ErrCodeValidation,
		fmt.Sprintf("workflow document failed schema validation with %d errors", len(violations))).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks the error tree and gathers leaf messages with their
// instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
