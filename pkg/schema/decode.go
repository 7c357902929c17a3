package schema

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DecodeJSON parses a workflow definition from JSON bytes.
func DecodeJSON(data []byte) (*Workflow, error) {
	var wf Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, NewErrorf(ErrCodeValidation, "decode workflow JSON: %s", err.Error()).WithCause(err)
	}
	return &wf, nil
}

// DecodeYAML parses a workflow definition from YAML bytes. The document is
// decoded generically and re-encoded as JSON so the struct json tags apply.
func DecodeYAML(data []byte) (*Workflow, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, NewErrorf(ErrCodeValidation, "decode workflow YAML: %s", err.Error()).WithCause(err)
	}

	doc = normalizeYAML(doc)
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, NewErrorf(ErrCodeValidation, "re-encode workflow YAML: %s", err.Error()).WithCause(err)
	}
	return DecodeJSON(raw)
}

// normalizeYAML converts map[any]any keys (produced by older YAML documents
// with non-scalar keys) into string keys so json.Marshal accepts the value.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return v
	}
}
