package schema

// Workflow is the declarative DAG of tool-invocation steps.
// Immutable once execution starts.
type Workflow struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	Steps            []Step         `json:"steps"`
	OutputExtraction []Binding      `json:"output_extraction,omitempty"`
	TimeoutMs        int64          `json:"timeout_ms,omitempty"`
	TokenBudget      int            `json:"token_budget,omitempty"`
	CreatedBy        string         `json:"created_by,omitempty"`
	CreatedAt        string         `json:"created_at,omitempty"` // RFC3339
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Step is one tool invocation node in a workflow.
type Step struct {
	ID            string         `json:"id"`
	ToolName      string         `json:"tool_name"`
	DependsOn     []string       `json:"depends_on,omitempty"`
	Bindings      []Binding      `json:"bindings,omitempty"`
	StaticArgs    map[string]any `json:"static_args,omitempty"`
	Condition     string         `json:"condition,omitempty"`
	OnError       ErrorPolicy    `json:"on_error,omitempty"`       // abort (default) | skip | retry | fallback
	RetryCount    int            `json:"retry_count,omitempty"`    // used iff on_error=retry (default 3)
	FallbackValue any            `json:"fallback_value,omitempty"` // used iff on_error=fallback
	OutputAs      string         `json:"output_as,omitempty"`      // variable name for the output (default: step id)
}

// ErrorPolicy enumerates step failure policies.
type ErrorPolicy string

const (
	ErrorPolicyAbort    ErrorPolicy = "abort"
	ErrorPolicySkip     ErrorPolicy = "skip"
	ErrorPolicyRetry    ErrorPolicy = "retry"
	ErrorPolicyFallback ErrorPolicy = "fallback"
)

// ValidErrorPolicies is the set of recognized step failure policies.
// The empty policy defaults to abort at execution time.
var ValidErrorPolicies = map[ErrorPolicy]bool{
	ErrorPolicyAbort:    true,
	ErrorPolicySkip:     true,
	ErrorPolicyRetry:    true,
	ErrorPolicyFallback: true,
}

// DefaultRetryCount is used when on_error=retry and retry_count is not positive.
const DefaultRetryCount = 3

// Binding maps a path inside one step's output (or the workflow input)
// to an argument name of a later step.
type Binding struct {
	Source          string           `json:"source"`      // "input" or a step id
	SourcePath      string           `json:"source_path"` // dotted/bracket path ("a.b[2].c"); ""/"."/"input" = whole value
	Target          string           `json:"target"`      // argument name
	Transform       TransformKind    `json:"transform,omitempty"`
	TransformConfig *TransformConfig `json:"transform_config,omitempty"`
}

// BindingSourceInput is the reserved binding source referring to the workflow input.
const BindingSourceInput = "input"

// TransformKind enumerates the typed value transforms applicable to a binding.
type TransformKind string

const (
	TransformIdentity        TransformKind = "identity"
	TransformJSONParse       TransformKind = "json_parse"
	TransformJSONStringify   TransformKind = "json_stringify"
	TransformSplit           TransformKind = "split"
	TransformJoin            TransformKind = "join"
	TransformFlatten         TransformKind = "flatten"
	TransformFirst           TransformKind = "first"
	TransformLast            TransformKind = "last"
	TransformCount           TransformKind = "count"
	TransformMap             TransformKind = "map"
	TransformFilter          TransformKind = "filter"
	TransformExtractProperty TransformKind = "extract_property"
)

// TransformConfig configures the map, filter, and extract_property transforms.
// map/filter evaluate Expression per element with "item" and "index" in scope;
// extract_property extracts Property from each element (or from the value itself
// when it is not an array). Without a config these transforms pass through.
type TransformConfig struct {
	Expression string `json:"expression,omitempty"`
	Property   string `json:"property,omitempty"`
}
