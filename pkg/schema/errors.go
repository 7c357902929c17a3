package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeExecution          = "EXECUTION_ERROR"
	ErrCodeTimeout            = "TIMEOUT_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeCircularDependency = "CIRCULAR_DEPENDENCY"
	ErrCodeSelfDependency     = "SELF_DEPENDENCY"
	ErrCodeToolNotFound       = "TOOL_NOT_FOUND"
	ErrCodeDependencyNotFound = "DEPENDENCY_NOT_FOUND"
	ErrCodeStepFailed         = "STEP_FAILED"
	ErrCodeCancelled          = "CANCELLED"
	ErrCodeRetryExhausted     = "RETRY_EXHAUSTED"
	ErrCodeBudgetExceeded     = "TOKEN_BUDGET_EXCEEDED"
)

// ComposerError is the structured error type for all composer operations.
type ComposerError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	StepID  string         `json:"step_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *ComposerError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("[%s] step %s: %s", e.Code, e.StepID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ComposerError) Unwrap() error {
	return e.Cause
}

// NewError creates a new ComposerError.
func NewError(code, message string) *ComposerError {
	return &ComposerError{Code: code, Message: message}
}

// NewErrorf creates a new ComposerError with a formatted message.
func NewErrorf(code, format string, args ...any) *ComposerError {
	return &ComposerError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithStep attaches a step ID to the error.
func (e *ComposerError) WithStep(stepID string) *ComposerError {
	e.StepID = stepID
	return e
}

// WithCause attaches an underlying cause.
func (e *ComposerError) WithCause(err error) *ComposerError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *ComposerError) WithDetails(details map[string]any) *ComposerError {
	e.Details = details
	return e
}
