package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeConfig        = "CONFIG_ERROR"
	ErrCodeMigration     = "MIGRATION_ERROR"
	ErrCodeResolution    = "RESOLUTION_ERROR"
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeCycleDetected = "CYCLE_DETECTED"
	ErrCodeExecution     = "EXECUTION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeStore         = "STORE_ERROR"
)

// EngineError is the structured error type for all engine operations.
// Path, when set, names the offending location in the config document
// (e.g. "playlists.main.steps[2].rule.frequency").
type EngineError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Path    string         `json:"path,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *EngineError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// NewError creates a new EngineError.
func NewError(code, message string) *EngineError {
	return &EngineError{Code: code, Message: message}
}

// NewErrorf creates a new EngineError with a formatted message.
func NewErrorf(code, format string, args ...any) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithPath attaches a config document path to the error.
func (e *EngineError) WithPath(path string) *EngineError {
	e.Path = path
	return e
}

// WithCause attaches an underlying cause.
func (e *EngineError) WithCause(err error) *EngineError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *EngineError) WithDetails(details map[string]any) *EngineError {
	e.Details = details
	return e
}
