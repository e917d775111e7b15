package orchestration

import "fmt"

// DefinitionErrorCode represents specific structural defects in a submitted
// orchestration definition.
type DefinitionErrorCode string

const (
	DefinitionErrorEmpty            DefinitionErrorCode = "empty_definition"
	DefinitionErrorDuplicateStepID  DefinitionErrorCode = "duplicate_step_id"
	DefinitionErrorDuplicateVar     DefinitionErrorCode = "duplicate_variable"
	DefinitionErrorUnknownStepRef   DefinitionErrorCode = "unknown_step_reference"
	DefinitionErrorInvalidCondition DefinitionErrorCode = "invalid_condition"
	DefinitionErrorInvalidHook      DefinitionErrorCode = "invalid_hook"
	DefinitionErrorInvalidAction    DefinitionErrorCode = "invalid_action"
	DefinitionErrorInvalidAssertion DefinitionErrorCode = "invalid_assertion"
	DefinitionErrorInvalidStep      DefinitionErrorCode = "invalid_step"
	DefinitionErrorDecodeFailed     DefinitionErrorCode = "decode_failed"
)

// DefinitionError represents a structural invariant violation detected at
// submission time. A definition that produces one never becomes a Run.
type DefinitionError struct {
	Code    DefinitionErrorCode `json:"code"`
	Message string              `json:"message"`
	StepID  string              `json:"stepId,omitempty"`
	Cause   error               `json:"-"`
}

// Error implements the error interface.
func (e *DefinitionError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("%s [step: %s]: %s", e.Code, e.StepID, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface.
func (e *DefinitionError) Unwrap() error {
	return e.Cause
}
