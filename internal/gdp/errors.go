package gdp

import (
	"errors"
	"fmt"
)

// ModelError represents a structural problem with a model or a rejected
// mutation of one.
type ModelError struct {
	// Code identifies the error category.
	Code ModelErrorCode

	// Component names the offending variable, constraint, objective,
	// disjunction or disjunct, when there is one.
	Component string

	// Message is a human-readable description.
	Message string
}

// ModelErrorCode categorizes model errors.
type ModelErrorCode string

const (
	// ErrCodeNoObjective indicates the model has no active objective.
	ErrCodeNoObjective ModelErrorCode = "NO_OBJECTIVE"

	// ErrCodeMultipleObjectives indicates more than one active objective.
	ErrCodeMultipleObjectives ModelErrorCode = "MULTIPLE_OBJECTIVES"

	// ErrCodeNonExclusiveDisjunction indicates an active disjunction that is not xor.
	ErrCodeNonExclusiveDisjunction ModelErrorCode = "NON_EXCLUSIVE_DISJUNCTION"

	// ErrCodeDuplicateName indicates a component name was declared twice.
	ErrCodeDuplicateName ModelErrorCode = "DUPLICATE_NAME"

	// ErrCodeInvalidName indicates an empty component name.
	ErrCodeInvalidName ModelErrorCode = "INVALID_NAME"

	// ErrCodeUnknownComponent indicates a lookup of an undeclared component.
	ErrCodeUnknownComponent ModelErrorCode = "UNKNOWN_COMPONENT"

	// ErrCodeUnknownVariable indicates an expression references an undeclared variable.
	ErrCodeUnknownVariable ModelErrorCode = "UNKNOWN_VARIABLE"

	// ErrCodeInvalidBounds indicates lower > upper or non-integral binary bounds.
	ErrCodeInvalidBounds ModelErrorCode = "INVALID_BOUNDS"

	// ErrCodeInvalidIndicator indicates an indicator value other than 0 or 1.
	ErrCodeInvalidIndicator ModelErrorCode = "INVALID_INDICATOR"

	// ErrCodeFixedIndicator indicates an attempt to change a fixed indicator.
	ErrCodeFixedIndicator ModelErrorCode = "FIXED_INDICATOR"
)

// Error implements the error interface.
func (e *ModelError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s: %s (component=%s)", e.Code, e.Message, e.Component)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newModelError(code ModelErrorCode, component, format string, args ...any) *ModelError {
	return &ModelError{
		Code:      code,
		Component: component,
		Message:   fmt.Sprintf(format, args...),
	}
}

// HasCode reports whether err is a ModelError with the given code.
// Uses errors.As to handle wrapped errors.
func HasCode(err error, code ModelErrorCode) bool {
	var me *ModelError
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}

// IsNoObjective returns true if the model has no active objective.
func IsNoObjective(err error) bool {
	return HasCode(err, ErrCodeNoObjective)
}

// IsMultipleObjectives returns true if the model has several active objectives.
func IsMultipleObjectives(err error) bool {
	return HasCode(err, ErrCodeMultipleObjectives)
}

// IsNonExclusiveDisjunction returns true if an active disjunction is not xor.
func IsNonExclusiveDisjunction(err error) bool {
	return HasCode(err, ErrCodeNonExclusiveDisjunction)
}
