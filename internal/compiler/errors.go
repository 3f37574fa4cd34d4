package compiler

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError represents a compilation error with source position.
//
// Field is the dotted path of the offending component inside the model
// document, e.g. "disjunction.unit.disjunct.small.constraint.lo.rhs".
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos

	// Err is the underlying *gdp.ModelError when the document was well
	// formed but the model builder refused it.
	Err error
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying model error, if any.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// modelError attaches a document position to a model builder error.
func modelError(field string, err error, pos token.Pos) *CompileError {
	return &CompileError{
		Field:   field,
		Message: err.Error(),
		Pos:     pos,
		Err:     err,
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
