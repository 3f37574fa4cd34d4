package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gdplbb/internal/compiler"
	"github.com/roach88/gdplbb/internal/gdp"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid        bool                 `json:"valid"`
	Model        string               `json:"model,omitempty"`
	Hash         string               `json:"hash,omitempty"`
	Vars         int                  `json:"vars"`
	Constraints  int                  `json:"constraints"`
	Disjunctions []DisjunctionSummary `json:"disjunctions,omitempty"`
	Errors       []ValidationError    `json:"errors,omitempty"`
}

// DisjunctionSummary lists the disjuncts of one active disjunction.
type DisjunctionSummary struct {
	Name      string   `json:"name"`
	Disjuncts []string `json:"disjuncts"`
}

// ValidationError is one problem found in a model directory.
type ValidationError struct {
	Code      string `json:"code"`
	Component string `json:"component,omitempty"`
	Message   string `json:"message"`
	Line      int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <model-dir>",
		Short: "Validate a model without solving it",
		Long: `Load and compile the model in a directory and check that the
search engine can accept it: one active objective and exclusive
disjunctions only. No subproblem is solved.

Exit codes:
  0 - Model is valid
  1 - Model is well formed but invalid
  2 - Command error (directory not found, CUE does not build, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, modelDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	model, err := compiler.LoadModel(modelDir)
	if err != nil {
		var le *compiler.LoadError
		if errors.As(err, &le) && isDocumentError(le.Code) {
			return outputValidationErrors(formatter, ValidationResult{
				Errors: []ValidationError{loadValidationError(le)},
			})
		}
		return outputValidateError(formatter, errorCode(err), err.Error())
	}
	formatter.VerboseLog("Compiled model %s from %s", model.Name(), modelDir)

	result := ValidationResult{
		Model:       model.Name(),
		Hash:        model.Hash(),
		Vars:        len(model.Vars()),
		Constraints: len(model.Constraints()),
	}
	for _, name := range model.ActiveDisjunctions() {
		disjuncts, err := model.Disjuncts(name)
		if err != nil {
			return outputValidateError(formatter, errorCode(err), err.Error())
		}
		result.Disjunctions = append(result.Disjunctions, DisjunctionSummary{Name: name, Disjuncts: disjuncts})
	}

	if err := model.Validate(); err != nil {
		result.Errors = append(result.Errors, modelValidationError(err))
		return outputValidationErrors(formatter, result)
	}

	result.Valid = true
	return formatter.Success(result, func(w io.Writer) {
		writeValidationText(w, result)
	})
}

// isDocumentError reports whether a loader code describes a bad model
// document rather than a missing or unbuildable directory.
func isDocumentError(code string) bool {
	return strings.HasPrefix(code, "E1")
}

func loadValidationError(le *compiler.LoadError) ValidationError {
	ve := ValidationError{Code: le.Code, Message: le.Message}
	if le.Pos.IsValid() {
		ve.Line = le.Pos.Line()
	}
	var ce *compiler.CompileError
	if errors.As(le, &ce) {
		ve.Component = ce.Field
		ve.Message = ce.Message
	}
	return ve
}

func modelValidationError(err error) ValidationError {
	var me *gdp.ModelError
	if errors.As(err, &me) {
		return ValidationError{Code: string(me.Code), Component: me.Component, Message: me.Message}
	}
	return ValidationError{Code: compiler.ErrCodeGeneric, Message: err.Error()}
}

func writeValidationText(w io.Writer, r ValidationResult) {
	fmt.Fprintf(w, "✓ Model %s is valid\n", r.Model)
	fmt.Fprintf(w, "  Hash: %s\n", r.Hash)
	fmt.Fprintf(w, "  Variables: %d, constraints: %d, disjunctions: %d\n", r.Vars, r.Constraints, len(r.Disjunctions))
	for _, d := range r.Disjunctions {
		fmt.Fprintf(w, "  %s: %s\n", d.Name, strings.Join(d.Disjuncts, " | "))
	}
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Load errors are command-level errors (exit code 2)
	return reportedExit(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputValidationErrors outputs the problems of a well-formed but
// invalid model.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}
		// Validation failures = exit code 1
		return reportedExit(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)), nil)
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		if err.Component != "" {
			fmt.Fprintf(formatter.Writer, "  %s [%s]: %s\n\n", err.Code, err.Component, err.Message)
			continue
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1
	return reportedExit(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)), nil)
}
