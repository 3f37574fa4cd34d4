package engine

import (
	"errors"
	"fmt"
)

// SearchError represents a search that ended without an accepted solution.
//
// Search errors include:
//   - No feasible solution: the queue drained without a feasible terminal node
//   - Node limit: the node budget ran out before a terminal node was popped
//   - Final solve failed: the write-back re-solve of the caller's model failed
//   - Cancelled: the context was cancelled mid-search
//
// Model validation failures are not SearchErrors; they surface as the
// *gdp.ModelError returned by Validate, wrapped.
type SearchError struct {
	// Code identifies the error category.
	Code SearchErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run.
	RunID string

	// Stats is the search effort spent before the error.
	Stats Stats

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// SearchErrorCode categorizes search errors.
type SearchErrorCode string

const (
	// ErrCodeNoFeasibleSolution indicates every combination of disjunct
	// selections is infeasible.
	ErrCodeNoFeasibleSolution SearchErrorCode = "NO_FEASIBLE_SOLUTION"

	// ErrCodeNodeLimit indicates the search exceeded the node budget.
	ErrCodeNodeLimit SearchErrorCode = "NODE_LIMIT"

	// ErrCodeFinalSolveFailed indicates the re-solve of the caller's model
	// after write-back did not report optimal.
	ErrCodeFinalSolveFailed SearchErrorCode = "FINAL_SOLVE_FAILED"

	// ErrCodeCancelled indicates the context was cancelled.
	ErrCodeCancelled SearchErrorCode = "CANCELLED"

	// ErrCodeSolverUnavailable indicates the subsolver cannot run.
	ErrCodeSolverUnavailable SearchErrorCode = "SOLVER_UNAVAILABLE"
)

// Error implements the error interface.
func (e *SearchError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RunID != "" {
		msg = fmt.Sprintf("%s (run=%s)", msg, e.RunID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *SearchError) Unwrap() error {
	return e.Err
}

// hasCode reports whether err is a SearchError with the given code.
func hasCode(err error, code SearchErrorCode) bool {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsNoFeasibleSolution returns true if the search proved infeasibility.
// Uses errors.As to handle wrapped errors.
func IsNoFeasibleSolution(err error) bool {
	return hasCode(err, ErrCodeNoFeasibleSolution)
}

// IsNodeLimit returns true if the search ran out of node budget.
func IsNodeLimit(err error) bool {
	return hasCode(err, ErrCodeNodeLimit)
}

// IsCancelled returns true if the search was cancelled.
func IsCancelled(err error) bool {
	return hasCode(err, ErrCodeCancelled)
}

// NewNoFeasibleSolutionError creates a SearchError for a drained queue.
func NewNoFeasibleSolutionError(runID string, stats Stats) *SearchError {
	return &SearchError{
		Code:    ErrCodeNoFeasibleSolution,
		Message: "no combination of disjunct selections is feasible",
		RunID:   runID,
		Stats:   stats,
		Details: map[string]string{
			"nodes_created":  fmt.Sprintf("%d", stats.NodesCreated),
			"nodes_expanded": fmt.Sprintf("%d", stats.NodesExpanded),
		},
	}
}

// NewUnsatisfiableLogicError creates the no-solution error for a model whose
// fixed indicators contradict its xor disjunctions. No subproblem was solved.
func NewUnsatisfiableLogicError(runID string, stats Stats) *SearchError {
	se := NewNoFeasibleSolutionError(runID, stats)
	se.Message = "fixed indicators leave no valid disjunct selection"
	se.Details["reason"] = "logic"
	return se
}

// NewNodeLimitError creates a SearchError for an exhausted node budget.
func NewNodeLimitError(runID string, created, limit int, stats Stats) *SearchError {
	return &SearchError{
		Code:    ErrCodeNodeLimit,
		Message: fmt.Sprintf("search exceeded node budget (%d > %d)", created, limit),
		RunID:   runID,
		Stats:   stats,
		Details: map[string]string{
			"nodes":     fmt.Sprintf("%d", created),
			"max_nodes": fmt.Sprintf("%d", limit),
		},
	}
}
