// Package minlp defines the contract between the branch-and-bound engine and
// the MINLP subsolver it delegates resolved, disjunction-free models to.
//
// Solvers are plain values handed to the engine; there is no process-wide
// registry. New builds one of the bundled solvers by name for the CLI.
package minlp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/roach88/gdplbb/internal/gdp"
)

// Status is the termination status of a subsolve.
type Status int

const (
	// StatusOptimal means an optimal assignment was found and loaded.
	StatusOptimal Status = iota + 1
	// StatusInfeasible means no assignment satisfies the constraints.
	StatusInfeasible
	// StatusError covers every other outcome: limits, timeouts, failures.
	StatusError
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseStatus parses a status name produced by String.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "optimal":
		return StatusOptimal, nil
	case "infeasible":
		return StatusInfeasible, nil
	case "error":
		return StatusError, nil
	default:
		return 0, fmt.Errorf("unknown status %q", s)
	}
}

// Result is the outcome of one subsolve.
// Objective and Values are meaningful only when Status is StatusOptimal.
type Result struct {
	Status    Status
	Objective float64
	Values    map[string]float64
	Message   string

	// Evaluated counts candidate points or iterations, for diagnostics.
	Evaluated int64
}

// Solver solves a resolved (disjunction-free) model.
//
// On StatusOptimal the solver loads the optimal assignment into the model it
// was given. A non-nil error signals a failure to run at all; callers fold it
// into StatusError.
type Solver interface {
	Name() string
	Solve(ctx context.Context, m *gdp.Model) (Result, error)
}

// Availability is implemented by solvers that can report they cannot run
// (missing binary, licence, ...).
type Availability interface {
	Available() error
}

// Available reports whether s can be used. Solvers that do not implement
// Availability are assumed available.
func Available(s Solver) error {
	if s == nil {
		return errors.New("no subsolver configured")
	}
	if a, ok := s.(Availability); ok {
		return a.Available()
	}
	return nil
}

// Bound maps a subsolve result to a priority key: the objective when optimal,
// the sense's unbounded sentinel otherwise.
func Bound(r Result, sense gdp.Sense) float64 {
	if r.Status == StatusOptimal {
		return r.Objective
	}
	return sense.Worst()
}

// ErrUnknownSolver is returned by New for unrecognised names.
var ErrUnknownSolver = errors.New("unknown solver")

// constructors maps solver names to constructors. It is read-only; adding a
// solver means adding a case here.
var constructors = map[string]func(Options) Solver{
	"enum": func(o Options) Solver { return NewEnumerator(o) },
}

// Names returns the names accepted by New, sorted.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for n := range constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New builds a bundled solver by name. A positive opts.Deadline wraps it
// with WithDeadline.
func New(name string, opts Options) (Solver, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w %q: must be one of %v", ErrUnknownSolver, name, Names())
	}
	s := ctor(opts)
	if opts.Deadline > 0 {
		s = WithDeadline(s, opts.Deadline)
	}
	return s, nil
}

// deadlineSolver bounds every subsolve of the wrapped solver.
type deadlineSolver struct {
	inner    Solver
	deadline time.Duration
}

// WithDeadline wraps s so each Solve runs under its own timeout. A subsolve
// that runs out of time reports StatusError instead of failing the caller.
func WithDeadline(s Solver, d time.Duration) Solver {
	return &deadlineSolver{inner: s, deadline: d}
}

func (d *deadlineSolver) Name() string {
	return d.inner.Name()
}

func (d *deadlineSolver) Available() error {
	return Available(d.inner)
}

func (d *deadlineSolver) Solve(ctx context.Context, m *gdp.Model) (Result, error) {
	subCtx, cancel := context.WithTimeout(ctx, d.deadline)
	defer cancel()

	res, err := d.inner.Solve(subCtx, m)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return Result{
			Status:    StatusError,
			Message:   fmt.Sprintf("subsolve deadline of %s exceeded", d.deadline),
			Evaluated: res.Evaluated,
		}, nil
	}
	return res, err
}
