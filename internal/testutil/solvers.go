package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/roach88/gdplbb/internal/gdp"
	"github.com/roach88/gdplbb/internal/minlp"
)

// SolverFunc adapts a function to minlp.Solver.
type SolverFunc func(ctx context.Context, m *gdp.Model) (minlp.Result, error)

// Name implements minlp.Solver.
func (f SolverFunc) Name() string { return "func" }

// Solve implements minlp.Solver.
func (f SolverFunc) Solve(ctx context.Context, m *gdp.Model) (minlp.Result, error) {
	return f(ctx, m)
}

// CountingSolver wraps a solver and records how it was called.
//
// Thread-safety: safe for concurrent use.
type CountingSolver struct {
	Inner minlp.Solver

	calls    atomic.Int64
	mu       sync.Mutex
	inFlight int
	peak     int
}

// NewCountingSolver wraps inner.
func NewCountingSolver(inner minlp.Solver) *CountingSolver {
	return &CountingSolver{Inner: inner}
}

// Name implements minlp.Solver.
func (c *CountingSolver) Name() string { return c.Inner.Name() }

// Solve implements minlp.Solver.
func (c *CountingSolver) Solve(ctx context.Context, m *gdp.Model) (minlp.Result, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.inFlight++
	if c.inFlight > c.peak {
		c.peak = c.inFlight
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()
	return c.Inner.Solve(ctx, m)
}

// Calls returns the number of Solve calls so far.
func (c *CountingSolver) Calls() int64 {
	return c.calls.Load()
}

// Peak returns the largest number of concurrent Solve calls observed.
func (c *CountingSolver) Peak() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peak
}

// UnavailableSolver never runs.
type UnavailableSolver struct {
	Reason string
}

// Name implements minlp.Solver.
func (u UnavailableSolver) Name() string { return "unavailable" }

// Available implements minlp.Availability.
func (u UnavailableSolver) Available() error {
	return errors.New(u.Reason)
}

// Solve implements minlp.Solver.
func (u UnavailableSolver) Solve(context.Context, *gdp.Model) (minlp.Result, error) {
	return minlp.Result{Status: minlp.StatusError, Message: u.Reason}, errors.New(u.Reason)
}

// Enumerator returns the reference solver with default options.
func Enumerator() minlp.Solver {
	return minlp.NewEnumerator(minlp.Options{})
}
