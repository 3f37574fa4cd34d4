package harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/gdplbb/internal/compiler"
	"github.com/roach88/gdplbb/internal/engine"
	"github.com/roach88/gdplbb/internal/gdp"
	"github.com/roach88/gdplbb/internal/minlp"
	"github.com/roach88/gdplbb/internal/store"
	"github.com/roach88/gdplbb/internal/testutil"
)

// Harness is the test execution engine.
// It runs a scenario against the real search engine with a fixed run id
// and records the trace in a scratch store.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	runID  string
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// The run id is the scenario name, so traces are reproducible.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load and compile the CUE model
// 3. Build the solver and engine from the scenario config
// 4. Solve, recording into the store
// 5. Read the run, trace and solution back and check expectations
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	model, err := compiler.LoadModel(scenario.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}

	eng, err := newEngine(scenario, st)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		store:  st,
		engine: eng,
		runID:  scenario.Name,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	result, err := h.solve(ctx, model)
	if err != nil {
		return nil, err
	}

	for _, msg := range Check(result, &scenario.Expect) {
		result.AddError(msg)
	}
	return result, nil
}

// newEngine builds the solver and engine a scenario asks for.
func newEngine(s *Scenario, rec engine.Recorder) (*engine.Engine, error) {
	name := s.Solver.Name
	if name == "" {
		name = "enum"
	}
	solver, err := minlp.New(name, minlp.Options{
		Step:      s.Solver.Step,
		Tolerance: s.Solver.Tolerance,
		MaxPoints: s.Solver.MaxPoints,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create solver: %w", err)
	}

	opts := []engine.EngineOption{
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithRecorder(rec),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(s.Name)),
		engine.WithParallelism(s.Engine.Parallelism),
		engine.WithMaxNodes(s.Engine.MaxNodes),
		engine.WithPruneInfeasible(s.Engine.PruneInfeasible),
	}
	if s.Engine.Sense != "" {
		sense, err := gdp.ParseSense(s.Engine.Sense)
		if err != nil {
			return nil, fmt.Errorf("engine.sense: %w", err)
		}
		opts = append(opts, engine.WithSense(sense))
	}
	return engine.New(solver, opts...), nil
}

// solve runs the engine and rebuilds the outcome from what the store
// recorded. Engine and model errors are outcomes, not harness failures.
func (h *Harness) solve(ctx context.Context, model *gdp.Model) (*Result, error) {
	result := NewResult()
	result.RunID = h.runID
	result.Disjunctions = model.ActiveDisjunctions()

	_, solveErr := h.engine.Solve(ctx, model)
	result.ErrorCode = ErrorCode(solveErr)

	run, err := h.store.ReadRun(ctx, h.runID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Rejected before the search started: validation or solver availability.
		result.Status = StatusError
		if solveErr == nil {
			return nil, fmt.Errorf("run %q was not recorded", h.runID)
		}
		h.logger.Info("run rejected", "run", h.runID, "error", solveErr)
		return result, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read run: %w", err)
	}

	result.Status = run.Status
	result.Stats = StatsMap(run.Stats)

	events, err := h.store.ReadNodes(ctx, h.runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	for _, ev := range events {
		result.AddTrace(ev)
	}

	if run.Status == StatusOptimal {
		sol, err := h.store.ReadSolution(ctx, h.runID)
		if err != nil {
			return nil, fmt.Errorf("failed to read solution: %w", err)
		}
		obj := sol.Objective
		result.Objective = &obj
		result.Selection = sol.Selection
		result.Values = sol.Values
	}

	h.logger.Info("scenario solved",
		"run", h.runID,
		"status", result.Status,
		"events", len(result.Trace),
	)
	return result, nil
}

// ErrorCode returns the code of an engine or model error, or "" for nil
// and uncoded errors.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var se *engine.SearchError
	if errors.As(err, &se) {
		return string(se.Code)
	}
	var me *gdp.ModelError
	if errors.As(err, &me) {
		return string(me.Code)
	}
	return ""
}
