package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gdplbb/internal/gdp"
	"github.com/roach88/gdplbb/internal/minlp"
	"github.com/roach88/gdplbb/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(solver minlp.Solver, opts ...EngineOption) (*Engine, *MemoryRecorder) {
	rec := &MemoryRecorder{}
	base := []EngineOption{
		WithLogger(quietLogger()),
		WithRecorder(rec),
		WithRunIDGenerator(NewFixedGenerator("run-1", "run-2", "run-3")),
	}
	return New(solver, append(base, opts...)...), rec
}

func eventSeqs(events []NodeEvent) []int64 {
	seqs := make([]int64, len(events))
	for i, ev := range events {
		seqs[i] = ev.Seq
	}
	return seqs
}

// bruteForce solves every combination of disjunct selections independently
// and returns the best objective.
func bruteForce(t *testing.T, m *gdp.Model) float64 {
	t.Helper()
	obj, err := m.ActiveObjective()
	require.NoError(t, err)
	solver := testutil.Enumerator()

	best := obj.Sense.Worst()
	var walk func(i int, c *gdp.Model)
	names := m.ActiveDisjunctions()
	walk = func(i int, c *gdp.Model) {
		if i == len(names) {
			resolved, err := c.Resolve()
			require.NoError(t, err)
			res, err := solver.Solve(context.Background(), resolved)
			require.NoError(t, err)
			if v := minlp.Bound(res, obj.Sense); obj.Sense.Better(v, best) {
				best = v
			}
			return
		}
		disjuncts, err := c.Disjuncts(names[i])
		require.NoError(t, err)
		for _, dj := range disjuncts {
			next := c.Clone()
			require.NoError(t, next.Select(names[i], dj))
			walk(i+1, next)
		}
	}
	walk(0, m)
	return best
}

func TestEngine_Solve_TwoUnits(t *testing.T) {
	e, rec := newTestEngine(testutil.Enumerator())
	m := testutil.TwoUnits()

	res, err := e.Solve(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, minlp.StatusOptimal, res.Status)
	assert.Equal(t, testutil.TwoUnitsOptimum, res.Objective)
	assert.Equal(t, map[string]string{"unit": "large", "route": "a"}, res.Selection)
	assert.Equal(t, map[string]float64{"x": 1, "y": 2}, res.Values)

	assert.Equal(t, Stats{
		NodesCreated:   7,
		NodesExpanded:  3,
		Pushes:         7,
		TerminalPushes: 4,
		Subsolves:      8,
		MaxQueueLen:    4,
	}, res.Stats)

	// Root, then unit (small ties large at 4 and was created first), then
	// large, then large+a is accepted.
	assert.Equal(t, []int64{1, 2, 3}, eventSeqs(rec.EventsOf(NodeExpanded)))
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7}, eventSeqs(rec.EventsOf(NodeCreated)))
	accepted := rec.EventsOf(NodeAccepted)
	require.Len(t, accepted, 1)
	assert.Equal(t, int64(6), accepted[0].Seq)
	assert.Equal(t, 4.0, accepted[0].Bound)

	require.Len(t, rec.Outcomes, 1)
	assert.Equal(t, "optimal", rec.Outcomes[0].Status)
	assert.Equal(t, 4.0, rec.Outcomes[0].Objective)
}

func TestEngine_Solve_WritesBackIntoCallerModel(t *testing.T) {
	e, _ := newTestEngine(testutil.Enumerator())
	m := testutil.TwoUnits()

	res, err := e.Solve(context.Background(), m)
	require.NoError(t, err)

	assert.Same(t, m, res.Model)
	assert.False(t, m.HasDisjunctions(), "caller model is resolved in place")
	assert.Equal(t, map[string]string{"unit": "large", "route": "a"}, m.Selection())

	v, err := m.ObjectiveValue()
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)
	assert.True(t, m.Feasible(m.Values(), 1e-9))

	// Resolving the solved model again changes nothing.
	again, err := m.Resolve()
	require.NoError(t, err)
	assert.Equal(t, m.Hash(), again.Hash())
}

func TestEngine_Solve_MatchesBruteForce(t *testing.T) {
	tests := []struct {
		name  string
		model func() *gdp.Model
	}{
		{"two units", testutil.TwoUnits},
		{"capacity", testutil.Capacity},
		{"chain 2x3", func() *gdp.Model { return testutil.Chain(2, 3) }},
		{"chain 3x2", func() *gdp.Model { return testutil.Chain(3, 2) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := bruteForce(t, tt.model())

			e, _ := newTestEngine(testutil.Enumerator())
			res, err := e.Solve(context.Background(), tt.model())
			require.NoError(t, err)
			assert.Equal(t, want, res.Objective)
		})
	}
}

func TestEngine_Solve_BoundsAreMonotone(t *testing.T) {
	e, rec := newTestEngine(testutil.Enumerator())
	_, err := e.Solve(context.Background(), testutil.TwoUnits())
	require.NoError(t, err)

	bounds := map[int64]float64{}
	for _, ev := range rec.EventsOf(NodeCreated) {
		bounds[ev.Seq] = ev.Bound
		if ev.ParentSeq == 0 {
			continue
		}
		parent, ok := bounds[ev.ParentSeq]
		require.True(t, ok, "parent %d pushed before child %d", ev.ParentSeq, ev.Seq)
		assert.GreaterOrEqual(t, ev.Bound, parent, "child %d improves on parent %d", ev.Seq, ev.ParentSeq)
	}
}

func TestEngine_Solve_PushCounts(t *testing.T) {
	// Chain(n, k) has k^n terminal combinations and at most
	// 1 + k + k^2 + ... + k^n nodes.
	tests := []struct {
		n, k int
	}{
		{1, 3}, {2, 2}, {2, 3}, {3, 2},
	}

	for _, tt := range tests {
		e, _ := newTestEngine(testutil.Enumerator())
		res, err := e.Solve(context.Background(), testutil.Chain(tt.n, tt.k))
		require.NoError(t, err)

		terminal, total, level := 1, 1, 1
		for i := 0; i < tt.n; i++ {
			level *= tt.k
			total += level
			terminal = level
		}
		assert.LessOrEqual(t, res.Stats.TerminalPushes, terminal)
		assert.LessOrEqual(t, res.Stats.Pushes, total)
		assert.Equal(t, 0.0, res.Objective)

		// Every bound ties at 0 along the first-disjunct path, so the search
		// dives straight down it.
		assert.Equal(t, 1+tt.n*tt.k, res.Stats.Pushes)
		assert.Equal(t, tt.n, res.Stats.NodesExpanded)
	}
}

func TestEngine_Solve_Maximize(t *testing.T) {
	e, rec := newTestEngine(testutil.Enumerator())

	res, err := e.Solve(context.Background(), testutil.Capacity())
	require.NoError(t, err)

	assert.Equal(t, 3.0, res.Objective)
	assert.Equal(t, map[string]string{"cap": "high"}, res.Selection)
	require.Len(t, rec.Runs, 1)
	assert.Equal(t, gdp.Maximize, rec.Runs[0].Sense, "sense follows the active objective")
}

func TestEngine_Solve_WithSenseOverridesQueueOrder(t *testing.T) {
	e, rec := newTestEngine(testutil.Enumerator(), WithSense(gdp.Minimize))

	res, err := e.Solve(context.Background(), testutil.Capacity())
	require.NoError(t, err)

	// The queue pops the smallest bound first; the final re-solve still
	// maximises within the accepted selection.
	assert.Equal(t, map[string]string{"cap": "low"}, res.Selection)
	assert.Equal(t, 1.0, res.Objective)
	assert.Equal(t, gdp.Minimize, rec.Runs[0].Sense)
}

func TestEngine_Solve_ValidationRejects(t *testing.T) {
	nonXor := gdp.New("non_xor")
	require.NoError(t, nonXor.AddVar(gdp.Var{Name: "x", Lower: 0, Upper: 1}))
	require.NoError(t, nonXor.AddObjective("f", gdp.Expr{}.Plus(1, "x"), gdp.Minimize))
	require.NoError(t, nonXor.AddDisjunction("d", false, gdp.Disjunct{Name: "a"}, gdp.Disjunct{Name: "b"}))

	noObjective := gdp.New("no_objective")
	require.NoError(t, noObjective.AddVar(gdp.Var{Name: "x", Lower: 0, Upper: 1}))

	twoObjectives := testutil.Capacity()
	require.NoError(t, twoObjectives.AddObjective("g", gdp.Constant(1), gdp.Minimize))

	tests := []struct {
		name  string
		model *gdp.Model
		check func(error) bool
	}{
		{"non-exclusive disjunction", nonXor, gdp.IsNonExclusiveDisjunction},
		{"no objective", noObjective, gdp.IsNoObjective},
		{"multiple objectives", twoObjectives, gdp.IsMultipleObjectives},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			solver := testutil.NewCountingSolver(testutil.Enumerator())
			e, rec := newTestEngine(solver)

			_, err := e.Solve(context.Background(), tt.model)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.Equal(t, int64(0), solver.Calls(), "validation happens before any subsolve")
			assert.Empty(t, rec.Runs, "no run is recorded")
		})
	}
}

func TestEngine_Solve_NoFeasibleSolution(t *testing.T) {
	e, rec := newTestEngine(testutil.Enumerator())
	m := testutil.Infeasible()
	before := m.Hash()

	res, err := e.Solve(context.Background(), m)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsNoFeasibleSolution(err))

	var se *SearchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "run-1", se.RunID)
	assert.Equal(t, 3, se.Stats.Pushes)
	assert.Equal(t, 2, se.Stats.Pruned, "sentinel terminals are never accepted")
	assert.Equal(t, 2, se.Stats.FailedSubsolves)

	assert.Equal(t, before, m.Hash(), "original model is left unmodified")
	assert.True(t, m.HasDisjunctions())

	assert.Empty(t, rec.EventsOf(NodeAccepted))
	assert.Len(t, rec.EventsOf(NodePruned), 2)
	require.Len(t, rec.Outcomes, 1)
	assert.Equal(t, "infeasible", rec.Outcomes[0].Status)
	assert.True(t, math.IsNaN(rec.Outcomes[0].Objective))
}

// allInfeasible has two disjunctions and no feasible selection, so sentinel
// nodes are popped before any terminal.
func allInfeasible(t *testing.T) *gdp.Model {
	t.Helper()
	m := gdp.New("all_infeasible")
	require.NoError(t, m.AddVar(gdp.Var{Name: "x", Lower: 0, Upper: 1}))
	require.NoError(t, m.AddObjective("f", gdp.Expr{}.Plus(1, "x"), gdp.Minimize))
	require.NoError(t, m.AddDisjunction("d1", true,
		gdp.Disjunct{Name: "a", Constraints: []gdp.Constraint{{Name: "lo", Body: gdp.Expr{}.Plus(1, "x"), Relation: gdp.GE, RHS: 2}}},
		gdp.Disjunct{Name: "b", Constraints: []gdp.Constraint{{Name: "lo", Body: gdp.Expr{}.Plus(1, "x"), Relation: gdp.GE, RHS: 3}}},
	))
	require.NoError(t, m.AddDisjunction("d2", true, gdp.Disjunct{Name: "c"}, gdp.Disjunct{Name: "e"}))
	return m
}

func TestEngine_Solve_ExhaustiveByDefault(t *testing.T) {
	e, _ := newTestEngine(testutil.Enumerator())

	_, err := e.Solve(context.Background(), allInfeasible(t))
	require.True(t, IsNoFeasibleSolution(err))

	var se *SearchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 7, se.Stats.Pushes)
	assert.Equal(t, 3, se.Stats.NodesExpanded, "sentinel nodes are still expanded")
	assert.Equal(t, 4, se.Stats.Pruned)
}

func TestEngine_Solve_PruneInfeasible(t *testing.T) {
	e, _ := newTestEngine(testutil.Enumerator(), WithPruneInfeasible(true))

	_, err := e.Solve(context.Background(), allInfeasible(t))
	require.True(t, IsNoFeasibleSolution(err))

	var se *SearchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 3, se.Stats.Pushes)
	assert.Equal(t, 1, se.Stats.NodesExpanded)
	assert.Equal(t, 2, se.Stats.Pruned)
}

func TestEngine_Solve_FixedIndicatorIsRespected(t *testing.T) {
	m := gdp.New("fixed")
	require.NoError(t, m.AddVar(gdp.Var{Name: "x", Lower: 0, Upper: 4}))
	require.NoError(t, m.AddVar(gdp.Var{Name: "y", Lower: 0, Upper: 4}))
	require.NoError(t, m.AddObjective("cost", gdp.Expr{}.Plus(2, "x").Plus(1, "y"), gdp.Minimize))
	require.NoError(t, m.AddDisjunction("unit", true,
		gdp.Disjunct{
			Name:        "small",
			Indicator:   gdp.Indicator{Value: 1, Fixed: true},
			Constraints: []gdp.Constraint{{Name: "x_min", Body: gdp.Expr{}.Plus(1, "x"), Relation: gdp.GE, RHS: 2}},
		},
		gdp.Disjunct{Name: "large", Constraints: []gdp.Constraint{
			{Name: "x_min", Body: gdp.Expr{}.Plus(1, "x"), Relation: gdp.GE, RHS: 1},
			{Name: "y_min", Body: gdp.Expr{}.Plus(1, "y"), Relation: gdp.GE, RHS: 2},
		}},
	))
	require.NoError(t, m.AddDisjunction("route", true,
		gdp.Disjunct{Name: "a", Constraints: []gdp.Constraint{{Name: "y_min", Body: gdp.Expr{}.Plus(1, "y"), Relation: gdp.GE, RHS: 1}}},
		gdp.Disjunct{Name: "b", Constraints: []gdp.Constraint{{Name: "x_min", Body: gdp.Expr{}.Plus(1, "x"), Relation: gdp.GE, RHS: 3}}},
	))

	e, rec := newTestEngine(testutil.Enumerator())
	res, err := e.Solve(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, 5.0, res.Objective)
	assert.Equal(t, map[string]string{"unit": "small", "route": "a"}, res.Selection)

	// The fixed indicator is part of the root relaxation, and selecting the
	// other disjunct contradicts it.
	created := rec.EventsOf(NodeCreated)
	require.Len(t, created, 5)
	assert.Equal(t, 4.0, created[0].Bound)
	assert.Equal(t, minlp.StatusInfeasible.String(), created[2].Status)
	assert.True(t, math.IsInf(created[2].Bound, 1))
}

func TestEngine_Solve_ParallelIsDeterministic(t *testing.T) {
	serial, serialRec := newTestEngine(testutil.Enumerator())
	want, err := serial.Solve(context.Background(), testutil.Chain(3, 3))
	require.NoError(t, err)

	solver := testutil.NewCountingSolver(testutil.Enumerator())
	parallel, parallelRec := newTestEngine(solver, WithParallelism(4))
	got, err := parallel.Solve(context.Background(), testutil.Chain(3, 3))
	require.NoError(t, err)

	assert.Equal(t, want.Objective, got.Objective)
	assert.Equal(t, want.Selection, got.Selection)
	assert.Equal(t, want.Stats, got.Stats)
	assert.Equal(t, serialRec.Events, parallelRec.Events)
	assert.LessOrEqual(t, solver.Peak(), 4)
	assert.Equal(t, int64(got.Stats.Subsolves), solver.Calls())
}

func TestEngine_Solve_NodeLimit(t *testing.T) {
	e, rec := newTestEngine(testutil.Enumerator(), WithMaxNodes(3))
	m := testutil.Chain(3, 3)

	_, err := e.Solve(context.Background(), m)
	require.Error(t, err)
	assert.True(t, IsNodeLimit(err))

	var se *SearchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "4", se.Details["nodes"])
	assert.Equal(t, "3", se.Details["max_nodes"])
	assert.Equal(t, 1, se.Stats.NodesCreated)
	assert.True(t, m.HasDisjunctions())
	assert.Equal(t, "node_limit", rec.Outcomes[0].Status)
}

func TestEngine_Solve_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inner := testutil.Enumerator()
	solver := testutil.SolverFunc(func(ctx context.Context, m *gdp.Model) (minlp.Result, error) {
		res, err := inner.Solve(ctx, m)
		cancel()
		return res, err
	})
	e, rec := newTestEngine(solver)
	m := testutil.TwoUnits()

	_, err := e.Solve(ctx, m)
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, m.HasDisjunctions())
	require.Len(t, rec.Outcomes, 1)
	assert.Equal(t, "cancelled", rec.Outcomes[0].Status)
}

func TestEngine_Solve_SubsolveErrorsAreFolded(t *testing.T) {
	failing := testutil.SolverFunc(func(context.Context, *gdp.Model) (minlp.Result, error) {
		return minlp.Result{}, errors.New("solver crashed")
	})
	e, rec := newTestEngine(failing)

	_, err := e.Solve(context.Background(), testutil.Capacity())
	require.True(t, IsNoFeasibleSolution(err), "solver errors never escape the search: %v", err)

	for _, ev := range rec.EventsOf(NodeCreated) {
		assert.Equal(t, minlp.StatusError.String(), ev.Status)
		assert.Equal(t, "solver crashed", ev.Message)
		assert.True(t, math.IsInf(ev.Bound, -1), "maximize sentinel")
	}
}

func TestEngine_Solve_FinalSolveFailed(t *testing.T) {
	calls := 0
	inner := testutil.Enumerator()
	solver := testutil.SolverFunc(func(ctx context.Context, m *gdp.Model) (minlp.Result, error) {
		calls++
		if calls == 4 { // root, two children, then the re-solve
			return minlp.Result{Status: minlp.StatusError, Message: "licence expired"}, nil
		}
		return inner.Solve(ctx, m)
	})
	e, rec := newTestEngine(solver)

	_, err := e.Solve(context.Background(), testutil.Capacity())
	require.Error(t, err)

	var se *SearchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeFinalSolveFailed, se.Code)
	assert.Contains(t, err.Error(), "licence expired")
	assert.Equal(t, "error", rec.Outcomes[0].Status)
}

func TestEngine_Solve_SolverUnavailable(t *testing.T) {
	e, _ := newTestEngine(testutil.UnavailableSolver{Reason: "no licence"})
	assert.EqualError(t, e.Available(), "no licence")

	_, err := e.Solve(context.Background(), testutil.Capacity())
	var se *SearchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeSolverUnavailable, se.Code)

	assert.Error(t, New(nil).Available())
}

type failingRecorder struct{}

func (failingRecorder) BeginRun(context.Context, RunInfo) error { return errors.New("disk full") }
func (failingRecorder) RecordNode(context.Context, NodeEvent) error { return errors.New("disk full") }
func (failingRecorder) EndRun(context.Context, RunOutcome) error { return errors.New("disk full") }

func TestEngine_Solve_RecorderErrorsDoNotAbort(t *testing.T) {
	e := New(testutil.Enumerator(), WithLogger(quietLogger()), WithRecorder(failingRecorder{}))

	res, err := e.Solve(context.Background(), testutil.TwoUnits())
	require.NoError(t, err)
	assert.Equal(t, testutil.TwoUnitsOptimum, res.Objective)
}

func TestEngine_Solve_Deadline(t *testing.T) {
	// A subsolve deadline that always trips behaves like a failing solver.
	slow := testutil.SolverFunc(func(ctx context.Context, _ *gdp.Model) (minlp.Result, error) {
		<-ctx.Done()
		return minlp.Result{}, ctx.Err()
	})
	e, _ := newTestEngine(minlp.WithDeadline(slow, 1))

	_, err := e.Solve(context.Background(), testutil.Infeasible())
	assert.True(t, IsNoFeasibleSolution(err))
}
