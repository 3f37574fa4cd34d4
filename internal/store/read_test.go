package store

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gdplbb/internal/engine"
	"github.com/roach88/gdplbb/internal/testutil"
)

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ReadRun() error = %v, want sql.ErrNoRows", err)
	}
}

func TestReadRun_Running(t *testing.T) {
	s := createTestStore(t)
	beginTestRun(t, s, "run-1")

	run, err := s.ReadRun(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}
	if run.Status != "running" {
		t.Errorf("status = %q, want running", run.Status)
	}
	if !math.IsNaN(run.Objective) {
		t.Errorf("objective = %v, want NaN for a run without one", run.Objective)
	}
	if len(run.Disjunctions) != 2 || run.Disjunctions[0] != "unit" {
		t.Errorf("disjunctions = %v", run.Disjunctions)
	}
}

func TestListRuns_Filters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"run-3", "run-1", "run-2"} {
		beginTestRun(t, s, id)
	}
	other := createTestRun("run-4")
	other.ModelHash = "hash-other"
	if err := s.BeginRun(ctx, other); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	if err := s.EndRun(ctx, engine.RunOutcome{RunID: "run-2", Status: "error", Objective: math.NaN()}); err != nil {
		t.Fatalf("EndRun() failed: %v", err)
	}

	ids := func(runs []Run) []string {
		out := make([]string, len(runs))
		for i, r := range runs {
			out[i] = r.ID
		}
		return out
	}

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1", "run-2", "run-3", "run-4"}, ids(all), "ordered by id")

	byModel, err := s.ListRuns(ctx, RunFilter{ModelHash: "hash-abc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1", "run-2", "run-3"}, ids(byModel))

	failed, err := s.ListRuns(ctx, RunFilter{Status: "error"})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-2"}, ids(failed))

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1", "run-2"}, ids(limited))

	none, err := s.ListRuns(ctx, RunFilter{Status: "optimal"})
	require.NoError(t, err)
	assert.NotNil(t, none, "empty slice, not nil")
	assert.Empty(t, none)
}

func TestReadNodes_Ordering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	// Written out of order; read back by step.
	for _, step := range []int64{3, 1, 2} {
		ev := engine.NodeEvent{RunID: "run-1", Step: step, Seq: 10 - step, Kind: engine.NodeCreated, Bound: float64(step)}
		require.NoError(t, s.RecordNode(ctx, ev))
	}

	events, err := s.ReadNodes(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, int64(i+1), ev.Step)
		assert.Equal(t, float64(i+1), ev.Bound)
		assert.NotNil(t, ev.Decisions)
		assert.NotNil(t, ev.Pending)
	}

	empty, err := s.ReadNodes(ctx, "missing")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestReadNodes_SentinelBounds(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	bounds := []float64{math.Inf(1), math.Inf(-1), math.NaN(), -0.5}
	for i, b := range bounds {
		ev := engine.NodeEvent{RunID: "run-1", Step: int64(i + 1), Seq: int64(i + 1), Kind: engine.NodePruned, Bound: b}
		require.NoError(t, s.RecordNode(ctx, ev))
	}

	events, err := s.ReadNodes(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.True(t, math.IsInf(events[0].Bound, 1))
	assert.True(t, math.IsInf(events[1].Bound, -1))
	assert.True(t, math.IsNaN(events[2].Bound))
	assert.Equal(t, -0.5, events[3].Bound)
}

func TestReadSolution_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginTestRun(t, s, "run-1")

	out := engine.RunOutcome{
		RunID:     "run-1",
		Status:    "optimal",
		Objective: 4,
		Selection: map[string]string{"unit": "large", "route": "a"},
		Values:    map[string]float64{"x": 1, "y": 2},
	}
	require.NoError(t, s.EndRun(ctx, out))

	sol, err := s.ReadSolution(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 4.0, sol.Objective)
	assert.Equal(t, out.Selection, sol.Selection)
	assert.Equal(t, out.Values, sol.Values)
}

func TestReadSolution_NotFound(t *testing.T) {
	s := createTestStore(t)
	beginTestRun(t, s, "run-1")

	_, err := s.ReadSolution(context.Background(), "run-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReadSolution_UnknownEncoding(t *testing.T) {
	s := createTestStore(t)
	beginTestRun(t, s, "run-1")

	_, err := s.db.Exec(`INSERT INTO solutions (run_id, encoding, payload) VALUES (?, ?, ?)`, "run-1", "gzip", []byte{1})
	require.NoError(t, err)

	_, err = s.ReadSolution(context.Background(), "run-1")
	assert.ErrorContains(t, err, "unsupported solution encoding")
}

// teeRecorder forwards to both recorders so the stored trace can be
// compared with the in-memory one.
type teeRecorder struct {
	a, b engine.Recorder
}

func (t teeRecorder) BeginRun(ctx context.Context, run engine.RunInfo) error {
	return errors.Join(t.a.BeginRun(ctx, run), t.b.BeginRun(ctx, run))
}

func (t teeRecorder) RecordNode(ctx context.Context, ev engine.NodeEvent) error {
	return errors.Join(t.a.RecordNode(ctx, ev), t.b.RecordNode(ctx, ev))
}

func (t teeRecorder) EndRun(ctx context.Context, out engine.RunOutcome) error {
	return errors.Join(t.a.EndRun(ctx, out), t.b.EndRun(ctx, out))
}

func TestStore_RecordsEngineRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mem := &engine.MemoryRecorder{}

	e := engine.New(testutil.Enumerator(),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithRecorder(teeRecorder{a: s, b: mem}),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator("run-engine")),
	)

	res, err := e.Solve(ctx, testutil.TwoUnits())
	require.NoError(t, err)

	run, err := s.ReadRun(ctx, "run-engine")
	require.NoError(t, err)
	assert.Equal(t, "optimal", run.Status)
	assert.Equal(t, testutil.TwoUnitsOptimum, run.Objective)
	assert.Equal(t, res.Stats, run.Stats)
	assert.Equal(t, "two_units", run.ModelName)

	events, err := s.ReadNodes(ctx, "run-engine")
	require.NoError(t, err)
	require.Len(t, events, len(mem.Events))
	for i, ev := range events {
		want := mem.Events[i]
		assert.Equal(t, want.Step, ev.Step)
		assert.Equal(t, want.Seq, ev.Seq)
		assert.Equal(t, want.Kind, ev.Kind)
		assert.Equal(t, want.NodeID, ev.NodeID)
		assert.Equal(t, want.Status, ev.Status)
		if math.IsInf(want.Bound, 0) {
			assert.Equal(t, math.IsInf(want.Bound, 1), math.IsInf(ev.Bound, 1))
		} else {
			assert.Equal(t, want.Bound, ev.Bound)
		}
		assert.Equal(t, len(want.Decisions), len(ev.Decisions))
	}

	sol, err := s.ReadSolution(ctx, "run-engine")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"unit": "large", "route": "a"}, sol.Selection)
	assert.Equal(t, res.Values, sol.Values)
}
