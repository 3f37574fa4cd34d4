package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// goldenScenarios have a checked-in trace under testdata/golden.
var goldenScenarios = []string{
	"two_units",
	"two_units_parallel",
	"capacity_maximize",
	"infeasible",
	"node_limit",
}

func TestRun_AllScenariosPass(t *testing.T) {
	entries, err := os.ReadDir(scenariosDir)
	require.NoError(t, err)

	ran := 0
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		ran++
		t.Run(strings.TrimSuffix(e.Name(), ".yaml"), func(t *testing.T) {
			s, err := LoadScenario(filepath.Join(scenariosDir, e.Name()))
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
	assert.Positive(t, ran)
}

func TestRun_Golden(t *testing.T) {
	for _, name := range goldenScenarios {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(filepath.Join(scenariosDir, name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_ReadsOutcomeFromStore(t *testing.T) {
	s, err := LoadScenario(filepath.Join(scenariosDir, "two_units.yaml"))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, "two_units", result.RunID)
	assert.Equal(t, []string{"unit", "route"}, result.Disjunctions)
	assert.Equal(t, map[string]float64{"x": 1, "y": 2}, result.Values)
	require.Len(t, result.Trace, 11)
	assert.Equal(t, "accepted", result.Trace[10].Kind)
	assert.Equal(t, map[string]string{"unit": "large", "route": "a"}, result.Trace[10].Decisions)
	assert.Nil(t, result.Trace[0].Decisions, "root has no decisions")
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario(filepath.Join(scenariosDir, "two_units_parallel.yaml"))
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := Run(s)
		require.NoError(t, err)
		assert.Equal(t, Render(s.Name, first), Render(s.Name, again))
	}
}

func TestRun_RejectedModel(t *testing.T) {
	s, err := LoadScenario(filepath.Join(scenariosDir, "multi_objective.yaml"))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, "MULTIPLE_OBJECTIVES", result.ErrorCode)
	assert.Empty(t, result.Trace, "nothing recorded before validation")
}

func TestRun_FailingExpectation(t *testing.T) {
	s, err := LoadScenario(filepath.Join(scenariosDir, "two_units.yaml"))
	require.NoError(t, err)
	s.Expect.Selection = map[string]string{"unit": "small"}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{"selection.unit: expected small, got large"}, result.Errors)
}

func TestRun_BadModelDirectory(t *testing.T) {
	s := &Scenario{Name: "broken", Model: t.TempDir(), Expect: Expect{Status: StatusOptimal}}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load model")
}

func TestRender_FailedRun(t *testing.T) {
	r := NewResult()
	r.Status = StatusNodeLimit
	r.ErrorCode = "NODE_LIMIT"
	r.Stats = map[string]int{"nodes_created": 3}

	out := string(Render("limit", r))
	assert.Contains(t, out, "status: node_limit\nerror: NODE_LIMIT\n")
	assert.NotContains(t, out, "objective:")
	assert.Contains(t, out, "nodes_created=3 nodes_expanded=0")
	assert.True(t, strings.HasSuffix(out, "trace:\n"))
}
