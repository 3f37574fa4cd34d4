package harness

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Render writes a result as the text used by golden files:
//
//	scenario: two_units
//	status: optimal
//	objective: 4
//	selection: unit=large route=a
//	stats: nodes_created=7 nodes_expanded=3 ...
//	trace:
//	  1 pushed   seq=1 parent=0 depth=0 bound=0 status=optimal decisions=-
//
// Decisions and selections are listed in branching order. Node ids are
// left out because they change with any edit to the model.
func Render(name string, result *Result) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "scenario: %s\n", name)
	fmt.Fprintf(&buf, "status: %s\n", result.Status)
	if result.ErrorCode != "" {
		fmt.Fprintf(&buf, "error: %s\n", result.ErrorCode)
	}
	if result.Objective != nil {
		fmt.Fprintf(&buf, "objective: %s\n", strconv.FormatFloat(*result.Objective, 'g', -1, 64))
		fmt.Fprintf(&buf, "selection: %s\n", ordered(result.Selection, result.Disjunctions))
	}

	stats := make([]string, 0, len(StatNames))
	for _, name := range StatNames {
		stats = append(stats, fmt.Sprintf("%s=%d", name, result.Stats[name]))
	}
	fmt.Fprintf(&buf, "stats: %s\n", strings.Join(stats, " "))

	fmt.Fprintf(&buf, "trace:\n")
	for _, ev := range result.Trace {
		fmt.Fprintf(&buf, "  %d %-8s seq=%d parent=%d depth=%d bound=%s status=%s decisions=%s\n",
			ev.Step, ev.Kind, ev.Seq, ev.ParentSeq, ev.Depth, ev.Bound, ev.Status,
			ordered(ev.Decisions, result.Disjunctions))
	}

	return buf.Bytes()
}

// ordered renders name=value pairs in the given key order, "-" when empty.
func ordered(m map[string]string, order []string) string {
	if len(m) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(m))
	for _, k := range order {
		if v, ok := m[k]; ok {
			parts = append(parts, k+"="+v)
		}
	}
	return strings.Join(parts, " ")
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Render(scenarioName, result))
}
