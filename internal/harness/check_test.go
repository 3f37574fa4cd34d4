package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(f float64) *float64 { return &f }

func optimalResult() *Result {
	r := NewResult()
	r.Status = StatusOptimal
	r.Objective = ptr(4)
	r.Selection = map[string]string{"unit": "large", "route": "a"}
	r.Stats = map[string]int{"nodes_created": 7, "pruned": 0}
	r.Trace = []TraceEvent{{Kind: "pushed"}, {Kind: "pushed"}, {Kind: "accepted"}}
	return r
}

func TestCheck_Pass(t *testing.T) {
	errs := Check(optimalResult(), &Expect{
		Status:    StatusOptimal,
		Objective: ptr(4.0000001),
		Selection: map[string]string{"unit": "large"},
		Stats:     map[string]int{"nodes_created": 7, "pruned": 0},
		Events:    map[string]int{"pushed": 2, "accepted": 1, "pruned": 0},
	})
	assert.Empty(t, errs)
}

func TestCheck_Mismatches(t *testing.T) {
	tests := []struct {
		name   string
		expect Expect
		want   string
	}{
		{"status", Expect{Status: StatusInfeasible}, "status: expected infeasible, got optimal"},
		{"objective", Expect{Status: StatusOptimal, Objective: ptr(5)}, "objective: expected 5"},
		{"tolerance", Expect{Status: StatusOptimal, Objective: ptr(4.5), Tolerance: 0.1}, "± 0.1"},
		{"selection value", Expect{Status: StatusOptimal, Selection: map[string]string{"unit": "small"}}, "selection.unit: expected small, got large"},
		{"selection missing", Expect{Status: StatusOptimal, Selection: map[string]string{"other": "x"}}, "got nothing selected"},
		{"stats", Expect{Status: StatusOptimal, Stats: map[string]int{"nodes_created": 3}}, "stats.nodes_created: expected 3, got 7"},
		{"events", Expect{Status: StatusOptimal, Events: map[string]int{"expanded": 1}}, "events.expanded: expected 1, got 0"},
		{"error", Expect{Status: StatusOptimal, Error: "NODE_LIMIT"}, "error: expected NODE_LIMIT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Check(optimalResult(), &tt.expect)
			if assert.Len(t, errs, 1) {
				assert.Contains(t, errs[0], tt.want)
			}
		})
	}
}

func TestCheck_MissingObjective(t *testing.T) {
	r := NewResult()
	r.Status = StatusOptimal
	errs := Check(r, &Expect{Status: StatusOptimal, Objective: ptr(1)})
	assert.Equal(t, []string{"objective: expected 1, got none"}, errs)
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
