package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/gdplbb/internal/gdp"
	"github.com/roach88/gdplbb/internal/minlp"
)

func TestSearchNode_Root(t *testing.T) {
	root := newRootNode(1, []string{"unit", "route"})

	assert.False(t, root.Terminal())
	assert.Equal(t, 0, root.Depth)
	assert.Empty(t, root.Decisions)
	assert.True(t, root.Resolved.IsEmpty())
	assert.Equal(t, gdp.DecisionsID(nil), root.ID)
}

func TestSearchNode_ChildLeavesParentUntouched(t *testing.T) {
	root := newRootNode(1, []string{"unit", "route"})

	child := root.child(2, "large", 0)
	grandchild := child.child(3, "a", 1)

	assert.Empty(t, root.Decisions)
	assert.Equal(t, []string{"unit", "route"}, root.Pending)
	assert.True(t, root.Resolved.IsEmpty())

	assert.Equal(t, map[string]string{"unit": "large"}, child.Decisions)
	assert.Equal(t, []string{"route"}, child.Pending)
	assert.Equal(t, int64(1), child.ParentSeq)
	assert.Equal(t, 1, child.Depth)
	assert.Equal(t, []uint32{0}, child.Resolved.ToArray())

	assert.Equal(t, map[string]string{"unit": "large", "route": "a"}, grandchild.Decisions)
	assert.True(t, grandchild.Terminal())
	assert.Equal(t, []uint32{0, 1}, grandchild.Resolved.ToArray())
	assert.Equal(t, uint64(len(grandchild.Decisions)), grandchild.Resolved.GetCardinality())
}

func TestSearchNode_IDIsContentAddressed(t *testing.T) {
	root := newRootNode(1, []string{"unit", "route"})

	a := root.child(2, "large", 0)
	b := root.child(9, "large", 0)
	c := root.child(3, "small", 0)

	assert.Equal(t, a.ID, b.ID, "same decisions, same id regardless of seq")
	assert.NotEqual(t, a.ID, c.ID)
	assert.Equal(t, gdp.DecisionsID(map[string]string{"unit": "large"}), a.ID)
}

func TestSearchNode_SetBound(t *testing.T) {
	tests := []struct {
		name       string
		res        minlp.Result
		sense      gdp.Sense
		wantBound  float64
		wantStatus minlp.Status
		feasible   bool
	}{
		{"optimal", minlp.Result{Status: minlp.StatusOptimal, Objective: 3}, gdp.Minimize, 3, minlp.StatusOptimal, true},
		{"infeasible minimize", minlp.Result{Status: minlp.StatusInfeasible}, gdp.Minimize, math.Inf(1), minlp.StatusInfeasible, false},
		{"error maximize", minlp.Result{Status: minlp.StatusError}, gdp.Maximize, math.Inf(-1), minlp.StatusError, false},
		{"nan objective", minlp.Result{Status: minlp.StatusOptimal, Objective: math.NaN()}, gdp.Minimize, math.Inf(1), minlp.StatusError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &SearchNode{}
			n.setBound(tt.res, tt.sense)
			assert.Equal(t, tt.wantBound, n.Bound)
			assert.Equal(t, tt.wantStatus, n.Status)
			assert.Equal(t, tt.feasible, n.Feasible())
		})
	}
}
