package engine

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/roach88/gdplbb/internal/gdp"
	"github.com/roach88/gdplbb/internal/minlp"
)

// SearchNode is one partial assignment of disjunct selections.
//
// INVARIANTS:
//   - Decisions and Pending are never mutated after creation
//   - Pending and the decided disjunctions are disjoint, and together they
//     are exactly the disjunctions that were active in the caller's model
//   - Resolved holds the positions (in original disjunction order) of the
//     decided disjunctions; its cardinality equals len(Decisions)
//   - Bound is computed once, when the node is evaluated
type SearchNode struct {
	// ID is the content-addressed identity of Decisions.
	ID string

	// Seq is the creation stamp from the run's Clock.
	Seq int64

	// ParentSeq is the parent's Seq, 0 for the root.
	ParentSeq int64

	// Depth is the number of decided disjunctions.
	Depth int

	// Decisions maps each decided disjunction to its selected disjunct.
	Decisions map[string]string

	// Pending lists the disjunctions not yet branched on, in branching order.
	Pending []string

	// Resolved is the set of decided disjunction positions.
	Resolved *roaring.Bitmap

	// Bound is the objective of the node's relaxation, or the sense's
	// unbounded sentinel when the relaxation could not be solved.
	Bound float64

	// Status is the subsolve status behind Bound.
	Status minlp.Status

	// Message explains a non-optimal Status.
	Message string
}

func newRootNode(seq int64, pending []string) *SearchNode {
	decisions := map[string]string{}
	return &SearchNode{
		ID:        gdp.DecisionsID(decisions),
		Seq:       seq,
		Decisions: decisions,
		Pending:   pending,
		Resolved:  roaring.New(),
	}
}

// child derives the node that additionally selects disjunct in the node's
// first pending disjunction. position is that disjunction's index in the
// original disjunction order.
func (n *SearchNode) child(seq int64, disjunct string, position int) *SearchNode {
	disjunction := n.Pending[0]

	decisions := make(map[string]string, len(n.Decisions)+1)
	for k, v := range n.Decisions {
		decisions[k] = v
	}
	decisions[disjunction] = disjunct

	resolved := n.Resolved.Clone()
	resolved.Add(uint32(position))

	return &SearchNode{
		ID:        gdp.DecisionsID(decisions),
		Seq:       seq,
		ParentSeq: n.Seq,
		Depth:     n.Depth + 1,
		Decisions: decisions,
		Pending:   n.Pending[1:],
		Resolved:  resolved,
	}
}

// Terminal reports whether every disjunction has been decided.
func (n *SearchNode) Terminal() bool {
	return len(n.Pending) == 0
}

// Feasible reports whether the node's relaxation was solved to optimality.
func (n *SearchNode) Feasible() bool {
	return n.Status == minlp.StatusOptimal && !math.IsInf(n.Bound, 0)
}

// setBound records the subsolve outcome. NaN objectives count as failures.
func (n *SearchNode) setBound(res minlp.Result, sense gdp.Sense) {
	n.Status = res.Status
	n.Message = res.Message
	n.Bound = minlp.Bound(res, sense)
	if math.IsNaN(n.Bound) {
		n.Status = minlp.StatusError
		n.Message = "subsolver returned NaN objective"
		n.Bound = sense.Worst()
	}
}
