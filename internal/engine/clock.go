package engine

import "sync/atomic"

// Clock hands out the two logical sequences of a run: node seqs, stamped when
// a node is created, and trace steps, stamped when an event is emitted. Both
// start at 1 and never repeat.
//
// Equal-bound nodes pop in seq order, so a run is reproducible. Steps order
// the trace even when one node appears in several events.
//
// Thread-safety: safe for concurrent use.
type Clock struct {
	seq  atomic.Int64
	step atomic.Int64
}

// NewClock returns a clock with both sequences at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NextSeq stamps a new node.
func (c *Clock) NextSeq() int64 {
	return c.seq.Add(1)
}

// NextStep stamps a new trace event.
func (c *Clock) NextStep() int64 {
	return c.step.Add(1)
}

// Nodes reports how many node seqs have been handed out.
func (c *Clock) Nodes() int64 {
	return c.seq.Load()
}
