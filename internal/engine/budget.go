package engine

// nodeBudget tracks how many search nodes a run has created and enforces
// the WithMaxNodes limit.
//
// The limit guards against the exponential worst case of exhaustive
// disjunctive search: a model with D disjunctions of k disjuncts each can
// create on the order of k^D nodes.
//
// A limit of 0 means unlimited.
type nodeBudget struct {
	limit   int
	created int
}

func newNodeBudget(limit int) *nodeBudget {
	return &nodeBudget{limit: limit}
}

// Reserve accounts for n new nodes. It reports false, without reserving
// anything, if that would exceed the limit.
func (b *nodeBudget) Reserve(n int) bool {
	if b.limit > 0 && b.created+n > b.limit {
		return false
	}
	b.created += n
	return true
}

// Created returns the number of nodes reserved so far.
func (b *nodeBudget) Created() int {
	return b.created
}

// Limit returns the configured limit.
func (b *nodeBudget) Limit() int {
	return b.limit
}
