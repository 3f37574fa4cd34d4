// Package engine implements best-first branch-and-bound over the disjunctions
// of a GDP model.
//
// The engine decides disjunctions one at a time. Every search node carries an
// immutable decision vector (disjunction -> selected disjunct) and the ordered
// list of disjunctions still pending. A node's bound is the objective of the
// MINLP obtained by collapsing every pending disjunction (all its disjuncts
// off) and enforcing every decided one. Nodes wait in a priority queue ordered
// by bound; the first terminal node popped is optimal provided bounds only get
// worse as decisions are added.
//
// ARCHITECTURE:
//
// Single search goroutine:
// Pops, expansions and pushes happen on the goroutine that called Solve. With
// WithParallelism, the children of one expansion are solved concurrently, but
// they are pushed back in disjunct order only after all of them finished, so
// the pop sequence is identical to a sequential run.
//
// Search Flow:
//  1. Validate the caller's model (one active objective, xor disjunctions)
//  2. Build the root template: clone, deactivate every active disjunction,
//     set every unfixed indicator to 0
//  3. Solve the root relaxation, push the root
//  4. Pop the best node; terminal and feasible -> write back and return
//  5. Otherwise branch on its first pending disjunction, one child per
//     disjunct, solve each child, push each child
//  6. Queue empty -> NO_FEASIBLE_SOLUTION
//
// Nodes never own a model. The subproblem of a node is materialised from the
// root template on demand, so the queue holds only decision vectors.
//
// Subsolve failures (infeasible, solver error, conflicting fixed indicators)
// never abort the search: the node receives the sense's unbounded bound and
// sinks to the back of the queue. A terminal node with such a bound is never
// accepted.
//
// Ordering: bound first, then node sequence number from the logical Clock.
// No randomness, no wall-clock ordering.
package engine
