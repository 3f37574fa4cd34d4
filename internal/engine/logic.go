package engine

import (
	"github.com/crillab/gophersat/solver"

	"github.com/roach88/gdplbb/internal/gdp"
)

// logicSatisfiable reports whether the disjunction logic of model admits a
// selection at all, before any subproblem is solved.
//
// Every indicator of an active disjunction becomes one propositional
// variable. An active xor disjunction contributes exactly-one over its
// indicators; a fixed indicator contributes a unit clause. Variable values
// and constraints play no part, so a satisfiable result says nothing about
// feasibility of the subproblems.
func logicSatisfiable(model *gdp.Model) (bool, error) {
	var constrs []solver.CardConstr
	next := 1
	for _, name := range model.ActiveDisjunctions() {
		disjuncts, err := model.Disjuncts(name)
		if err != nil {
			return false, err
		}
		lits := make([]int, len(disjuncts))
		for i, dj := range disjuncts {
			lits[i] = next
			next++

			ind, err := model.Indicator(name, dj)
			if err != nil {
				return false, err
			}
			if !ind.Fixed {
				continue
			}
			if ind.Value == 1 {
				constrs = append(constrs, solver.AtLeast1(lits[i]))
			} else {
				constrs = append(constrs, solver.AtLeast1(-lits[i]))
			}
		}

		// AtMost1 negates its argument in place, so each constraint gets its
		// own copy of the literals.
		constrs = append(constrs, solver.AtLeast1(append([]int(nil), lits...)...))
		if len(lits) > 1 {
			constrs = append(constrs, solver.AtMost1(append([]int(nil), lits...)...))
		}
	}
	if len(constrs) == 0 {
		return true, nil
	}

	pb := solver.ParseCardConstrs(constrs)
	return solver.New(pb).Solve() == solver.Sat, nil
}
