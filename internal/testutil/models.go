package testutil

import (
	"github.com/roach88/gdplbb/internal/gdp"
)

// Toy models shared by engine, store, harness and cli tests. Every model is
// small enough for the enumerator at step 0.5 and has a hand-checked optimum.

// TwoUnitsOptimum is the optimal objective of TwoUnits.
const TwoUnitsOptimum = 4.0

// TwoUnits builds two xor disjunctions of two disjuncts each:
//
//	min 2x + y
//	x, y in [0, 4]
//	unit:  { small: x >= 2 }  xor { large: x >= 1, y >= 2 }
//	route: { a: y >= 1 }      xor { b: x >= 3 }
//
// The four combinations cost small+a = 5, small+b = 6, large+a = 4 and
// large+b = 8, so the optimum is large+a at x = 1, y = 2.
func TwoUnits() *gdp.Model {
	m := gdp.New("two_units")
	must(m.AddVar(gdp.Var{Name: "x", Domain: gdp.Continuous, Lower: 0, Upper: 4}))
	must(m.AddVar(gdp.Var{Name: "y", Domain: gdp.Continuous, Lower: 0, Upper: 4}))
	must(m.AddObjective("cost", gdp.Expr{}.Plus(2, "x").Plus(1, "y"), gdp.Minimize))
	must(m.AddDisjunction("unit", true,
		gdp.Disjunct{Name: "small", Constraints: []gdp.Constraint{ge("x_min", "x", 2)}},
		gdp.Disjunct{Name: "large", Constraints: []gdp.Constraint{ge("x_min", "x", 1), ge("y_min", "y", 2)}},
	))
	must(m.AddDisjunction("route", true,
		gdp.Disjunct{Name: "a", Constraints: []gdp.Constraint{ge("y_min", "y", 1)}},
		gdp.Disjunct{Name: "b", Constraints: []gdp.Constraint{ge("x_min", "x", 3)}},
	))
	return m
}

// Infeasible builds a model whose every selection is infeasible while its
// relaxation is not:
//
//	min x
//	x in [0, 1]
//	d: { a: x >= 2 } xor { b: x >= 3 }
func Infeasible() *gdp.Model {
	m := gdp.New("infeasible")
	must(m.AddVar(gdp.Var{Name: "x", Domain: gdp.Continuous, Lower: 0, Upper: 1}))
	must(m.AddObjective("f", gdp.Expr{}.Plus(1, "x"), gdp.Minimize))
	must(m.AddDisjunction("d", true,
		gdp.Disjunct{Name: "a", Constraints: []gdp.Constraint{ge("x_min", "x", 2)}},
		gdp.Disjunct{Name: "b", Constraints: []gdp.Constraint{ge("x_min", "x", 3)}},
	))
	return m
}

// Capacity builds a maximisation model:
//
//	max x
//	x in [0, 4]
//	cap: { low: x <= 1 } xor { high: x <= 3 }
//
// The optimum is high at x = 3.
func Capacity() *gdp.Model {
	m := gdp.New("capacity")
	must(m.AddVar(gdp.Var{Name: "x", Domain: gdp.Continuous, Lower: 0, Upper: 4}))
	must(m.AddObjective("f", gdp.Expr{}.Plus(1, "x"), gdp.Maximize))
	must(m.AddDisjunction("cap", true,
		gdp.Disjunct{Name: "low", Constraints: []gdp.Constraint{le("x_max", "x", 1)}},
		gdp.Disjunct{Name: "high", Constraints: []gdp.Constraint{le("x_max", "x", 3)}},
	))
	return m
}

// Chain builds n xor disjunctions of k disjuncts each over one integer
// variable per disjunction. Selecting disjunct j of disjunction i forces
// v_i >= j, and the objective sums every v_i, so the optimum is 0 with the
// first disjunct everywhere. Used for push-count and budget tests.
func Chain(n, k int) *gdp.Model {
	m := gdp.New("chain")
	obj := gdp.Expr{}
	for i := 0; i < n; i++ {
		v := name("v", i)
		must(m.AddVar(gdp.Var{Name: v, Domain: gdp.Integer, Lower: 0, Upper: float64(k)}))
		obj = obj.Plus(1, v)
	}
	must(m.AddObjective("total", obj, gdp.Minimize))
	for i := 0; i < n; i++ {
		v := name("v", i)
		disjuncts := make([]gdp.Disjunct, k)
		for j := 0; j < k; j++ {
			disjuncts[j] = gdp.Disjunct{
				Name:        name("opt", j),
				Constraints: []gdp.Constraint{ge("floor", v, float64(j))},
			}
		}
		must(m.AddDisjunction(name("d", i), true, disjuncts...))
	}
	return m
}

func ge(cname, v string, rhs float64) gdp.Constraint {
	return gdp.Constraint{Name: cname, Body: gdp.Expr{}.Plus(1, v), Relation: gdp.GE, RHS: rhs}
}

func le(cname, v string, rhs float64) gdp.Constraint {
	return gdp.Constraint{Name: cname, Body: gdp.Expr{}.Plus(1, v), Relation: gdp.LE, RHS: rhs}
}

func name(prefix string, i int) string {
	return prefix + string(rune('0'+i))
}

// must panics on builder errors; the toy models are static.
func must(err error) {
	if err != nil {
		panic(err)
	}
}
