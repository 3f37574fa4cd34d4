package compiler

import (
	"fmt"
	"math"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/gdplbb/internal/gdp"
)

// CompileModel parses a CUE value into a gdp.Model.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the model struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`model: { name: "m", var: x: {...}, ... }`)
//	m, err := CompileModel(v.LookupPath(cue.ParsePath("model")))
//
// Every component list (var, objective, constraint, disjunction, disjunct)
// is read in declaration order, which fixes the branching order.
func CompileModel(v cue.Value) (*gdp.Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.Exists() {
		return nil, &CompileError{Field: "model", Message: "model is required", Pos: v.Pos()}
	}

	name := "model"
	if nameVal := v.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
		s, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		name = s
	}
	m := gdp.New(name)

	if err := parseVars(v, m); err != nil {
		return nil, err
	}
	if err := parseObjectives(v, m); err != nil {
		return nil, err
	}

	cons, err := parseConstraints(v.LookupPath(cue.ParsePath("constraint")), "constraint")
	if err != nil {
		return nil, err
	}
	for _, c := range cons {
		if err := m.AddConstraint(c.Constraint); err != nil {
			return nil, modelError("constraint."+c.Name, err, c.pos)
		}
	}

	if err := parseDisjunctions(v, m); err != nil {
		return nil, err
	}

	return m, nil
}

// parseVars extracts variable declarations.
func parseVars(v cue.Value, m *gdp.Model) error {
	varsVal := v.LookupPath(cue.ParsePath("var"))
	if !varsVal.Exists() {
		return &CompileError{Field: "var", Message: "at least one variable is required", Pos: v.Pos()}
	}

	iter, err := varsVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		val := iter.Value()
		field := "var." + name

		gv := gdp.Var{
			Name:   name,
			Domain: gdp.Continuous,
			Lower:  math.Inf(-1),
			Upper:  math.Inf(1),
		}

		if d, ok, err := optionalString(val, "domain"); err != nil {
			return err
		} else if ok {
			domain, err := gdp.ParseDomain(d)
			if err != nil {
				return &CompileError{Field: field + ".domain", Message: err.Error(), Pos: val.Pos()}
			}
			gv.Domain = domain
		}
		if lo, ok, err := optionalNumber(val, "lower"); err != nil {
			return err
		} else if ok {
			gv.Lower = lo
		}
		if hi, ok, err := optionalNumber(val, "upper"); err != nil {
			return err
		} else if ok {
			gv.Upper = hi
		}
		if x, ok, err := optionalNumber(val, "value"); err != nil {
			return err
		} else if ok {
			gv.Value = x
			gv.HasValue = true
		}
		fixed, _, err := optionalBool(val, "fixed")
		if err != nil {
			return err
		}

		if err := m.AddVar(gv); err != nil {
			return modelError(field, err, val.Pos())
		}
		if fixed {
			if !gv.HasValue {
				return &CompileError{Field: field + ".fixed", Message: "a fixed variable needs a value", Pos: val.Pos()}
			}
			if err := m.FixVar(name, gv.Value); err != nil {
				return modelError(field, err, val.Pos())
			}
		}
	}
	return nil
}

// parseObjectives extracts objectives. Zero or several active objectives are
// legal documents; the engine rejects them at solve time.
func parseObjectives(v cue.Value, m *gdp.Model) error {
	objVal := v.LookupPath(cue.ParsePath("objective"))
	if !objVal.Exists() {
		return nil
	}

	iter, err := objVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		val := iter.Value()
		field := "objective." + name

		sense := gdp.Minimize
		if s, ok, err := optionalString(val, "sense"); err != nil {
			return err
		} else if ok {
			sense, err = gdp.ParseSense(s)
			if err != nil {
				return &CompileError{Field: field + ".sense", Message: err.Error(), Pos: val.Pos()}
			}
		}

		expr, err := parseExpr(val, field)
		if err != nil {
			return err
		}
		if err := m.AddObjective(name, expr, sense); err != nil {
			return modelError(field, err, val.Pos())
		}

		active, ok, err := optionalBool(val, "active")
		if err != nil {
			return err
		}
		if ok && !active {
			if err := m.SetObjectiveActive(name, false); err != nil {
				return modelError(field, err, val.Pos())
			}
		}
	}
	return nil
}

type parsedConstraint struct {
	gdp.Constraint
	pos token.Pos
}

// parseConstraints extracts a constraint block. A missing block yields none.
func parseConstraints(v cue.Value, prefix string) ([]parsedConstraint, error) {
	if !v.Exists() {
		return nil, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []parsedConstraint
	for iter.Next() {
		name := iter.Label()
		val := iter.Value()
		field := prefix + "." + name

		body, err := parseExpr(val, field)
		if err != nil {
			return nil, err
		}

		relStr, ok, err := optionalString(val, "rel")
		if err != nil {
			return nil, err
		}
		if !ok {
			relStr = "<="
		}
		rel, err := gdp.ParseRelation(relStr)
		if err != nil {
			return nil, &CompileError{Field: field + ".rel", Message: err.Error(), Pos: val.Pos()}
		}

		rhs, ok, err := optionalNumber(val, "rhs")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &CompileError{Field: field + ".rhs", Message: "constraint rhs is required", Pos: val.Pos()}
		}

		out = append(out, parsedConstraint{
			Constraint: gdp.Constraint{Name: name, Body: body, Relation: rel, RHS: rhs},
			pos:        val.Pos(),
		})
	}
	return out, nil
}

// parseDisjunctions extracts disjunctions and their disjuncts.
func parseDisjunctions(v cue.Value, m *gdp.Model) error {
	disjVal := v.LookupPath(cue.ParsePath("disjunction"))
	if !disjVal.Exists() {
		return nil
	}

	iter, err := disjVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		val := iter.Value()
		field := "disjunction." + name

		xor, ok, err := optionalBool(val, "xor")
		if err != nil {
			return err
		}
		if !ok {
			xor = true
		}

		djVal := val.LookupPath(cue.ParsePath("disjunct"))
		if !djVal.Exists() {
			return &CompileError{Field: field + ".disjunct", Message: "at least one disjunct is required", Pos: val.Pos()}
		}
		djIter, err := djVal.Fields()
		if err != nil {
			return formatCUEError(err)
		}

		var disjuncts []gdp.Disjunct
		for djIter.Next() {
			djName := djIter.Label()
			dv := djIter.Value()
			djField := field + ".disjunct." + djName

			dj := gdp.Disjunct{Name: djName}
			if indVal := dv.LookupPath(cue.ParsePath("indicator")); indVal.Exists() {
				ind, err := parseIndicator(indVal, djField+".indicator")
				if err != nil {
					return err
				}
				dj.Indicator = ind
			}

			cons, err := parseConstraints(dv.LookupPath(cue.ParsePath("constraint")), djField+".constraint")
			if err != nil {
				return err
			}
			for _, c := range cons {
				dj.Constraints = append(dj.Constraints, c.Constraint)
			}
			disjuncts = append(disjuncts, dj)
		}

		if err := m.AddDisjunction(name, xor, disjuncts...); err != nil {
			return modelError(field, err, val.Pos())
		}

		active, ok, err := optionalBool(val, "active")
		if err != nil {
			return err
		}
		if ok && !active {
			if err := m.Deactivate(name); err != nil {
				return modelError(field, err, val.Pos())
			}
		}
	}
	return nil
}

// parseIndicator parses {value: 0|1, fixed: bool}. A bare boolean is
// accepted as shorthand for an unfixed value.
func parseIndicator(v cue.Value, field string) (gdp.Indicator, error) {
	if b, err := v.Bool(); err == nil {
		if b {
			return gdp.Indicator{Value: 1}, nil
		}
		return gdp.Indicator{}, nil
	}

	var ind gdp.Indicator
	if valVal := v.LookupPath(cue.ParsePath("value")); valVal.Exists() {
		n, err := valVal.Int64()
		if err != nil {
			return ind, formatCUEError(err)
		}
		if n != 0 && n != 1 {
			return ind, &CompileError{Field: field + ".value", Message: fmt.Sprintf("indicator must be 0 or 1, got %d", n), Pos: valVal.Pos()}
		}
		ind.Value = int(n)
	}
	fixed, _, err := optionalBool(v, "fixed")
	if err != nil {
		return ind, err
	}
	ind.Fixed = fixed
	return ind, nil
}

// parseExpr reads the linear, terms and const fields of v as one expression.
//
//	linear: {x: 2, y: 1}                       // 2x + y
//	terms:  [{coef: 1, vars: ["x", "x"]}]      // x^2
//	const:  3
func parseExpr(v cue.Value, field string) (gdp.Expr, error) {
	var expr gdp.Expr

	if c, ok, err := optionalNumber(v, "const"); err != nil {
		return expr, err
	} else if ok {
		expr.Const = c
	}

	if linVal := v.LookupPath(cue.ParsePath("linear")); linVal.Exists() {
		iter, err := linVal.Fields()
		if err != nil {
			return expr, formatCUEError(err)
		}
		for iter.Next() {
			coef, err := iter.Value().Float64()
			if err != nil {
				return expr, formatCUEError(err)
			}
			expr = expr.Plus(coef, iter.Label())
		}
	}

	if termsVal := v.LookupPath(cue.ParsePath("terms")); termsVal.Exists() {
		iter, err := termsVal.List()
		if err != nil {
			return expr, formatCUEError(err)
		}
		for iter.Next() {
			tv := iter.Value()
			coef, ok, err := optionalNumber(tv, "coef")
			if err != nil {
				return expr, err
			}
			if !ok {
				coef = 1
			}

			varsVal := tv.LookupPath(cue.ParsePath("vars"))
			if !varsVal.Exists() {
				return expr, &CompileError{Field: field + ".terms", Message: "term vars are required", Pos: tv.Pos()}
			}
			varIter, err := varsVal.List()
			if err != nil {
				return expr, formatCUEError(err)
			}
			var vars []string
			for varIter.Next() {
				s, err := varIter.Value().String()
				if err != nil {
					return expr, formatCUEError(err)
				}
				vars = append(vars, s)
			}
			if len(vars) == 0 {
				return expr, &CompileError{Field: field + ".terms", Message: "a term needs at least one variable", Pos: tv.Pos()}
			}
			expr = expr.Plus(coef, vars...)
		}
	}

	return expr, nil
}

func optionalString(v cue.Value, path string) (string, bool, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return "", false, nil
	}
	s, err := f.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

func optionalNumber(v cue.Value, path string) (float64, bool, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return 0, false, nil
	}
	x, err := f.Float64()
	if err != nil {
		return 0, false, formatCUEError(err)
	}
	return x, true, nil
}

func optionalBool(v cue.Value, path string) (bool, bool, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return false, false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, false, formatCUEError(err)
	}
	return b, true, nil
}
