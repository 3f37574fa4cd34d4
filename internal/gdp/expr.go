package gdp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Term is a coefficient times a product of variables.
// Repeating a variable name raises it to a power: {2, [x, x]} is 2*x^2.
// A term with no variables is a constant.
type Term struct {
	Coef float64
	Vars []string
}

// Expr is a polynomial expression over model variables.
type Expr struct {
	Const float64
	Terms []Term
}

// Linear builds an expression from a coefficient map. Terms are emitted in
// the order of names, so callers control determinism.
func Linear(names []string, coefs map[string]float64) Expr {
	e := Expr{}
	for _, n := range names {
		if c, ok := coefs[n]; ok {
			e.Terms = append(e.Terms, Term{Coef: c, Vars: []string{n}})
		}
	}
	return e
}

// Constant returns the expression with only a constant part.
func Constant(c float64) Expr {
	return Expr{Const: c}
}

// Plus returns e with an extra term appended.
func (e Expr) Plus(coef float64, vars ...string) Expr {
	out := e.clone()
	out.Terms = append(out.Terms, Term{Coef: coef, Vars: append([]string(nil), vars...)})
	return out
}

// Eval evaluates the expression. Missing variables evaluate to 0.
func (e Expr) Eval(values map[string]float64) float64 {
	sum := e.Const
	for _, t := range e.Terms {
		p := t.Coef
		for _, v := range t.Vars {
			p *= values[v]
		}
		sum += p
	}
	return sum
}

// Variables returns the distinct variable names referenced, in first-use order.
func (e Expr) Variables() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range e.Terms {
		for _, v := range t.Vars {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// IsConstant reports whether the expression references no variables.
func (e Expr) IsConstant() bool {
	for _, t := range e.Terms {
		if len(t.Vars) > 0 {
			return false
		}
	}
	return true
}

func (e Expr) clone() Expr {
	out := Expr{Const: e.Const}
	if len(e.Terms) > 0 {
		out.Terms = make([]Term, len(e.Terms))
		for i, t := range e.Terms {
			out.Terms[i] = Term{Coef: t.Coef, Vars: append([]string(nil), t.Vars...)}
		}
	}
	return out
}

// String renders the expression deterministically, for hashing and logs.
func (e Expr) String() string {
	var b strings.Builder
	b.WriteString(formatFloat(e.Const))
	for _, t := range e.Terms {
		b.WriteString(" + ")
		b.WriteString(formatFloat(t.Coef))
		for _, v := range t.Vars {
			b.WriteString("*")
			b.WriteString(v)
		}
	}
	return b.String()
}

// Relation is the comparison of a constraint body against its right-hand side.
type Relation int

const (
	// LE is body <= rhs.
	LE Relation = iota + 1
	// GE is body >= rhs.
	GE
	// EQ is body == rhs.
	EQ
)

// String returns the operator spelling.
func (r Relation) String() string {
	switch r {
	case LE:
		return "<="
	case GE:
		return ">="
	case EQ:
		return "=="
	default:
		return fmt.Sprintf("Relation(%d)", int(r))
	}
}

// ParseRelation parses "<=", ">=" or "==".
func ParseRelation(s string) (Relation, error) {
	switch s {
	case "<=":
		return LE, nil
	case ">=":
		return GE, nil
	case "==", "=":
		return EQ, nil
	default:
		return 0, fmt.Errorf("unknown relation %q: must be one of <=, >=, ==", s)
	}
}

// Constraint is Body Relation RHS.
type Constraint struct {
	Name     string
	Body     Expr
	Relation Relation
	RHS      float64
}

// Violation returns how far the constraint is from being satisfied at values.
// Zero means satisfied.
func (c Constraint) Violation(values map[string]float64) float64 {
	lhs := c.Body.Eval(values)
	switch c.Relation {
	case LE:
		return math.Max(0, lhs-c.RHS)
	case GE:
		return math.Max(0, c.RHS-lhs)
	default:
		return math.Abs(lhs - c.RHS)
	}
}

func (c Constraint) clone() Constraint {
	return Constraint{Name: c.Name, Body: c.Body.clone(), Relation: c.Relation, RHS: c.RHS}
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s: %s %s %s", c.Name, c.Body.String(), c.Relation, formatFloat(c.RHS))
}

// formatFloat renders floats the same way everywhere: shortest round-trip
// form, with +Inf/-Inf spelled out.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
