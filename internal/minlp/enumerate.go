package minlp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roach88/gdplbb/internal/gdp"
)

// Default enumeration settings.
const (
	DefaultStep      = 0.5
	DefaultTolerance = 1e-9
	DefaultMaxPoints = 1_000_000

	// ctxCheckInterval is how many points are evaluated between
	// cancellation checks.
	ctxCheckInterval = 4096
)

// ErrUnresolvedModel is returned when a model still carries disjunctions.
var ErrUnresolvedModel = errors.New("model still has unresolved disjunctions")

// Options configures the bundled solvers.
type Options struct {
	// Step is the grid spacing for continuous variables.
	Step float64

	// Tolerance is the feasibility tolerance for constraints and integrality.
	Tolerance float64

	// MaxPoints caps the lattice size; larger models report StatusError.
	MaxPoints int64

	// Deadline bounds each subsolve when positive.
	Deadline time.Duration
}

func (o Options) withDefaults() Options {
	if o.Step <= 0 {
		o.Step = DefaultStep
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.MaxPoints <= 0 {
		o.MaxPoints = DefaultMaxPoints
	}
	return o
}

// Enumerator is an exhaustive reference solver. It evaluates every point of
// the lattice spanned by the variables: integral values for binary and
// integer variables, a grid of Step for continuous ones, the fixed value for
// fixed ones. Its answers are exact for pure integer models and grid-exact
// for continuous ones, which makes it suitable for small models and tests.
//
// Ties keep the first point in lattice order, so results are deterministic.
type Enumerator struct {
	opts Options
}

// NewEnumerator creates an enumeration solver.
func NewEnumerator(opts Options) *Enumerator {
	return &Enumerator{opts: opts.withDefaults()}
}

// Name returns "enum".
func (e *Enumerator) Name() string {
	return "enum"
}

// Options returns the effective options.
func (e *Enumerator) Options() Options {
	return e.opts
}

// compiledTerm is a Term with variable names replaced by lattice indices.
type compiledTerm struct {
	coef float64
	idx  []int
}

type compiledExpr struct {
	c     float64
	terms []compiledTerm
}

func (ce compiledExpr) eval(point []float64) float64 {
	sum := ce.c
	for _, t := range ce.terms {
		p := t.coef
		for _, i := range t.idx {
			p *= point[i]
		}
		sum += p
	}
	return sum
}

type compiledConstraint struct {
	body compiledExpr
	rel  gdp.Relation
	rhs  float64
}

func (cc compiledConstraint) satisfied(point []float64, tol float64) bool {
	lhs := cc.body.eval(point)
	switch cc.rel {
	case gdp.LE:
		return lhs <= cc.rhs+tol
	case gdp.GE:
		return lhs >= cc.rhs-tol
	default:
		return math.Abs(lhs-cc.rhs) <= tol
	}
}

func compileExpr(e gdp.Expr, index map[string]int) compiledExpr {
	ce := compiledExpr{c: e.Const}
	for _, t := range e.Terms {
		ct := compiledTerm{coef: t.Coef, idx: make([]int, len(t.Vars))}
		for i, v := range t.Vars {
			ct.idx[i] = index[v]
		}
		ce.terms = append(ce.terms, ct)
	}
	return ce
}

// Solve enumerates the lattice of m and loads the best feasible point.
func (e *Enumerator) Solve(ctx context.Context, m *gdp.Model) (Result, error) {
	if m.HasDisjunctions() {
		return Result{Status: StatusError, Message: ErrUnresolvedModel.Error()}, ErrUnresolvedModel
	}
	obj, err := m.ActiveObjective()
	if err != nil {
		return Result{Status: StatusError, Message: err.Error()}, err
	}

	vars := m.Vars()
	index := make(map[string]int, len(vars))
	axes := make([][]float64, len(vars))
	total := int64(1)
	for i, v := range vars {
		index[v.Name] = i
		axis, err := e.axis(v)
		if err != nil {
			return Result{Status: StatusError, Message: err.Error()}, nil
		}
		if len(axis) == 0 {
			return Result{Status: StatusInfeasible, Message: fmt.Sprintf("variable %s has an empty domain", v.Name)}, nil
		}
		axes[i] = axis
		if total > e.opts.MaxPoints/int64(len(axis)) {
			return Result{
				Status:  StatusError,
				Message: fmt.Sprintf("lattice exceeds %d points", e.opts.MaxPoints),
			}, nil
		}
		total *= int64(len(axis))
	}

	objective := compileExpr(obj.Expr, index)
	var constraints []compiledConstraint
	for _, c := range m.Constraints() {
		cc := compiledConstraint{body: compileExpr(c.Body, index), rel: c.Relation, rhs: c.RHS}
		if c.Body.IsConstant() && !cc.satisfied(nil, e.opts.Tolerance) {
			// Constant rows (violated xor, contradictory fixings) need no search.
			return Result{Status: StatusInfeasible, Message: fmt.Sprintf("constraint %s is violated by constants", c.Name)}, nil
		}
		constraints = append(constraints, cc)
	}

	pos := make([]int, len(vars))
	point := make([]float64, len(vars))
	for i := range vars {
		point[i] = axes[i][0]
	}

	var (
		found     bool
		best      float64
		bestPoint = make([]float64, len(vars))
		evaluated int64
	)
	for {
		evaluated++
		if evaluated%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Result{Status: StatusError, Message: err.Error(), Evaluated: evaluated}, err
			}
		}

		feasible := true
		for _, c := range constraints {
			if !c.satisfied(point, e.opts.Tolerance) {
				feasible = false
				break
			}
		}
		if feasible {
			val := objective.eval(point)
			if !found || obj.Sense.Better(val, best) {
				found = true
				best = val
				copy(bestPoint, point)
			}
		}

		// Odometer increment, last variable fastest.
		i := len(vars) - 1
		for ; i >= 0; i-- {
			pos[i]++
			if pos[i] < len(axes[i]) {
				point[i] = axes[i][pos[i]]
				break
			}
			pos[i] = 0
			point[i] = axes[i][0]
		}
		if i < 0 {
			break
		}
	}

	if !found {
		return Result{Status: StatusInfeasible, Message: "no feasible lattice point", Evaluated: evaluated}, nil
	}

	values := make(map[string]float64, len(vars))
	for i, v := range vars {
		values[v.Name] = bestPoint[i]
	}
	if err := m.SetValues(values); err != nil {
		return Result{Status: StatusError, Message: err.Error(), Evaluated: evaluated}, err
	}
	return Result{
		Status:    StatusOptimal,
		Objective: best,
		Values:    values,
		Evaluated: evaluated,
	}, nil
}

// axis returns the candidate values of a variable.
func (e *Enumerator) axis(v gdp.Var) ([]float64, error) {
	if v.Fixed {
		return []float64{v.Value}, nil
	}
	if math.IsInf(v.Lower, 0) || math.IsInf(v.Upper, 0) {
		return nil, fmt.Errorf("variable %s is unbounded; enumeration needs finite bounds", v.Name)
	}

	limit := float64(e.opts.MaxPoints)
	if v.Domain == gdp.Binary || v.Domain == gdp.Integer {
		lo := math.Ceil(v.Lower - e.opts.Tolerance)
		hi := math.Floor(v.Upper + e.opts.Tolerance)
		if hi-lo+1 > limit {
			return nil, e.tooManyPoints(v)
		}
		var out []float64
		for x := lo; x <= hi; x++ {
			out = append(out, x)
		}
		return out, nil
	}

	// Counted in float64: wide finite ranges overflow int64.
	count := math.Floor((v.Upper-v.Lower)/e.opts.Step+e.opts.Tolerance) + 1
	if math.IsNaN(count) || count > limit {
		return nil, e.tooManyPoints(v)
	}
	n := int64(count)
	out := make([]float64, 0, n+1)
	for i := int64(0); i < n; i++ {
		out = append(out, v.Lower+float64(i)*e.opts.Step)
	}
	if last := out[len(out)-1]; v.Upper-last > e.opts.Tolerance {
		out = append(out, v.Upper)
	}
	return out, nil
}

func (e *Enumerator) tooManyPoints(v gdp.Var) error {
	return fmt.Errorf("variable %s needs more than %d grid points", v.Name, e.opts.MaxPoints)
}
