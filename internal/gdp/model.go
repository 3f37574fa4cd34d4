package gdp

import (
	"fmt"
	"math"
)

// Domain restricts the values a variable may take.
type Domain int

const (
	// Continuous variables take any value within their bounds.
	Continuous Domain = iota + 1
	// Integer variables take integral values within their bounds.
	Integer
	// Binary variables take 0 or 1.
	Binary
)

// String returns the lowercase domain name used in model documents.
func (d Domain) String() string {
	switch d {
	case Continuous:
		return "continuous"
	case Integer:
		return "integer"
	case Binary:
		return "binary"
	default:
		return fmt.Sprintf("Domain(%d)", int(d))
	}
}

// ParseDomain parses "continuous", "integer" or "binary".
func ParseDomain(s string) (Domain, error) {
	switch s {
	case "continuous", "real":
		return Continuous, nil
	case "integer", "int":
		return Integer, nil
	case "binary", "bool":
		return Binary, nil
	default:
		return 0, fmt.Errorf("unknown domain %q: must be one of continuous, integer, binary", s)
	}
}

// Var is a decision variable.
type Var struct {
	Name     string
	Domain   Domain
	Lower    float64
	Upper    float64
	Value    float64
	HasValue bool
	Fixed    bool
}

// Sense is the optimisation direction of an objective.
type Sense int

const (
	// Minimize prefers smaller objective values.
	Minimize Sense = iota + 1
	// Maximize prefers larger objective values.
	Maximize
)

// String returns "minimize" or "maximize".
func (s Sense) String() string {
	switch s {
	case Minimize:
		return "minimize"
	case Maximize:
		return "maximize"
	default:
		return fmt.Sprintf("Sense(%d)", int(s))
	}
}

// ParseSense parses "minimize"/"min" or "maximize"/"max".
func ParseSense(s string) (Sense, error) {
	switch s {
	case "minimize", "min":
		return Minimize, nil
	case "maximize", "max":
		return Maximize, nil
	default:
		return 0, fmt.Errorf("unknown sense %q: must be minimize or maximize", s)
	}
}

// Better reports whether a is strictly preferred to b under the sense.
func (s Sense) Better(a, b float64) bool {
	if s == Maximize {
		return a > b
	}
	return a < b
}

// Worst returns the unbounded value no feasible objective can lose to:
// +Inf when minimising, -Inf when maximising.
func (s Sense) Worst() float64 {
	if s == Maximize {
		return math.Inf(-1)
	}
	return math.Inf(1)
}

// Objective is a named objective expression.
type Objective struct {
	Name   string
	Expr   Expr
	Sense  Sense
	Active bool
}

// Model is a Generalized Disjunctive Program.
//
// Component slices keep declaration order; every enumeration the engine
// depends on (variables, active disjunctions, disjuncts) is deterministic.
//
// A Model is not safe for concurrent mutation. Clone before handing a copy
// to another goroutine.
type Model struct {
	name         string
	vars         []*Var
	varIndex     map[string]int
	constraints  []Constraint
	conNames     map[string]bool
	objectives   []*Objective
	disjunctions []*Disjunction
	disjIndex    map[string]int

	// resolved records the outcome of FixDisjuncts, in disjunction order.
	resolved []Resolution
}

// Resolution records which disjunct a disjunction collapsed to.
// Selected is empty when no disjunct had indicator 1.
type Resolution struct {
	Disjunction string
	Selected    string
}

// New creates an empty model.
func New(name string) *Model {
	return &Model{
		name:      CanonicalName(name),
		varIndex:  make(map[string]int),
		conNames:  make(map[string]bool),
		disjIndex: make(map[string]int),
	}
}

// Name returns the model name.
func (m *Model) Name() string {
	return m.name
}

// AddVar declares a variable. Binary variables get [0, 1] bounds regardless
// of the given ones.
func (m *Model) AddVar(v Var) error {
	name, err := checkName(v.Name)
	if err != nil {
		return err
	}
	if _, dup := m.varIndex[name]; dup {
		return newModelError(ErrCodeDuplicateName, name, "variable declared twice")
	}
	if v.Domain == 0 {
		v.Domain = Continuous
	}
	if v.Domain == Binary {
		v.Lower, v.Upper = 0, 1
	}
	if v.Lower > v.Upper {
		return newModelError(ErrCodeInvalidBounds, name, "lower bound %s exceeds upper bound %s",
			formatFloat(v.Lower), formatFloat(v.Upper))
	}
	if v.Domain == Integer && (math.IsInf(v.Lower, 0) || math.IsInf(v.Upper, 0)) {
		return newModelError(ErrCodeInvalidBounds, name, "integer variables need finite bounds")
	}
	v.Name = name
	m.varIndex[name] = len(m.vars)
	m.vars = append(m.vars, &v)
	return nil
}

// AddConstraint declares a global constraint.
func (m *Model) AddConstraint(c Constraint) error {
	name, err := checkName(c.Name)
	if err != nil {
		return err
	}
	if m.conNames[name] {
		return newModelError(ErrCodeDuplicateName, name, "constraint declared twice")
	}
	if err := m.checkExpr(name, c.Body); err != nil {
		return err
	}
	if c.Relation == 0 {
		c.Relation = LE
	}
	c = c.clone()
	c.Name = name
	m.conNames[name] = true
	m.constraints = append(m.constraints, c)
	return nil
}

// AddObjective declares an active objective.
func (m *Model) AddObjective(name string, expr Expr, sense Sense) error {
	n, err := checkName(name)
	if err != nil {
		return err
	}
	for _, o := range m.objectives {
		if o.Name == n {
			return newModelError(ErrCodeDuplicateName, n, "objective declared twice")
		}
	}
	if err := m.checkExpr(n, expr); err != nil {
		return err
	}
	if sense == 0 {
		sense = Minimize
	}
	m.objectives = append(m.objectives, &Objective{Name: n, Expr: expr.clone(), Sense: sense, Active: true})
	return nil
}

// SetObjectiveActive toggles whether an objective counts as active.
func (m *Model) SetObjectiveActive(name string, active bool) error {
	for _, o := range m.objectives {
		if o.Name == CanonicalName(name) {
			o.Active = active
			return nil
		}
	}
	return newModelError(ErrCodeUnknownComponent, name, "no such objective")
}

// Objectives returns copies of all objectives, active or not.
func (m *Model) Objectives() []Objective {
	out := make([]Objective, len(m.objectives))
	for i, o := range m.objectives {
		out[i] = Objective{Name: o.Name, Expr: o.Expr.clone(), Sense: o.Sense, Active: o.Active}
	}
	return out
}

// ActiveObjective returns the single active objective.
func (m *Model) ActiveObjective() (Objective, error) {
	var found *Objective
	for _, o := range m.objectives {
		if !o.Active {
			continue
		}
		if found != nil {
			return Objective{}, newModelError(ErrCodeMultipleObjectives, o.Name,
				"model has more than one active objective (first=%s)", found.Name)
		}
		found = o
	}
	if found == nil {
		return Objective{}, newModelError(ErrCodeNoObjective, m.name, "model has no active objective")
	}
	return Objective{Name: found.Name, Expr: found.Expr.clone(), Sense: found.Sense, Active: true}, nil
}

// ObjectiveValue evaluates the single active objective at the current
// variable values.
func (m *Model) ObjectiveValue() (float64, error) {
	obj, err := m.ActiveObjective()
	if err != nil {
		return 0, err
	}
	return obj.Expr.Eval(m.Values()), nil
}

// Vars returns copies of all variables in declaration order.
func (m *Model) Vars() []Var {
	out := make([]Var, len(m.vars))
	for i, v := range m.vars {
		out[i] = *v
	}
	return out
}

// Var returns a copy of the named variable.
func (m *Model) Var(name string) (Var, bool) {
	i, ok := m.varIndex[CanonicalName(name)]
	if !ok {
		return Var{}, false
	}
	return *m.vars[i], true
}

// FixVar fixes a variable at value.
func (m *Model) FixVar(name string, value float64) error {
	i, ok := m.varIndex[CanonicalName(name)]
	if !ok {
		return newModelError(ErrCodeUnknownVariable, name, "no such variable")
	}
	v := m.vars[i]
	v.Value, v.HasValue, v.Fixed = value, true, true
	return nil
}

// Values returns the current variable assignment. Unset variables map to 0.
func (m *Model) Values() map[string]float64 {
	out := make(map[string]float64, len(m.vars))
	for _, v := range m.vars {
		out[v.Name] = v.Value
	}
	return out
}

// SetValues loads an assignment into the model, e.g. after a solve.
// Fixed variables keep their value.
func (m *Model) SetValues(values map[string]float64) error {
	for name := range values {
		if _, ok := m.varIndex[name]; !ok {
			return newModelError(ErrCodeUnknownVariable, name, "no such variable")
		}
	}
	for _, v := range m.vars {
		if v.Fixed {
			continue
		}
		if val, ok := values[v.Name]; ok {
			v.Value, v.HasValue = val, true
		}
	}
	return nil
}

// Constraints returns copies of the global constraints.
func (m *Model) Constraints() []Constraint {
	out := make([]Constraint, len(m.constraints))
	for i, c := range m.constraints {
		out[i] = c.clone()
	}
	return out
}

// Feasible reports whether values satisfy every bound, domain and global
// constraint within tol. Disjunct constraints are not considered; resolve
// the model first.
func (m *Model) Feasible(values map[string]float64, tol float64) bool {
	for _, v := range m.vars {
		x := values[v.Name]
		if x < v.Lower-tol || x > v.Upper+tol {
			return false
		}
		if v.Domain != Continuous && math.Abs(x-math.Round(x)) > tol {
			return false
		}
		if v.Fixed && math.Abs(x-v.Value) > tol {
			return false
		}
	}
	for _, c := range m.constraints {
		if c.Violation(values) > tol {
			return false
		}
	}
	return true
}

// Validate checks the structural preconditions of the branch-and-bound
// search: exactly one active objective and only xor active disjunctions.
func (m *Model) Validate() error {
	for _, d := range m.disjunctions {
		if d.Active && !d.Xor {
			return newModelError(ErrCodeNonExclusiveDisjunction, d.Name,
				"unable to handle non-exclusive disjunctions")
		}
	}
	if _, err := m.ActiveObjective(); err != nil {
		return err
	}
	return nil
}

// Clone returns a deep, independent copy of the model.
func (m *Model) Clone() *Model {
	c := &Model{
		name:         m.name,
		vars:         make([]*Var, len(m.vars)),
		varIndex:     make(map[string]int, len(m.varIndex)),
		constraints:  make([]Constraint, len(m.constraints)),
		conNames:     make(map[string]bool, len(m.conNames)),
		objectives:   make([]*Objective, len(m.objectives)),
		disjunctions: make([]*Disjunction, len(m.disjunctions)),
		disjIndex:    make(map[string]int, len(m.disjIndex)),
		resolved:     append([]Resolution(nil), m.resolved...),
	}
	for i, v := range m.vars {
		cp := *v
		c.vars[i] = &cp
	}
	for k, v := range m.varIndex {
		c.varIndex[k] = v
	}
	for i, con := range m.constraints {
		c.constraints[i] = con.clone()
	}
	for k := range m.conNames {
		c.conNames[k] = true
	}
	for i, o := range m.objectives {
		c.objectives[i] = &Objective{Name: o.Name, Expr: o.Expr.clone(), Sense: o.Sense, Active: o.Active}
	}
	for i, d := range m.disjunctions {
		c.disjunctions[i] = d.clone()
	}
	for k, v := range m.disjIndex {
		c.disjIndex[k] = v
	}
	return c
}

// checkExpr verifies every variable referenced by expr is declared.
func (m *Model) checkExpr(component string, expr Expr) error {
	for _, name := range expr.Variables() {
		if _, ok := m.varIndex[name]; !ok {
			return newModelError(ErrCodeUnknownVariable, component, "references undeclared variable %q", name)
		}
	}
	return nil
}

func checkName(name string) (string, error) {
	n := CanonicalName(name)
	if n == "" {
		return "", newModelError(ErrCodeInvalidName, "", "component name must not be empty")
	}
	return n, nil
}
