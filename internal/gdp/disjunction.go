package gdp

// Indicator is the binary decision attached to a disjunct.
type Indicator struct {
	Value int
	Fixed bool
}

// Disjunct is one alternative of a disjunction. Its constraints are enforced
// when the indicator is 1.
type Disjunct struct {
	Name        string
	Constraints []Constraint
	Indicator   Indicator
}

func (d *Disjunct) clone() *Disjunct {
	c := &Disjunct{Name: d.Name, Indicator: d.Indicator}
	if len(d.Constraints) > 0 {
		c.Constraints = make([]Constraint, len(d.Constraints))
		for i, con := range d.Constraints {
			c.Constraints[i] = con.clone()
		}
	}
	return c
}

// Disjunction groups alternative disjuncts. Xor disjunctions require exactly
// one disjunct to be selected; non-xor ones require at least one.
type Disjunction struct {
	Name      string
	Disjuncts []*Disjunct
	Xor       bool
	Active    bool
}

func (d *Disjunction) clone() *Disjunction {
	c := &Disjunction{Name: d.Name, Xor: d.Xor, Active: d.Active, Disjuncts: make([]*Disjunct, len(d.Disjuncts))}
	for i, dj := range d.Disjuncts {
		c.Disjuncts[i] = dj.clone()
	}
	return c
}

func (d *Disjunction) disjunct(name string) (*Disjunct, bool) {
	n := CanonicalName(name)
	for _, dj := range d.Disjuncts {
		if dj.Name == n {
			return dj, true
		}
	}
	return nil, false
}

// AddDisjunction declares an active disjunction over the given disjuncts.
// Disjunct order is preserved and decides branching order.
func (m *Model) AddDisjunction(name string, xor bool, disjuncts ...Disjunct) error {
	n, err := checkName(name)
	if err != nil {
		return err
	}
	if _, dup := m.disjIndex[n]; dup {
		return newModelError(ErrCodeDuplicateName, n, "disjunction declared twice")
	}
	if len(disjuncts) == 0 {
		return newModelError(ErrCodeUnknownComponent, n, "disjunction needs at least one disjunct")
	}

	djn := &Disjunction{Name: n, Xor: xor, Active: true}
	seen := make(map[string]bool)
	for _, dj := range disjuncts {
		djName, err := checkName(dj.Name)
		if err != nil {
			return err
		}
		if seen[djName] {
			return newModelError(ErrCodeDuplicateName, n+"."+djName, "disjunct declared twice")
		}
		seen[djName] = true
		if dj.Indicator.Value != 0 && dj.Indicator.Value != 1 {
			return newModelError(ErrCodeInvalidIndicator, n+"."+djName, "indicator must be 0 or 1, got %d", dj.Indicator.Value)
		}

		cp := &Disjunct{Name: djName, Indicator: dj.Indicator}
		conSeen := make(map[string]bool)
		for _, c := range dj.Constraints {
			cn, err := checkName(c.Name)
			if err != nil {
				return err
			}
			if conSeen[cn] {
				return newModelError(ErrCodeDuplicateName, n+"."+djName+"."+cn, "constraint declared twice")
			}
			conSeen[cn] = true
			if err := m.checkExpr(n+"."+djName+"."+cn, c.Body); err != nil {
				return err
			}
			c = c.clone()
			c.Name = cn
			if c.Relation == 0 {
				c.Relation = LE
			}
			cp.Constraints = append(cp.Constraints, c)
		}
		djn.Disjuncts = append(djn.Disjuncts, cp)
	}

	m.disjIndex[n] = len(m.disjunctions)
	m.disjunctions = append(m.disjunctions, djn)
	return nil
}

func (m *Model) lookupDisjunction(name string) (*Disjunction, error) {
	i, ok := m.disjIndex[CanonicalName(name)]
	if !ok {
		return nil, newModelError(ErrCodeUnknownComponent, name, "no such disjunction")
	}
	return m.disjunctions[i], nil
}

// Disjunctions returns the names of every disjunction, active or not.
func (m *Model) Disjunctions() []string {
	out := make([]string, len(m.disjunctions))
	for i, d := range m.disjunctions {
		out[i] = d.Name
	}
	return out
}

// ActiveDisjunctions returns the names of the active disjunctions in
// declaration order.
func (m *Model) ActiveDisjunctions() []string {
	var out []string
	for _, d := range m.disjunctions {
		if d.Active {
			out = append(out, d.Name)
		}
	}
	return out
}

// IsXor reports whether the named disjunction is exclusive-or.
func (m *Model) IsXor(name string) (bool, error) {
	d, err := m.lookupDisjunction(name)
	if err != nil {
		return false, err
	}
	return d.Xor, nil
}

// Disjuncts returns the disjunct names of a disjunction in declaration order.
func (m *Model) Disjuncts(disjunction string) ([]string, error) {
	d, err := m.lookupDisjunction(disjunction)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(d.Disjuncts))
	for i, dj := range d.Disjuncts {
		out[i] = dj.Name
	}
	return out, nil
}

// Activate enforces the disjunction's xor constraint on resolve.
func (m *Model) Activate(disjunction string) error {
	d, err := m.lookupDisjunction(disjunction)
	if err != nil {
		return err
	}
	d.Active = true
	return nil
}

// Deactivate stops the disjunction's xor constraint from being enforced.
// Its disjuncts still contribute constraints according to their indicators.
func (m *Model) Deactivate(disjunction string) error {
	d, err := m.lookupDisjunction(disjunction)
	if err != nil {
		return err
	}
	d.Active = false
	return nil
}

// Indicator returns the indicator of a disjunct.
func (m *Model) Indicator(disjunction, disjunct string) (Indicator, error) {
	d, err := m.lookupDisjunction(disjunction)
	if err != nil {
		return Indicator{}, err
	}
	dj, ok := d.disjunct(disjunct)
	if !ok {
		return Indicator{}, newModelError(ErrCodeUnknownComponent, disjunction+"."+disjunct, "no such disjunct")
	}
	return dj.Indicator, nil
}

// SetIndicator forces a disjunct's decision. Setting a fixed indicator to its
// current value is a no-op; changing it fails with ErrCodeFixedIndicator.
func (m *Model) SetIndicator(disjunction, disjunct string, value int) error {
	if value != 0 && value != 1 {
		return newModelError(ErrCodeInvalidIndicator, disjunction+"."+disjunct, "indicator must be 0 or 1, got %d", value)
	}
	d, err := m.lookupDisjunction(disjunction)
	if err != nil {
		return err
	}
	dj, ok := d.disjunct(disjunct)
	if !ok {
		return newModelError(ErrCodeUnknownComponent, disjunction+"."+disjunct, "no such disjunct")
	}
	if dj.Indicator.Fixed {
		if dj.Indicator.Value != value {
			return newModelError(ErrCodeFixedIndicator, d.Name+"."+dj.Name,
				"indicator is fixed at %d", dj.Indicator.Value)
		}
		return nil
	}
	dj.Indicator.Value = value
	return nil
}

// Select sets the named disjunct's indicator to 1 and every sibling's to 0.
func (m *Model) Select(disjunction, disjunct string) error {
	d, err := m.lookupDisjunction(disjunction)
	if err != nil {
		return err
	}
	if _, ok := d.disjunct(disjunct); !ok {
		return newModelError(ErrCodeUnknownComponent, disjunction+"."+disjunct, "no such disjunct")
	}
	target := CanonicalName(disjunct)
	for _, dj := range d.Disjuncts {
		v := 0
		if dj.Name == target {
			v = 1
		}
		if err := m.SetIndicator(d.Name, dj.Name, v); err != nil {
			return err
		}
	}
	return nil
}

// Selection returns, for every disjunction with exactly one indicator at 1,
// the selected disjunct. Disjunctions already collapsed by FixDisjuncts
// report the disjunct they collapsed to.
func (m *Model) Selection() map[string]string {
	out := make(map[string]string)
	for _, r := range m.resolved {
		if r.Selected != "" {
			out[r.Disjunction] = r.Selected
		}
	}
	for _, d := range m.disjunctions {
		selected := ""
		count := 0
		for _, dj := range d.Disjuncts {
			if dj.Indicator.Value == 1 {
				selected = dj.Name
				count++
			}
		}
		if count == 1 {
			out[d.Name] = selected
		}
	}
	return out
}

// Resolutions returns what FixDisjuncts collapsed, in disjunction order.
func (m *Model) Resolutions() []Resolution {
	return append([]Resolution(nil), m.resolved...)
}

// HasDisjunctions reports whether any disjunction remains unresolved.
func (m *Model) HasDisjunctions() bool {
	return len(m.disjunctions) > 0
}
