package gdp

// FixDisjuncts collapses every disjunction in place, turning the model into a
// disjunction-free MINLP:
//
//   - indicators become fixed at their current value
//   - constraints of disjuncts at 1 are promoted to global constraints named
//     "<disjunction>.<disjunct>.<constraint>"
//   - constraints of disjuncts at 0 are dropped
//   - every active disjunction adds a constant "<disjunction>.xor" constraint
//     (== 1 for xor, >= 1 otherwise) over its indicator values
//
// Calling FixDisjuncts on a model without disjunctions changes nothing.
func (m *Model) FixDisjuncts() error {
	if len(m.disjunctions) == 0 {
		return nil
	}

	var promoted []Constraint
	var resolved []Resolution
	for _, d := range m.disjunctions {
		selected := ""
		sum := 0
		for _, dj := range d.Disjuncts {
			if dj.Indicator.Value != 1 {
				continue
			}
			sum++
			if selected == "" {
				selected = dj.Name
			}
			for _, c := range dj.Constraints {
				pc := c.clone()
				pc.Name = d.Name + "." + dj.Name + "." + c.Name
				promoted = append(promoted, pc)
			}
		}
		if d.Active {
			rel := GE
			if d.Xor {
				rel = EQ
			}
			promoted = append(promoted, Constraint{
				Name:     d.Name + ".xor",
				Body:     Constant(float64(sum)),
				Relation: rel,
				RHS:      1,
			})
		}
		if sum != 1 {
			selected = ""
		}
		resolved = append(resolved, Resolution{Disjunction: d.Name, Selected: selected})
	}

	for _, c := range promoted {
		if m.conNames[c.Name] {
			return newModelError(ErrCodeDuplicateName, c.Name, "promoted constraint collides with a global constraint")
		}
	}

	for _, c := range promoted {
		m.conNames[c.Name] = true
		m.constraints = append(m.constraints, c)
	}
	m.resolved = append(m.resolved, resolved...)
	m.disjunctions = nil
	m.disjIndex = make(map[string]int)
	return nil
}

// Resolve returns a disjunction-free clone of the model with every disjunct
// fixed at its current indicator value. The receiver is not modified.
func (m *Model) Resolve() (*Model, error) {
	c := m.Clone()
	if err := c.FixDisjuncts(); err != nil {
		return nil, err
	}
	return c, nil
}
