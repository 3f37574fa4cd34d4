package gdp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constraintNames(m *Model) []string {
	var names []string
	for _, c := range m.Constraints() {
		names = append(names, c.Name)
	}
	return names
}

func TestResolve_PromotesSelectedDisjuncts(t *testing.T) {
	m := buildReactorModel(t)
	require.NoError(t, m.Select("reactor", "large"))
	require.NoError(t, m.Select("cooler", "water"))

	r, err := m.Resolve()
	require.NoError(t, err)

	assert.False(t, r.HasDisjunctions())
	assert.Empty(t, r.ActiveDisjunctions())
	assert.Equal(t, []string{
		"cap",
		"reactor.large.lo",
		"reactor.xor",
		"cooler.water.lo",
		"cooler.water.hi",
		"cooler.xor",
	}, constraintNames(r))
	assert.Equal(t, map[string]string{"reactor": "large", "cooler": "water"}, r.Selection())

	// Receiver untouched.
	assert.True(t, m.HasDisjunctions())
	assert.Equal(t, []string{"cap"}, constraintNames(m))
}

func TestResolve_DeactivatedDisjunctionsAreRelaxed(t *testing.T) {
	m := buildReactorModel(t)
	require.NoError(t, m.Deactivate("reactor"))
	require.NoError(t, m.Deactivate("cooler"))

	r, err := m.Resolve()
	require.NoError(t, err)

	// All indicators at 0 and no xor rows: only the global constraint remains.
	assert.Equal(t, []string{"cap"}, constraintNames(r))
	assert.Empty(t, r.Selection())
}

func TestResolve_ViolatedXorIsInfeasible(t *testing.T) {
	m := buildReactorModel(t)
	require.NoError(t, m.Deactivate("cooler"))
	// reactor stays active with no selection: xor row is 0 == 1.

	r, err := m.Resolve()
	require.NoError(t, err)

	assert.Contains(t, constraintNames(r), "reactor.xor")
	assert.False(t, r.Feasible(map[string]float64{"x": 5, "y": 0}, 1e-9))
}

func TestResolve_NonExclusiveDisjunctionAllowsSeveral(t *testing.T) {
	m := New("m")
	require.NoError(t, m.AddVar(Var{Name: "x", Upper: 10}))
	require.NoError(t, m.AddDisjunction("d", false, Disjunct{Name: "a"}, Disjunct{Name: "b"}))
	require.NoError(t, m.SetIndicator("d", "a", 1))
	require.NoError(t, m.SetIndicator("d", "b", 1))

	r, err := m.Resolve()
	require.NoError(t, err)
	assert.True(t, r.Feasible(map[string]float64{"x": 0}, 1e-9))
	assert.Empty(t, r.Selection(), "two disjuncts at 1 is not a single selection")
}

func TestResolve_Idempotent(t *testing.T) {
	m := buildReactorModel(t)
	require.NoError(t, m.Select("reactor", "small"))
	require.NoError(t, m.Select("cooler", "air"))

	once, err := m.Resolve()
	require.NoError(t, err)
	twice, err := once.Resolve()
	require.NoError(t, err)

	assert.Equal(t, once.Hash(), twice.Hash())
	assert.Equal(t, constraintNames(once), constraintNames(twice))
	assert.Equal(t, once.Selection(), twice.Selection())
}

func TestFixDisjuncts_NameCollisionLeavesModelIntact(t *testing.T) {
	m := New("m")
	require.NoError(t, m.AddVar(Var{Name: "x", Upper: 1}))
	require.NoError(t, m.AddConstraint(Constraint{Name: "d.xor", Body: Expr{}.Plus(1, "x"), Relation: LE, RHS: 1}))
	require.NoError(t, m.AddDisjunction("d", true, Disjunct{Name: "a"}))
	require.NoError(t, m.Select("d", "a"))

	err := m.FixDisjuncts()
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeDuplicateName))
	assert.True(t, m.HasDisjunctions())
	assert.Equal(t, []string{"d.xor"}, constraintNames(m))
}
