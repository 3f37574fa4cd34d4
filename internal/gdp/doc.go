// Package gdp implements the in-memory Generalized Disjunctive Program model
// consumed by the branch-and-bound engine.
//
// A Model holds variables, global constraints, objectives and disjunctions.
// Each Disjunction groups alternative Disjuncts; each Disjunct carries a 0/1
// Indicator and the constraints enforced when that indicator is 1.
//
// MODEL LIFECYCLE:
//
//  1. Build: New, AddVar, AddConstraint, AddObjective, AddDisjunction.
//  2. Search: the engine clones the model, toggles disjunctions with
//     Activate/Deactivate and forces decisions with SetIndicator.
//  3. Resolve: FixDisjuncts collapses every disjunction into plain
//     constraints, producing a disjunction-free MINLP for the subsolver.
//
// Resolve rules:
//   - Disjunct with indicator 1: its constraints become global constraints.
//   - Disjunct with indicator 0: its constraints are dropped.
//   - Active xor disjunction: contributes the constant constraint
//     sum(indicators) == 1, so an inconsistent selection resolves to an
//     infeasible model instead of silently relaxing the xor.
//   - Inactive disjunction: contributes nothing beyond its disjuncts.
//
// Component names are NFC-normalised and unique per component kind.
package gdp
