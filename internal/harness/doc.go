// Package harness provides conformance testing for the branch-and-bound engine.
//
// The harness loads a CUE model, solves it with the configured solver and
// engine options, and checks the outcome and the recorded search trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: two_units
//	description: "Best-first search picks the cheapest unit and route"
//	model: ../models/two_units
//	solver:
//	  name: enum
//	  step: 0.5
//	engine:
//	  parallelism: 1
//	  max_nodes: 0
//	  prune_infeasible: false
//	expect:
//	  status: optimal
//	  objective: 4
//	  selection: { unit: large, route: a }
//	  stats: { nodes_expanded: 3 }
//	  events: { accepted: 1 }
//
// Unknown fields are rejected, so a typo fails the load instead of silently
// skipping an expectation.
//
// # Deterministic Testing
//
// The run id is the scenario name and the trace is ordered by the engine's
// logical step counter, so the same scenario always renders the same text.
// Each run records into its own in-memory SQLite store and the result is read
// back from it, which also exercises the store round trip.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/two_units.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
