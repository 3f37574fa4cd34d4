// Package compiler turns CUE model documents into gdp models.
//
// A document is a CUE instance with a top-level model struct:
//
//	model: {
//		name: "two_units"
//		var: x: {domain: "continuous", lower: 0, upper: 4}
//		objective: cost: {sense: "minimize", linear: {x: 2}}
//		constraint: cap: {linear: {x: 1}, rel: "<=", rhs: 3}
//		disjunction: unit: {
//			xor: true
//			disjunct: small: {
//				indicator: {value: 0, fixed: false}
//				constraint: lo: {linear: {x: 1}, rel: ">=", rhs: 2}
//			}
//		}
//	}
//
// Struct field order is declaration order and decides branching order.
// Errors are *CompileError values carrying the CUE source position.
package compiler
