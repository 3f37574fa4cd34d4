package harness

import (
	"fmt"
	"math"
	"sort"
)

// Check compares a result against a scenario's expectations and returns
// one message per mismatch. Map expectations use subset semantics: only
// the listed keys are compared.
func Check(result *Result, expect *Expect) []string {
	var errs []string

	if result.Status != expect.Status {
		errs = append(errs, fmt.Sprintf("status: expected %s, got %s", expect.Status, result.Status))
	}

	if expect.Error != "" && result.ErrorCode != expect.Error {
		errs = append(errs, fmt.Sprintf("error: expected %s, got %q", expect.Error, result.ErrorCode))
	}

	if expect.Objective != nil {
		tol := expect.Tolerance
		if tol == 0 {
			tol = DefaultTolerance
		}
		switch {
		case result.Objective == nil:
			errs = append(errs, fmt.Sprintf("objective: expected %g, got none", *expect.Objective))
		case math.Abs(*result.Objective-*expect.Objective) > tol:
			errs = append(errs, fmt.Sprintf("objective: expected %g ± %g, got %g", *expect.Objective, tol, *result.Objective))
		}
	}

	for _, name := range sortedKeys(expect.Selection) {
		want := expect.Selection[name]
		got, ok := result.Selection[name]
		if !ok {
			errs = append(errs, fmt.Sprintf("selection.%s: expected %s, got nothing selected", name, want))
			continue
		}
		if got != want {
			errs = append(errs, fmt.Sprintf("selection.%s: expected %s, got %s", name, want, got))
		}
	}

	for _, name := range sortedKeys(expect.Stats) {
		if got := result.Stats[name]; got != expect.Stats[name] {
			errs = append(errs, fmt.Sprintf("stats.%s: expected %d, got %d", name, expect.Stats[name], got))
		}
	}

	if len(expect.Events) > 0 {
		counts := make(map[string]int)
		for _, ev := range result.Trace {
			counts[ev.Kind]++
		}
		for _, kind := range sortedKeys(expect.Events) {
			if got := counts[kind]; got != expect.Events[kind] {
				errs = append(errs, fmt.Sprintf("events.%s: expected %d, got %d", kind, expect.Events[kind], got))
			}
		}
	}

	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
