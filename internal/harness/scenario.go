package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/gdplbb/internal/gdp"
	"github.com/roach88/gdplbb/internal/minlp"
)

// Scenario defines a conformance test scenario.
// A scenario solves one model with one solver and engine configuration and
// checks the outcome and the search trace.
type Scenario struct {
	// Name uniquely identifies this scenario. It is also the run id and the
	// golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is the path to a CUE model directory.
	// Relative paths are resolved against the scenario file location.
	Model string `yaml:"model"`

	// Solver configures the subsolver. Zero values mean solver defaults.
	Solver SolverConfig `yaml:"solver,omitempty"`

	// Engine configures the search. Zero values mean engine defaults.
	Engine EngineConfig `yaml:"engine,omitempty"`

	// Expect holds the expected outcome.
	Expect Expect `yaml:"expect"`
}

// SolverConfig selects and tunes a bundled solver.
type SolverConfig struct {
	// Name is a minlp solver name. Defaults to "enum".
	Name string `yaml:"name,omitempty"`

	Step      float64 `yaml:"step,omitempty"`
	Tolerance float64 `yaml:"tolerance,omitempty"`
	MaxPoints int64   `yaml:"max_points,omitempty"`
}

// EngineConfig mirrors the engine options.
type EngineConfig struct {
	// Sense overrides the objective sense ("minimize" or "maximize").
	Sense string `yaml:"sense,omitempty"`

	Parallelism     int  `yaml:"parallelism,omitempty"`
	MaxNodes        int  `yaml:"max_nodes,omitempty"`
	PruneInfeasible bool `yaml:"prune_infeasible,omitempty"`
}

// Expect specifies the expected outcome of a scenario.
type Expect struct {
	// Status is the run status: optimal, infeasible, node_limit, cancelled
	// or error.
	Status string `yaml:"status"`

	// Objective is the expected optimal objective (optimal runs only).
	Objective *float64 `yaml:"objective,omitempty"`

	// Tolerance is the absolute objective tolerance. Defaults to 1e-6.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// Selection is a subset match on the selected disjunct per disjunction.
	Selection map[string]string `yaml:"selection,omitempty"`

	// Error is the expected engine or model error code, e.g. NODE_LIMIT.
	Error string `yaml:"error,omitempty"`

	// Stats is a subset match on search statistics, keyed by StatNames.
	Stats map[string]int `yaml:"stats,omitempty"`

	// Events is a subset match on the number of trace events per kind.
	Events map[string]int `yaml:"events,omitempty"`
}

// Run status values, as recorded by the engine.
const (
	StatusOptimal    = "optimal"
	StatusInfeasible = "infeasible"
	StatusNodeLimit  = "node_limit"
	StatusCancelled  = "cancelled"
	StatusError      = "error"
)

var validStatuses = []string{StatusOptimal, StatusInfeasible, StatusNodeLimit, StatusCancelled, StatusError}

// DefaultTolerance is the objective tolerance when a scenario sets none.
const DefaultTolerance = 1e-6

// LoadScenario reads and parses a scenario YAML file.
// The model path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the model path relative to the provided base path.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "expects:" vs "expect:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the model path BEFORE validation
	if scenario.Model != "" && !filepath.IsAbs(scenario.Model) && basePath != "" {
		scenario.Model = filepath.Join(basePath, scenario.Model)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if info, err := os.Stat(s.Model); err != nil || !info.IsDir() {
		return fmt.Errorf("model directory not found: %s", s.Model)
	}

	if s.Solver.Name != "" && !slices.Contains(minlp.Names(), s.Solver.Name) {
		return fmt.Errorf("solver.name: unknown solver %q, must be one of %v", s.Solver.Name, minlp.Names())
	}
	if s.Solver.Step < 0 || s.Solver.Tolerance < 0 || s.Solver.MaxPoints < 0 {
		return fmt.Errorf("solver: step, tolerance and max_points must be non-negative")
	}

	if s.Engine.Sense != "" {
		if _, err := gdp.ParseSense(s.Engine.Sense); err != nil {
			return fmt.Errorf("engine.sense: %w", err)
		}
	}
	if s.Engine.Parallelism < 0 {
		return fmt.Errorf("engine.parallelism must be non-negative")
	}
	if s.Engine.MaxNodes < 0 {
		return fmt.Errorf("engine.max_nodes must be non-negative")
	}

	return validateExpect(&s.Expect)
}

// validateExpect validates the expect block.
func validateExpect(e *Expect) error {
	if e.Status == "" {
		return fmt.Errorf("expect.status is required")
	}
	if !slices.Contains(validStatuses, e.Status) {
		return fmt.Errorf("expect.status: unknown status %q, must be one of %v", e.Status, validStatuses)
	}

	if e.Status != StatusOptimal {
		if e.Objective != nil {
			return fmt.Errorf("expect.objective is only valid for optimal runs")
		}
		if len(e.Selection) > 0 {
			return fmt.Errorf("expect.selection is only valid for optimal runs")
		}
	}
	if e.Status == StatusOptimal && e.Error != "" {
		return fmt.Errorf("expect.error is not valid for optimal runs")
	}
	if e.Tolerance < 0 {
		return fmt.Errorf("expect.tolerance must be non-negative")
	}

	for name, n := range e.Stats {
		if !slices.Contains(StatNames, name) {
			return fmt.Errorf("expect.stats: unknown stat %q, must be one of %v", name, StatNames)
		}
		if n < 0 {
			return fmt.Errorf("expect.stats.%s must be non-negative", name)
		}
	}
	for kind, n := range e.Events {
		if !slices.Contains(eventKinds, kind) {
			return fmt.Errorf("expect.events: unknown event kind %q, must be one of %v", kind, eventKinds)
		}
		if n < 0 {
			return fmt.Errorf("expect.events.%s must be non-negative", kind)
		}
	}

	return nil
}
