package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/gdplbb/internal/engine"
	"github.com/roach88/gdplbb/internal/gdp"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates run metadata with minimal required fields.
func createTestRun(id string) engine.RunInfo {
	return engine.RunInfo{
		RunID:        id,
		ModelName:    "two_units",
		ModelHash:    "hash-abc",
		Solver:       "enum",
		Sense:        gdp.Minimize,
		Disjunctions: []string{"unit", "route"},
	}
}

// beginTestRun writes a run so node events have a parent row.
func beginTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.BeginRun(context.Background(), createTestRun(id)); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
}
