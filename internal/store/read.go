package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/roach88/gdplbb/internal/engine"
)

// Run is a stored run record.
type Run struct {
	ID           string
	ModelName    string
	ModelHash    string
	Solver       string
	Sense        string
	Disjunctions []string
	Status       string
	Objective    float64 // NaN when the run has no objective
	Error        string
	Stats        engine.Stats
}

// Solution is the stored solution of an optimal run.
type Solution struct {
	RunID     string
	Objective float64
	Selection map[string]string
	Values    map[string]float64
}

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	ModelHash string
	Status    string
	Limit     int
}

const runColumns = `
	id, model_name, model_hash, solver, sense, disjunctions, status, objective, error,
	nodes_created, nodes_expanded, pushes, terminal_pushes, pruned,
	subsolves, failed_subsolves, max_queue_len`

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns runs matching the filter.
// Results are ordered by id; run IDs are UUIDv7 so this is creation order.
//
// Returns an empty slice (not nil) if no runs match.
func (s *Store) ListRuns(ctx context.Context, f RunFilter) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1 = 1`
	var args []any
	if f.ModelHash != "" {
		query += ` AND model_hash = ?`
		args = append(args, f.ModelHash)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY id COLLATE BINARY ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadNodes returns the trace of a run in chronological order.
// Results are ordered deterministically: ORDER BY step ASC, seq ASC.
//
// Returns an empty slice (not nil) if the run has no events.
func (s *Store) ReadNodes(ctx context.Context, runID string) ([]engine.NodeEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, step, seq, kind, node_id, parent_seq, depth, bound, status, message, decisions, pending
		FROM nodes
		WHERE run_id = ?
		ORDER BY step ASC, seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	events := []engine.NodeEvent{}
	for rows.Next() {
		var (
			ev        engine.NodeEvent
			kind      string
			bound     string
			decisions string
			pending   string
		)
		if err := rows.Scan(
			&ev.RunID, &ev.Step, &ev.Seq, &kind, &ev.NodeID, &ev.ParentSeq, &ev.Depth,
			&bound, &ev.Status, &ev.Message, &decisions, &pending,
		); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		ev.Kind = engine.NodeEventKind(kind)
		if ev.Bound, err = parseBound(bound); err != nil {
			return nil, err
		}
		if ev.Decisions, err = unmarshalDecisions(decisions); err != nil {
			return nil, err
		}
		if ev.Pending, err = unmarshalNames(pending); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return events, nil
}

// ReadSolution returns the solution of an optimal run.
// Returns sql.ErrNoRows if the run has none.
func (s *Store) ReadSolution(ctx context.Context, runID string) (Solution, error) {
	var (
		encoding string
		payload  []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT encoding, payload FROM solutions WHERE run_id = ?
	`, runID).Scan(&encoding, &payload)
	if err != nil {
		return Solution{}, err
	}

	p, err := s.decodeSolution(encoding, payload)
	if err != nil {
		return Solution{}, fmt.Errorf("read solution %q: %w", runID, err)
	}
	return Solution{
		RunID:     runID,
		Objective: p.Objective,
		Selection: p.Selection,
		Values:    p.Values,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run          Run
		disjunctions string
		objective    sql.NullFloat64
	)
	err := row.Scan(
		&run.ID, &run.ModelName, &run.ModelHash, &run.Solver, &run.Sense, &disjunctions,
		&run.Status, &objective, &run.Error,
		&run.Stats.NodesCreated, &run.Stats.NodesExpanded, &run.Stats.Pushes,
		&run.Stats.TerminalPushes, &run.Stats.Pruned, &run.Stats.Subsolves,
		&run.Stats.FailedSubsolves, &run.Stats.MaxQueueLen,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	if run.Disjunctions, err = unmarshalNames(disjunctions); err != nil {
		return Run{}, err
	}
	run.Objective = math.NaN()
	if objective.Valid {
		run.Objective = objective.Float64
	}
	return run, nil
}
