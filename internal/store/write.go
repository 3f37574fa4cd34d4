package store

import (
	"context"
	"fmt"

	"github.com/roach88/gdplbb/internal/engine"
)

// BeginRun inserts a run record with status "running".
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) BeginRun(ctx context.Context, run engine.RunInfo) error {
	disjunctions, err := marshalNames(run.Disjunctions)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, model_name, model_hash, solver, sense, disjunctions)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.RunID,
		run.ModelName,
		run.ModelHash,
		run.Solver,
		run.Sense.String(),
		disjunctions,
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}

	return nil
}

// RecordNode appends one node event to a run's trace.
// Uses ON CONFLICT DO NOTHING for idempotency - rewriting a step is silently ignored.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) RecordNode(ctx context.Context, ev engine.NodeEvent) error {
	decisions, err := marshalDecisions(ev.Decisions)
	if err != nil {
		return fmt.Errorf("record node: %w", err)
	}
	pending, err := marshalNames(ev.Pending)
	if err != nil {
		return fmt.Errorf("record node: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO nodes
		(run_id, step, seq, kind, node_id, parent_seq, depth, bound, status, message, decisions, pending)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		ev.RunID,
		ev.Step,
		ev.Seq,
		string(ev.Kind),
		ev.NodeID,
		ev.ParentSeq,
		ev.Depth,
		formatBound(ev.Bound),
		ev.Status,
		ev.Message,
		decisions,
		pending,
	)
	if err != nil {
		return fmt.Errorf("record node: %w", err)
	}

	return nil
}

// EndRun stores a run's final status and statistics. Optimal runs also get
// a compressed solution document.
//
// The update and the solution insert share one transaction so a reader
// never sees an optimal run without its solution.
func (s *Store) EndRun(ctx context.Context, out engine.RunOutcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("end run: begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		UPDATE runs SET
			status = ?, objective = ?, error = ?,
			nodes_created = ?, nodes_expanded = ?, pushes = ?, terminal_pushes = ?,
			pruned = ?, subsolves = ?, failed_subsolves = ?, max_queue_len = ?
		WHERE id = ?
	`,
		out.Status,
		nullableObjective(out.Objective),
		out.Error,
		out.Stats.NodesCreated,
		out.Stats.NodesExpanded,
		out.Stats.Pushes,
		out.Stats.TerminalPushes,
		out.Stats.Pruned,
		out.Stats.Subsolves,
		out.Stats.FailedSubsolves,
		out.Stats.MaxQueueLen,
		out.RunID,
	)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("end run: unknown run %q", out.RunID)
	}

	if out.Status == "optimal" {
		payload, err := s.encodeSolution(solutionPayload{
			Objective: out.Objective,
			Selection: out.Selection,
			Values:    out.Values,
		})
		if err != nil {
			return fmt.Errorf("end run: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO solutions (run_id, encoding, payload)
			VALUES (?, ?, ?)
			ON CONFLICT(run_id) DO NOTHING
		`, out.RunID, solutionEncoding, payload)
		if err != nil {
			return fmt.Errorf("end run: write solution: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("end run: commit: %w", err)
	}
	return nil
}
