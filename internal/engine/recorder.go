package engine

import (
	"context"

	"github.com/roach88/gdplbb/internal/gdp"
)

// NodeEventKind is what happened to a node.
type NodeEventKind string

const (
	// NodeCreated is emitted once a node is evaluated and pushed.
	NodeCreated NodeEventKind = "pushed"
	// NodeExpanded is emitted when a node is popped and branched on.
	NodeExpanded NodeEventKind = "expanded"
	// NodeAccepted is emitted for the terminal node that wins the search.
	NodeAccepted NodeEventKind = "accepted"
	// NodePruned is emitted when a popped node is discarded unexplored.
	NodePruned NodeEventKind = "pruned"
)

// RunInfo describes a run when it starts.
type RunInfo struct {
	RunID        string
	ModelName    string
	ModelHash    string
	Solver       string
	Sense        gdp.Sense
	Disjunctions []string
}

// NodeEvent is one step of the search trace.
type NodeEvent struct {
	RunID string

	// Step orders the events of a run chronologically, starting at 1.
	Step int64

	Seq       int64
	NodeID    string
	ParentSeq int64
	Depth     int
	Kind      NodeEventKind
	Bound     float64
	Status    string
	Message   string
	Decisions map[string]string
	Pending   []string
}

// RunOutcome describes how a run ended.
type RunOutcome struct {
	RunID     string
	Status    string // "optimal", "infeasible", "node_limit", "cancelled", "error"
	Objective float64
	Selection map[string]string
	Values    map[string]float64
	Stats     Stats
	Error     string
}

// Recorder receives the search trace. Implemented by store.Store.
//
// Recorder errors never abort a search: the engine logs them and carries on.
type Recorder interface {
	BeginRun(ctx context.Context, run RunInfo) error
	RecordNode(ctx context.Context, ev NodeEvent) error
	EndRun(ctx context.Context, out RunOutcome) error
}

// nopRecorder discards everything.
type nopRecorder struct{}

func (nopRecorder) BeginRun(context.Context, RunInfo) error { return nil }
func (nopRecorder) RecordNode(context.Context, NodeEvent) error { return nil }
func (nopRecorder) EndRun(context.Context, RunOutcome) error { return nil }

// MemoryRecorder keeps the trace in memory. Useful for tests and the
// scenario harness.
type MemoryRecorder struct {
	Runs     []RunInfo
	Events   []NodeEvent
	Outcomes []RunOutcome
}

// BeginRun records run metadata.
func (r *MemoryRecorder) BeginRun(_ context.Context, run RunInfo) error {
	r.Runs = append(r.Runs, run)
	return nil
}

// RecordNode records a node event.
func (r *MemoryRecorder) RecordNode(_ context.Context, ev NodeEvent) error {
	r.Events = append(r.Events, ev)
	return nil
}

// EndRun records the outcome.
func (r *MemoryRecorder) EndRun(_ context.Context, out RunOutcome) error {
	r.Outcomes = append(r.Outcomes, out)
	return nil
}

// EventsOf returns the recorded events of one kind, in order.
func (r *MemoryRecorder) EventsOf(kind NodeEventKind) []NodeEvent {
	var out []NodeEvent
	for _, ev := range r.Events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
