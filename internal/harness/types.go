package harness

import (
	"strconv"

	"github.com/roach88/gdplbb/internal/engine"
)

// TraceEvent is one step of a scenario's search trace.
// Bound is text so infinite sentinel bounds survive JSON output.
type TraceEvent struct {
	Step      int64             `json:"step"`
	Kind      string            `json:"kind"`
	Seq       int64             `json:"seq"`
	ParentSeq int64             `json:"parent_seq"`
	Depth     int               `json:"depth"`
	Bound     string            `json:"bound"`
	Status    string            `json:"status"`
	Decisions map[string]string `json:"decisions,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expectation matches.
	Pass bool `json:"pass"`

	RunID     string             `json:"run_id"`
	Status    string             `json:"status"`
	Objective *float64           `json:"objective,omitempty"`
	Selection map[string]string  `json:"selection,omitempty"`
	Values    map[string]float64 `json:"values,omitempty"`

	// ErrorCode is the engine or model error code of a failed run.
	ErrorCode string `json:"error_code,omitempty"`

	// Disjunctions lists the model's active disjunctions in branching order.
	Disjunctions []string `json:"disjunctions"`

	Stats map[string]int `json:"stats"`

	// Trace contains every node event in step order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Stats:  map[string]int{},
	}
}

// AddError adds an expectation failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace converts and appends a node event.
func (r *Result) AddTrace(ev engine.NodeEvent) {
	var decisions map[string]string
	if len(ev.Decisions) > 0 {
		decisions = ev.Decisions
	}
	r.Trace = append(r.Trace, TraceEvent{
		Step:      ev.Step,
		Kind:      string(ev.Kind),
		Seq:       ev.Seq,
		ParentSeq: ev.ParentSeq,
		Depth:     ev.Depth,
		Bound:     strconv.FormatFloat(ev.Bound, 'g', -1, 64),
		Status:    ev.Status,
		Decisions: decisions,
	})
}

// StatNames are the keys of Result.Stats and Expect.Stats, in display order.
var StatNames = []string{
	"nodes_created",
	"nodes_expanded",
	"pushes",
	"terminal_pushes",
	"pruned",
	"subsolves",
	"failed_subsolves",
	"max_queue_len",
}

var eventKinds = []string{
	string(engine.NodeCreated),
	string(engine.NodeExpanded),
	string(engine.NodeAccepted),
	string(engine.NodePruned),
}

// StatsMap flattens engine statistics under StatNames keys.
func StatsMap(s engine.Stats) map[string]int {
	return map[string]int{
		"nodes_created":    s.NodesCreated,
		"nodes_expanded":   s.NodesExpanded,
		"pushes":           s.Pushes,
		"terminal_pushes":  s.TerminalPushes,
		"pruned":           s.Pruned,
		"subsolves":        s.Subsolves,
		"failed_subsolves": s.FailedSubsolves,
		"max_queue_len":    s.MaxQueueLen,
	}
}
