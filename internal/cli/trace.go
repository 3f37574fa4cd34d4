package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gdplbb/internal/compiler"
	"github.com/roach88/gdplbb/internal/engine"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Kind     string // optional - filter to one event kind
}

// TraceEvent is a single node event in the trace timeline.
type TraceEvent struct {
	Step      int64             `json:"step"`
	Kind      string            `json:"kind"`
	Seq       int64             `json:"seq"`
	ParentSeq int64             `json:"parent_seq"`
	Depth     int               `json:"depth"`
	Bound     string            `json:"bound"`
	Status    string            `json:"status,omitempty"`
	Message   string            `json:"message,omitempty"`
	Decisions map[string]string `json:"decisions,omitempty"`
	Pending   []string          `json:"pending,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID        string       `json:"run_id"`
	Status       string       `json:"status"`
	Disjunctions []string     `json:"disjunctions"`
	Timeline     []TraceEvent `json:"timeline"`
	Counts       TraceCounts  `json:"counts"`
}

// TraceCounts holds per-kind event counts for the whole run, before any
// --kind filter.
type TraceCounts struct {
	Total    int `json:"total"`
	Created  int `json:"created"`
	Expanded int `json:"expanded"`
	Accepted int `json:"accepted"`
	Pruned   int `json:"pruned"`
}

var traceKinds = []string{
	string(engine.NodeCreated),
	string(engine.NodeExpanded),
	string(engine.NodeAccepted),
	string(engine.NodePruned),
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the search trace of a run",
		Long: `Show the node events recorded for a run, in the order the search
produced them.

Each event names the node's sequence number, its parent, its depth in the
branching order, its bound and the disjunct decisions made so far.

Examples:
  gdplbb trace --db ./gdplbb.db --run 0192f0c4-...
  gdplbb trace --db ./gdplbb.db --run 0192f0c4-... --kind pruned
  gdplbb trace --db ./gdplbb.db --run 0192f0c4-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", fmt.Sprintf("filter to one event kind (%s)", strings.Join(traceKinds, "|")))

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Kind != "" && !slices.Contains(traceKinds, opts.Kind) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid kind %q: must be one of %v", opts.Kind, traceKinds))
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		_ = formatter.Error(compiler.ErrCodeNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil)
		return reportedExit(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID), nil)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	events, err := st.ReadNodes(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	result := TraceResult{
		RunID:        run.ID,
		Status:       run.Status,
		Disjunctions: run.Disjunctions,
		Timeline:     buildTimeline(events, opts.Kind),
		Counts:       countEvents(events),
	}

	return formatter.Success(result, func(w io.Writer) {
		writeTraceText(w, result, opts.Verbose)
	})
}

// buildTimeline converts stored node events to timeline events.
// When kindFilter is set, only events of that kind are kept.
func buildTimeline(events []engine.NodeEvent, kindFilter string) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(events))
	for _, ev := range events {
		if kindFilter != "" && string(ev.Kind) != kindFilter {
			continue
		}
		te := TraceEvent{
			Step:      ev.Step,
			Kind:      string(ev.Kind),
			Seq:       ev.Seq,
			ParentSeq: ev.ParentSeq,
			Depth:     ev.Depth,
			Bound:     strconv.FormatFloat(ev.Bound, 'g', -1, 64),
			Status:    ev.Status,
			Message:   ev.Message,
			Pending:   ev.Pending,
		}
		if len(ev.Decisions) > 0 {
			te.Decisions = ev.Decisions
		}
		timeline = append(timeline, te)
	}
	return timeline
}

func countEvents(events []engine.NodeEvent) TraceCounts {
	c := TraceCounts{Total: len(events)}
	for _, ev := range events {
		switch ev.Kind {
		case engine.NodeCreated:
			c.Created++
		case engine.NodeExpanded:
			c.Expanded++
		case engine.NodeAccepted:
			c.Accepted++
		case engine.NodePruned:
			c.Pruned++
		}
	}
	return c
}

// writeTraceText outputs the trace result as text.
func writeTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Run: %s\n", result.RunID)
	fmt.Fprintf(w, "Status: %s\n", result.Status)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %-8s seq=%d parent=%d depth=%d bound=%s %s\n",
			ev.Step, strings.ToUpper(ev.Kind), ev.Seq, ev.ParentSeq, ev.Depth, ev.Bound,
			formatDecisions(ev.Decisions, result.Disjunctions))
		if verbose && ev.Status != "" {
			fmt.Fprintf(w, "       Status: %s\n", ev.Status)
		}
		if verbose && ev.Message != "" {
			fmt.Fprintf(w, "       Message: %s\n", ev.Message)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Counts ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Counts.Total)
	fmt.Fprintf(w, "  Created:      %d\n", result.Counts.Created)
	fmt.Fprintf(w, "  Expanded:     %d\n", result.Counts.Expanded)
	fmt.Fprintf(w, "  Accepted:     %d\n", result.Counts.Accepted)
	fmt.Fprintf(w, "  Pruned:       %d\n", result.Counts.Pruned)
}

// formatDecisions prints decisions in branching order, so output is
// deterministic and reads like the search path.
func formatDecisions(decisions map[string]string, order []string) string {
	if len(decisions) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(decisions))
	for _, d := range order {
		if dj, ok := decisions[d]; ok {
			parts = append(parts, d+"="+dj)
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
