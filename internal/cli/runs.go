package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gdplbb/internal/compiler"
	"github.com/roach88/gdplbb/internal/harness"
	"github.com/roach88/gdplbb/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database  string
	RunID     string // optional - show one run and its solution
	ModelHash string
	Status    string
	Limit     int
}

// RunSummary is one stored run as printed by the runs command.
type RunSummary struct {
	ID           string             `json:"id"`
	Model        string             `json:"model"`
	ModelHash    string             `json:"model_hash"`
	Solver       string             `json:"solver"`
	Sense        string             `json:"sense"`
	Disjunctions []string           `json:"disjunctions"`
	Status       string             `json:"status"`
	Objective    *float64           `json:"objective,omitempty"`
	Error        string             `json:"error,omitempty"`
	Stats        map[string]int     `json:"stats"`
	Selection    map[string]string  `json:"selection,omitempty"`
	Values       map[string]float64 `json:"values,omitempty"`
}

// RunsResult holds the runs command output.
type RunsResult struct {
	Runs []RunSummary `json:"runs"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Long: `List the runs recorded in a database by solve --db.

With --run, shows a single run with its stored solution.

Examples:
  gdplbb runs --db ./gdplbb.db
  gdplbb runs --db ./gdplbb.db --status optimal --limit 10
  gdplbb runs --db ./gdplbb.db --run 0192f0c4-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show a single run")
	cmd.Flags().StringVar(&opts.ModelHash, "model-hash", "", "only runs of this model hash")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only runs with this status")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of runs (0 = all)")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var result RunsResult
	if opts.RunID != "" {
		summary, err := readRunSummary(ctx, st, opts.RunID)
		if errors.Is(err, sql.ErrNoRows) {
			_ = formatter.Error(compiler.ErrCodeNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil)
			return reportedExit(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID), nil)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		result.Runs = []RunSummary{summary}
	} else {
		runs, err := st.ListRuns(ctx, store.RunFilter{
			ModelHash: opts.ModelHash,
			Status:    opts.Status,
			Limit:     opts.Limit,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		result.Runs = make([]RunSummary, 0, len(runs))
		for _, r := range runs {
			result.Runs = append(result.Runs, summarizeRun(r))
		}
	}

	return formatter.Success(result, func(w io.Writer) {
		writeRunsText(w, result, opts.RunID != "")
	})
}


// openExistingStore opens a database that must already exist; store.Open
// would otherwise create an empty one.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func readRunSummary(ctx context.Context, st *store.Store, id string) (RunSummary, error) {
	run, err := st.ReadRun(ctx, id)
	if err != nil {
		return RunSummary{}, err
	}
	summary := summarizeRun(run)
	if run.Status != "optimal" {
		return summary, nil
	}
	sol, err := st.ReadSolution(ctx, id)
	if err != nil {
		return RunSummary{}, fmt.Errorf("read solution: %w", err)
	}
	summary.Selection = sol.Selection
	summary.Values = sol.Values
	return summary, nil
}

func summarizeRun(r store.Run) RunSummary {
	s := RunSummary{
		ID:           r.ID,
		Model:        r.ModelName,
		ModelHash:    r.ModelHash,
		Solver:       r.Solver,
		Sense:        r.Sense,
		Disjunctions: r.Disjunctions,
		Status:       r.Status,
		Error:        r.Error,
		Stats:        harness.StatsMap(r.Stats),
	}
	if !math.IsNaN(r.Objective) {
		obj := r.Objective
		s.Objective = &obj
	}
	return s
}

func writeRunsText(w io.Writer, result RunsResult, detail bool) {
	if len(result.Runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return
	}

	if !detail {
		for _, r := range result.Runs {
			fmt.Fprintf(w, "%s  %-12s %-10s %s\n", r.ID, r.Status, objectiveText(r.Objective), r.Model)
		}
		return
	}

	r := result.Runs[0]
	fmt.Fprintf(w, "Run: %s\n", r.ID)
	fmt.Fprintf(w, "Model: %s (%s)\n", r.Model, r.ModelHash)
	fmt.Fprintf(w, "Solver: %s, sense: %s\n", r.Solver, r.Sense)
	fmt.Fprintf(w, "Disjunctions: %s\n", strings.Join(r.Disjunctions, ", "))
	fmt.Fprintf(w, "Status: %s\n", r.Status)
	fmt.Fprintf(w, "Objective: %s\n", objectiveText(r.Objective))
	if r.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", r.Error)
	}
	fmt.Fprintln(w)

	if len(r.Selection) > 0 {
		fmt.Fprintln(w, "=== Selection ===")
		for _, d := range sortedKeys(r.Selection) {
			fmt.Fprintf(w, "  %s = %s\n", d, r.Selection[d])
		}
		fmt.Fprintln(w)
	}
	writeStatsText(w, r.Stats)
}

func objectiveText(obj *float64) string {
	if obj == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *obj)
}
