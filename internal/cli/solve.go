package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/gdplbb/internal/compiler"
	"github.com/roach88/gdplbb/internal/engine"
	"github.com/roach88/gdplbb/internal/gdp"
	"github.com/roach88/gdplbb/internal/harness"
	"github.com/roach88/gdplbb/internal/minlp"
	"github.com/roach88/gdplbb/internal/store"
)

// SolveOptions holds flags for the solve command.
type SolveOptions struct {
	*RootOptions

	Solver          string
	Step            float64
	Tolerance       float64
	MaxPoints       int64
	SubsolveTimeout time.Duration

	Sense           string // optional override of the objective sense
	Parallelism     int
	MaxNodes        int
	PruneInfeasible bool

	Database string // optional; records the run when set
}

// SolveResult is the JSON payload of a successful solve.
type SolveResult struct {
	RunID     string             `json:"run_id"`
	Model     string             `json:"model"`
	Status    string             `json:"status"`
	Objective float64            `json:"objective"`
	Selection map[string]string  `json:"selection"`
	Values    map[string]float64 `json:"values"`
	Stats     map[string]int     `json:"stats"`
}

// NewSolveCommand creates the solve command.
func NewSolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "solve <model-dir>",
		Short: "Solve a GDP model by branch and bound",
		Long: `Solve the GDP model defined by the CUE files in a directory.

Explores disjunct selections best-first, solving a relaxed subproblem
at each node, and writes the optimal selection and values back into
the model. Ctrl-C cancels the search.

Exit codes:
  0 - Optimal solution found
  1 - No feasible selection, or the node limit was reached
  2 - Command error (bad model, unavailable solver, cancelled, etc.)

Examples:
  gdplbb solve ./models/two_units
  gdplbb solve ./models/two_units --parallel 4 --db ./gdplbb.db
  gdplbb solve ./models/capacity --sense minimize --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Solver, "solver", "enum", fmt.Sprintf("subsolver (%v)", minlp.Names()))
	cmd.Flags().Float64Var(&opts.Step, "step", 0, "grid step for continuous variables (0 = solver default)")
	cmd.Flags().Float64Var(&opts.Tolerance, "tolerance", 0, "feasibility tolerance (0 = solver default)")
	cmd.Flags().Int64Var(&opts.MaxPoints, "max-points", 0, "lattice size cap per subsolve (0 = solver default)")
	cmd.Flags().DurationVar(&opts.SubsolveTimeout, "subsolve-timeout", 0, "time limit for each subsolve (0 = none)")
	cmd.Flags().StringVar(&opts.Sense, "sense", "", "override the objective sense (minimize|maximize)")
	cmd.Flags().IntVar(&opts.Parallelism, "parallel", 1, "children evaluated concurrently per expansion")
	cmd.Flags().IntVar(&opts.MaxNodes, "max-nodes", 0, "node budget (0 = unlimited)")
	cmd.Flags().BoolVar(&opts.PruneInfeasible, "prune-infeasible", false, "discard popped nodes with no feasible relaxation instead of expanding them")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")

	return cmd
}

func runSolve(parent context.Context, opts *SolveOptions, modelDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.Logger()

	model, err := compiler.LoadModel(modelDir)
	if err != nil {
		_ = formatter.Error(errorCode(err), err.Error(), nil)
		return reportedExit(ExitCommandError, "failed to load model", err)
	}
	formatter.VerboseLog("Loaded model %s (%d disjunction(s))", model.Name(), len(model.ActiveDisjunctions()))

	solver, err := minlp.New(opts.Solver, minlp.Options{
		Step:      opts.Step,
		Tolerance: opts.Tolerance,
		MaxPoints: opts.MaxPoints,
		Deadline:  opts.SubsolveTimeout,
	})
	if err != nil {
		_ = formatter.Error(string(engine.ErrCodeSolverUnavailable), err.Error(), nil)
		return reportedExit(ExitCommandError, "failed to create solver", err)
	}

	engineOpts := []engine.EngineOption{
		engine.WithLogger(logger),
		engine.WithParallelism(opts.Parallelism),
		engine.WithMaxNodes(opts.MaxNodes),
		engine.WithPruneInfeasible(opts.PruneInfeasible),
	}
	if opts.Sense != "" {
		sense, err := gdp.ParseSense(opts.Sense)
		if err != nil {
			_ = formatter.Error(compiler.ErrCodeGeneric, err.Error(), nil)
			return reportedExit(ExitCommandError, "invalid --sense", err)
		}
		engineOpts = append(engineOpts, engine.WithSense(sense))
	}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
		engineOpts = append(engineOpts, engine.WithRecorder(st))
	}

	// Setup signal handling for graceful shutdown
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, cancelling search", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	eng := engine.New(solver, engineOpts...)
	res, err := eng.Solve(ctx, model)
	if err != nil {
		_ = formatter.Error(errorCode(err), err.Error(), searchDetails(err))
		return reportedExit(searchExitCode(err), "solve failed", err)
	}

	out := SolveResult{
		RunID:     res.RunID,
		Model:     model.Name(),
		Status:    res.Status.String(),
		Objective: res.Objective,
		Selection: res.Selection,
		Values:    res.Values,
		Stats:     harness.StatsMap(res.Stats),
	}
	return formatter.Success(out, func(w io.Writer) {
		writeSolveText(w, out)
	})
}

func writeSolveText(w io.Writer, r SolveResult) {
	fmt.Fprintf(w, "✓ %s: %s\n", r.Model, r.Status)
	fmt.Fprintf(w, "Run: %s\n", r.RunID)
	fmt.Fprintf(w, "Objective: %g\n", r.Objective)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Selection ===")
	for _, d := range sortedKeys(r.Selection) {
		fmt.Fprintf(w, "  %s = %s\n", d, r.Selection[d])
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Values ===")
	for _, v := range sortedKeys(r.Values) {
		fmt.Fprintf(w, "  %s = %g\n", v, r.Values[v])
	}
	fmt.Fprintln(w)

	writeStatsText(w, r.Stats)
}

func writeStatsText(w io.Writer, stats map[string]int) {
	fmt.Fprintln(w, "=== Stats ===")
	for _, name := range harness.StatNames {
		fmt.Fprintf(w, "  %-16s %d\n", name+":", stats[name])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
