package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/gdplbb/internal/gdp"
	"github.com/roach88/gdplbb/internal/minlp"
)

// Engine is the best-first branch-and-bound search over a model's
// disjunctions.
//
// Each search node is a decision vector, not a model: the node's subproblem
// is rebuilt from the run's root template whenever it has to be solved. The
// queue is owned by the goroutine calling Solve; with WithParallelism the
// children of one expansion are solved concurrently and handed back before
// any of them is pushed.
//
// INVARIANTS:
//   - the caller's model is only written after a terminal node is accepted
//   - node seqs are assigned on the search goroutine, in disjunct order
//   - a node whose bound is the unbounded sentinel is never accepted
//
// An Engine holds no per-run state and may run several searches
// concurrently.
type Engine struct {
	solver      minlp.Solver
	sense       gdp.Sense
	senseSet    bool
	parallelism int
	maxNodes    int
	pruneWorst  bool
	recorder    Recorder
	logger      *slog.Logger
	runIDGen    RunIDGenerator
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithSense overrides the optimisation direction of the queue. By default
// the sense of the model's active objective is used.
func WithSense(s gdp.Sense) EngineOption {
	return func(e *Engine) {
		e.sense = s
		e.senseSet = true
	}
}

// WithParallelism sets how many children of one expansion are solved at the
// same time. Values below 1 mean 1.
func WithParallelism(n int) EngineOption {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.parallelism = n
	}
}

// WithMaxNodes caps the number of nodes a run may create.
//
// Default: 0 (unlimited). Use WithMaxNodes(3) for testing budget enforcement.
func WithMaxNodes(n int) EngineOption {
	return func(e *Engine) {
		e.maxNodes = n
	}
}

// WithPruneInfeasible discards popped nodes whose bound is the unbounded
// sentinel instead of expanding them. The default expands every node.
func WithPruneInfeasible(prune bool) EngineOption {
	return func(e *Engine) {
		e.pruneWorst = prune
	}
}

// WithRecorder sets the sink for the search trace.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		if r == nil {
			r = nopRecorder{}
		}
		e.recorder = r
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRunIDGenerator sets the run id source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) EngineOption {
	return func(e *Engine) {
		if g != nil {
			e.runIDGen = g
		}
	}
}

// New creates an Engine that delegates every subproblem to solver.
func New(solver minlp.Solver, opts ...EngineOption) *Engine {
	e := &Engine{
		solver:      solver,
		parallelism: 1,
		recorder:    nopRecorder{},
		logger:      slog.Default(),
		runIDGen:    UUIDv7Generator{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Available reports whether the configured subsolver can run.
func (e *Engine) Available() error {
	return minlp.Available(e.solver)
}

// Stats is the search effort of one run.
type Stats struct {
	// NodesCreated counts evaluated nodes, root included.
	NodesCreated int
	// NodesExpanded counts popped nodes that were branched on.
	NodesExpanded int
	// Pushes counts queue pushes, root included.
	Pushes int
	// TerminalPushes counts pushes of nodes with nothing left to decide.
	TerminalPushes int
	// Pruned counts popped nodes discarded without expansion or acceptance.
	Pruned int
	// Subsolves counts calls to the subsolver, the final re-solve included.
	Subsolves int
	// FailedSubsolves counts subsolves that did not report optimal.
	FailedSubsolves int
	// MaxQueueLen is the largest queue length observed.
	MaxQueueLen int
}

// Result is the outcome of a successful search.
type Result struct {
	RunID string

	// Status is the status of the final re-solve of the caller's model.
	Status minlp.Status

	// Objective is the optimal objective value.
	Objective float64

	// Selection maps every decided disjunction to its selected disjunct.
	Selection map[string]string

	// Values is the optimal variable assignment.
	Values map[string]float64

	// Model is the caller's model, now disjunction-free and solved.
	Model *gdp.Model

	Stats Stats
}

// run is the state of one Solve call.
type run struct {
	id        string
	sense     gdp.Sense
	template  *gdp.Model
	positions map[string]int
	disjuncts map[string][]string
	clock     *Clock
	queue     *nodeQueue
	budget    *nodeBudget
	stats     Stats
	log       *slog.Logger
}

// Solve runs the best-first search on model.
//
// On success the model is mutated in place: the winning selection is written
// onto its unfixed indicators, its disjunctions are collapsed with
// FixDisjuncts, and it is re-solved so its variables hold the optimum.
// On any error the model is left untouched, except when the final re-solve
// itself fails.
//
// Errors:
//   - *gdp.ModelError (wrapped) if the model fails validation
//   - *SearchError with ErrCodeNoFeasibleSolution if the queue drains, or
//     before any subsolve when the fixed indicators contradict the xor logic
//   - *SearchError with ErrCodeNodeLimit if the node budget runs out
//   - *SearchError with ErrCodeCancelled if ctx is done
func (e *Engine) Solve(ctx context.Context, model *gdp.Model) (*Result, error) {
	if err := e.Available(); err != nil {
		return nil, &SearchError{
			Code:    ErrCodeSolverUnavailable,
			Message: "subsolver cannot run",
			Err:     err,
		}
	}
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("validate model %q: %w", model.Name(), err)
	}

	r, err := e.newRun(model)
	if err != nil {
		return nil, err
	}

	e.record(r, func() error {
		return e.recorder.BeginRun(ctx, RunInfo{
			RunID:        r.id,
			ModelName:    model.Name(),
			ModelHash:    model.Hash(),
			Solver:       e.solver.Name(),
			Sense:        r.sense,
			Disjunctions: model.ActiveDisjunctions(),
		})
	})
	r.log.Info("search starting",
		"model", model.Name(),
		"solver", e.solver.Name(),
		"sense", r.sense.String(),
		"disjunctions", len(r.positions))

	res, err := e.search(ctx, r, model)
	e.finish(ctx, r, res, err)
	return res, err
}

func (e *Engine) newRun(model *gdp.Model) (*run, error) {
	sense := e.sense
	if !e.senseSet {
		obj, err := model.ActiveObjective()
		if err != nil {
			return nil, fmt.Errorf("validate model %q: %w", model.Name(), err)
		}
		sense = obj.Sense
	}

	id := e.runIDGen.Generate()
	r := &run{
		id:        id,
		sense:     sense,
		positions: make(map[string]int),
		disjuncts: make(map[string][]string),
		clock:     NewClock(),
		queue:     newNodeQueue(sense),
		budget:    newNodeBudget(e.maxNodes),
		log:       e.logger.With("run", id),
	}

	// The root template: every active disjunction becomes pending, which
	// means inactive with all unfixed indicators at 0.
	r.template = model.Clone()
	for i, name := range model.ActiveDisjunctions() {
		r.positions[name] = i
		names, err := r.template.Disjuncts(name)
		if err != nil {
			return nil, err
		}
		r.disjuncts[name] = names
		if err := r.template.Deactivate(name); err != nil {
			return nil, err
		}
		for _, dj := range names {
			ind, err := r.template.Indicator(name, dj)
			if err != nil {
				return nil, err
			}
			if !ind.Fixed {
				if err := r.template.SetIndicator(name, dj, 0); err != nil {
					return nil, err
				}
			}
		}
	}
	return r, nil
}

func (e *Engine) search(ctx context.Context, r *run, model *gdp.Model) (*Result, error) {
	pending := model.ActiveDisjunctions()
	sat, err := logicSatisfiable(model)
	if err != nil {
		return nil, err
	}
	if !sat {
		r.log.Info("disjunction logic is unsatisfiable", "disjunctions", len(pending))
		return nil, NewUnsatisfiableLogicError(r.id, r.stats)
	}
	if !r.budget.Reserve(1) {
		return nil, NewNodeLimitError(r.id, 1, r.budget.Limit(), r.stats)
	}
	root := newRootNode(r.clock.NextSeq(), pending)
	if err := e.evaluate(ctx, r, root); err != nil {
		return nil, err
	}
	e.push(ctx, r, root)

	for {
		if err := ctx.Err(); err != nil {
			return nil, e.cancelled(r, err)
		}

		node, ok := r.queue.Pop()
		if !ok {
			r.log.Info("search exhausted", "nodes", r.stats.NodesCreated)
			return nil, NewNoFeasibleSolutionError(r.id, r.stats)
		}
		r.log.Debug("node popped",
			"seq", node.Seq,
			"bound", node.Bound,
			"decisions", node.Decisions)

		if node.Terminal() || (e.pruneWorst && !node.Feasible()) {
			if !node.Feasible() {
				r.stats.Pruned++
				e.emit(ctx, r, node, NodePruned)
				continue
			}
			e.emit(ctx, r, node, NodeAccepted)
			return e.writeBack(ctx, r, node, model)
		}

		children, err := e.expand(ctx, r, node)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			e.push(ctx, r, child)
		}
	}
}

// expand branches on the node's first pending disjunction, one child per
// disjunct, and evaluates every child.
func (e *Engine) expand(ctx context.Context, r *run, node *SearchNode) ([]*SearchNode, error) {
	disjunction := node.Pending[0]
	names := r.disjuncts[disjunction]

	if !r.budget.Reserve(len(names)) {
		return nil, NewNodeLimitError(r.id, r.budget.Created()+len(names), r.budget.Limit(), r.stats)
	}
	r.stats.NodesExpanded++
	e.emit(ctx, r, node, NodeExpanded)

	children := make([]*SearchNode, len(names))
	for i, dj := range names {
		children[i] = node.child(r.clock.NextSeq(), dj, r.positions[disjunction])
	}

	if e.parallelism <= 1 || len(children) == 1 {
		for _, child := range children {
			if err := e.evaluate(ctx, r, child); err != nil {
				return nil, err
			}
		}
		return children, nil
	}

	results := make([]minlp.Result, len(children))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, child := range children {
		i, child := i, child
		g.Go(func() error {
			res, err := e.subsolve(gctx, r, child)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, e.cancelled(r, err)
	}
	for i, child := range children {
		e.bound(r, child, results[i])
	}
	return children, nil
}

// evaluate solves the node's subproblem and records its bound.
func (e *Engine) evaluate(ctx context.Context, r *run, node *SearchNode) error {
	res, err := e.subsolve(ctx, r, node)
	if err != nil {
		return e.cancelled(r, err)
	}
	e.bound(r, node, res)
	return nil
}

// subsolve materialises the node's subproblem and hands it to the solver.
// Solver failures are folded into the result; only cancellation of ctx is
// returned as an error. Safe for concurrent use on distinct nodes.
func (e *Engine) subsolve(ctx context.Context, r *run, node *SearchNode) (minlp.Result, error) {
	sub, err := r.materialise(node)
	if err != nil {
		// A decision that contradicts a fixed indicator has no solution.
		return minlp.Result{Status: minlp.StatusInfeasible, Message: err.Error()}, nil
	}

	res, err := e.solver.Solve(ctx, sub)
	if err != nil {
		if ctx.Err() != nil {
			return minlp.Result{}, ctx.Err()
		}
		return minlp.Result{Status: minlp.StatusError, Message: err.Error()}, nil
	}
	return res, nil
}

// bound stores a subsolve outcome on the node. Runs on the search goroutine.
func (e *Engine) bound(r *run, node *SearchNode, res minlp.Result) {
	node.setBound(res, r.sense)
	r.stats.NodesCreated++
	r.stats.Subsolves++
	if node.Status != minlp.StatusOptimal {
		r.stats.FailedSubsolves++
	}
	r.log.Info("node bound",
		"seq", node.Seq,
		"depth", node.Depth,
		"bound", node.Bound,
		"status", node.Status.String())
}

// materialise builds the disjunction-free subproblem of a node: the root
// template with every decided disjunction re-activated and its selection
// applied, collapsed by FixDisjuncts.
func (r *run) materialise(node *SearchNode) (*gdp.Model, error) {
	m := r.template.Clone()
	for disjunction, disjunct := range node.Decisions {
		if err := m.Activate(disjunction); err != nil {
			return nil, err
		}
		if err := m.Select(disjunction, disjunct); err != nil {
			return nil, err
		}
	}
	if err := m.FixDisjuncts(); err != nil {
		return nil, err
	}
	return m, nil
}

func (e *Engine) push(ctx context.Context, r *run, node *SearchNode) {
	r.queue.Push(node)
	r.stats.Pushes++
	if node.Terminal() {
		r.stats.TerminalPushes++
	}
	if n := r.queue.Len(); n > r.stats.MaxQueueLen {
		r.stats.MaxQueueLen = n
	}
	e.emit(ctx, r, node, NodeCreated)
}

// writeBack copies the winning decisions onto the caller's model, collapses
// its disjunctions in place and re-solves it.
func (e *Engine) writeBack(ctx context.Context, r *run, node *SearchNode, model *gdp.Model) (*Result, error) {
	for _, disjunction := range model.ActiveDisjunctions() {
		selected, ok := node.Decisions[disjunction]
		if !ok {
			continue
		}
		for _, dj := range r.disjuncts[disjunction] {
			ind, err := model.Indicator(disjunction, dj)
			if err != nil {
				return nil, err
			}
			if ind.Fixed {
				continue
			}
			v := 0
			if dj == selected {
				v = 1
			}
			if err := model.SetIndicator(disjunction, dj, v); err != nil {
				return nil, err
			}
		}
	}
	if err := model.FixDisjuncts(); err != nil {
		return nil, fmt.Errorf("fix disjuncts: %w", err)
	}

	res, err := e.solver.Solve(ctx, model)
	r.stats.Subsolves++
	if err == nil && res.Status != minlp.StatusOptimal {
		err = errors.New(res.Message)
	}
	if err != nil {
		r.stats.FailedSubsolves++
		if ctx.Err() != nil {
			return nil, e.cancelled(r, ctx.Err())
		}
		return nil, &SearchError{
			Code:    ErrCodeFinalSolveFailed,
			Message: fmt.Sprintf("re-solve after write-back reported %s", res.Status),
			RunID:   r.id,
			Stats:   r.stats,
			Err:     err,
		}
	}

	r.log.Info("search complete",
		"objective", res.Objective,
		"nodes", r.stats.NodesCreated,
		"expanded", r.stats.NodesExpanded)

	return &Result{
		RunID:     r.id,
		Status:    res.Status,
		Objective: res.Objective,
		Selection: model.Selection(),
		Values:    model.Values(),
		Model:     model,
		Stats:     r.stats,
	}, nil
}

func (e *Engine) cancelled(r *run, err error) *SearchError {
	return &SearchError{
		Code:    ErrCodeCancelled,
		Message: "search cancelled",
		RunID:   r.id,
		Stats:   r.stats,
		Err:     err,
	}
}

func (e *Engine) emit(ctx context.Context, r *run, node *SearchNode, kind NodeEventKind) {
	step := r.clock.NextStep()
	e.record(r, func() error {
		return e.recorder.RecordNode(ctx, NodeEvent{
			RunID:     r.id,
			Step:      step,
			Seq:       node.Seq,
			NodeID:    node.ID,
			ParentSeq: node.ParentSeq,
			Depth:     node.Depth,
			Kind:      kind,
			Bound:     node.Bound,
			Status:    node.Status.String(),
			Message:   node.Message,
			Decisions: node.Decisions,
			Pending:   node.Pending,
		})
	})
}

func (e *Engine) finish(ctx context.Context, r *run, res *Result, err error) {
	out := RunOutcome{RunID: r.id, Stats: r.stats, Objective: math.NaN()}
	var se *SearchError
	switch {
	case err == nil:
		out.Status = "optimal"
		out.Objective = res.Objective
		out.Selection = res.Selection
		out.Values = res.Values
		out.Stats = res.Stats
	case errors.As(err, &se) && se.Code == ErrCodeNoFeasibleSolution:
		out.Status = "infeasible"
		out.Error = err.Error()
	case errors.As(err, &se) && se.Code == ErrCodeNodeLimit:
		out.Status = "node_limit"
		out.Error = err.Error()
	case errors.As(err, &se) && se.Code == ErrCodeCancelled:
		out.Status = "cancelled"
		out.Error = err.Error()
	default:
		out.Status = "error"
		out.Error = err.Error()
	}
	// The outcome is written even when ctx is what ended the run.
	e.record(r, func() error {
		return e.recorder.EndRun(context.WithoutCancel(ctx), out)
	})
}

// record runs a recorder call. Recorder failures are logged and the search
// continues.
func (e *Engine) record(r *run, call func() error) {
	if err := call(); err != nil {
		r.log.Warn("recorder failed", "error", err)
	}
}
