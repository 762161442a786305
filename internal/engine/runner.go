package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"datamedic/internal/checks"
	"datamedic/internal/config"
	"datamedic/internal/warehouse"

	"golang.org/x/sync/errgroup"
)

// WorkerState is one worker slot's view for progress display.
type WorkerState struct {
	WorkerID int

	// CurrentItem is the display name of the running work item, empty when
	// the slot is idle.
	CurrentItem string

	StartedAt time.Time
}

// Idle reports whether the slot has no running item.
func (w WorkerState) Idle() bool { return w.CurrentItem == "" }

// ItemOutcome pairs one work item with its result. The logical check name
// travels as an explicit field from plan to aggregation.
type ItemOutcome struct {
	Suite       string
	CheckName   string
	DisplayName string
	ChunkSpec   string
	ChunkIndex  int
	Chunked     bool
	Result      checks.Result
}

// Runner executes a plan's work items over a fixed-size worker pool sharing
// one warehouse session, tracking live per-worker and per-suite progress.
//
// All mutable shared state lives behind one mutex; Snapshot reads under the
// same lock the workers mutate under, so displays never observe a torn
// state. The lock is never held across query execution.
type Runner struct {
	session *warehouse.Session
	env     *config.Environment
	workers int

	mu           sync.Mutex
	workerState  map[int]WorkerState
	suiteDone    map[string]int
	suiteTotals  map[string]int
	suiteOrder   []string
	doneSuites   []string
	completed    int            // data tests from finished items
	liveProgress map[string]int // display name -> partial progress of in-flight items
	total        int
	outcomes     []ItemOutcome
	thresholds   map[string]any
}

// NewRunner builds a runner over the shared session. workers must be >= 1;
// it is additionally bounded by the plan's item count at run time.
func NewRunner(session *warehouse.Session, env *config.Environment, workers int) (*Runner, error) {
	if env == nil {
		return nil, errors.New("environment is nil")
	}
	if workers <= 0 {
		return nil, fmt.Errorf("workers must be >= 1, got %d", workers)
	}
	return &Runner{
		session: session,
		env:     env,
		workers: workers,
	}, nil
}

// Run executes every work item in the plan and returns one aggregated
// outcome per logical check, in no particular order (callers re-sort by
// requested order).
//
// Completion order across items is non-deterministic. On context
// cancellation the runner stops handing out items, keeps outcomes recorded
// before the cancel, discards items that finish after it, and returns the
// partial aggregation together with the context error.
func (r *Runner) Run(ctx context.Context, plan *Plan) ([]checks.Result, error) {
	if ctx == nil {
		return nil, errors.New("context is nil")
	}
	if plan == nil {
		return nil, errors.New("plan is nil")
	}
	if len(plan.Items) == 0 {
		return nil, nil
	}

	workers := r.workers
	if workers > len(plan.Items) {
		workers = len(plan.Items)
	}

	r.mu.Lock()
	r.workerState = make(map[int]WorkerState, workers)
	for id := 0; id < workers; id++ {
		r.workerState[id] = WorkerState{WorkerID: id}
	}
	r.suiteDone = make(map[string]int, len(plan.SuiteTotals))
	r.suiteTotals = make(map[string]int, len(plan.SuiteTotals))
	r.suiteOrder = r.suiteOrder[:0]
	r.doneSuites = nil
	seen := make(map[string]bool)
	for _, item := range plan.Items {
		if !seen[item.Suite] {
			seen[item.Suite] = true
			r.suiteOrder = append(r.suiteOrder, item.Suite)
			r.suiteTotals[item.Suite] = plan.SuiteTotals[item.Suite]
		}
	}
	r.completed = 0
	r.liveProgress = make(map[string]int)
	r.total = plan.TotalDataTests()
	r.outcomes = nil
	r.thresholds = plan.Thresholds
	r.mu.Unlock()

	g, runCtx := errgroup.WithContext(ctx)

	items := make(chan WorkItem)
	g.Go(func() error {
		defer close(items)
		for _, item := range plan.Items {
			select {
			case items <- item:
			case <-runCtx.Done():
				// Queued-but-unstarted items are abandoned here.
				return nil
			}
		}
		return nil
	})

	for id := 0; id < workers; id++ {
		workerID := id
		g.Go(func() error {
			for item := range items {
				if runCtx.Err() != nil {
					return nil
				}
				r.startItem(workerID, item)
				res := r.runItem(runCtx, item)
				// Items completing after a cancel request are discarded;
				// everything recorded before it is kept.
				r.finishItem(workerID, item, res, runCtx.Err() == nil)
			}
			return nil
		})
	}

	// Workers never surface per-item errors (those become error outcomes),
	// so Wait only reflects pool mechanics.
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return nil, err
	}

	r.mu.Lock()
	outcomes := make([]ItemOutcome, len(r.outcomes))
	copy(outcomes, r.outcomes)
	r.mu.Unlock()

	return Aggregate(outcomes, true), ctx.Err()
}

// runItem executes one work item inside the pool, converting any failure
// into an error outcome tagged with the item's display name rather than
// letting it escape the worker.
func (r *Runner) runItem(ctx context.Context, item WorkItem) checks.Result {
	rc := r.newRunContext(item)

	ictx := ctx
	if item.Timeout > 0 {
		var cancel context.CancelFunc
		ictx, cancel = context.WithTimeout(ctx, item.Timeout)
		defer cancel()
	}

	res := checks.Run(ictx, item.Check, rc)
	if item.Chunked() {
		// Chunk outcomes carry the item's display name; the logical name
		// stays on the ItemOutcome for aggregation.
		res.Name = item.DisplayName
	}
	return res
}

func (r *Runner) newRunContext(item WorkItem) *checks.RunContext {
	bag := map[string]any{
		checks.KeyParallelExecution: true,
		checks.KeyShowProgress:      false,
	}
	if len(r.thresholds) > 0 {
		bag[checks.KeyFailureThresholds] = r.thresholds
	}
	if item.Chunked() {
		bag[checks.KeyChunkInfo] = item.ChunkSpec
		bag[checks.KeyChunkCheckName] = item.DisplayName
	}

	display := item.DisplayName
	limit := item.DataTests
	return &checks.RunContext{
		Environment: r.env.Name,
		Databases:   r.env.DatabaseMap(),
		Schemas:     r.env.SchemaMap(),
		Session:     r.session,
		Config:      bag,
		Progress: func(completed int) {
			r.reportLive(display, completed, limit)
		},
	}
}

func (r *Runner) startItem(workerID int, item WorkItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workerState[workerID] = WorkerState{
		WorkerID:    workerID,
		CurrentItem: item.DisplayName,
		StartedAt:   time.Now(),
	}
}

func (r *Runner) finishItem(workerID int, item WorkItem, res checks.Result, keep bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.workerState[workerID] = WorkerState{WorkerID: workerID}
	delete(r.liveProgress, item.DisplayName)

	if !keep {
		return
	}

	r.outcomes = append(r.outcomes, ItemOutcome{
		Suite:       item.Suite,
		CheckName:   item.CheckName,
		DisplayName: item.DisplayName,
		ChunkSpec:   item.ChunkSpec,
		ChunkIndex:  item.ChunkIndex,
		Chunked:     item.Chunked(),
		Result:      res,
	})

	units := progressUnits(item, res)
	r.completed += units
	r.suiteDone[item.Suite] += units
	if r.suiteDone[item.Suite] >= r.suiteTotals[item.Suite] && !containsString(r.doneSuites, item.Suite) {
		r.doneSuites = append(r.doneSuites, item.Suite)
	}
}

// progressUnits measures an item's contribution to progress in underlying
// sub-checks. Chunks report the sub-check count they actually evaluated;
// atomic items contribute their declared size.
func progressUnits(item WorkItem, res checks.Result) int {
	units := item.DataTests
	if item.Chunked() && res.TotalTested > 0 {
		units = res.TotalTested
	}
	if units > item.DataTests {
		units = item.DataTests
	}
	if units < 1 {
		units = 1
	}
	return units
}

// reportLive folds a check's incremental progress callback into the live
// counter, clamped so an in-flight item never claims more than its share.
func (r *Runner) reportLive(displayName string, completed, limit int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if completed < 0 {
		completed = 0
	}
	if limit > 0 && completed > limit {
		completed = limit
	}
	r.liveProgress[displayName] = completed
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
