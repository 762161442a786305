package engine

import "sort"

// SuiteProgress is one suite's (completed, total) data-test counter.
type SuiteProgress struct {
	Completed int
	Total     int
}

// Snapshot is a consistent, race-free view of a run in flight. Safe to take
// from any goroutine at any cadence; the display poller is its only
// intended consumer.
type Snapshot struct {
	CompletedDataTests int
	TotalDataTests     int

	// Workers holds one entry per pool slot, ordered by worker ID.
	Workers []WorkerState

	Suites map[string]SuiteProgress

	// CompletedSuites lists suites whose counters reached their totals, in
	// completion order.
	CompletedSuites []string
}

// Percent is the overall completion percentage.
func (s Snapshot) Percent() float64 {
	if s.TotalDataTests == 0 {
		return 0
	}
	return float64(s.CompletedDataTests) / float64(s.TotalDataTests) * 100
}

// Snapshot returns the current live state under the same lock the workers
// mutate under.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	completed := r.completed
	for _, partial := range r.liveProgress {
		completed += partial
	}
	if completed > r.total {
		completed = r.total
	}

	workers := make([]WorkerState, 0, len(r.workerState))
	for _, state := range r.workerState {
		workers = append(workers, state)
	}
	sort.Slice(workers, func(i, j int) bool { return workers[i].WorkerID < workers[j].WorkerID })

	suites := make(map[string]SuiteProgress, len(r.suiteTotals))
	for _, name := range r.suiteOrder {
		suites[name] = SuiteProgress{Completed: r.suiteDone[name], Total: r.suiteTotals[name]}
	}

	done := make([]string, len(r.doneSuites))
	copy(done, r.doneSuites)

	return Snapshot{
		CompletedDataTests: completed,
		TotalDataTests:     r.total,
		Workers:            workers,
		Suites:             suites,
		CompletedSuites:    done,
	}
}
