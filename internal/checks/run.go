package checks

import (
	"context"
	"fmt"
	"time"
)

// Run wraps a Check's Execute with uniform lifecycle bookkeeping: status
// transitions, timing stamps, status derivation, and error capture. It is
// the single place that guarantees every Result has a well-formed status and
// timing, regardless of how the underlying Check behaves, and it never
// panics its way out of a worker: recovered panics become error results.
func Run(ctx context.Context, c Check, rc *RunContext) (res Result) {
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res = ErrorResult(c, fmt.Errorf("check panicked: %v", r))
			res.StartedAt = started
			res.CompletedAt = time.Now()
			res.SetExecutionTime(time.Since(started))
		}
	}()

	out, err := c.Execute(ctx, rc)
	completed := time.Now()

	if err != nil {
		res = ErrorResult(c, err)
		res.StartedAt = started
		res.CompletedAt = completed
		res.SetExecutionTime(completed.Sub(started))
		return res
	}

	out.StartedAt = started
	out.CompletedAt = completed
	out.SetExecutionTime(completed.Sub(started))

	// Derive status for checks that only filled in counts. Checks that set
	// an explicit status (error, skipped, threshold overrides) keep it.
	if out.Status == "" || out.Status == StatusPending || out.Status == StatusRunning {
		if out.FailedRecords == 0 {
			out.Status = StatusPassed
		} else {
			out.Status = StatusFailed
		}
	}
	if out.FailureRate == 0 && out.TotalTested > 0 {
		out.FailureRate = Rate(out.FailedRecords, out.TotalTested)
	}
	if out.Name == "" {
		out.Name = c.Name()
	}
	if out.Description == "" {
		out.Description = c.Title()
	}

	return out
}
