package checks

import "time"

// Status is the lifecycle state of one check (or chunk) evaluation.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// Result records one evaluation of a Check or of one chunk of a
// decomposable Check.
type Result struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      Status `json:"status"`

	// TotalTested is the number of data points examined; FailedRecords is
	// how many of them violated the check. FailureRate is a percentage
	// recomputed from the two, never averaged.
	TotalTested   int     `json:"total_tested"`
	FailedRecords int     `json:"failed_records"`
	FailureRate   float64 `json:"failure_rate"`

	// FailureDetails is free text, one bullet per distinct violation.
	FailureDetails string `json:"failure_details,omitempty"`

	// ExecutionTime is wall time in seconds. Nil when the evaluation ran
	// inside a parallel batch, where a single item's wall time is not
	// meaningful.
	ExecutionTime *float64 `json:"execution_time,omitempty"`

	// ErrorMessage is populated only when Status is StatusError.
	ErrorMessage string `json:"error_message,omitempty"`

	StartedAt   time.Time      `json:"started_at,omitempty"`
	CompletedAt time.Time      `json:"completed_at,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Passed reports whether the evaluation passed.
func (r Result) Passed() bool { return r.Status == StatusPassed }

// Failed reports whether the evaluation failed or errored.
func (r Result) Failed() bool { return r.Status == StatusFailed || r.Status == StatusError }

// SuccessRate is the inverse of FailureRate, as a percentage.
func (r Result) SuccessRate() float64 {
	if r.TotalTested == 0 {
		return 0
	}
	return float64(r.TotalTested-r.FailedRecords) / float64(r.TotalTested) * 100
}

// SetExecutionTime stamps the wall time as seconds.
func (r *Result) SetExecutionTime(d time.Duration) {
	secs := d.Seconds()
	r.ExecutionTime = &secs
}

// Rate computes failed/total as a percentage, with the zero-total guard the
// whole result model relies on.
func Rate(failed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total) * 100
}

// NewResult builds a result for a check with derived status and rate: passed
// when nothing failed, failed otherwise.
func NewResult(c Check, totalTested, failedRecords int, details string) Result {
	status := StatusPassed
	if failedRecords > 0 {
		status = StatusFailed
	}
	return Result{
		Name:           c.Name(),
		Description:    c.Title(),
		Status:         status,
		TotalTested:    totalTested,
		FailedRecords:  failedRecords,
		FailureRate:    Rate(failedRecords, totalTested),
		FailureDetails: details,
	}
}

// ErrorResult builds an error-status result carrying the failure cause.
func ErrorResult(c Check, err error) Result {
	return Result{
		Name:         c.Name(),
		Description:  c.Title(),
		Status:       StatusError,
		ErrorMessage: err.Error(),
	}
}

// SkippedResult builds a skipped-status result with an explanatory message.
func SkippedResult(c Check, reason string) Result {
	return Result{
		Name:           c.Name(),
		Description:    c.Title(),
		Status:         StatusSkipped,
		FailureDetails: reason,
	}
}
