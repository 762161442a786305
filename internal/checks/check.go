package checks

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"datamedic/internal/warehouse"

	"github.com/spf13/cast"
)

// Check is a named, reusable data-quality validation unit.
//
// A Check is constructed once at catalog-build time and must hold no per-run
// state: the same instance may evaluate several chunks concurrently from
// multiple workers.
type Check interface {
	Name() string
	Title() string
	Category() string

	// Execute runs the validation using only the RunContext. A returned
	// error means the check could not be evaluated (infrastructure failure,
	// bad configuration); a data-quality failure is a Result with
	// FailedRecords > 0, not an error.
	Execute(ctx context.Context, rc *RunContext) (Result, error)
}

// Sizer is implemented by checks that represent more than one underlying
// data test. The count feeds progress denominators, never correctness.
type Sizer interface {
	DataTestCount() int
}

// Config-bag keys the runner guarantees on every RunContext.
const (
	KeyParallelExecution = "parallel_execution"
	KeyShowProgress      = "show_progress"
	KeyChunkInfo         = "chunk_info"
	KeyChunkCheckName    = "chunk_check_name"
	KeyFailureThresholds = "failure_thresholds"
)

// RunContext is the immutable bundle of warehouse identifiers, the shared
// session, and a config bag used to pass chunk selection and progress hooks
// into a Check without widening its interface.
type RunContext struct {
	Environment string
	Databases   map[string]string
	Schemas     map[string]string
	Session     *warehouse.Session
	Config      map[string]any

	// Progress, when non-nil, reports how many of the check's data tests
	// have completed so far. Checks may call it at any cadence; the runner
	// folds it into live progress display only.
	Progress func(completed int)
}

// QualifiedTable returns the fully qualified, quoted table name for the
// given logical database and schema roles.
func (rc *RunContext) QualifiedTable(databaseKey, schemaKey, table string) (string, error) {
	database := rc.Databases[databaseKey]
	schema := rc.Schemas[schemaKey]
	if database == "" || schema == "" {
		return "", fmt.Errorf("invalid database/schema keys: %s.%s", databaseKey, schemaKey)
	}
	return warehouse.QualifyTable(database, schema, table), nil
}

// Parallel reports whether this invocation runs inside the worker pool.
func (rc *RunContext) Parallel() bool {
	return cast.ToBool(rc.Config[KeyParallelExecution])
}

// ShowProgress reports whether the check may write its own progress output.
// Always false inside the worker pool.
func (rc *RunContext) ShowProgress() bool {
	if rc.Config == nil {
		return false
	}
	v, ok := rc.Config[KeyShowProgress]
	if !ok {
		return true
	}
	return cast.ToBool(v)
}

// ChunkInfo returns the chunk-range spec for this invocation, if any
// (e.g. "relationships_6-10").
func (rc *RunContext) ChunkInfo() (string, bool) {
	s := cast.ToString(rc.Config[KeyChunkInfo])
	return s, s != ""
}

// FailureThreshold resolves the acceptable failure rate (percent) for a
// check name, consulting per-check then per-category entries in the config
// bag. Returns fallback when neither is set.
func (rc *RunContext) FailureThreshold(name, category string, fallback float64) float64 {
	thresholds := cast.ToStringMap(rc.Config[KeyFailureThresholds])
	if v, ok := thresholds[name]; ok {
		return cast.ToFloat64(v)
	}
	if v, ok := thresholds[category]; ok {
		return cast.ToFloat64(v)
	}
	return fallback
}

// ReportProgress invokes the context's progress hook, if any.
func (rc *RunContext) ReportProgress(completed int) {
	if rc.Progress != nil {
		rc.Progress(completed)
	}
}

// ParseChunkRange parses a chunk spec of the form "<label>_a-b" into its
// 1-based inclusive bounds. The label is not interpreted; each decomposable
// check knows its own.
func ParseChunkRange(spec string) (start, end int, err error) {
	idx := strings.LastIndex(spec, "_")
	if idx < 0 {
		return 0, 0, fmt.Errorf("malformed chunk spec %q", spec)
	}
	lo, hi, ok := strings.Cut(spec[idx+1:], "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed chunk range in %q", spec)
	}
	start, err = strconv.Atoi(lo)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed chunk range in %q: %w", spec, err)
	}
	end, err = strconv.Atoi(hi)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed chunk range in %q: %w", spec, err)
	}
	if start < 1 || end < start {
		return 0, 0, fmt.Errorf("chunk range %d-%d out of order in %q", start, end, spec)
	}
	return start, end, nil
}

// SliceForChunk returns the [start, end] sub-slice (1-based inclusive bounds)
// of a decomposable check's sub-validation list, clamped to its length.
func SliceForChunk[T any](items []T, start, end int) []T {
	if start < 1 {
		start = 1
	}
	if end > len(items) {
		end = len(items)
	}
	if start > len(items) {
		return nil
	}
	return items[start-1 : end]
}
