package engine

import (
	"fmt"
	"time"

	"datamedic/internal/checks"
)

// WorkItem is the unit scheduled onto a worker: a whole check, or one chunk
// of a decomposable check.
type WorkItem struct {
	Suite string

	// CheckName is the logical check name. Aggregation groups on this field
	// alone; it is never reconstructed from the display name.
	CheckName string

	// DisplayName is what an operator sees while the item runs:
	// the check name, or "<name>_chunk_<i>" for chunks.
	DisplayName string

	// Check is the shared, read-only check instance.
	Check checks.Check

	// ChunkSpec is the "<label>_a-b" 1-based inclusive sub-check range for
	// chunked items; empty for atomic items.
	ChunkSpec string

	// ChunkIndex is the 1-based chunk ordinal, 0 for atomic items. It is the
	// deterministic key used to stabilize aggregated detail ordering.
	ChunkIndex int

	// DataTests is how many underlying sub-validations this item covers.
	DataTests int

	// Timeout is the advisory per-check timeout (0 = none). Applied as
	// context cancellation around the item; actual query abort is the
	// driver's concern.
	Timeout time.Duration
}

// Chunked reports whether this item is one chunk of a decomposed check.
func (w WorkItem) Chunked() bool { return w.ChunkSpec != "" }

// SuiteChecks pairs a suite name with its member checks in run order.
type SuiteChecks struct {
	Name   string
	Checks []checks.Check
}

// Plan is the execution plan for one run: the ordered work items plus
// per-suite progress denominators. Built once, read-only during execution.
type Plan struct {
	Items []WorkItem

	// SuiteTotals counts declared data tests per suite. A chunk's share of
	// progress is measured in underlying sub-checks, not in work items, so
	// these are sums of declared sizes, not item counts.
	SuiteTotals map[string]int

	// Thresholds carries per-check acceptable failure rates (percent) from
	// the catalog metadata, keyed by check name.
	Thresholds map[string]any
}

// TotalDataTests is the progress denominator for the whole run.
func (p *Plan) TotalDataTests() int {
	total := 0
	for _, n := range p.SuiteTotals {
		total += n
	}
	return total
}

// WorkItemCount returns the number of schedulable items.
func (p *Plan) WorkItemCount() int { return len(p.Items) }

// BuildPlan applies the decomposition policy to every check in every suite.
// Every registered check yields at least one work item.
func BuildPlan(catalog *checks.Catalog, suites []SuiteChecks) (*Plan, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog is nil")
	}

	plan := &Plan{
		SuiteTotals: make(map[string]int),
		Thresholds:  make(map[string]any),
	}
	for _, suite := range suites {
		for _, chk := range suite.Checks {
			if chk == nil {
				return nil, fmt.Errorf("nil check in suite %q", suite.Name)
			}
			name := chk.Name()
			size := catalog.DeclaredSize(name)
			plan.SuiteTotals[suite.Name] += size
			if meta, ok := catalog.Meta(name); ok && meta.FailureThreshold != nil {
				plan.Thresholds[name] = *meta.FailureThreshold
			}
			plan.Items = append(plan.Items, decompose(catalog, suite.Name, chk, size)...)
		}
	}
	return plan, nil
}

// decompose splits one check into work items per the catalog's chunk policy.
// Checks without a policy, and decomposable checks whose size is unknown,
// produce a single atomic item: decomposition degrades, it never drops.
func decompose(catalog *checks.Catalog, suiteName string, chk checks.Check, size int) []WorkItem {
	name := chk.Name()
	timeout := catalog.Timeout(name)

	atomic := WorkItem{
		Suite:       suiteName,
		CheckName:   name,
		DisplayName: name,
		Check:       chk,
		DataTests:   size,
		Timeout:     timeout,
	}

	policy, ok := catalog.ChunkPolicy(name)
	if !ok || size <= 1 || policy.Size >= size {
		return []WorkItem{atomic}
	}

	var items []WorkItem
	for start := 1; start <= size; start += policy.Size {
		end := start + policy.Size - 1
		if end > size {
			// Remainder chunk: shorter range, never dropped.
			end = size
		}
		index := len(items) + 1
		items = append(items, WorkItem{
			Suite:       suiteName,
			CheckName:   name,
			DisplayName: fmt.Sprintf("%s_chunk_%d", name, index),
			Check:       chk,
			ChunkSpec:   fmt.Sprintf("%s_%d-%d", policy.Label, start, end),
			ChunkIndex:  index,
			DataTests:   end - start + 1,
			Timeout:     timeout,
		})
	}
	return items
}
