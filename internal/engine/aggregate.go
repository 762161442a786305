package engine

import (
	"fmt"
	"sort"
	"strings"

	"datamedic/internal/checks"
)

// Aggregate collapses the flat list of per-item outcomes into one result
// per logical check name.
//
// The fold is commutative and associative over chunk outcomes: feeding the
// same set in any order produces the same combined result. Detail-line
// ordering is stabilized by the chunk index each outcome carries.
func Aggregate(items []ItemOutcome, parallel bool) []checks.Result {
	groups := make(map[string][]ItemOutcome)
	var names []string
	for _, item := range items {
		if _, ok := groups[item.CheckName]; !ok {
			names = append(names, item.CheckName)
		}
		groups[item.CheckName] = append(groups[item.CheckName], item)
	}
	sort.Strings(names)

	out := make([]checks.Result, 0, len(names))
	for _, name := range names {
		group := groups[name]
		if len(group) == 1 && !group[0].Chunked {
			res := group[0].Result
			if parallel {
				// A single item's wall time is not representative when other
				// work shared the pool.
				res.ExecutionTime = nil
			}
			out = append(out, res)
			continue
		}
		out = append(out, combineChunks(name, group, parallel))
	}
	return out
}

// combineChunks folds the chunk outcomes of one decomposed check back into
// a single logical result.
func combineChunks(name string, group []ItemOutcome, parallel bool) checks.Result {
	sort.Slice(group, func(i, j int) bool { return group[i].ChunkIndex < group[j].ChunkIndex })

	first := group[0].Result

	totalTested := 0
	failedRecords := 0
	hasError := false
	hasFailure := false
	var errMessages []string
	for _, item := range group {
		totalTested += item.Result.TotalTested
		failedRecords += item.Result.FailedRecords
		switch item.Result.Status {
		case checks.StatusError:
			hasError = true
			if item.Result.ErrorMessage != "" {
				errMessages = append(errMessages, fmt.Sprintf("%s: %s", item.DisplayName, item.Result.ErrorMessage))
			}
		case checks.StatusFailed:
			hasFailure = true
		}
	}

	status := checks.StatusPassed
	switch {
	case hasError:
		status = checks.StatusError
	case hasFailure:
		status = checks.StatusFailed
	}

	res := checks.Result{
		// Mismatched descriptive fields across chunks resolve to the first
		// chunk's values; not an error.
		Name:          name,
		Description:   first.Description,
		Status:        status,
		TotalTested:   totalTested,
		FailedRecords: failedRecords,
		FailureRate:   checks.Rate(failedRecords, totalTested),
		ErrorMessage:  strings.Join(errMessages, "; "),
		Metadata: map[string]any{
			"chunk_count":     len(group),
			"chunks_combined": true,
		},
	}

	if parallel {
		// Chunks ran concurrently; summing their times would overstate wall
		// time. The run-level summary carries overall timing instead.
		res.ExecutionTime = nil
	} else {
		total := 0.0
		for _, item := range group {
			if item.Result.ExecutionTime != nil {
				total += *item.Result.ExecutionTime
			}
		}
		res.ExecutionTime = &total
	}

	for _, item := range group {
		if !item.Result.StartedAt.IsZero() && (res.StartedAt.IsZero() || item.Result.StartedAt.Before(res.StartedAt)) {
			res.StartedAt = item.Result.StartedAt
		}
		if item.Result.CompletedAt.After(res.CompletedAt) {
			res.CompletedAt = item.Result.CompletedAt
		}
	}

	res.FailureDetails = combineFailureDetails(name, group, failedRecords, totalTested)
	return res
}

// combineFailureDetails synthesizes one header plus every distinct violation
// line from the failed chunks, in chunk order. Each chunk's own leading
// summary line is dropped so totals are not repeated.
func combineFailureDetails(name string, group []ItemOutcome, failedRecords, totalTested int) string {
	if failedRecords == 0 {
		return ""
	}

	lines := []string{fmt.Sprintf("Failed %d out of %d %s sub-checks:", failedRecords, totalTested, name)}
	for _, item := range group {
		if item.Result.FailedRecords == 0 || item.Result.FailureDetails == "" {
			continue
		}
		chunkLines := strings.Split(item.Result.FailureDetails, "\n")
		for i, line := range chunkLines {
			if i == 0 {
				continue
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
