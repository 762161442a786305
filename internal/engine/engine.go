package engine

import (
	"sort"

	"datamedic/internal/checks"
)

// Exit code contract:
// 0 = clean run, all checks passed
// 1 = data-quality failures detected
// 2 = partial failure (some checks errored)
// 3 = fatal error (run did not execute)
const (
	ExitClean   = 0
	ExitFailed  = 1
	ExitPartial = 2
	ExitFatal   = 3
)

// ExitCodeForRun maps a run's disposition to the process exit code. With
// failOnError set, check-level errors count as failures rather than the
// softer partial code.
func ExitCodeForRun(fatal, hasErrors, hasFailures, failOnError bool) int {
	if fatal {
		return ExitFatal
	}
	if hasErrors && failOnError {
		return ExitFailed
	}
	if hasErrors {
		return ExitPartial
	}
	if hasFailures {
		return ExitFailed
	}
	return ExitClean
}

// Summary tallies results by status.
type Summary struct {
	Total   int
	Passed  int
	Failed  int
	Errors  int
	Skipped int
}

func Summarize(results []checks.Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case checks.StatusPassed:
			s.Passed++
		case checks.StatusFailed:
			s.Failed++
		case checks.StatusError:
			s.Errors++
		case checks.StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

// SortByRequestOrder reorders results to match the caller's originally
// requested check names. The pool's own output order is completion order;
// this restores the order the caller asked for. Names not in the request
// sort after it, alphabetically.
func SortByRequestOrder(results []checks.Result, requested []string) {
	rank := make(map[string]int, len(requested))
	for i, name := range requested {
		rank[name] = i
	}
	sort.SliceStable(results, func(i, j int) bool {
		ri, iOK := rank[results[i].Name]
		rj, jOK := rank[results[j].Name]
		switch {
		case iOK && jOK:
			return ri < rj
		case iOK:
			return true
		case jOK:
			return false
		default:
			return results[i].Name < results[j].Name
		}
	})
}
