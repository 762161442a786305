package engine

import (
	"testing"

	"datamedic/internal/checks"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeForRun(t *testing.T) {
	tests := []struct {
		name                            string
		fatal, errors, failures, strict bool
		want                            int
	}{
		{name: "clean", want: ExitClean},
		{name: "failures", failures: true, want: ExitFailed},
		{name: "errors", errors: true, want: ExitPartial},
		{name: "errors and failures", errors: true, failures: true, want: ExitPartial},
		{name: "errors with fail-on-error", errors: true, strict: true, want: ExitFailed},
		{name: "fatal wins", fatal: true, errors: true, failures: true, want: ExitFatal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExitCodeForRun(tc.fatal, tc.errors, tc.failures, tc.strict))
		})
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]checks.Result{
		{Status: checks.StatusPassed},
		{Status: checks.StatusPassed},
		{Status: checks.StatusFailed},
		{Status: checks.StatusError},
		{Status: checks.StatusSkipped},
	})

	assert.Equal(t, Summary{Total: 5, Passed: 2, Failed: 1, Errors: 1, Skipped: 1}, s)
}

func TestSortByRequestOrder(t *testing.T) {
	results := []checks.Result{
		{Name: "zeta_unrequested"},
		{Name: "concept_mapping"},
		{Name: "alpha_unrequested"},
		{Name: "referential_integrity"},
	}

	SortByRequestOrder(results, []string{"referential_integrity", "concept_mapping"})

	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Name
	}
	assert.Equal(t, []string{
		"referential_integrity",
		"concept_mapping",
		"alpha_unrequested",
		"zeta_unrequested",
	}, names)
}
