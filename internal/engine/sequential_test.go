package engine

import (
	"context"
	"testing"

	"datamedic/internal/checks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSequentialPreservesOrderAndTiming(t *testing.T) {
	var order []string
	mk := func(name string) checks.Check {
		return &fakeCheck{
			name: name,
			size: 1,
			execute: func(ctx context.Context, rc *checks.RunContext) (checks.Result, error) {
				order = append(order, name)
				assert.False(t, rc.Parallel())
				assert.True(t, rc.ShowProgress())
				return checks.Result{Status: checks.StatusPassed, TotalTested: 1}, nil
			},
		}
	}

	chks := []checks.Check{mk("first"), mk("second"), mk("third")}
	catalog := newTestCatalog(t, nil, chks...)

	results, err := RunSequential(context.Background(), nil, testEnvironment(), catalog, []SuiteChecks{{Name: "all", Checks: chks}})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []string{"first", "second", "third"}, order)
	for i, res := range results {
		assert.Equal(t, order[i], res.Name)
		require.NotNil(t, res.ExecutionTime, "sequential runs keep per-check wall time")
	}
}

func TestRunSequentialStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	first := &fakeCheck{
		name: "first",
		size: 1,
		execute: func(ctx context.Context, rc *checks.RunContext) (checks.Result, error) {
			cancel()
			return checks.Result{Status: checks.StatusPassed, TotalTested: 1}, nil
		},
	}
	second := &fakeCheck{
		name: "second",
		size: 1,
		execute: func(ctx context.Context, rc *checks.RunContext) (checks.Result, error) {
			t.Error("check ran after cancellation")
			return checks.Result{}, nil
		},
	}

	chks := []checks.Check{first, second}
	catalog := newTestCatalog(t, nil, chks...)

	results, err := RunSequential(ctx, nil, testEnvironment(), catalog, []SuiteChecks{{Name: "all", Checks: chks}})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.Equal(t, "first", results[0].Name)
}
