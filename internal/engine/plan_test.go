package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"datamedic/internal/checks"
	"datamedic/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCheck is a configurable test double. Setting chunkLabel+chunkSize makes
// it decomposable; size feeds DataTestCount.
type fakeCheck struct {
	name       string
	size       int
	chunkLabel string
	chunkSize  int
	execute    func(ctx context.Context, rc *checks.RunContext) (checks.Result, error)
}

func (f *fakeCheck) Name() string     { return f.name }
func (f *fakeCheck) Title() string    { return "fake check " + f.name }
func (f *fakeCheck) Category() string { return "fake" }

func (f *fakeCheck) DataTestCount() int { return f.size }

func (f *fakeCheck) ChunkLabel() string    { return f.chunkLabel }
func (f *fakeCheck) DefaultChunkSize() int { return f.chunkSize }

func (f *fakeCheck) Execute(ctx context.Context, rc *checks.RunContext) (checks.Result, error) {
	if f.execute != nil {
		return f.execute(ctx, rc)
	}
	return checks.Result{Status: checks.StatusPassed, TotalTested: f.size}, nil
}

func newTestCatalog(t *testing.T, cf *config.CatalogFile, chks ...checks.Check) *checks.Catalog {
	t.Helper()
	catalog := checks.NewCatalog(cf)
	for _, chk := range chks {
		chk := chk
		require.NoError(t, catalog.Register(func() (checks.Check, error) { return chk, nil }))
	}
	return catalog
}

func TestBuildPlanAtomicCheckYieldsOneItem(t *testing.T) {
	chk := &fakeCheck{name: "empty_tables", size: 28}
	catalog := newTestCatalog(t, nil, chk)

	plan, err := BuildPlan(catalog, []SuiteChecks{{Name: "completeness", Checks: []checks.Check{chk}}})
	require.NoError(t, err)

	require.Len(t, plan.Items, 1)
	item := plan.Items[0]
	assert.Equal(t, "empty_tables", item.CheckName)
	assert.Equal(t, "empty_tables", item.DisplayName)
	assert.False(t, item.Chunked())
	assert.Equal(t, 28, item.DataTests)
	assert.Equal(t, 28, plan.SuiteTotals["completeness"])
}

func TestBuildPlanDecomposesWithRemainderChunk(t *testing.T) {
	chk := &fakeCheck{name: "person_patterns", size: 13, chunkLabel: "patterns", chunkSize: 2}
	catalog := newTestCatalog(t, nil, chk)

	plan, err := BuildPlan(catalog, []SuiteChecks{{Name: "core", Checks: []checks.Check{chk}}})
	require.NoError(t, err)

	require.Len(t, plan.Items, 7)

	wantSpecs := []string{
		"patterns_1-2", "patterns_3-4", "patterns_5-6", "patterns_7-8",
		"patterns_9-10", "patterns_11-12", "patterns_13-13",
	}
	covered := 0
	for i, item := range plan.Items {
		assert.Equal(t, "person_patterns", item.CheckName)
		assert.Equal(t, fmt.Sprintf("person_patterns_chunk_%d", i+1), item.DisplayName)
		assert.Equal(t, wantSpecs[i], item.ChunkSpec)
		assert.Equal(t, i+1, item.ChunkIndex)
		covered += item.DataTests
	}
	// Remainder chunk is shorter, never dropped.
	assert.Equal(t, 1, plan.Items[6].DataTests)
	assert.Equal(t, 13, covered)
	assert.Equal(t, 13, plan.TotalDataTests())
}

func TestBuildPlanChunkRangesPartitionWithoutOverlap(t *testing.T) {
	chk := &fakeCheck{name: "referential_integrity", size: 85, chunkLabel: "relationships", chunkSize: 5}
	catalog := newTestCatalog(t, nil, chk)

	plan, err := BuildPlan(catalog, []SuiteChecks{{Name: "core", Checks: []checks.Check{chk}}})
	require.NoError(t, err)
	require.Len(t, plan.Items, 17)

	next := 1
	for _, item := range plan.Items {
		start, end, err := checks.ParseChunkRange(item.ChunkSpec)
		require.NoError(t, err)
		assert.Equal(t, next, start)
		assert.GreaterOrEqual(t, end, start)
		next = end + 1
	}
	assert.Equal(t, 86, next)
}

func TestBuildPlanDegradesToAtomicWhenSizeUnknown(t *testing.T) {
	// Decomposable shape but size 1: no usable declared size, stays atomic.
	chk := &fakeCheck{name: "referential_integrity", size: 1, chunkLabel: "relationships", chunkSize: 5}
	catalog := newTestCatalog(t, nil, chk)

	plan, err := BuildPlan(catalog, []SuiteChecks{{Name: "core", Checks: []checks.Check{chk}}})
	require.NoError(t, err)

	require.Len(t, plan.Items, 1)
	assert.False(t, plan.Items[0].Chunked())
}

func TestBuildPlanStaysAtomicWhenChunkSizeCoversCheck(t *testing.T) {
	chk := &fakeCheck{name: "concept_mapping", size: 3, chunkLabel: "concepts", chunkSize: 3}
	catalog := newTestCatalog(t, nil, chk)

	plan, err := BuildPlan(catalog, []SuiteChecks{{Name: "terminology", Checks: []checks.Check{chk}}})
	require.NoError(t, err)

	require.Len(t, plan.Items, 1)
	assert.False(t, plan.Items[0].Chunked())
	assert.Equal(t, 3, plan.Items[0].DataTests)
}

func TestBuildPlanMetadataOverridesSizeAndChunking(t *testing.T) {
	cf := &config.CatalogFile{
		Checks: map[string]config.CheckMeta{
			"null_columns": {DataTests: 710, TimeoutSeconds: 1800},
			"person_patterns": {
				ChunkSize: 4,
			},
		},
	}
	nullCols := &fakeCheck{name: "null_columns", size: 1}
	pp := &fakeCheck{name: "person_patterns", size: 13, chunkLabel: "patterns", chunkSize: 2}
	catalog := newTestCatalog(t, cf, nullCols, pp)

	plan, err := BuildPlan(catalog, []SuiteChecks{
		{Name: "completeness", Checks: []checks.Check{nullCols}},
		{Name: "core", Checks: []checks.Check{pp}},
	})
	require.NoError(t, err)

	assert.Equal(t, 710, plan.SuiteTotals["completeness"])

	var ppItems []WorkItem
	for _, item := range plan.Items {
		if item.CheckName == "person_patterns" {
			ppItems = append(ppItems, item)
			assert.Equal(t, time.Duration(0), item.Timeout)
		}
		if item.CheckName == "null_columns" {
			assert.Equal(t, 30*time.Minute, item.Timeout)
		}
	}
	// 13 patterns at meta-overridden chunk size 4: 4+4+4+1.
	require.Len(t, ppItems, 4)
	assert.Equal(t, "patterns_13-13", ppItems[3].ChunkSpec)
}

func TestBuildPlanCollectsFailureThresholds(t *testing.T) {
	threshold := 2.0
	cf := &config.CatalogFile{
		Checks: map[string]config.CheckMeta{
			"column_completeness": {FailureThreshold: &threshold},
		},
	}
	chk := &fakeCheck{name: "column_completeness", size: 6}
	catalog := newTestCatalog(t, cf, chk)

	plan, err := BuildPlan(catalog, []SuiteChecks{{Name: "completeness", Checks: []checks.Check{chk}}})
	require.NoError(t, err)

	assert.Equal(t, 2.0, plan.Thresholds["column_completeness"])
}
