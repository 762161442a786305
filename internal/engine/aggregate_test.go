package engine

import (
	"math/rand"
	"testing"
	"time"

	"datamedic/internal/checks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkOutcome(name string, index int, res checks.Result) ItemOutcome {
	return ItemOutcome{
		Suite:       "core",
		CheckName:   name,
		DisplayName: name + "_chunk_" + string(rune('0'+index)),
		ChunkSpec:   "sub",
		ChunkIndex:  index,
		Chunked:     true,
		Result:      res,
	}
}

func TestAggregateSumsChunkCounters(t *testing.T) {
	items := []ItemOutcome{
		chunkOutcome("referential_integrity", 1, checks.Result{Status: checks.StatusPassed, TotalTested: 5}),
		chunkOutcome("referential_integrity", 2, checks.Result{Status: checks.StatusFailed, TotalTested: 5, FailedRecords: 2}),
	}

	results := Aggregate(items, true)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, "referential_integrity", res.Name)
	assert.Equal(t, checks.StatusFailed, res.Status)
	assert.Equal(t, 10, res.TotalTested)
	assert.Equal(t, 2, res.FailedRecords)
	assert.InDelta(t, 20.0, res.FailureRate, 0.001)
	assert.Nil(t, res.ExecutionTime)
	assert.Equal(t, 2, res.Metadata["chunk_count"])
	assert.Equal(t, true, res.Metadata["chunks_combined"])
}

func TestAggregateIsOrderIndependent(t *testing.T) {
	base := []ItemOutcome{
		chunkOutcome("concept_mapping", 1, checks.Result{Status: checks.StatusPassed, TotalTested: 3}),
		chunkOutcome("concept_mapping", 2, checks.Result{
			Status: checks.StatusFailed, TotalTested: 3, FailedRecords: 1,
			FailureDetails: "header line\n  • patient.gender_code_id: 1 unmapped",
		}),
		chunkOutcome("concept_mapping", 3, checks.Result{
			Status: checks.StatusFailed, TotalTested: 3, FailedRecords: 2,
			FailureDetails: "header line\n  • observation.observation_code_id: 2 unmapped",
		}),
	}

	want := Aggregate(append([]ItemOutcome(nil), base...), true)
	require.Len(t, want, 1)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := append([]ItemOutcome(nil), base...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := Aggregate(shuffled, true)
		require.Len(t, got, 1)
		assert.Equal(t, want[0], got[0], "aggregation differed for completion order %d", i)
	}
}

func TestAggregateErrorDominatesFailure(t *testing.T) {
	items := []ItemOutcome{
		chunkOutcome("person_patterns", 1, checks.Result{Status: checks.StatusFailed, TotalTested: 2, FailedRecords: 1}),
		chunkOutcome("person_patterns", 2, checks.Result{Status: checks.StatusError, TotalTested: 0, ErrorMessage: "connection reset"}),
		chunkOutcome("person_patterns", 3, checks.Result{Status: checks.StatusPassed, TotalTested: 2}),
	}

	results := Aggregate(items, true)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, checks.StatusError, res.Status)
	assert.Contains(t, res.ErrorMessage, "person_patterns_chunk_2: connection reset")
	// Counters from successful chunks are still kept.
	assert.Equal(t, 4, res.TotalTested)
	assert.Equal(t, 1, res.FailedRecords)
}

func TestAggregateCombinedDetailsDropChunkHeaders(t *testing.T) {
	items := []ItemOutcome{
		chunkOutcome("referential_integrity", 2, checks.Result{
			Status: checks.StatusFailed, TotalTested: 5, FailedRecords: 1,
			FailureDetails: "Found 3 violations:\n  • encounter.patient_id -> patient.id: 3 invalid references",
		}),
		chunkOutcome("referential_integrity", 1, checks.Result{
			Status: checks.StatusFailed, TotalTested: 5, FailedRecords: 1,
			FailureDetails: "Found 1 violations:\n  • appointment.patient_id -> patient.id: 1 invalid references",
		}),
	}

	results := Aggregate(items, true)
	require.Len(t, results, 1)

	want := "Failed 2 out of 10 referential_integrity sub-checks:\n" +
		"  • appointment.patient_id -> patient.id: 1 invalid references\n" +
		"  • encounter.patient_id -> patient.id: 3 invalid references"
	assert.Equal(t, want, results[0].FailureDetails)
}

func TestAggregateSingleAtomicResultPassesThrough(t *testing.T) {
	sec := 4.2
	res := checks.Result{
		Name:          "empty_tables",
		Status:        checks.StatusPassed,
		TotalTested:   28,
		ExecutionTime: &sec,
	}
	items := []ItemOutcome{{CheckName: "empty_tables", DisplayName: "empty_tables", Result: res}}

	parallel := Aggregate(items, true)
	require.Len(t, parallel, 1)
	assert.Nil(t, parallel[0].ExecutionTime, "per-check wall time is meaningless under a shared pool")
	assert.Equal(t, 28, parallel[0].TotalTested)

	items[0].Result = res
	sequential := Aggregate(items, false)
	require.Len(t, sequential, 1)
	require.NotNil(t, sequential[0].ExecutionTime)
	assert.InDelta(t, 4.2, *sequential[0].ExecutionTime, 0.001)
}

func TestAggregateSequentialSumsChunkTimes(t *testing.T) {
	a, b := 1.5, 2.5
	items := []ItemOutcome{
		chunkOutcome("person_patterns", 1, checks.Result{Status: checks.StatusPassed, TotalTested: 2, ExecutionTime: &a}),
		chunkOutcome("person_patterns", 2, checks.Result{Status: checks.StatusPassed, TotalTested: 2, ExecutionTime: &b}),
	}

	results := Aggregate(items, false)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].ExecutionTime)
	assert.InDelta(t, 4.0, *results[0].ExecutionTime, 0.001)
}

func TestAggregateSpansChunkTimestamps(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	items := []ItemOutcome{
		chunkOutcome("concept_mapping", 2, checks.Result{
			Status: checks.StatusPassed, TotalTested: 3,
			StartedAt: t0.Add(time.Minute), CompletedAt: t0.Add(3 * time.Minute),
		}),
		chunkOutcome("concept_mapping", 1, checks.Result{
			Status: checks.StatusPassed, TotalTested: 3,
			StartedAt: t0, CompletedAt: t0.Add(2 * time.Minute),
		}),
	}

	results := Aggregate(items, true)
	require.Len(t, results, 1)
	assert.Equal(t, t0, results[0].StartedAt)
	assert.Equal(t, t0.Add(3*time.Minute), results[0].CompletedAt)
}

func TestAggregateZeroTestedChunksPassWithZeroRate(t *testing.T) {
	items := []ItemOutcome{
		chunkOutcome("referential_integrity", 1, checks.Result{Status: checks.StatusPassed, TotalTested: 0}),
		chunkOutcome("referential_integrity", 2, checks.Result{Status: checks.StatusPassed, TotalTested: 0}),
	}

	results := Aggregate(items, true)
	require.Len(t, results, 1)
	assert.Equal(t, checks.StatusPassed, results[0].Status)
	assert.Zero(t, results[0].FailureRate)
}
