package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"datamedic/internal/checks"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() []checks.Result {
	sec := 2.345
	return []checks.Result{
		{
			Name:        "referential_integrity",
			Status:      checks.StatusPassed,
			TotalTested: 85,
		},
		{
			Name:           "concept_mapping",
			Status:         checks.StatusFailed,
			TotalTested:    28,
			FailedRecords:  3,
			FailureRate:    10.71,
			FailureDetails: "Found concept mapping gaps in 3 of 28 coded fields:\n  • patient.gender_code_id: 12 unmapped codes",
		},
		{
			Name:          "empty_tables",
			Status:        checks.StatusError,
			ErrorMessage:  "connection reset",
			ExecutionTime: &sec,
		},
	}
}

func TestConsoleSinkRejectsUnknownFormat(t *testing.T) {
	_, err := NewConsoleSink(&bytes.Buffer{}, "xml")
	assert.Error(t, err)
}

func TestConsoleSinkTable(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	var buf bytes.Buffer
	sink, err := NewConsoleSink(&buf, "table")
	require.NoError(t, err)

	for _, res := range sampleResults() {
		require.NoError(t, sink.Write(res))
	}
	require.NoError(t, sink.Close())

	out := buf.String()
	assert.Contains(t, out, "CHECK")
	assert.Contains(t, out, "referential_integrity")
	assert.Contains(t, out, "PASSED")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "patient.gender_code_id: 12 unmapped codes")
	assert.Contains(t, out, "empty_tables error: connection reset")
	assert.Contains(t, out, "Ran 3 checks covering 113 data tests")
	assert.Contains(t, out, "1 passed, 1 failed, 1 errored")
}

func TestConsoleSinkJSON(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewConsoleSink(&buf, "json")
	require.NoError(t, err)

	for _, res := range sampleResults() {
		require.NoError(t, sink.Write(res))
	}
	require.NoError(t, sink.Close())

	var decoded []checks.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, "referential_integrity", decoded[0].Name)
	assert.Equal(t, checks.StatusFailed, decoded[1].Status)
	require.NotNil(t, decoded[2].ExecutionTime)
	assert.InDelta(t, 2.345, *decoded[2].ExecutionTime, 0.001)
}

func TestConsoleSinkCSV(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewConsoleSink(&buf, "csv")
	require.NoError(t, err)

	for _, res := range sampleResults() {
		require.NoError(t, sink.Write(res))
	}
	require.NoError(t, sink.Close())

	out := buf.String()
	assert.Contains(t, out, "check,status,total_tested")
	assert.Contains(t, out, "referential_integrity,passed,85")
	assert.Contains(t, out, "concept_mapping,failed,28,3,10.71")
}

func TestFormatDuration(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	assert.Equal(t, "-", formatDuration(nil))

	fast := 0.25
	assert.Equal(t, "250ms", formatDuration(&fast))

	slow := 12.5
	assert.Equal(t, "12.50s", formatDuration(&slow))
}
