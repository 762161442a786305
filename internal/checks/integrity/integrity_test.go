package integrity

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMappingsEmbeddedDefaults(t *testing.T) {
	rels, err := LoadMappings("")
	require.NoError(t, err)
	require.NotEmpty(t, rels)

	// Flattening follows sorted group order so chunk ranges stay stable.
	groups := make([]string, 0, len(rels))
	for _, rel := range rels {
		if len(groups) == 0 || groups[len(groups)-1] != rel.Group {
			groups = append(groups, rel.Group)
		}
	}
	assert.True(t, sort.StringsAreSorted(groups), "groups must flatten in sorted order, got %v", groups)
	assert.Equal(t, "allergies", groups[0])

	for _, rel := range rels {
		assert.NotEmpty(t, rel.SourceTable, "relationship %s", rel)
		assert.NotEmpty(t, rel.SourceColumn, "relationship %s", rel)
		assert.NotEmpty(t, rel.TargetTable, "relationship %s", rel)
		assert.NotEmpty(t, rel.TargetColumn, "relationship %s", rel)
	}
}

func TestLoadMappingsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.yml")
	content := `core:
  relationships:
    - source_table: encounter
      source_column: patient_id
      target_table: patient
      target_column: id
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rels, err := LoadMappings(path)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "encounter.patient_id -> patient.id", rels[0].String())
	assert.Equal(t, "core", rels[0].Group)
}

func TestLoadMappingsRejectsIncompleteEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.yml")
	content := `core:
  relationships:
    - source_table: encounter
      target_table: patient
      target_column: id
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadMappings(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete relationship")
}

func TestCheckShape(t *testing.T) {
	rels, err := LoadMappings("")
	require.NoError(t, err)
	chk := New(rels)

	assert.Equal(t, "referential_integrity", chk.Name())
	assert.Equal(t, "referential_integrity", chk.Category())
	assert.Equal(t, len(rels), chk.DataTestCount())
	assert.Equal(t, "relationships", chk.ChunkLabel())
	assert.Equal(t, 5, chk.DefaultChunkSize())
}

func TestBuildDetailsListsViolationsAndSkips(t *testing.T) {
	outcomes := []relationshipOutcome{
		{rel: Relationship{SourceTable: "encounter", SourceColumn: "patient_id", TargetTable: "patient", TargetColumn: "id"}, violations: 3, totalRows: 100},
		{rel: Relationship{SourceTable: "appointment", SourceColumn: "schedule_id", TargetTable: "schedule", TargetColumn: "id"}, skipped: true, reason: "column appointment.schedule_id not found"},
		{rel: Relationship{SourceTable: "observation", SourceColumn: "patient_id", TargetTable: "patient", TargetColumn: "id"}},
	}

	details := buildDetails(outcomes, 1, 1)
	assert.Contains(t, details, "  • encounter.patient_id -> patient.id: 3 invalid (3.0% of 100)")
	assert.Contains(t, details, "Skipped 1 relationships due to missing columns:")
	assert.Contains(t, details, "appointment.schedule_id")
	assert.NotContains(t, details, "observation.patient_id", "clean relationships are not listed")
}

func TestBuildDetailsEmptyWhenClean(t *testing.T) {
	outcomes := []relationshipOutcome{
		{rel: Relationship{SourceTable: "a", SourceColumn: "b", TargetTable: "c", TargetColumn: "d"}},
	}
	assert.Empty(t, buildDetails(outcomes, 0, 0))
}
