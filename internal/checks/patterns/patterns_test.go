package patterns

import (
	"strings"
	"testing"

	"datamedic/internal/checks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func patternsRunContext() *checks.RunContext {
	return &checks.RunContext{
		Databases: map[string]string{"source": "olids_uat"},
		Schemas:   map[string]string{"masked": "olids_masked"},
	}
}

func TestCheckShape(t *testing.T) {
	chk := New()

	assert.Equal(t, "person_patterns", chk.Name())
	assert.Equal(t, "person_patterns", chk.Category())
	assert.Equal(t, 13, chk.DataTestCount())
	assert.Equal(t, "patterns", chk.ChunkLabel())
	assert.Equal(t, 2, chk.DefaultChunkSize())
}

func TestBuiltinPatternsAreWellFormed(t *testing.T) {
	rc := patternsRunContext()

	seen := make(map[string]bool)
	for _, p := range builtinPatterns() {
		assert.NotEmpty(t, p.ID)
		assert.NotEmpty(t, p.Description)
		assert.False(t, seen[p.ID], "duplicate pattern id %s", p.ID)
		seen[p.ID] = true

		query, err := p.Query(rc)
		require.NoError(t, err, "pattern %s", p.ID)
		assert.True(t, strings.HasPrefix(strings.TrimSpace(query), "SELECT COUNT"), "pattern %s must count violations", p.ID)
		assert.Contains(t, query, `"olids_uat"."olids_masked"`, "pattern %s must run against the masked schema", p.ID)
	}
}

func TestPatternQueryFailsWithoutSchema(t *testing.T) {
	rc := &checks.RunContext{}
	for _, p := range builtinPatterns()[:1] {
		_, err := p.Query(rc)
		assert.Error(t, err)
	}
}

func TestBuildDetailsSortsByViolationCount(t *testing.T) {
	outcomes := []patternOutcome{
		{pattern: Pattern{ID: "small", Description: "d1"}, violations: 2},
		{pattern: Pattern{ID: "clean", Description: "d2"}},
		{pattern: Pattern{ID: "big", Description: "d3"}, violations: 40},
	}

	details := buildDetails(outcomes, 2)
	bigIdx := strings.Index(details, "big")
	smallIdx := strings.Index(details, "small")
	require.GreaterOrEqual(t, bigIdx, 0)
	require.GreaterOrEqual(t, smallIdx, 0)
	assert.Less(t, bigIdx, smallIdx, "worst offenders list first")
	assert.NotContains(t, details, "clean")

	assert.Empty(t, buildDetails(outcomes[1:2], 0))
}
