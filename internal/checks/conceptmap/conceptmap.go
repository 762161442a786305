// Package conceptmap verifies that coded clinical fields resolve through the
// concept map to a known concept in the terminology dictionary.
package conceptmap

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"datamedic/internal/checks"

	"gopkg.in/yaml.v3"
)

//go:embed fields.yml
var defaultFields []byte

// ConceptField is one coded column whose values must map to a valid concept.
type ConceptField struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`

	Group string `yaml:"-"`
}

func (f ConceptField) String() string {
	return f.Table + "." + f.Column
}

type fieldGroup struct {
	Description string         `yaml:"description"`
	Fields      []ConceptField `yaml:"fields"`
}

// LoadFields parses concept field mappings from path, or from the embedded
// defaults when path is empty, flattened in sorted group order.
func LoadFields(path string) ([]ConceptField, error) {
	raw := defaultFields
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read concept field mappings: %w", err)
		}
		raw = b
	}

	var groups map[string]fieldGroup
	if err := yaml.Unmarshal(raw, &groups); err != nil {
		return nil, fmt.Errorf("parse concept field mappings: %w", err)
	}

	groupNames := make([]string, 0, len(groups))
	for name := range groups {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)

	var fields []ConceptField
	for _, name := range groupNames {
		for _, f := range groups[name].Fields {
			if f.Table == "" || f.Column == "" {
				return nil, fmt.Errorf("incomplete concept field in group %q: %+v", name, f)
			}
			f.Group = name
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("concept field mappings define no fields")
	}
	return fields, nil
}

type fieldOutcome struct {
	field    ConceptField
	unmapped int64
	orphaned int64
}

func (o fieldOutcome) failed() bool { return o.unmapped > 0 || o.orphaned > 0 }

// Check validates concept resolution for every mapped coded field.
// Decomposable with chunk specs like "concepts_4-6".
type Check struct {
	fields []ConceptField
}

func New(fields []ConceptField) *Check {
	return &Check{fields: fields}
}

func (c *Check) Name() string { return "concept_mapping" }

func (c *Check) Title() string {
	return fmt.Sprintf("Validates concept mapping for %d coded fields", len(c.fields))
}

func (c *Check) Category() string { return "concept_mapping" }

func (c *Check) DataTestCount() int    { return len(c.fields) }
func (c *Check) ChunkLabel() string    { return "concepts" }
func (c *Check) DefaultChunkSize() int { return 3 }

func (c *Check) Execute(ctx context.Context, rc *checks.RunContext) (checks.Result, error) {
	subset := c.fields
	if spec, ok := rc.ChunkInfo(); ok {
		start, end, err := checks.ParseChunkRange(spec)
		if err != nil {
			return checks.Result{}, err
		}
		subset = checks.SliceForChunk(c.fields, start, end)
	}
	if len(subset) == 0 {
		return checks.SkippedResult(c, "chunk range selects no concept fields"), nil
	}

	conceptMap, err := rc.QualifiedTable("terminology", "terminology", "concept_map")
	if err != nil {
		return checks.Result{}, err
	}
	concept, err := rc.QualifiedTable("terminology", "terminology", "concept")
	if err != nil {
		return checks.Result{}, err
	}

	outcomes := make([]fieldOutcome, 0, len(subset))
	failed := 0
	for i, field := range subset {
		out, err := c.validateField(ctx, rc, field, conceptMap, concept)
		if err != nil {
			return checks.Result{}, fmt.Errorf("validate %s: %w", field, err)
		}
		outcomes = append(outcomes, out)
		if out.failed() {
			failed++
		}
		rc.ReportProgress(i + 1)
	}

	return checks.NewResult(c, len(subset), failed, buildDetails(outcomes, failed)), nil
}

func (c *Check) validateField(ctx context.Context, rc *checks.RunContext, field ConceptField, conceptMap, concept string) (fieldOutcome, error) {
	out := fieldOutcome{field: field}

	table, err := rc.QualifiedTable("source", "masked", field.Table)
	if err != nil {
		return out, err
	}

	// Distinct source codes with no concept map entry at all.
	unmappedQuery := fmt.Sprintf(`
		SELECT COUNT(*) FROM (
			SELECT DISTINCT s.%q AS source_code
			FROM %s s
			WHERE s.%q IS NOT NULL
		) codes
		LEFT JOIN %s m ON codes.source_code = m.source_code_id
		WHERE m.source_code_id IS NULL`,
		field.Column, table, field.Column, conceptMap)
	out.unmapped, err = rc.Session.Count(ctx, c.Name(), unmappedQuery)
	if err != nil {
		return out, err
	}

	// Codes that map to a target concept missing from the concept table.
	orphanedQuery := fmt.Sprintf(`
		SELECT COUNT(*) FROM (
			SELECT DISTINCT s.%q AS source_code
			FROM %s s
			WHERE s.%q IS NOT NULL
		) codes
		JOIN %s m ON codes.source_code = m.source_code_id
		LEFT JOIN %s c ON m.target_code_id = c.id
		WHERE c.id IS NULL`,
		field.Column, table, field.Column, conceptMap, concept)
	out.orphaned, err = rc.Session.Count(ctx, c.Name(), orphanedQuery)
	if err != nil {
		return out, err
	}
	return out, nil
}

func buildDetails(outcomes []fieldOutcome, failed int) string {
	if failed == 0 {
		return ""
	}

	lines := []string{fmt.Sprintf("Found concept mapping gaps in %d of %d coded fields:", failed, len(outcomes))}
	for _, out := range outcomes {
		if !out.failed() {
			continue
		}
		var parts []string
		if out.unmapped > 0 {
			parts = append(parts, fmt.Sprintf("%d unmapped codes", out.unmapped))
		}
		if out.orphaned > 0 {
			parts = append(parts, fmt.Sprintf("%d codes mapped to missing concepts", out.orphaned))
		}
		lines = append(lines, fmt.Sprintf("  • %s: %s", out.field, strings.Join(parts, ", ")))
	}
	return strings.Join(lines, "\n")
}
