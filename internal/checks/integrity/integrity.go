// Package integrity validates foreign-key relationships between warehouse
// tables, driven by a YAML mapping file grouping relationships by clinical
// domain.
package integrity

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

//go:embed mappings.yml
var defaultMappings []byte

// Relationship is one foreign-key edge: every non-null value of
// SourceTable.SourceColumn must exist in TargetTable.TargetColumn.
type Relationship struct {
	SourceTable  string `yaml:"source_table"`
	SourceColumn string `yaml:"source_column"`
	TargetTable  string `yaml:"target_table"`
	TargetColumn string `yaml:"target_column"`

	// Group is the clinical domain the relationship belongs to, filled in
	// from the mapping file's group key.
	Group string `yaml:"-"`
}

func (r Relationship) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", r.SourceTable, r.SourceColumn, r.TargetTable, r.TargetColumn)
}

type mappingGroup struct {
	Description   string         `yaml:"description"`
	Relationships []Relationship `yaml:"relationships"`
}

// LoadMappings parses relationship mappings from path, or from the embedded
// defaults when path is empty. Groups are flattened in sorted group order so
// chunk ranges are stable across runs.
func LoadMappings(path string) ([]Relationship, error) {
	raw := defaultMappings
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read relationship mappings: %w", err)
		}
		raw = b
	}

	var groups map[string]mappingGroup
	if err := yaml.Unmarshal(raw, &groups); err != nil {
		return nil, fmt.Errorf("parse relationship mappings: %w", err)
	}

	groupNames := make([]string, 0, len(groups))
	for name := range groups {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)

	var rels []Relationship
	for _, name := range groupNames {
		for _, rel := range groups[name].Relationships {
			if rel.SourceTable == "" || rel.SourceColumn == "" || rel.TargetTable == "" || rel.TargetColumn == "" {
				return nil, fmt.Errorf("incomplete relationship in group %q: %+v", name, rel)
			}
			rel.Group = name
			rels = append(rels, rel)
		}
	}
	if len(rels) == 0 {
		return nil, fmt.Errorf("relationship mappings define no relationships")
	}
	return rels, nil
}

// Check validates every mapped foreign-key relationship. Decomposable: a
// chunk spec like "relationships_6-10" restricts evaluation to that 1-based
// range of the flattened relationship list.
type Check struct {
	relationships []Relationship
}

func New(relationships []Relationship) *Check {
	return &Check{relationships: relationships}
}

func (c *Check) Name() string { return "referential_integrity" }

func (c *Check) Title() string {
	return fmt.Sprintf("Validates all %d foreign key relationships in the warehouse", len(c.relationships))
}

func (c *Check) Category() string { return "referential_integrity" }

func (c *Check) DataTestCount() int    { return len(c.relationships) }
func (c *Check) ChunkLabel() string    { return "relationships" }
func (c *Check) DefaultChunkSize() int { return 5 }

// Relationships exposes the flattened mapping list (read-only use).
func (c *Check) Relationships() []Relationship { return c.relationships }

type relationshipOutcome struct {
	rel        Relationship
	violations int64
	totalRows  int64
	skipped    bool
	reason     string
}

func (c *Check) Execute(ctx context.Context, rc *checks.RunContext) (checks.Result, error) {
	subset := c.relationships
	if spec, ok := rc.ChunkInfo(); ok {
		start, end, err := checks.ParseChunkRange(spec)
		if err != nil {
			return checks.Result{}, err
		}
		subset = checks.SliceForChunk(c.relationships, start, end)
	}
	if len(subset) == 0 {
		return checks.SkippedResult(c, "chunk range selects no relationships"), nil
	}

	available, err := availableColumns(ctx, rc)
	if err != nil {
		return checks.Result{}, fmt.Errorf("list available columns: %w", err)
	}

	outcomes := make([]relationshipOutcome, 0, len(subset))
	violated := 0
	skipped := 0
	for i, rel := range subset {
		out, err := c.validateRelationship(ctx, rc, rel, available)
		if err != nil {
			return checks.Result{}, fmt.Errorf("validate %s: %w", rel, err)
		}
		outcomes = append(outcomes, out)
		if out.skipped {
			skipped++
		} else if out.violations > 0 {
			violated++
		}
		rc.ReportProgress(i + 1)
	}

	res := checks.NewResult(c, len(subset), violated, buildDetails(outcomes, violated, skipped))
	if skipped == len(subset) {
		res.Status = checks.StatusError
		res.ErrorMessage = "all relationships skipped: mapped columns not found in warehouse"
	}
	res.Metadata = map[string]any{
		"skipped_relationships": skipped,
	}
	return res, nil
}

func (c *Check) validateRelationship(ctx context.Context, rc *checks.RunContext, rel Relationship, available map[string]bool) (relationshipOutcome, error) {
	out := relationshipOutcome{rel: rel}

	if !available[columnKey(rel.SourceTable, rel.SourceColumn)] {
		out.skipped = true
		out.reason = fmt.Sprintf("column %s.%s not found", rel.SourceTable, rel.SourceColumn)
		return out, nil
	}
	if !available[columnKey(rel.TargetTable, rel.TargetColumn)] {
		out.skipped = true
		out.reason = fmt.Sprintf("column %s.%s not found", rel.TargetTable, rel.TargetColumn)
		return out, nil
	}

	src, err := rc.QualifiedTable("source", "masked", rel.SourceTable)
	if err != nil {
		return out, err
	}
	tgt, err := rc.QualifiedTable("source", "masked", rel.TargetTable)
	if err != nil {
		return out, err
	}

	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %s s
		LEFT JOIN %s t ON s.%q = t.%q
		WHERE s.%q IS NOT NULL AND t.%q IS NULL`,
		src, tgt, rel.SourceColumn, rel.TargetColumn, rel.SourceColumn, rel.TargetColumn)

	out.violations, err = rc.Session.Count(ctx, c.Name(), query)
	if err != nil {
		return out, err
	}

	if out.violations > 0 {
		totalQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %q IS NOT NULL`, src, rel.SourceColumn)
		out.totalRows, err = rc.Session.Count(ctx, c.Name(), totalQuery)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// availableColumns returns the set of table.column pairs present in the
// masked source schema, so relationships against absent columns are skipped
// rather than erroring the whole check.
func availableColumns(ctx context.Context, rc *checks.RunContext) (map[string]bool, error) {
	schema := rc.Schemas["masked"]
	var rows []struct {
		TableName  string `db:"table_name"`
		ColumnName string `db:"column_name"`
	}
	err := rc.Session.QueryAll(ctx, "referential_integrity", `
		SELECT table_name, column_name
		FROM information_schema.columns
		WHERE table_schema = $1`, &rows, schema)
	if err != nil {
		return nil, err
	}

	available := make(map[string]bool, len(rows))
	for _, row := range rows {
		available[columnKey(row.TableName, row.ColumnName)] = true
	}
	return available, nil
}

func columnKey(table, column string) string {
	return strings.ToLower(table) + "." + strings.ToLower(column)
}

func buildDetails(outcomes []relationshipOutcome, violated, skipped int) string {
	if violated == 0 && skipped == 0 {
		return ""
	}

	var lines []string
	if violated > 0 {
		totalViolations := int64(0)
		for _, out := range outcomes {
			totalViolations += out.violations
		}
		lines = append(lines, fmt.Sprintf("Found %d referential integrity violations across %d relationships:", totalViolations, len(outcomes)))

		failed := make([]relationshipOutcome, 0, violated)
		for _, out := range outcomes {
			if !out.skipped && out.violations > 0 {
				failed = append(failed, out)
			}
		}
		sort.Slice(failed, func(i, j int) bool {
			if failed[i].rel.SourceTable != failed[j].rel.SourceTable {
				return failed[i].rel.SourceTable < failed[j].rel.SourceTable
			}
			return failed[i].rel.SourceColumn < failed[j].rel.SourceColumn
		})
		for _, out := range failed {
			if out.totalRows > 0 {
				pct := float64(out.violations) / float64(out.totalRows) * 100
				lines = append(lines, fmt.Sprintf("  • %s: %d invalid (%.1f%% of %d)", out.rel, out.violations, pct, out.totalRows))
			} else {
				lines = append(lines, fmt.Sprintf("  • %s: %d invalid references", out.rel, out.violations))
			}
		}
	}

	if skipped > 0 {
		lines = append(lines, fmt.Sprintf("Skipped %d relationships due to missing columns:", skipped))
		for _, out := range outcomes {
			if out.skipped {
				lines = append(lines, fmt.Sprintf("  • %s: %s", out.rel, out.reason))
			}
		}
	}
	return strings.Join(lines, "\n")
}
