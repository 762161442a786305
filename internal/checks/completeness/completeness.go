// Package completeness holds column- and table-level completeness checks:
// fully null columns, empty tables, and minimum fill rates for critical
// columns.
package completeness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"datamedic/internal/checks"
)

type tableColumn struct {
	Table  string `db:"table_name"`
	Column string `db:"column_name"`
}

// schemaColumns lists every table.column in the masked source schema, in
// deterministic table-then-ordinal order.
func schemaColumns(ctx context.Context, rc *checks.RunContext, checkName string) ([]tableColumn, error) {
	schema := rc.Schemas["masked"]
	var cols []tableColumn
	err := rc.Session.QueryAll(ctx, checkName, `
		SELECT c.table_name, c.column_name
		FROM information_schema.columns c
		JOIN information_schema.tables t
		  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = $1 AND t.table_type = 'BASE TABLE'
		ORDER BY c.table_name, c.ordinal_position`, &cols, schema)
	if err != nil {
		return nil, fmt.Errorf("list schema columns: %w", err)
	}
	return cols, nil
}

func schemaTables(ctx context.Context, rc *checks.RunContext, checkName string) ([]string, error) {
	schema := rc.Schemas["masked"]
	var tables []string
	err := rc.Session.QueryAll(ctx, checkName, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, &tables, schema)
	if err != nil {
		return nil, fmt.Errorf("list schema tables: %w", err)
	}
	return tables, nil
}

// NullColumns flags columns that are entirely NULL in non-empty tables. The
// check is atomic but long-running, so it reports per-column progress
// through the run context.
type NullColumns struct {
	// DeclaredColumns sizes progress denominators before the schema has
	// been inspected. Zero means unknown.
	DeclaredColumns int
}

func (c *NullColumns) Name() string     { return "null_columns" }
func (c *NullColumns) Title() string    { return "Detects columns that contain no data at all" }
func (c *NullColumns) Category() string { return "completeness" }

func (c *NullColumns) DataTestCount() int {
	if c.DeclaredColumns > 0 {
		return c.DeclaredColumns
	}
	return 1
}

func (c *NullColumns) Execute(ctx context.Context, rc *checks.RunContext) (checks.Result, error) {
	cols, err := schemaColumns(ctx, rc, c.Name())
	if err != nil {
		return checks.Result{}, err
	}
	if len(cols) == 0 {
		return checks.SkippedResult(c, "masked schema has no base tables"), nil
	}

	rowCounts := map[string]int64{}
	var nullColumns []tableColumn
	examined := 0
	for _, col := range cols {
		total, ok := rowCounts[col.Table]
		if !ok {
			qualified, err := rc.QualifiedTable("source", "masked", col.Table)
			if err != nil {
				return checks.Result{}, err
			}
			total, err = rc.Session.Count(ctx, c.Name(), fmt.Sprintf(`SELECT COUNT(*) FROM %s`, qualified))
			if err != nil {
				return checks.Result{}, fmt.Errorf("count rows in %s: %w", col.Table, err)
			}
			rowCounts[col.Table] = total
		}

		examined++
		if total == 0 {
			rc.ReportProgress(examined)
			continue
		}

		qualified, err := rc.QualifiedTable("source", "masked", col.Table)
		if err != nil {
			return checks.Result{}, err
		}
		nonNull, err := rc.Session.Count(ctx, c.Name(),
			fmt.Sprintf(`SELECT COUNT(%q) FROM %s`, col.Column, qualified))
		if err != nil {
			return checks.Result{}, fmt.Errorf("count non-null %s.%s: %w", col.Table, col.Column, err)
		}
		if nonNull == 0 {
			nullColumns = append(nullColumns, col)
		}
		rc.ReportProgress(examined)
	}

	details := ""
	if len(nullColumns) > 0 {
		lines := []string{fmt.Sprintf("Found %d columns with no data in non-empty tables:", len(nullColumns))}
		for _, col := range nullColumns {
			lines = append(lines, fmt.Sprintf("  • %s.%s (%d rows, all NULL)", col.Table, col.Column, rowCounts[col.Table]))
		}
		details = strings.Join(lines, "\n")
	}
	return checks.NewResult(c, len(cols), len(nullColumns), details), nil
}

// EmptyTables flags base tables with zero rows.
type EmptyTables struct {
	DeclaredTables int
}

func (c *EmptyTables) Name() string     { return "empty_tables" }
func (c *EmptyTables) Title() string    { return "Detects base tables that contain no rows" }
func (c *EmptyTables) Category() string { return "completeness" }

func (c *EmptyTables) DataTestCount() int {
	if c.DeclaredTables > 0 {
		return c.DeclaredTables
	}
	return 1
}

func (c *EmptyTables) Execute(ctx context.Context, rc *checks.RunContext) (checks.Result, error) {
	tables, err := schemaTables(ctx, rc, c.Name())
	if err != nil {
		return checks.Result{}, err
	}
	if len(tables) == 0 {
		return checks.SkippedResult(c, "masked schema has no base tables"), nil
	}

	var empty []string
	for i, table := range tables {
		qualified, err := rc.QualifiedTable("source", "masked", table)
		if err != nil {
			return checks.Result{}, err
		}
		n, err := rc.Session.Count(ctx, c.Name(), fmt.Sprintf(`SELECT COUNT(*) FROM %s`, qualified))
		if err != nil {
			return checks.Result{}, fmt.Errorf("count rows in %s: %w", table, err)
		}
		if n == 0 {
			empty = append(empty, table)
		}
		rc.ReportProgress(i + 1)
	}

	details := ""
	if len(empty) > 0 {
		sort.Strings(empty)
		lines := []string{fmt.Sprintf("Found %d empty tables:", len(empty))}
		for _, t := range empty {
			lines = append(lines, "  • "+t)
		}
		details = strings.Join(lines, "\n")
	}
	return checks.NewResult(c, len(tables), len(empty), details), nil
}

// CriticalColumn is one column with a minimum acceptable fill rate.
type CriticalColumn struct {
	Table         string
	Column        string
	MinimumFilled float64 // percent of rows that must be non-null
}

// ColumnCompleteness enforces minimum fill rates on a small set of columns
// the downstream pipelines depend on. The per-run failure threshold can
// loosen the builtin minimums but never tighten them below zero.
type ColumnCompleteness struct {
	columns []CriticalColumn
}

func NewColumnCompleteness() *ColumnCompleteness {
	return &ColumnCompleteness{columns: criticalColumns()}
}

func (c *ColumnCompleteness) Name() string { return "column_completeness" }

func (c *ColumnCompleteness) Title() string {
	return fmt.Sprintf("Validates fill rates for %d critical columns", len(c.columns))
}

func (c *ColumnCompleteness) Category() string   { return "completeness" }
func (c *ColumnCompleteness) DataTestCount() int { return len(c.columns) }

func (c *ColumnCompleteness) Execute(ctx context.Context, rc *checks.RunContext) (checks.Result, error) {
	type shortfall struct {
		col      CriticalColumn
		filled   float64
		required float64
	}

	var shortfalls []shortfall
	for i, col := range c.columns {
		qualified, err := rc.QualifiedTable("source", "masked", col.Table)
		if err != nil {
			return checks.Result{}, err
		}
		total, err := rc.Session.Count(ctx, c.Name(), fmt.Sprintf(`SELECT COUNT(*) FROM %s`, qualified))
		if err != nil {
			return checks.Result{}, fmt.Errorf("count rows in %s: %w", col.Table, err)
		}
		if total == 0 {
			rc.ReportProgress(i + 1)
			continue
		}
		nonNull, err := rc.Session.Count(ctx, c.Name(),
			fmt.Sprintf(`SELECT COUNT(%q) FROM %s`, col.Column, qualified))
		if err != nil {
			return checks.Result{}, fmt.Errorf("count non-null %s.%s: %w", col.Table, col.Column, err)
		}

		filled := float64(nonNull) / float64(total) * 100
		required := col.MinimumFilled
		if override := rc.FailureThreshold(c.Name(), c.Category(), -1); override >= 0 {
			// Threshold is an allowed failure rate; translate to a fill floor.
			if floor := 100 - override; floor < required {
				required = floor
			}
		}
		if filled < required {
			shortfalls = append(shortfalls, shortfall{col: col, filled: filled, required: required})
		}
		rc.ReportProgress(i + 1)
	}

	details := ""
	if len(shortfalls) > 0 {
		lines := []string{fmt.Sprintf("Found %d critical columns below their minimum fill rate:", len(shortfalls))}
		for _, s := range shortfalls {
			lines = append(lines, fmt.Sprintf("  • %s.%s: %.1f%% filled, minimum %.1f%%",
				s.col.Table, s.col.Column, s.filled, s.required))
		}
		details = strings.Join(lines, "\n")
	}
	return checks.NewResult(c, len(c.columns), len(shortfalls), details), nil
}

func criticalColumns() []CriticalColumn {
	return []CriticalColumn{
		{Table: "patient", Column: "person_id", MinimumFilled: 100},
		{Table: "patient", Column: "birth_year", MinimumFilled: 99},
		{Table: "patient", Column: "gender_code_id", MinimumFilled: 98},
		{Table: "encounter", Column: "patient_id", MinimumFilled: 100},
		{Table: "observation", Column: "patient_id", MinimumFilled: 100},
		{Table: "observation", Column: "observation_code_id", MinimumFilled: 95},
	}
}
