// Package patterns enforces person-level business rules that span tables,
// such as demographic plausibility and registration consistency.
package patterns

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"datamedic/internal/checks"
)

// Pattern is one business rule. Query must return the count of violating
// rows; zero means the rule holds.
type Pattern struct {
	ID          string
	Description string
	Query       func(rc *checks.RunContext) (string, error)
}

// Check validates person-level data patterns. Decomposable with chunk specs
// like "patterns_3-4".
type Check struct {
	patterns []Pattern
}

func New() *Check {
	return &Check{patterns: builtinPatterns()}
}

func (c *Check) Name() string { return "person_patterns" }

func (c *Check) Title() string {
	return fmt.Sprintf("Validates %d person-level data patterns", len(c.patterns))
}

func (c *Check) Category() string { return "person_patterns" }

func (c *Check) DataTestCount() int    { return len(c.patterns) }
func (c *Check) ChunkLabel() string    { return "patterns" }
func (c *Check) DefaultChunkSize() int { return 2 }

type patternOutcome struct {
	pattern    Pattern
	violations int64
}

func (c *Check) Execute(ctx context.Context, rc *checks.RunContext) (checks.Result, error) {
	subset := c.patterns
	if spec, ok := rc.ChunkInfo(); ok {
		start, end, err := checks.ParseChunkRange(spec)
		if err != nil {
			return checks.Result{}, err
		}
		subset = checks.SliceForChunk(c.patterns, start, end)
	}
	if len(subset) == 0 {
		return checks.SkippedResult(c, "chunk range selects no patterns"), nil
	}

	outcomes := make([]patternOutcome, 0, len(subset))
	failed := 0
	for i, p := range subset {
		query, err := p.Query(rc)
		if err != nil {
			return checks.Result{}, fmt.Errorf("build query for %s: %w", p.ID, err)
		}
		n, err := rc.Session.Count(ctx, c.Name(), query)
		if err != nil {
			return checks.Result{}, fmt.Errorf("evaluate %s: %w", p.ID, err)
		}
		outcomes = append(outcomes, patternOutcome{pattern: p, violations: n})
		if n > 0 {
			failed++
		}
		rc.ReportProgress(i + 1)
	}

	return checks.NewResult(c, len(subset), failed, buildDetails(outcomes, failed)), nil
}

func buildDetails(outcomes []patternOutcome, failed int) string {
	if failed == 0 {
		return ""
	}

	lines := []string{fmt.Sprintf("Found violations in %d of %d person patterns:", failed, len(outcomes))}
	sorted := make([]patternOutcome, 0, failed)
	for _, out := range outcomes {
		if out.violations > 0 {
			sorted = append(sorted, out)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].violations > sorted[j].violations })
	for _, out := range sorted {
		lines = append(lines, fmt.Sprintf("  • %s: %d violating persons (%s)", out.pattern.ID, out.violations, out.pattern.Description))
	}
	return strings.Join(lines, "\n")
}

// qualify resolves table names in the masked source schema, erroring on the
// first failure so pattern builders stay readable.
type qualifier struct {
	rc  *checks.RunContext
	err error
}

func (q *qualifier) table(name string) string {
	if q.err != nil {
		return ""
	}
	t, err := q.rc.QualifiedTable("source", "masked", name)
	if err != nil {
		q.err = err
		return ""
	}
	return t
}

func builtinPatterns() []Pattern {
	simple := func(id, description, template string, tables ...string) Pattern {
		return Pattern{
			ID:          id,
			Description: description,
			Query: func(rc *checks.RunContext) (string, error) {
				q := &qualifier{rc: rc}
				qualified := make([]any, len(tables))
				for i, t := range tables {
					qualified[i] = q.table(t)
				}
				if q.err != nil {
					return "", q.err
				}
				return fmt.Sprintf(template, qualified...), nil
			},
		}
	}

	return []Pattern{
		simple("birth_before_death",
			"date of death must not precede date of birth",
			`SELECT COUNT(*) FROM %s
			 WHERE death_year IS NOT NULL AND birth_year IS NOT NULL
			   AND death_year < birth_year`,
			"patient"),
		simple("plausible_age",
			"patients must be younger than 130 years",
			`SELECT COUNT(*) FROM %s
			 WHERE birth_year IS NOT NULL
			   AND EXTRACT(YEAR FROM CURRENT_DATE) - birth_year > 130`,
			"patient"),
		simple("future_birth",
			"date of birth must not be in the future",
			`SELECT COUNT(*) FROM %s
			 WHERE birth_year IS NOT NULL
			   AND birth_year > EXTRACT(YEAR FROM CURRENT_DATE)`,
			"patient"),
		simple("person_has_patient",
			"every person must link to at least one patient record",
			`SELECT COUNT(*) FROM %s p
			 WHERE NOT EXISTS (SELECT 1 FROM %s pt WHERE pt.person_id = p.id)`,
			"person", "patient"),
		simple("single_primary_patient",
			"a person must have at most one primary patient record",
			`SELECT COUNT(*) FROM (
			   SELECT person_id FROM %s
			   WHERE is_primary = TRUE
			   GROUP BY person_id
			   HAVING COUNT(*) > 1
			 ) dup`,
			"patient"),
		simple("registered_patient_has_practice",
			"actively registered patients must have a registered practice",
			`SELECT COUNT(*) FROM %s
			 WHERE registration_end_date IS NULL
			   AND registered_practice_organisation_id IS NULL`,
			"patient"),
		simple("registration_dates_ordered",
			"registration end must not precede registration start",
			`SELECT COUNT(*) FROM %s
			 WHERE registration_start_date IS NOT NULL
			   AND registration_end_date IS NOT NULL
			   AND registration_end_date < registration_start_date`,
			"patient"),
		simple("deceased_no_future_activity",
			"deceased patients must have no encounters after death",
			`SELECT COUNT(DISTINCT p.id) FROM %s p
			 JOIN %s e ON e.patient_id = p.id
			 WHERE p.death_year IS NOT NULL
			   AND EXTRACT(YEAR FROM e.clinical_effective_date) > p.death_year + 1`,
			"patient", "encounter"),
		simple("encounter_date_present",
			"encounters must carry a clinical effective date",
			`SELECT COUNT(*) FROM %s
			 WHERE clinical_effective_date IS NULL`,
			"encounter"),
		simple("observation_date_plausible",
			"observations must not predate the patient's birth",
			`SELECT COUNT(*) FROM %s o
			 JOIN %s p ON o.patient_id = p.id
			 WHERE o.clinical_effective_date IS NOT NULL
			   AND p.birth_year IS NOT NULL
			   AND EXTRACT(YEAR FROM o.clinical_effective_date) < p.birth_year`,
			"observation", "patient"),
		simple("medication_dates_ordered",
			"medication order end must not precede its start",
			`SELECT COUNT(*) FROM %s
			 WHERE start_date IS NOT NULL AND end_date IS NOT NULL
			   AND end_date < start_date`,
			"medication_order"),
		simple("address_period_ordered",
			"patient address periods must be ordered",
			`SELECT COUNT(*) FROM %s
			 WHERE start_date IS NOT NULL AND end_date IS NOT NULL
			   AND end_date < start_date`,
			"patient_address"),
		simple("appointment_has_schedule",
			"booked appointments must reference a schedule",
			`SELECT COUNT(*) FROM %s
			 WHERE schedule_id IS NULL`,
			"appointment"),
	}
}
