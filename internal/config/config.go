package config

import (
	"errors"
	"fmt"
	"strings"
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields that affect run
	// behavior, keep the CLI flags in internal/cli/run.go in sync.
	Targeting Targeting
	Execution Execution
	Output    Output
	Runtime   Runtime
}

type Targeting struct {
	// Env is the environment name whose warehouse the checks run against
	// (see --env). Must match an environment file under <config-dir>/environments.
	Env string

	// Suite selects a named check suite from the catalog (see --suite).
	// Empty means no suite selection.
	Suite string

	// Checks is an explicit list of check names to run (see --checks).
	// Values may be provided as repeated flags and/or comma-separated lists.
	// Mutually exclusive with Suite. Empty with Suite empty means all checks.
	Checks []string
}

type Execution struct {
	// Parallel runs the selected checks on the worker pool (see --parallel).
	Parallel bool

	// Workers is the worker pool size for parallel runs (see --workers).
	// 0 means "use the environment's configured parallel_workers".
	Workers int

	// FailOnError treats check-level errors like failures for the exit code
	// (see --fail-on-error).
	FailOnError bool
}

type Output struct {
	// Format controls the console result rendering (see --format).
	// Allowed values: table, json, csv.
	Format string

	// Out writes the aggregated results to this path (see --out).
	Out string

	// OutFormat selects the format for --out (see --out-format).
	// Allowed values: json, csv. If empty, it is inferred from the --out
	// file extension.
	OutFormat string

	// NoConsole suppresses the console sink (see --no-console).
	NoConsole bool

	// NoProgress suppresses the live worker-progress display (see --no-progress).
	// Progress is also suppressed automatically when NoConsole is set.
	NoProgress bool
}

type Runtime struct {
	// ConfigDir is the directory holding environment files, check metadata,
	// and mapping files (see --config-dir).
	ConfigDir string

	// QueryLogDir is where per-run SQL audit logs are written (see --query-log).
	// Empty disables query logging.
	QueryLogDir string

	// Verbose enables more detailed diagnostics (full error details, per-item
	// completion notes).
	Verbose bool
}

func New() *Config {
	return &Config{
		Targeting: Targeting{
			Env: "uat",
		},
		Execution: Execution{
			Parallel: true,
		},
		Output: Output{
			Format: "table",
		},
		Runtime: Runtime{
			ConfigDir: "config",
		},
	}
}

func (c *Config) Validate() error {
	// Normalize comma-delimited list inputs.
	c.Targeting.Checks = splitCommaList(c.Targeting.Checks)

	if c.Targeting.Env == "" {
		return errors.New("--env must not be empty")
	}
	if c.Targeting.Suite != "" && len(c.Targeting.Checks) > 0 {
		return errors.New("--suite and --checks are mutually exclusive")
	}

	if c.Execution.Workers < 0 {
		return fmt.Errorf("--workers must be >= 0, got %d", c.Execution.Workers)
	}

	c.Output.Format = normalizeEnumValue(c.Output.Format)
	if c.Output.Format == "" {
		c.Output.Format = "table"
	}
	if c.Output.Format != "table" && c.Output.Format != "json" && c.Output.Format != "csv" {
		return fmt.Errorf("unsupported --format: %s (must be one of: table, json, csv)", c.Output.Format)
	}

	if c.Output.OutFormat != "" {
		v := normalizeEnumValue(c.Output.OutFormat)
		if v != "json" && v != "csv" {
			return fmt.Errorf("unsupported --out-format: %s (must be one of: json, csv)", c.Output.OutFormat)
		}
		c.Output.OutFormat = v
	}
	if c.Output.OutFormat != "" && c.Output.Out == "" {
		return errors.New("--out-format requires --out")
	}

	if c.Runtime.ConfigDir == "" {
		return errors.New("--config-dir must not be empty")
	}

	return nil
}

// splitCommaList flattens repeated flag values that may themselves contain
// comma-separated entries, dropping empties.
func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func normalizeEnumValue(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
