package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// CheckMeta is per-check metadata from checks.yml. All fields are optional;
// anything a check does not declare falls back to the catalog's defaults.
type CheckMeta struct {
	Description string `yaml:"description"`

	// DataTests is the declared number of underlying sub-validations the
	// check represents. Used for progress denominators, never correctness.
	DataTests int `yaml:"data_tests"`

	// ChunkLabel and ChunkSize make a check decomposable: the runner splits
	// it into contiguous ranges of ChunkSize sub-checks, each identified by a
	// "<label>_a-b" chunk spec. A check without both stays atomic.
	ChunkLabel string `yaml:"chunk_label"`
	ChunkSize  int    `yaml:"chunk_size"`

	// TimeoutSeconds is the advisory per-check timeout. Enforcement is
	// delegated to driver-level context cancellation at query submission.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// FailureThreshold overrides the acceptable failure rate (percent) for
	// threshold-style checks. Nil means the check's own default applies.
	FailureThreshold *float64 `yaml:"failure_threshold"`
}

// SuiteMeta groups check names into a named suite.
type SuiteMeta struct {
	Description string   `yaml:"description"`
	Checks      []string `yaml:"checks"`
}

// CatalogFile is the parsed checks.yml.
type CatalogFile struct {
	Suites map[string]SuiteMeta `yaml:"suites"`
	Checks map[string]CheckMeta `yaml:"check_config"`
}

// LoadCatalogFile reads <config-dir>/checks.yml. A missing file is not an
// error; the catalog then runs on built-in defaults.
func LoadCatalogFile(configDir string) (*CatalogFile, error) {
	path := filepath.Join(configDir, "checks.yml")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &CatalogFile{}, nil
		}
		return nil, fmt.Errorf("read checks config: %w", err)
	}

	var cf CatalogFile
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("parse checks config %s: %w", path, err)
	}

	for suite, meta := range cf.Suites {
		if len(meta.Checks) == 0 {
			return nil, fmt.Errorf("suite %q in %s lists no checks", suite, path)
		}
	}
	return &cf, nil
}
