// Package builtin assembles the standard check catalog. It is the single
// place where concrete check packages are stitched to their configuration;
// entry points call BuildCatalog once and pass the result down.
package builtin

import (
	"fmt"
	"os"
	"path/filepath"

	"datamedic/internal/checks"
	"datamedic/internal/checks/completeness"
	"datamedic/internal/checks/conceptmap"
	"datamedic/internal/checks/integrity"
	"datamedic/internal/checks/patterns"
	"datamedic/internal/config"
)

// BuildCatalog constructs the full catalog of builtin checks. Relationship
// and concept field mappings are read from configDir/mappings when present
// and fall back to the embedded defaults otherwise.
func BuildCatalog(configDir string, cf *config.CatalogFile) (*checks.Catalog, error) {
	catalog := checks.NewCatalog(cf)

	declared := func(name string) int {
		if cf == nil {
			return 0
		}
		return cf.Checks[name].DataTests
	}

	factories := []checks.Factory{
		func() (checks.Check, error) {
			rels, err := integrity.LoadMappings(mappingPath(configDir, "referential_integrity.yml"))
			if err != nil {
				return nil, err
			}
			return integrity.New(rels), nil
		},
		func() (checks.Check, error) {
			fields, err := conceptmap.LoadFields(mappingPath(configDir, "concept_fields.yml"))
			if err != nil {
				return nil, err
			}
			return conceptmap.New(fields), nil
		},
		func() (checks.Check, error) {
			return patterns.New(), nil
		},
		func() (checks.Check, error) {
			return &completeness.NullColumns{DeclaredColumns: declared("null_columns")}, nil
		},
		func() (checks.Check, error) {
			return &completeness.EmptyTables{DeclaredTables: declared("empty_tables")}, nil
		},
		func() (checks.Check, error) {
			return completeness.NewColumnCompleteness(), nil
		},
	}

	for _, f := range factories {
		if err := catalog.Register(f); err != nil {
			return nil, fmt.Errorf("build check catalog: %w", err)
		}
	}
	return catalog, nil
}

// mappingPath returns the on-disk override path for a mapping file, or ""
// when configDir is unset so the embedded defaults apply.
func mappingPath(configDir, file string) string {
	if configDir == "" {
		return ""
	}
	path := filepath.Join(configDir, "mappings", file)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
