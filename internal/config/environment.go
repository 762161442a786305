package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment is one warehouse environment (dev/uat/prod), loaded from
// <config-dir>/environments/<name>.yml.
type Environment struct {
	Name        string `yaml:"name" validate:"required,oneof=dev uat prod"`
	Description string `yaml:"description"`

	Databases  DatabaseConfig   `yaml:"databases" validate:"required"`
	Schemas    SchemaConfig     `yaml:"schemas" validate:"required"`
	Connection ConnectionConfig `yaml:"connection" validate:"required"`
	Execution  ExecutionConfig  `yaml:"execution"`
}

// DatabaseConfig maps logical database roles to physical database names.
type DatabaseConfig struct {
	Source      string `yaml:"source" validate:"required"`
	Terminology string `yaml:"terminology" validate:"required"`
	Results     string `yaml:"results" validate:"required"`
	Dictionary  string `yaml:"dictionary" validate:"required"`
}

// SchemaConfig maps logical schema roles to physical schema names.
type SchemaConfig struct {
	Masked      string `yaml:"masked" validate:"required"`
	Terminology string `yaml:"terminology" validate:"required"`
	Tests       string `yaml:"tests" validate:"required"`
}

// ConnectionConfig holds warehouse connection parameters. The password is
// never stored in config files; it is resolved from the environment at
// connect time (DATAMEDIC_WAREHOUSE_PASSWORD, then PGPASSWORD).
type ConnectionConfig struct {
	Host    string `yaml:"host" validate:"required,hostname|ip"`
	Port    int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	User    string `yaml:"user" validate:"required"`
	SSLMode string `yaml:"sslmode" validate:"omitempty,oneof=disable require verify-ca verify-full"`
}

type ExecutionConfig struct {
	// ParallelWorkers is the default worker pool size for parallel runs.
	ParallelWorkers int `yaml:"parallel_workers" validate:"omitempty,min=1,max=64"`

	// TimeoutSeconds is the default advisory per-check timeout.
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"omitempty,min=1"`
}

const DefaultParallelWorkers = 4

// DatabaseMap returns the logical-role -> physical-name map handed to checks.
func (e *Environment) DatabaseMap() map[string]string {
	return map[string]string{
		"source":      e.Databases.Source,
		"terminology": e.Databases.Terminology,
		"results":     e.Databases.Results,
		"dictionary":  e.Databases.Dictionary,
	}
}

// SchemaMap returns the logical-role -> physical-name map handed to checks.
func (e *Environment) SchemaMap() map[string]string {
	return map[string]string{
		"masked":      e.Schemas.Masked,
		"terminology": e.Schemas.Terminology,
		"tests":       e.Schemas.Tests,
	}
}

func (e *Environment) Workers() int {
	if e.Execution.ParallelWorkers > 0 {
		return e.Execution.ParallelWorkers
	}
	return DefaultParallelWorkers
}

// LoadEnvironment reads and validates one environment file. Both .yml and
// .yaml extensions are accepted.
func LoadEnvironment(configDir, name string) (*Environment, error) {
	path, err := environmentPath(configDir, name)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read environment config: %w", err)
	}

	var env Environment
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("parse environment config %s: %w", path, err)
	}

	if err := validator.New().Struct(&env); err != nil {
		return nil, fmt.Errorf("invalid environment config %s: %w", path, err)
	}
	if env.Name != name {
		return nil, fmt.Errorf("environment config %s declares name %q, expected %q", path, env.Name, name)
	}

	return &env, nil
}

// ListEnvironments returns the names of all environment files under configDir,
// sorted. Template files are skipped.
func ListEnvironments(configDir string) ([]string, error) {
	dir := filepath.Join(configDir, "environments")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read environments directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yml" && ext != ".yaml" {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), ext)
		if strings.EqualFold(stem, "template") {
			continue
		}
		names = append(names, stem)
	}
	sort.Strings(names)
	return names, nil
}

func environmentPath(configDir, name string) (string, error) {
	dir := filepath.Join(configDir, "environments")
	for _, ext := range []string{".yml", ".yaml"} {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	available, listErr := ListEnvironments(configDir)
	if listErr != nil {
		return "", fmt.Errorf("environment %q not found: %w", name, listErr)
	}
	return "", fmt.Errorf("environment %q not found (available: %s)", name, strings.Join(available, ", "))
}
