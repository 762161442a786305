package checks

import (
	"fmt"
	"sort"
	"time"

	"datamedic/internal/config"
)

// Factory constructs one Check instance. Every catalog entry is a Factory;
// there is no second "class-like" registration shape.
type Factory func() (Check, error)

// Chunker is implemented by decomposable checks: those whose internal list
// of independent sub-validations can be evaluated one named range at a time.
type Chunker interface {
	// ChunkLabel names the sub-validation kind used in chunk specs
	// (e.g. "relationships" for "relationships_6-10").
	ChunkLabel() string

	// DefaultChunkSize is the preferred sub-checks-per-chunk granularity.
	DefaultChunkSize() int
}

// ChunkPolicy describes how a decomposable check is split into work items.
type ChunkPolicy struct {
	Label string
	Size  int
}

// Catalog is the explicit, passed-in check registry. It is built once at
// startup by a builder (see the builtin package) and read-only afterwards:
// no process-wide singleton state.
type Catalog struct {
	checks     map[string]Check
	order      []string
	suites     map[string]config.SuiteMeta
	suiteOrder []string
	meta       map[string]config.CheckMeta
}

// NewCatalog creates an empty catalog carrying the metadata and suite
// definitions from checks.yml (may be empty).
func NewCatalog(cf *config.CatalogFile) *Catalog {
	c := &Catalog{
		checks: make(map[string]Check),
		suites: make(map[string]config.SuiteMeta),
		meta:   make(map[string]config.CheckMeta),
	}
	if cf != nil {
		for name, meta := range cf.Checks {
			c.meta[name] = meta
		}
		for name, suite := range cf.Suites {
			c.suites[name] = suite
			c.suiteOrder = append(c.suiteOrder, name)
		}
		sort.Strings(c.suiteOrder)
	}
	return c
}

// Register instantiates the factory and adds the check under its name.
// Duplicate names are a wiring bug and rejected.
func (c *Catalog) Register(f Factory) error {
	chk, err := f()
	if err != nil {
		return fmt.Errorf("construct check: %w", err)
	}
	name := chk.Name()
	if name == "" {
		return fmt.Errorf("check %T has empty name", chk)
	}
	if _, exists := c.checks[name]; exists {
		return fmt.Errorf("check %q already registered", name)
	}
	c.checks[name] = chk
	c.order = append(c.order, name)
	return nil
}

// Lookup returns the check registered under name.
func (c *Catalog) Lookup(name string) (Check, bool) {
	chk, ok := c.checks[name]
	return chk, ok
}

// Names returns all registered check names in registration order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// List returns all registered checks in registration order.
func (c *Catalog) List() []Check {
	out := make([]Check, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.checks[name])
	}
	return out
}

// Resolve maps explicit check names to instances. Unknown names fail before
// any scheduling begins.
func (c *Catalog) Resolve(names []string) ([]Check, error) {
	var out []Check
	for _, name := range names {
		chk, ok := c.checks[name]
		if !ok {
			return nil, fmt.Errorf("check not found: %s", name)
		}
		out = append(out, chk)
	}
	return out, nil
}

// SuiteNames returns the defined suite names, sorted.
func (c *Catalog) SuiteNames() []string {
	out := make([]string, len(c.suiteOrder))
	copy(out, c.suiteOrder)
	return out
}

// Suite resolves a named suite to its member checks.
func (c *Catalog) Suite(name string) ([]Check, error) {
	suite, ok := c.suites[name]
	if !ok {
		return nil, fmt.Errorf("suite not found: %s (available: %v)", name, c.suiteOrder)
	}
	chks, err := c.Resolve(suite.Checks)
	if err != nil {
		return nil, fmt.Errorf("suite %s: %w", name, err)
	}
	return chks, nil
}

// DeclaredSize returns the known count of underlying sub-validations for a
// named check: checks.yml first, then the check's own Sizer, then 1.
func (c *Catalog) DeclaredSize(name string) int {
	if meta, ok := c.meta[name]; ok && meta.DataTests > 0 {
		return meta.DataTests
	}
	if chk, ok := c.checks[name]; ok {
		if sizer, ok := chk.(Sizer); ok {
			if n := sizer.DataTestCount(); n > 0 {
				return n
			}
		}
	}
	return 1
}

// ChunkPolicy reports how a check is decomposed, if at all. The allow-list
// is expressed by checks implementing Chunker; checks.yml may override the
// chunk size or label.
func (c *Catalog) ChunkPolicy(name string) (ChunkPolicy, bool) {
	chk, ok := c.checks[name]
	if !ok {
		return ChunkPolicy{}, false
	}

	var policy ChunkPolicy
	if chunker, ok := chk.(Chunker); ok {
		policy = ChunkPolicy{Label: chunker.ChunkLabel(), Size: chunker.DefaultChunkSize()}
	}
	if meta, ok := c.meta[name]; ok {
		if meta.ChunkLabel != "" {
			policy.Label = meta.ChunkLabel
		}
		if meta.ChunkSize > 0 {
			policy.Size = meta.ChunkSize
		}
	}

	if policy.Label == "" || policy.Size <= 0 {
		return ChunkPolicy{}, false
	}
	return policy, true
}

// Timeout returns the advisory per-check timeout, or 0 when none declared.
func (c *Catalog) Timeout(name string) time.Duration {
	if meta, ok := c.meta[name]; ok && meta.TimeoutSeconds > 0 {
		return time.Duration(meta.TimeoutSeconds) * time.Second
	}
	return 0
}

// Meta returns the raw checks.yml entry for a check, if present.
func (c *Catalog) Meta(name string) (config.CheckMeta, bool) {
	meta, ok := c.meta[name]
	return meta, ok
}
