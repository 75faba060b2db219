package rules

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// OverridesFile is the YAML shape for bulk rule overrides:
//
//	version: "1"
//	owners:
//	  acct-42:
//	    ebs_idle:
//	      enabled: true
//	      min_idle_days: 45
type OverridesFile struct {
	Version string                        `yaml:"version"`
	Owners  map[string]map[string]RuleSet `yaml:"owners"`
}

// LoadOverridesFile reads and validates a YAML overrides document
func LoadOverridesFile(path string) (*OverridesFile, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("read overrides file: %w", err)
	}

	var file OverridesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse overrides file: %w", err)
	}

	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("invalid overrides file: %w", err)
	}
	return &file, nil
}

// Validate rejects unknown scenario names so typos fail loudly at load
// time instead of silently never matching.
func (f *OverridesFile) Validate() error {
	if f.Version == "" {
		return fmt.Errorf("version is required")
	}
	for owner, scenarios := range f.Owners {
		if owner == "" {
			return fmt.Errorf("empty owner id")
		}
		for name := range scenarios {
			if !Scenario(name).Valid() {
				return fmt.Errorf("owner %s: unknown scenario %q", owner, name)
			}
		}
	}
	return nil
}

// Apply upserts every override in the file through the registry
func (f *OverridesFile) Apply(ctx context.Context, registry *Registry) error {
	for owner, scenarios := range f.Owners {
		for name, rs := range scenarios {
			if err := registry.Upsert(ctx, owner, Scenario(name), rs); err != nil {
				return fmt.Errorf("apply override %s/%s: %w", owner, name, err)
			}
		}
	}
	return nil
}
