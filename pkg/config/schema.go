package config

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	embedded "github.com/chazu/dremio-smoketest/cue"
)

// LoadFile reads a YAML config file, validates it against the embedded CUE
// schema and merges it over the given base config. The base is returned
// unchanged on error.
func LoadFile(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := validateAgainstSchema(data); err != nil {
		return base, fmt.Errorf("config file %s: %w", path, err)
	}

	merged := *base
	if err := yaml.Unmarshal(data, &merged); err != nil {
		return base, fmt.Errorf("failed to decode config file: %w", err)
	}
	return &merged, nil
}

// validateAgainstSchema unifies the decoded file content with the closed
// #Config definition and reports the first constraint violation.
func validateAgainstSchema(data []byte) error {
	schemaSrc, err := embedded.SchemaFS.ReadFile(embedded.SchemaFile)
	if err != nil {
		return fmt.Errorf("failed to read embedded schema: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSrc)
	if schema.Err() != nil {
		return fmt.Errorf("failed to compile schema: %w", schema.Err())
	}

	configDef := schema.LookupPath(cue.ParsePath("#Config"))
	if configDef.Err() != nil {
		return fmt.Errorf("schema has no #Config definition: %w", configDef.Err())
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("not valid YAML: %w", err)
	}
	if doc == nil {
		// An empty file is a valid no-op override.
		return nil
	}

	value := ctx.Encode(doc)
	if value.Err() != nil {
		return fmt.Errorf("failed to encode config: %w", value.Err())
	}

	unified := configDef.Unify(value)
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
