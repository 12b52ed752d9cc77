package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads rule definitions from a YAML file. It does not validate
// them; Registry.Load does.
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes rule definitions from YAML. Rules default to active
// unless the document sets active: false.
func ParseYAML(data []byte) ([]Rule, error) {
	var raw struct {
		Rules []yamlRule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	out := make([]Rule, 0, len(raw.Rules))
	for _, yr := range raw.Rules {
		rule := yr.Rule
		rule.Active = yr.Active == nil || *yr.Active
		out = append(out, rule)
	}
	return out, nil
}

// yamlRule distinguishes an omitted active flag from active: false.
type yamlRule struct {
	Rule   `yaml:",inline"`
	Active *bool `yaml:"active"`
}
