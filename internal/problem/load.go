package problem

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes a template from YAML. JSON documents parse too, since
// YAML is a superset.
func Parse(data []byte) (*Template, error) {
	t := &Template{Active: true}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	for i := range t.Steps {
		if t.Steps[i].Type == "" {
			t.Steps[i].Type = StepFreeResponse
		}
	}
	if err := Validate(t); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadFile reads and validates a template file.
func LoadFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}
	return Parse(data)
}
