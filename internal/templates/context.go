package templates

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadContext reads a template context file. YAML is accepted, and so is
// JSON since it is a subset. The top level must be a mapping; an empty file
// yields an empty context.
func LoadContext(path string) (map[string]interface{}, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ctx := make(map[string]interface{})
	if err := yaml.Unmarshal(content, &ctx); err != nil {
		return nil, fmt.Errorf("parsing context %s: %w", path, err)
	}

	return ctx, nil
}
