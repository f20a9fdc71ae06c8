package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseEntity parses a single entity descriptor such as catalog-info.yaml.
// JSON input is accepted too.
func ParseEntity(data []byte) (Entity, error) {
	var entity Entity
	if err := yaml.Unmarshal(data, &entity); err != nil {
		return Entity{}, fmt.Errorf("failed to parse entity: %w", err)
	}
	if entity.Kind == "" || entity.Metadata.Name == "" {
		return Entity{}, fmt.Errorf("entity descriptor requires kind and metadata.name")
	}
	return entity, nil
}

// LoadEntity reads an entity descriptor from disk
func LoadEntity(path string) (Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entity{}, fmt.Errorf("failed to read entity file %s: %w", path, err)
	}
	return ParseEntity(data)
}
