package translator

import (
	_ "embed"
	"fmt"

	"github.com/upb/voice-agent/models"
	"gopkg.in/yaml.v3"
)

//go:embed schema.yaml
var schemaYAML []byte

var defaultSchema models.SchemaContext

func init() {
	schema, err := ParseSchema(schemaYAML)
	if err != nil {
		panic(fmt.Sprintf("translator: embedded schema: %v", err))
	}
	defaultSchema = schema
}

// DefaultSchema returns the construction database schema shipped with the binary
func DefaultSchema() models.SchemaContext {
	return defaultSchema
}

// ParseSchema decodes a schema context document
func ParseSchema(data []byte) (models.SchemaContext, error) {
	var schema models.SchemaContext
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return models.SchemaContext{}, fmt.Errorf("failed to parse schema: %w", err)
	}
	if len(schema.Tables) == 0 {
		return models.SchemaContext{}, fmt.Errorf("schema declares no tables")
	}
	for i, t := range schema.Tables {
		if t.Name == "" {
			return models.SchemaContext{}, fmt.Errorf("table %d has no name", i)
		}
	}
	return schema, nil
}
