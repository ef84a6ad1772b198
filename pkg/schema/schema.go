// Package schema validates evaluation configuration documents against a
// JSON Schema before they are decoded into models.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/rulekit/rulekit/pkg/models"
)

// configSchema describes the wire shape of an evaluation configuration.
// Operator, logic kind, and rule type values are checked semantically by the
// engine; the schema only pins the structure.
var configSchema = map[string]any{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type":     "object",
	"required": []any{"id"},
	"properties": map[string]any{
		"id":   map[string]any{"type": "string", "minLength": 1},
		"name": map[string]any{"type": "string"},
		"fields": map[string]any{
			"type":  "array",
			"items": fieldSchema,
		},
		"cross_field_rules": map[string]any{
			"type":  "array",
			"items": ruleSchema,
		},
		"options": map[string]any{
			"type":  "array",
			"items": optionSchema,
		},
		"default_option": map[string]any{"type": "string"},
		"manual":         map[string]any{"type": "boolean"},
		"frameworks": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
}

var conditionSchema = map[string]any{
	"type":     "object",
	"required": []any{"id", "field", "operator"},
	"properties": map[string]any{
		"id":          map[string]any{"type": "string"},
		"field":       map[string]any{"type": "string", "minLength": 1},
		"operator":    map[string]any{"type": "string", "minLength": 1},
		"value":       map[string]any{},
		"weight":      map[string]any{"type": "number", "minimum": 0},
		"required":    map[string]any{"type": "boolean"},
		"ignore_case": map[string]any{"type": "boolean"},
		"custom_func": map[string]any{"type": "string"},
	},
}

var ruleSchema = map[string]any{
	"type":     "object",
	"required": []any{"type"},
	"properties": map[string]any{
		"id":       map[string]any{"type": "string"},
		"type":     map[string]any{"type": "string", "minLength": 1},
		"field":    map[string]any{"type": "string"},
		"value":    map[string]any{},
		"message":  map[string]any{"type": "string"},
		"severity": map[string]any{"enum": []any{"error", "warning", "info"}},
		"conditions": map[string]any{
			"type":  "array",
			"items": conditionSchema,
		},
		"custom_func": map[string]any{"type": "string"},
	},
}

var logicSchema = map[string]any{
	"type":     "object",
	"required": []any{"kind"},
	"properties": map[string]any{
		"kind":       map[string]any{"type": "string", "minLength": 1},
		"threshold":  map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"combinator": map[string]any{"type": "string"},
		"expression": map[string]any{"type": "string"},
	},
}

var fieldSchema = map[string]any{
	"type":     "object",
	"required": []any{"id", "name", "type"},
	"properties": map[string]any{
		"id":       map[string]any{"type": "string", "minLength": 1},
		"name":     map[string]any{"type": "string"},
		"type":     map[string]any{"type": "string", "minLength": 1},
		"required": map[string]any{"type": "boolean"},
		"disabled": map[string]any{"type": "boolean"},
		"show_conditions": map[string]any{
			"type":  "array",
			"items": conditionSchema,
		},
		"rules": map[string]any{
			"type":  "array",
			"items": ruleSchema,
		},
		"options": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"compliance_required": map[string]any{"type": "boolean"},
		"metadata":            map[string]any{"type": "object"},
	},
}

var optionSchema = map[string]any{
	"type":     "object",
	"required": []any{"id"},
	"properties": map[string]any{
		"id":   map[string]any{"type": "string", "minLength": 1},
		"name": map[string]any{"type": "string"},
		"conditions": map[string]any{
			"type":  "array",
			"items": conditionSchema,
		},
		"logic":     logicSchema,
		"priority":  map[string]any{"type": "integer"},
		"next_step": map[string]any{"type": "string"},
	},
}

// Validate checks a raw configuration document against the schema. The
// returned error joins every violation so callers report them in one pass.
func Validate(document []byte) error {
	schemaLoader := gojsonschema.NewGoLoader(configSchema)
	dataLoader := gojsonschema.NewBytesLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	if !result.Valid() {
		var violations []string
		for _, desc := range result.Errors() {
			violations = append(violations, desc.String())
		}

		return fmt.Errorf("validation errors: %s", strings.Join(violations, "; "))
	}

	return nil
}

// Parse validates and decodes a configuration document.
func Parse(document []byte) (*models.EvaluationConfig, error) {
	if err := Validate(document); err != nil {
		return nil, err
	}

	var cfg models.EvaluationConfig
	if err := json.Unmarshal(document, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	return &cfg, nil
}

// LoadConfig reads and parses a configuration file.
func LoadConfig(path string) (*models.EvaluationConfig, error) {
	document, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	return Parse(document)
}
