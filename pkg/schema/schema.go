// Package schema defines the input validation contract used by the tool
// pipeline and a JSON Schema implementation of it.
//
// Invariants:
// - Validate never raises for expected violations; they are returned as data.
// - Declared defaults are filled into the normalized value for absent keys.
package schema

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Violation describes a single schema violation.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Result is the outcome of validating raw input: either a normalized value
// or a non-empty list of violations.
type Result struct {
	Valid      bool
	Value      map[string]interface{}
	Violations []Violation
}

// Validator validates raw input against a schema and can describe that
// schema for protocol adapters.
type Validator interface {
	// Validate checks raw input. The returned error reports a validator
	// malfunction only; expected violations come back in the Result.
	Validate(raw map[string]interface{}) (Result, error)

	// Describe returns the schema as a JSON Schema document.
	Describe() map[string]interface{}
}

// JSONSchema is a Validator backed by a compiled JSON Schema.
type JSONSchema struct {
	doc      map[string]interface{}
	compiled *gojsonschema.Schema
}

// NewJSONSchema compiles a JSON Schema document into a Validator.
func NewJSONSchema(doc map[string]interface{}) (*JSONSchema, error) {
	loader := gojsonschema.NewGoLoader(doc)
	compiled, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &JSONSchema{doc: doc, compiled: compiled}, nil
}

// Validate checks raw input against the compiled schema. On success the
// returned value is a copy of the input with declared defaults applied.
func (s *JSONSchema) Validate(raw map[string]interface{}) (Result, error) {
	if raw == nil {
		raw = map[string]interface{}{}
	}

	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("schema validation failed to run: %w", err)
	}

	if !result.Valid() {
		violations := make([]Violation, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			violations = append(violations, Violation{
				Path:    resultErr.Field(),
				Message: resultErr.Description(),
			})
		}
		return Result{Valid: false, Violations: violations}, nil
	}

	return Result{Valid: true, Value: s.normalize(raw)}, nil
}

// Describe returns the JSON Schema document.
func (s *JSONSchema) Describe() map[string]interface{} {
	return s.doc
}

// normalize copies the input and fills in property defaults for absent keys.
func (s *JSONSchema) normalize(raw map[string]interface{}) map[string]interface{} {
	value := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		value[k] = v
	}

	properties, ok := s.doc["properties"].(map[string]interface{})
	if !ok {
		return value
	}

	for name, prop := range properties {
		propMap, ok := prop.(map[string]interface{})
		if !ok {
			continue
		}
		if def, hasDefault := propMap["default"]; hasDefault {
			if _, present := value[name]; !present {
				value[name] = def
			}
		}
	}

	return value
}
