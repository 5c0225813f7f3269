package schema

import "fmt"

// Parameter declares a single named input for a tool.
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

var validParameterTypes = map[string]bool{
	"string": true, "number": true, "boolean": true,
	"object": true, "array": true, "integer": true,
}

// ObjectSchema builds a closed object schema from a parameter list.
func ObjectSchema(params []Parameter) (*JSONSchema, error) {
	properties := make(map[string]interface{}, len(params))
	required := []string{}

	for _, param := range params {
		if param.Name == "" {
			return nil, fmt.Errorf("parameter name cannot be empty")
		}
		if !validParameterTypes[param.Type] {
			return nil, fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}

		paramSchema := map[string]interface{}{
			"type": param.Type,
		}
		if param.Description != "" {
			paramSchema["description"] = param.Description
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}

		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	doc := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}

	return NewJSONSchema(doc)
}
