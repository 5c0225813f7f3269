// Package builtin registers the baseline tools shipped with the toolpipe
// binary.
package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/toolpipe/toolpipe/pkg/pipeline"
	"github.com/toolpipe/toolpipe/pkg/schema"
)

// Register adds the baseline tools to a pipeline.
func Register(p *pipeline.Pipeline) error {
	if p == nil {
		return errors.New("pipeline is required")
	}

	builders := []func() (pipeline.Tool, error){
		greetTool,
		sumTool,
		echoTool,
		nowTool,
	}

	for _, build := range builders {
		tool, err := build()
		if err != nil {
			return err
		}
		if err := p.Register(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Name, err)
		}
	}
	return nil
}

func greetTool() (pipeline.Tool, error) {
	s, err := schema.NewJSONSchema(map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]interface{}{
			"name": map[string]interface{}{
				"type":        "string",
				"minLength":   1,
				"description": "Name of the person to greet",
			},
			"age": map[string]interface{}{
				"type":        "integer",
				"description": "Optional age to include in the greeting",
			},
		},
		"required": []string{"name"},
	})
	if err != nil {
		return pipeline.Tool{}, err
	}

	return pipeline.Tool{
		Name:        "greet",
		Description: "Produce a greeting for a named person.",
		Schema:      s,
		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			name, _ := input["name"].(string)

			greeting := fmt.Sprintf("Hello, %s!", name)
			if age, ok := numberValue(input["age"]); ok {
				greeting = fmt.Sprintf("Hello, %s (%d)!", name, int(age))
			}

			return map[string]interface{}{"greeting": greeting}, nil
		},
	}, nil
}

func sumTool() (pipeline.Tool, error) {
	s, err := schema.ObjectSchema([]schema.Parameter{
		{Name: "a", Type: "number", Description: "First addend", Required: true},
		{Name: "b", Type: "number", Description: "Second addend", Required: true},
	})
	if err != nil {
		return pipeline.Tool{}, err
	}

	return pipeline.Tool{
		Name:        "sum",
		Description: "Add two numbers.",
		Schema:      s,
		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			a, _ := numberValue(input["a"])
			b, _ := numberValue(input["b"])
			return a + b, nil
		},
	}, nil
}

func echoTool() (pipeline.Tool, error) {
	s, err := schema.ObjectSchema([]schema.Parameter{
		{Name: "text", Type: "string", Description: "Text to echo back", Required: true},
	})
	if err != nil {
		return pipeline.Tool{}, err
	}

	return pipeline.Tool{
		Name:        "echo",
		Description: "Echo the given text.",
		Schema:      s,
		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			return input["text"], nil
		},
	}, nil
}

func nowTool() (pipeline.Tool, error) {
	s, err := schema.ObjectSchema([]schema.Parameter{
		{Name: "format", Type: "string", Description: "Go time layout", Required: false, Default: time.RFC3339},
	})
	if err != nil {
		return pipeline.Tool{}, err
	}

	return pipeline.Tool{
		Name:        "now",
		Description: "Return the current time.",
		Schema:      s,
		Config: pipeline.ToolConfig{
			// Time output must never come from the cache.
			DisableCache: true,
		},
		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			format, _ := input["format"].(string)
			if format == "" {
				format = time.RFC3339
			}
			return time.Now().Format(format), nil
		},
	}, nil
}

// numberValue accepts the numeric representations a JSON decoder or a Go
// caller may hand us.
func numberValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
