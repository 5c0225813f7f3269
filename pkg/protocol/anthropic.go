package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/toolpipe/toolpipe/pkg/pipeline"
)

// AnthropicTools converts a registry snapshot into Anthropic tool-use
// parameters.
func AnthropicTools(tools []*pipeline.Tool) []anthropic.ToolUnionParam {
	params := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		doc := tool.Schema.Describe()

		toolParam := anthropic.ToolParam{
			Name:        tool.Name,
			Description: anthropic.String(tool.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: doc["properties"],
			},
		}
		if required := requiredNames(doc); len(required) > 0 {
			toolParam.InputSchema.Required = required
		}

		params = append(params, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return params
}

// DecodeAnthropicToolUse converts an Anthropic tool_use content block into
// a pipeline invocation request.
func DecodeAnthropicToolUse(block anthropic.ToolUseBlock) (Call, error) {
	var rawInput map[string]interface{}
	if raw := block.JSON.Input.Raw(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &rawInput); err != nil {
			return Call{}, fmt.Errorf("failed to parse tool input for %s: %w", block.Name, err)
		}
	}

	return Call{
		ID:       block.ID,
		Name:     block.Name,
		RawInput: rawInput,
	}, nil
}
