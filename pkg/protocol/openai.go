package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/toolpipe/toolpipe/pkg/pipeline"
)

// OpenAITools converts a registry snapshot into OpenAI function-calling
// tool parameters.
func OpenAITools(tools []*pipeline.Tool) []openai.ChatCompletionToolParam {
	params := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, tool := range tools {
		params = append(params, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  openai.FunctionParameters(tool.Schema.Describe()),
			},
		})
	}
	return params
}

// DecodeOpenAIToolCall converts an OpenAI tool call into a pipeline
// invocation request, parsing the JSON-encoded arguments.
func DecodeOpenAIToolCall(tc openai.ChatCompletionMessageToolCall) (Call, error) {
	var rawInput map[string]interface{}
	if tc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &rawInput); err != nil {
			return Call{}, fmt.Errorf("failed to parse tool arguments for %s: %w", tc.Function.Name, err)
		}
	}

	return Call{
		ID:       tc.ID,
		Name:     tc.Function.Name,
		RawInput: rawInput,
	}, nil
}
