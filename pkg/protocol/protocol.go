// Package protocol translates registered tools into external wire formats
// (OpenAI function calling, Anthropic tool use) and inbound calls back into
// pipeline invocations.
package protocol

// Call is an inbound tool invocation decoded from a provider response,
// ready to hand to the pipeline facade.
type Call struct {
	ID       string
	Name     string
	RawInput map[string]interface{}
}

// requiredNames extracts the required-property list from a JSON Schema
// document, tolerating both []string and decoded []interface{} forms.
func requiredNames(doc map[string]interface{}) []string {
	switch required := doc["required"].(type) {
	case []string:
		return required
	case []interface{}:
		names := make([]string, 0, len(required))
		for _, v := range required {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}
		return names
	default:
		return nil
	}
}
