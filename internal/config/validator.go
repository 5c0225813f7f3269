package config

import "fmt"

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

var validParameterTypes = map[string]bool{
	"string": true, "number": true, "boolean": true,
	"object": true, "array": true, "integer": true,
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Logging.Level != "" && !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Pipeline.DefaultTimeoutMs < 0 {
		return fmt.Errorf("default_timeout_ms must be >= 0")
	}
	if c.Pipeline.CacheCapacity < 0 {
		return fmt.Errorf("cache_capacity must be >= 0")
	}

	seen := make(map[string]bool, len(c.Tools))
	for _, tool := range c.Tools {
		if tool.Name == "" {
			return fmt.Errorf("tool name cannot be empty")
		}
		if seen[tool.Name] {
			return fmt.Errorf("duplicate tool in config: %s", tool.Name)
		}
		seen[tool.Name] = true

		if tool.TimeoutMs < 0 {
			return fmt.Errorf("tool %s: timeout_ms must be >= 0", tool.Name)
		}
		if tool.RetryOnStall < 0 {
			return fmt.Errorf("tool %s: retry_on_stall must be >= 0", tool.Name)
		}

		for _, param := range tool.Parameters {
			if param.Name == "" {
				return fmt.Errorf("tool %s: parameter name cannot be empty", tool.Name)
			}
			if !validParameterTypes[param.Type] {
				return fmt.Errorf("tool %s: invalid parameter type %s for %s", tool.Name, param.Type, param.Name)
			}
		}
	}

	for _, policy := range c.Policies {
		if policy.Tool == "" {
			return fmt.Errorf("policy tool name cannot be empty")
		}
	}

	return nil
}
