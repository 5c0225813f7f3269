// Package config loads and validates the toolpipe configuration.
package config

// Config represents the main toolpipe configuration.
type Config struct {
	// Pipeline holds process-wide pipeline defaults.
	Pipeline PipelineConfig `json:"pipeline" mapstructure:"pipeline"`

	// Tools are registered at startup with pass-through handlers unless a
	// builtin of the same name provides business logic.
	Tools []ToolConfig `json:"tools" mapstructure:"tools"`

	// Policies are access allow-lists keyed by tool name ("*" sets the
	// default policy).
	Policies []PolicyConfig `json:"policies" mapstructure:"policies"`

	// Logging configures the process logger.
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics configures the Prometheus endpoint for serve mode.
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
}

// PipelineConfig holds pipeline-wide defaults.
type PipelineConfig struct {
	DefaultTimeoutMs int      `json:"default_timeout_ms" mapstructure:"default_timeout_ms"`
	CacheCapacity    int      `json:"cache_capacity" mapstructure:"cache_capacity"`
	MetricsLimit     int      `json:"metrics_limit" mapstructure:"metrics_limit"`
	DefaultRoles     []string `json:"default_roles" mapstructure:"default_roles"`
	SweepSchedule    string   `json:"sweep_schedule" mapstructure:"sweep_schedule"`
}

// ToolConfig declares a tool to register at startup.
type ToolConfig struct {
	Name         string            `json:"name" mapstructure:"name"`
	Description  string            `json:"description" mapstructure:"description"`
	Parameters   []ParameterConfig `json:"parameters" mapstructure:"parameters"`
	TimeoutMs    int               `json:"timeout_ms" mapstructure:"timeout_ms"`
	RetryOnStall int               `json:"retry_on_stall" mapstructure:"retry_on_stall"`
	DisableCache bool              `json:"disable_cache" mapstructure:"disable_cache"`
	CacheTTLMs   int               `json:"cache_ttl_ms" mapstructure:"cache_ttl_ms"`
	AllowedRoles []string          `json:"allowed_roles" mapstructure:"allowed_roles"`
}

// ParameterConfig declares a single tool parameter.
type ParameterConfig struct {
	Name        string      `json:"name" mapstructure:"name"`
	Type        string      `json:"type" mapstructure:"type"`
	Description string      `json:"description" mapstructure:"description"`
	Required    bool        `json:"required" mapstructure:"required"`
	Default     interface{} `json:"default,omitempty" mapstructure:"default"`
}

// PolicyConfig declares an access allow-list for a tool.
type PolicyConfig struct {
	Tool  string   `json:"tool" mapstructure:"tool"`
	Roles []string `json:"roles" mapstructure:"roles"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// MetricsConfig holds Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Listen  string `json:"listen" mapstructure:"listen"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			DefaultTimeoutMs: 30000,
			CacheCapacity:    1024,
			MetricsLimit:     1000,
			SweepSchedule:    "@every 1m",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9464",
		},
	}
}
