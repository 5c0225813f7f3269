package pipeline

import (
	"context"
	"time"

	"github.com/toolpipe/toolpipe/pkg/schema"
)

// Handler is the function signature for tool execution. It receives the
// validated, normalized input and must not be assumed to be cancellable.
type Handler func(ctx context.Context, input map[string]interface{}) (interface{}, error)

// ToolConfig holds optional per-tool execution settings.
type ToolConfig struct {
	// Timeout bounds a single handler run. Zero means no timeout unless a
	// per-call or pipeline default applies.
	Timeout time.Duration `json:"timeout,omitempty"`

	// RetryOnStall re-runs the handler after a timeout, up to this many
	// extra attempts. Only timeouts are retried.
	RetryOnStall int `json:"retry_on_stall,omitempty"`

	// DisableCache turns result caching off for this tool.
	DisableCache bool `json:"disable_cache,omitempty"`

	// CacheTTL bounds how long cached results stay valid. Zero falls back
	// to the pipeline default.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`

	// AllowedRoles seeds a tool-specific access policy at registration.
	AllowedRoles []string `json:"allowed_roles,omitempty"`
}

// Tool is a named, schema-validated, invocable unit of business logic.
// Tools are immutable once registered.
type Tool struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Schema      schema.Validator `json:"-"`
	Handler     Handler          `json:"-"`
	Config      ToolConfig       `json:"config,omitempty"`
}

// InvocationResult is the envelope returned to callers and stored in the
// result cache.
type InvocationResult struct {
	ToolName string        `json:"tool_name"`
	Output   interface{}   `json:"output"`
	Duration time.Duration `json:"duration"`
}

// ExecuteOptions carries per-call overrides for a single invocation.
type ExecuteOptions struct {
	// Role tags the call for access control. Empty skips the policy check.
	Role string

	// Timeout overrides the tool's configured timeout when non-zero.
	Timeout time.Duration

	// Cache overrides the tool's cache setting when non-nil.
	Cache *bool

	// CacheTTL overrides the tool's cache TTL when non-zero.
	CacheTTL time.Duration

	// Metrics disables sample recording when non-nil and false.
	Metrics *bool
}

func (o ExecuteOptions) cacheEnabled(tool *Tool) bool {
	if o.Cache != nil {
		return *o.Cache
	}
	return !tool.Config.DisableCache
}

func (o ExecuteOptions) metricsEnabled() bool {
	if o.Metrics != nil {
		return *o.Metrics
	}
	return true
}
