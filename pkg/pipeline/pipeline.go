package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Options holds process-wide defaults applied by the pipeline facade.
type Options struct {
	// DefaultTimeout applies when neither the call nor the tool sets one.
	DefaultTimeout time.Duration

	// CacheCapacity bounds the result cache. Zero or less means unbounded.
	CacheCapacity int

	// MetricsLimit bounds the sample collector. Zero uses the default.
	MetricsLimit int

	// DefaultRoles seeds the policy store's fallback allow-list.
	DefaultRoles []string
}

// Pipeline wraps the registry and executor behind one facade, fanning
// lifecycle events out to listeners and applying process-wide defaults.
type Pipeline struct {
	registry *Registry
	policies *PolicyStore
	cache    *ResultCache
	metrics  *Collector
	executor *Executor
	emitter  *emitter

	defaultTimeout time.Duration
}

// New constructs a pipeline with freshly built, isolated collaborators.
func New(opts Options) *Pipeline {
	registry := NewRegistry()
	policies := NewPolicyStore(opts.DefaultRoles...)
	cache := NewResultCache(opts.CacheCapacity)
	metrics := NewCollector(opts.MetricsLimit)
	events := newEmitter()

	return &Pipeline{
		registry:       registry,
		policies:       policies,
		cache:          cache,
		metrics:        metrics,
		executor:       NewExecutor(registry, policies, cache, metrics, events),
		emitter:        events,
		defaultTimeout: opts.DefaultTimeout,
	}
}

// Register adds a tool, seeds its access policy when the tool declares
// allowed roles, and emits a tool_registered event.
func (p *Pipeline) Register(tool Tool) error {
	if err := p.registry.Register(tool); err != nil {
		return err
	}

	if len(tool.Config.AllowedRoles) > 0 {
		p.policies.AddPolicy(tool.Name, tool.Config.AllowedRoles)
	}

	p.emitter.Emit(Event{
		Type:      EventToolRegistered,
		ToolName:  tool.Name,
		Timestamp: time.Now(),
	})

	log.Info().Str("tool", tool.Name).Msg("Tool registered with pipeline")

	return nil
}

// Remove deletes a tool and its access policy, reporting whether the tool
// existed.
func (p *Pipeline) Remove(name string) bool {
	p.policies.RemovePolicy(name)
	return p.registry.Remove(name)
}

// Execute invokes a tool by name with raw input and default options.
func (p *Pipeline) Execute(ctx context.Context, name string, input map[string]interface{}) (InvocationResult, error) {
	return p.ExecuteWithOptions(ctx, name, input, ExecuteOptions{})
}

// ExecuteWithOptions invokes a tool with per-call overrides. It emits
// tool_execution_started before delegating, then exactly one of
// tool_execution_completed or tool_execution_failed.
func (p *Pipeline) ExecuteWithOptions(ctx context.Context, name string, input map[string]interface{}, opts ExecuteOptions) (InvocationResult, error) {
	invocationID := uuid.NewString()

	p.emitter.Emit(Event{
		Type:         EventExecutionStarted,
		ToolName:     name,
		InvocationID: invocationID,
		Input:        input,
		Timestamp:    time.Now(),
	})

	// The facade default is the lowest-priority timeout: per-call, then
	// tool config, then this.
	if opts.Timeout == 0 && p.defaultTimeout > 0 {
		if tool, ok := p.registry.Get(name); !ok || tool.Config.Timeout == 0 {
			opts.Timeout = p.defaultTimeout
		}
	}

	result, err := p.executor.Execute(ctx, name, input, opts)
	if err != nil {
		p.emitter.Emit(Event{
			Type:         EventExecutionFailed,
			ToolName:     name,
			InvocationID: invocationID,
			Err:          err,
			Timestamp:    time.Now(),
		})
		return InvocationResult{}, err
	}

	p.emitter.Emit(Event{
		Type:         EventExecutionCompleted,
		ToolName:     name,
		InvocationID: invocationID,
		Result:       &result,
		Timestamp:    time.Now(),
	})

	return result, nil
}

// AddListener subscribes a listener to pipeline events.
func (p *Pipeline) AddListener(l Listener) {
	p.emitter.Add(l)
}

// RemoveListener unsubscribes a listener by identity.
func (p *Pipeline) RemoveListener(l Listener) {
	p.emitter.Remove(l)
}

// Registry returns the underlying tool registry.
func (p *Pipeline) Registry() *Registry { return p.registry }

// Policies returns the underlying access policy store.
func (p *Pipeline) Policies() *PolicyStore { return p.policies }

// Cache returns the underlying result cache.
func (p *Pipeline) Cache() *ResultCache { return p.cache }

// Metrics returns the underlying sample collector.
func (p *Pipeline) Metrics() *Collector { return p.metrics }
