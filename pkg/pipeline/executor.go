package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	retryBackoffBase   = 100 * time.Millisecond
	retryJitterCeiling = 50 * time.Millisecond
)

// Executor orchestrates registry, policy, cache, validation and metrics
// around a single invocation. All collaborators are injected; the executor
// holds no state of its own.
type Executor struct {
	registry *Registry
	policies *PolicyStore
	cache    *ResultCache
	metrics  *Collector
	events   *emitter
}

// NewExecutor creates an executor over the given collaborators.
func NewExecutor(registry *Registry, policies *PolicyStore, cache *ResultCache, metrics *Collector, events *emitter) *Executor {
	return &Executor{
		registry: registry,
		policies: policies,
		cache:    cache,
		metrics:  metrics,
		events:   events,
	}
}

// Execute runs a tool by name with raw input, short-circuiting on the first
// failing stage: resolve, authorize, cache probe, validate, run under
// deadline, record metrics, populate cache. Every failure satisfies
// ToolExecutionError.
func (e *Executor) Execute(ctx context.Context, name string, input map[string]interface{}, opts ExecuteOptions) (InvocationResult, error) {
	tool, ok := e.registry.Get(name)
	if !ok {
		return InvocationResult{}, &ToolNotFoundError{Tool: name}
	}

	if opts.Role != "" && !e.policies.IsAllowed(name, opts.Role) {
		log.Warn().Str("tool", name).Str("role", opts.Role).Msg("Tool invocation blocked by policy")
		return InvocationResult{}, &AccessDeniedError{Tool: name, Role: opts.Role}
	}

	// The fingerprint is computed from the raw, unvalidated input so a
	// cache hit skips validation entirely.
	cacheEnabled := opts.cacheEnabled(tool)
	var cacheKey string
	if cacheEnabled {
		key, err := Fingerprint(name, input)
		if err != nil {
			log.Warn().Str("tool", name).Err(err).Msg("Input not fingerprintable, caching disabled for this call")
			cacheEnabled = false
		} else {
			cacheKey = key
			if cached, hit := e.cache.Get(cacheKey); hit {
				log.Debug().Str("tool", name).Msg("Cache hit")
				e.events.Emit(Event{Type: EventCacheHit, ToolName: name, Timestamp: time.Now()})
				return cached, nil
			}
		}
	}

	validationStart := time.Now()
	validated, err := e.validate(tool, input)
	if err != nil {
		return InvocationResult{}, err
	}
	validationTime := time.Since(validationStart)

	output, execTime, err := e.runWithRetry(ctx, tool, validated, opts)
	if err != nil {
		return InvocationResult{}, err
	}

	result := InvocationResult{
		ToolName: name,
		Output:   output,
		Duration: execTime,
	}

	if opts.metricsEnabled() {
		e.recordMetrics(Sample{
			ToolName:       name,
			ExecutionTime:  execTime,
			ValidationTime: validationTime,
			InputSize:      serializedSize(input),
			OutputSize:     serializedSize(output),
			Timestamp:      time.Now(),
		})
	}

	if cacheEnabled {
		ttl := opts.CacheTTL
		if ttl == 0 {
			ttl = tool.Config.CacheTTL
		}
		if ttl == 0 {
			ttl = DefaultCacheTTL
		}
		e.cache.Set(cacheKey, result, ttl)
		e.events.Emit(Event{Type: EventCachePopulated, ToolName: name, Timestamp: time.Now()})
	}

	log.Debug().Str("tool", name).Dur("duration", execTime).Msg("Tool invocation completed")

	return result, nil
}

// validate runs the tool's schema validator over the raw input and returns
// the normalized value the handler will receive.
func (e *Executor) validate(tool *Tool, input map[string]interface{}) (map[string]interface{}, error) {
	result, err := tool.Schema.Validate(input)
	if err != nil {
		return nil, &ExecutionError{Tool: tool.Name, Err: err}
	}
	if !result.Valid {
		log.Debug().Str("tool", tool.Name).Int("violations", len(result.Violations)).Msg("Input validation failed")
		return nil, &ValidationError{Tool: tool.Name, Violations: result.Violations}
	}
	return result.Value, nil
}

// runWithRetry executes the handler stage, retrying stalled (timed-out)
// attempts up to the tool's RetryOnStall budget with linear backoff and
// jitter. Non-timeout failures are never retried.
func (e *Executor) runWithRetry(ctx context.Context, tool *Tool, input map[string]interface{}, opts ExecuteOptions) (interface{}, time.Duration, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = tool.Config.Timeout
	}

	retries := 0
	if timeout > 0 {
		retries = tool.Config.RetryOnStall
	}

	for attempt := 0; ; attempt++ {
		start := time.Now()
		output, err := e.runHandler(ctx, tool, input, timeout)
		elapsed := time.Since(start)

		if err == nil {
			return output, elapsed, nil
		}

		var stalled *TimeoutError
		if !errors.As(err, &stalled) || attempt >= retries {
			return nil, 0, err
		}

		backoff := time.Duration(attempt+1)*retryBackoffBase +
			time.Duration(rand.Int63n(int64(retryJitterCeiling)))

		log.Warn().
			Str("tool", tool.Name).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Tool stalled, retrying")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, 0, &ExecutionError{Tool: tool.Name, Err: ctx.Err()}
		}
	}
}

// runHandler races the handler against the effective deadline. Exactly one
// of success, handler failure, or timeout is surfaced: the select is the
// exclusive gate, and a late settlement only fills a buffered channel that
// nothing reads, so it can never touch the cache, metrics, or events.
func (e *Executor) runHandler(ctx context.Context, tool *Tool, input map[string]interface{}, timeout time.Duration) (interface{}, error) {
	handlerCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		handlerCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resultChan := make(chan interface{}, 1)
	errChan := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errChan <- fmt.Errorf("handler panicked: %v", r)
			}
		}()

		output, err := tool.Handler(handlerCtx, input)
		if err != nil {
			errChan <- err
		} else {
			resultChan <- output
		}
	}()

	select {
	case output := <-resultChan:
		return output, nil

	case err := <-errChan:
		log.Debug().Str("tool", tool.Name).Err(err).Msg("Tool handler failed")
		return nil, &ExecutionError{Tool: tool.Name, Err: err}

	case <-handlerCtx.Done():
		if timeout > 0 && errors.Is(handlerCtx.Err(), context.DeadlineExceeded) {
			log.Warn().Str("tool", tool.Name).Dur("timeout", timeout).Msg("Tool handler timed out")
			return nil, &TimeoutError{Tool: tool.Name, Timeout: timeout}
		}
		return nil, &ExecutionError{Tool: tool.Name, Err: handlerCtx.Err()}
	}
}

// recordMetrics is best-effort: a failure while recording must never fail
// an otherwise-successful invocation.
func (e *Executor) recordMetrics(sample Sample) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().
				Str("tool", sample.ToolName).
				Interface("panic", r).
				Msg("Metrics recording failed")
		}
	}()

	e.metrics.Record(sample)
}

func serializedSize(v interface{}) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data)
}
