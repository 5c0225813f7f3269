package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolpipe/toolpipe/pkg/schema"
)

type executorFixture struct {
	registry *Registry
	policies *PolicyStore
	cache    *ResultCache
	metrics  *Collector
	executor *Executor
}

func newExecutorFixture() *executorFixture {
	registry := NewRegistry()
	policies := NewPolicyStore()
	cache := NewResultCache(0)
	metrics := NewCollector(0)

	return &executorFixture{
		registry: registry,
		policies: policies,
		cache:    cache,
		metrics:  metrics,
		executor: NewExecutor(registry, policies, cache, metrics, newEmitter()),
	}
}

func sumSchema(t *testing.T) schema.Validator {
	t.Helper()

	s, err := schema.ObjectSchema([]schema.Parameter{
		{Name: "a", Type: "number", Description: "first", Required: true},
		{Name: "b", Type: "number", Description: "second", Required: true},
	})
	require.NoError(t, err)
	return s
}

func (f *executorFixture) registerSum(t *testing.T, cfg ToolConfig, calls *int64) {
	t.Helper()

	err := f.registry.Register(Tool{
		Name:        "sum",
		Description: "Add two numbers",
		Schema:      sumSchema(t),
		Config:      cfg,
		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			if calls != nil {
				atomic.AddInt64(calls, 1)
			}
			a, _ := input["a"].(int)
			b, _ := input["b"].(int)
			return float64(a + b), nil
		},
	})
	require.NoError(t, err)
}

func TestExecutor_Execute_Success(t *testing.T) {
	f := newExecutorFixture()
	f.registerSum(t, ToolConfig{}, nil)

	result, err := f.executor.Execute(context.Background(), "sum", map[string]interface{}{"a": 2, "b": 3}, ExecuteOptions{})
	require.NoError(t, err)

	assert.Equal(t, "sum", result.ToolName)
	assert.Equal(t, float64(5), result.Output)
	assert.GreaterOrEqual(t, result.Duration, time.Duration(0))
}

func TestExecutor_Execute_ToolNotFound(t *testing.T) {
	f := newExecutorFixture()

	_, err := f.executor.Execute(context.Background(), "missing", nil, ExecuteOptions{})

	var notFound *ToolNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.ToolName())
}

func TestExecutor_Execute_AccessControl(t *testing.T) {
	f := newExecutorFixture()
	f.registerSum(t, ToolConfig{}, nil)
	f.policies.AddPolicy("sum", []string{"operator"})

	input := map[string]interface{}{"a": 1, "b": 1}

	t.Run("allowed role succeeds", func(t *testing.T) {
		_, err := f.executor.Execute(context.Background(), "sum", input, ExecuteOptions{Role: "operator"})
		assert.NoError(t, err)
	})

	t.Run("denied role fails", func(t *testing.T) {
		_, err := f.executor.Execute(context.Background(), "sum", input, ExecuteOptions{Role: "guest"})

		var denied *AccessDeniedError
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, "sum", denied.Tool)
		assert.Equal(t, "guest", denied.Role)
	})

	t.Run("administrator bypasses policy", func(t *testing.T) {
		_, err := f.executor.Execute(context.Background(), "sum", input, ExecuteOptions{Role: RoleAdministrator})
		assert.NoError(t, err)
	})

	t.Run("no role skips the check", func(t *testing.T) {
		_, err := f.executor.Execute(context.Background(), "sum", input, ExecuteOptions{})
		assert.NoError(t, err)
	})
}

func TestExecutor_Execute_ValidationError(t *testing.T) {
	f := newExecutorFixture()

	var calls int64
	f.registerSum(t, ToolConfig{DisableCache: true}, &calls)

	_, err := f.executor.Execute(context.Background(), "sum", map[string]interface{}{"a": "x", "b": 3}, ExecuteOptions{})

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "sum", validation.Tool)
	assert.NotEmpty(t, validation.Violations)

	// The handler is never invoked on invalid input.
	assert.Equal(t, int64(0), atomic.LoadInt64(&calls))
}

func TestExecutor_Execute_CacheIdempotence(t *testing.T) {
	f := newExecutorFixture()

	var calls int64
	f.registerSum(t, ToolConfig{}, &calls)

	input := map[string]interface{}{"a": 2, "b": 3}

	first, err := f.executor.Execute(context.Background(), "sum", input, ExecuteOptions{})
	require.NoError(t, err)

	second, err := f.executor.Execute(context.Background(), "sum", input, ExecuteOptions{})
	require.NoError(t, err)

	assert.Equal(t, first.Output, second.Output)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestExecutor_Execute_CacheKeyOrderIndependent(t *testing.T) {
	f := newExecutorFixture()

	var calls int64
	f.registerSum(t, ToolConfig{}, &calls)

	_, err := f.executor.Execute(context.Background(), "sum", map[string]interface{}{"a": 2, "b": 3}, ExecuteOptions{})
	require.NoError(t, err)

	_, err = f.executor.Execute(context.Background(), "sum", map[string]interface{}{"b": 3, "a": 2}, ExecuteOptions{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestExecutor_Execute_CacheDisabledPerCall(t *testing.T) {
	f := newExecutorFixture()

	var calls int64
	f.registerSum(t, ToolConfig{}, &calls)

	cacheEnabled := false
	opts := ExecuteOptions{Cache: &cacheEnabled}
	input := map[string]interface{}{"a": 2, "b": 3}

	_, err := f.executor.Execute(context.Background(), "sum", input, opts)
	require.NoError(t, err)
	_, err = f.executor.Execute(context.Background(), "sum", input, opts)
	require.NoError(t, err)

	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
	assert.Equal(t, 0, f.cache.Size())
}

func TestExecutor_Execute_CacheDisabledByToolConfig(t *testing.T) {
	f := newExecutorFixture()

	var calls int64
	f.registerSum(t, ToolConfig{DisableCache: true}, &calls)

	input := map[string]interface{}{"a": 2, "b": 3}

	_, err := f.executor.Execute(context.Background(), "sum", input, ExecuteOptions{})
	require.NoError(t, err)
	_, err = f.executor.Execute(context.Background(), "sum", input, ExecuteOptions{})
	require.NoError(t, err)

	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestExecutor_Execute_CacheExpiry(t *testing.T) {
	f := newExecutorFixture()

	var calls int64
	f.registerSum(t, ToolConfig{CacheTTL: 30 * time.Millisecond}, &calls)

	input := map[string]interface{}{"a": 2, "b": 3}

	_, err := f.executor.Execute(context.Background(), "sum", input, ExecuteOptions{})
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	_, err = f.executor.Execute(context.Background(), "sum", input, ExecuteOptions{})
	require.NoError(t, err)

	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestExecutor_Execute_CacheHitSkipsMetrics(t *testing.T) {
	f := newExecutorFixture()
	f.registerSum(t, ToolConfig{}, nil)

	input := map[string]interface{}{"a": 2, "b": 3}

	_, err := f.executor.Execute(context.Background(), "sum", input, ExecuteOptions{})
	require.NoError(t, err)
	_, err = f.executor.Execute(context.Background(), "sum", input, ExecuteOptions{})
	require.NoError(t, err)

	// Only the first, uncached invocation records a sample.
	assert.Equal(t, 1, f.metrics.Len())
}

func TestExecutor_Execute_RecordsMetrics(t *testing.T) {
	f := newExecutorFixture()
	f.registerSum(t, ToolConfig{}, nil)

	_, err := f.executor.Execute(context.Background(), "sum", map[string]interface{}{"a": 2, "b": 3}, ExecuteOptions{})
	require.NoError(t, err)

	samples := f.metrics.ForTool("sum")
	require.Len(t, samples, 1)
	assert.Greater(t, samples[0].InputSize, 0)
	assert.Greater(t, samples[0].OutputSize, 0)
	assert.False(t, samples[0].Timestamp.IsZero())
}

func TestExecutor_Execute_MetricsDisabledPerCall(t *testing.T) {
	f := newExecutorFixture()
	f.registerSum(t, ToolConfig{DisableCache: true}, nil)

	metricsEnabled := false
	_, err := f.executor.Execute(context.Background(), "sum", map[string]interface{}{"a": 2, "b": 3}, ExecuteOptions{Metrics: &metricsEnabled})
	require.NoError(t, err)

	assert.Equal(t, 0, f.metrics.Len())
}

func TestExecutor_Execute_Timeout(t *testing.T) {
	f := newExecutorFixture()

	err := f.registry.Register(Tool{
		Name:        "slow",
		Description: "Sleeps past its deadline",
		Schema:      noInputSchema(t),
		Config:      ToolConfig{Timeout: 30 * time.Millisecond},
		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			time.Sleep(200 * time.Millisecond)
			return "late", nil
		},
	})
	require.NoError(t, err)

	_, err = f.executor.Execute(context.Background(), "slow", nil, ExecuteOptions{})

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "slow", timeout.Tool)
	assert.Equal(t, 30*time.Millisecond, timeout.Timeout)
}

func TestExecutor_Execute_FastHandlerBeatsTimeout(t *testing.T) {
	f := newExecutorFixture()

	err := f.registry.Register(Tool{
		Name:        "fast",
		Description: "Completes well before the deadline",
		Schema:      noInputSchema(t),
		Config:      ToolConfig{Timeout: time.Second},
		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			return "done", nil
		},
	})
	require.NoError(t, err)

	result, err := f.executor.Execute(context.Background(), "fast", nil, ExecuteOptions{})
	require.NoError(t, err)
	assert.Equal(t, "done", result.Output)
}

func TestExecutor_Execute_PerCallTimeoutOverridesTool(t *testing.T) {
	f := newExecutorFixture()

	err := f.registry.Register(Tool{
		Name:        "slow",
		Description: "Sleeps",
		Schema:      noInputSchema(t),
		Config:      ToolConfig{Timeout: time.Second},
		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			time.Sleep(200 * time.Millisecond)
			return "late", nil
		},
	})
	require.NoError(t, err)

	_, err = f.executor.Execute(context.Background(), "slow", nil, ExecuteOptions{Timeout: 20 * time.Millisecond})

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 20*time.Millisecond, timeout.Timeout)
}

func TestExecutor_Execute_LateHandlerDoesNotPopulateCache(t *testing.T) {
	f := newExecutorFixture()

	done := make(chan struct{})
	err := f.registry.Register(Tool{
		Name:        "slow",
		Description: "Settles after the deadline was reported",
		Schema:      noInputSchema(t),
		Config:      ToolConfig{Timeout: 20 * time.Millisecond},
		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			defer close(done)
			time.Sleep(100 * time.Millisecond)
			return "late", nil
		},
	})
	require.NoError(t, err)

	_, err = f.executor.Execute(context.Background(), "slow", map[string]interface{}{}, ExecuteOptions{})

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)

	// Wait for the abandoned handler to settle, then confirm it left no
	// trace in the cache or the metrics.
	<-done
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 0, f.cache.Size())
	assert.Equal(t, 0, f.metrics.Len())
}

func TestExecutor_Execute_RetryOnStall(t *testing.T) {
	f := newExecutorFixture()

	var attempts int64
	err := f.registry.Register(Tool{
		Name:        "flaky",
		Description: "Stalls once, then recovers",
		Schema:      noInputSchema(t),
		Config:      ToolConfig{Timeout: 40 * time.Millisecond, RetryOnStall: 2},
		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			if atomic.AddInt64(&attempts, 1) == 1 {
				time.Sleep(200 * time.Millisecond)
			}
			return "recovered", nil
		},
	})
	require.NoError(t, err)

	result, err := f.executor.Execute(context.Background(), "flaky", nil, ExecuteOptions{})
	require.NoError(t, err)

	assert.Equal(t, "recovered", result.Output)
	assert.Equal(t, int64(2), atomic.LoadInt64(&attempts))
}

func TestExecutor_Execute_RetryBudgetExhausted(t *testing.T) {
	f := newExecutorFixture()

	var attempts int64
	err := f.registry.Register(Tool{
		Name:        "stuck",
		Description: "Always stalls",
		Schema:      noInputSchema(t),
		Config:      ToolConfig{Timeout: 20 * time.Millisecond, RetryOnStall: 1},
		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			atomic.AddInt64(&attempts, 1)
			time.Sleep(200 * time.Millisecond)
			return nil, nil
		},
	})
	require.NoError(t, err)

	_, err = f.executor.Execute(context.Background(), "stuck", nil, ExecuteOptions{})

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, int64(2), atomic.LoadInt64(&attempts))
}

func TestExecutor_Execute_HandlerErrorWrapped(t *testing.T) {
	f := newExecutorFixture()

	cause := errors.New("downstream exploded")
	err := f.registry.Register(Tool{
		Name:        "broken",
		Description: "Always fails",
		Schema:      noInputSchema(t),
		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			return nil, cause
		},
	})
	require.NoError(t, err)

	_, err = f.executor.Execute(context.Background(), "broken", nil, ExecuteOptions{})

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "broken", execErr.Tool)
	assert.ErrorIs(t, err, cause)

	// A failed invocation must not be cached.
	assert.Equal(t, 0, f.cache.Size())
}

func TestExecutor_Execute_HandlerPanicWrapped(t *testing.T) {
	f := newExecutorFixture()

	err := f.registry.Register(Tool{
		Name:        "panicky",
		Description: "Panics",
		Schema:      noInputSchema(t),
		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
			panic("boom")
		},
	})
	require.NoError(t, err)

	_, err = f.executor.Execute(context.Background(), "panicky", nil, ExecuteOptions{})

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Error(), "boom")
}

func TestExecutor_Execute_AllFailuresAreToolExecutionErrors(t *testing.T) {
	f := newExecutorFixture()
	f.registerSum(t, ToolConfig{}, nil)
	f.policies.AddPolicy("sum", []string{"operator"})

	failures := []error{}

	_, err := f.executor.Execute(context.Background(), "missing", nil, ExecuteOptions{})
	failures = append(failures, err)

	_, err = f.executor.Execute(context.Background(), "sum", nil, ExecuteOptions{Role: "guest"})
	failures = append(failures, err)

	_, err = f.executor.Execute(context.Background(), "sum", map[string]interface{}{"a": "x"}, ExecuteOptions{Role: "operator"})
	failures = append(failures, err)

	for _, failure := range failures {
		var toolErr ToolExecutionError
		require.ErrorAs(t, failure, &toolErr)
		assert.NotEmpty(t, toolErr.ToolName())
	}
}

// Concurrent identical calls may each compute the result; the cache holds
// the last writer. Single-flight de-duplication is deliberately not
// guaranteed.
func TestExecutor_Execute_ConcurrentIdenticalCalls(t *testing.T) {
	f := newExecutorFixture()

	var calls int64
	f.registerSum(t, ToolConfig{}, &calls)

	input := map[string]interface{}{"a": 2, "b": 3}

	const workers = 8
	var wg sync.WaitGroup
	outputs := make([]interface{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			result, err := f.executor.Execute(context.Background(), "sum", input, ExecuteOptions{})
			require.NoError(t, err)
			outputs[slot] = result.Output
		}(i)
	}
	wg.Wait()

	computed := atomic.LoadInt64(&calls)
	assert.GreaterOrEqual(t, computed, int64(1))
	assert.LessOrEqual(t, computed, int64(workers))

	for _, output := range outputs {
		assert.Equal(t, float64(5), output)
	}

	// Subsequent calls hit the cache.
	_, err := f.executor.Execute(context.Background(), "sum", input, ExecuteOptions{})
	require.NoError(t, err)
	assert.Equal(t, computed, atomic.LoadInt64(&calls))
}

func noInputSchema(t *testing.T) schema.Validator {
	t.Helper()

	s, err := schema.NewJSONSchema(map[string]interface{}{
		"type": "object",
	})
	require.NoError(t, err)
	return s
}
