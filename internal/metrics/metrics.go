// Package metrics exposes pipeline activity as Prometheus series.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/toolpipe/toolpipe/pkg/pipeline"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	ToolRegistrationsTotal prometheus.Counter
	ToolInvocationsTotal   *prometheus.CounterVec
	ToolInvocationDuration *prometheus.HistogramVec
	ToolErrorsTotal        *prometheus.CounterVec
	ToolCacheEventsTotal   *prometheus.CounterVec
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ToolRegistrationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tool_registrations_total",
				Help: "Total number of tools registered",
			},
		),
		ToolInvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_invocations_total",
				Help: "Total number of tool invocations",
			},
			[]string{"tool", "status"},
		),
		ToolInvocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_invocation_duration_seconds",
				Help:    "Duration of tool invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		ToolErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_errors_total",
				Help: "Total number of failed tool invocations",
			},
			[]string{"tool"},
		),
		ToolCacheEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_cache_events_total",
				Help: "Total number of result cache hits and populations",
			},
			[]string{"tool", "event"},
		),
	}

	registry.MustRegister(m.ToolRegistrationsTotal)
	registry.MustRegister(m.ToolInvocationsTotal)
	registry.MustRegister(m.ToolInvocationDuration)
	registry.MustRegister(m.ToolErrorsTotal)
	registry.MustRegister(m.ToolCacheEventsTotal)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Listener adapts pipeline lifecycle events into Prometheus series.
// Register it with pipeline.AddListener.
type Listener struct {
	metrics *Metrics
}

// NewListener creates a pipeline event listener feeding m.
func NewListener(m *Metrics) *Listener {
	return &Listener{metrics: m}
}

// HandleEvent implements pipeline.Listener.
func (l *Listener) HandleEvent(event pipeline.Event) {
	switch event.Type {
	case pipeline.EventToolRegistered:
		l.metrics.ToolRegistrationsTotal.Inc()

	case pipeline.EventExecutionCompleted:
		l.metrics.ToolInvocationsTotal.WithLabelValues(event.ToolName, "success").Inc()
		if event.Result != nil {
			l.metrics.ToolInvocationDuration.WithLabelValues(event.ToolName).
				Observe(event.Result.Duration.Seconds())
		}

	case pipeline.EventExecutionFailed:
		l.metrics.ToolInvocationsTotal.WithLabelValues(event.ToolName, "error").Inc()
		l.metrics.ToolErrorsTotal.WithLabelValues(event.ToolName).Inc()

	case pipeline.EventCacheHit:
		l.metrics.ToolCacheEventsTotal.WithLabelValues(event.ToolName, "hit").Inc()

	case pipeline.EventCachePopulated:
		l.metrics.ToolCacheEventsTotal.WithLabelValues(event.ToolName, "populate").Inc()
	}
}
