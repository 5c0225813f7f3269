package pipeline

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EventType identifies a pipeline lifecycle event.
type EventType string

const (
	EventToolRegistered     EventType = "tool_registered"
	EventExecutionStarted   EventType = "tool_execution_started"
	EventExecutionCompleted EventType = "tool_execution_completed"
	EventExecutionFailed    EventType = "tool_execution_failed"
	EventCacheHit           EventType = "tool_cache_hit"
	EventCachePopulated     EventType = "tool_cache_populated"
)

// Event is delivered to listeners on registration and around invocations.
// InvocationID correlates the started/completed/failed events of one call.
type Event struct {
	Type         EventType              `json:"type"`
	ToolName     string                 `json:"tool_name"`
	InvocationID string                 `json:"invocation_id,omitempty"`
	Input        map[string]interface{} `json:"input,omitempty"`
	Result       *InvocationResult      `json:"result,omitempty"`
	Err          error                  `json:"-"`
	Timestamp    time.Time              `json:"timestamp"`
}

// Listener receives pipeline events. Listener identity is the interface
// value itself; implement with a pointer receiver so removal can match it.
type Listener interface {
	HandleEvent(event Event)
}

// ListenerFunc adapts a function to the Listener interface. Keep a pointer
// to it if you need to remove it later.
type ListenerFunc func(event Event)

// HandleEvent calls f.
func (f *ListenerFunc) HandleEvent(event Event) { (*f)(event) }

// emitter fans events out to listeners synchronously, in registration
// order. A panicking listener is isolated and logged, never aborting
// delivery to the rest or the invocation itself.
type emitter struct {
	mu        sync.RWMutex
	listeners []Listener
}

func newEmitter() *emitter {
	return &emitter{}
}

func (e *emitter) Add(l Listener) {
	if l == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners = append(e.listeners, l)
}

// Remove drops a listener by identity. Removing an unregistered listener is
// a no-op.
func (e *emitter) Remove(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, registered := range e.listeners {
		if registered == l {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return
		}
	}
}

func (e *emitter) Emit(event Event) {
	e.mu.RLock()
	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.RUnlock()

	for _, l := range listeners {
		e.dispatch(l, event)
	}
}

func (e *emitter) dispatch(l Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().
				Str("event", string(event.Type)).
				Str("tool", event.ToolName).
				Interface("panic", r).
				Msg("Event listener panicked")
		}
	}()

	l.HandleEvent(event)
}
