package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/toolpipe/toolpipe/pkg/schema"
)

// ToolExecutionError is the single catchable category for every failure the
// pipeline can surface for an invocation. Use errors.As with a concrete type
// to branch on the failure kind.
type ToolExecutionError interface {
	error
	ToolName() string
}

// DuplicateToolError is returned when registering a name that already exists.
type DuplicateToolError struct {
	Tool string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool already registered: %s", e.Tool)
}

func (e *DuplicateToolError) ToolName() string { return e.Tool }

// ToolNotFoundError is returned when the requested name is unregistered.
type ToolNotFoundError struct {
	Tool string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Tool)
}

func (e *ToolNotFoundError) ToolName() string { return e.Tool }

// AccessDeniedError is returned when the caller's role is not permitted to
// invoke the tool. It carries no detail beyond role and tool identity.
type AccessDeniedError struct {
	Tool string
	Role string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: role %q may not invoke tool %q", e.Role, e.Tool)
}

func (e *AccessDeniedError) ToolName() string { return e.Tool }

// ValidationError is returned when raw input fails the tool's schema check.
type ValidationError struct {
	Tool       string
	Violations []schema.Violation
}

func (e *ValidationError) Error() string {
	details := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		details = append(details, v.String())
	}
	return fmt.Sprintf("input validation failed for tool %s: %s", e.Tool, strings.Join(details, "; "))
}

func (e *ValidationError) ToolName() string { return e.Tool }

// TimeoutError is returned when a handler does not complete within its
// effective deadline.
type TimeoutError struct {
	Tool    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tool %s timed out after %s", e.Tool, e.Timeout)
}

func (e *TimeoutError) ToolName() string { return e.Tool }

// ExecutionError wraps any otherwise-unclassified handler failure.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s execution failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) ToolName() string { return e.Tool }

func (e *ExecutionError) Unwrap() error { return e.Err }
