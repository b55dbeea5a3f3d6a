package api

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrGraphNotFound is returned when a graph id is unknown.
	ErrGraphNotFound = errors.New("graph not found")

	// ErrRunNotFound is returned when a run id is unknown.
	ErrRunNotFound = errors.New("run not found")

	// ErrGraphExists is returned when a caller-supplied graph id is already
	// registered. Graphs are immutable; register a new id instead.
	ErrGraphExists = errors.New("graph already exists")

	// ErrToolNotFound is returned (wrapped in a *ToolExecutionError) when a
	// node names a tool that was never registered. This is a configuration
	// bug and fails the run without retry.
	ErrToolNotFound = errors.New("tool not found")

	// ErrStepLimitExceeded marks a run that hit its step ceiling. It is kept
	// distinct from tool failures so callers can tell runaway loops from
	// logic bugs.
	ErrStepLimitExceeded = errors.New("step limit exceeded")
)

// ValidationError reports every structural problem found in a GraphSpec.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "invalid graph spec"
	}
	return "invalid graph spec: " + strings.Join(e.Issues, "; ")
}

// ToolExecutionError wraps the failure of one node's tool. It is fatal to
// the run it occurred in and is recorded on the Run, never returned from
// StartRun.
type ToolExecutionError struct {
	NodeID string
	Tool   string
	Err    error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("node %q (tool %q): %v", e.NodeID, e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }
