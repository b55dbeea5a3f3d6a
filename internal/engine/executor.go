package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/mhalonen/virta/pkg/api"
)

// executeRun drives one run from pending to a terminal status. It is the
// only writer of the run record; everyone else reads snapshots through the
// store. The returned run is a snapshot of the final record.
func (e *engineImpl) executeRun(ctx context.Context, spec api.GraphSpec, run *api.Run) *api.Run {
	defer e.finishRun(run.ID)

	run.Status = api.StatusRunning
	run.StartedAt = time.Now()
	run.CurrentNode = spec.Start()
	run.Metrics = make(map[string]api.NodeMetrics)
	_ = e.runs.UpdateRun(run)

	e.observer.OnRunStart(ctx, run)

	maxSteps := spec.MaxSteps
	if maxSteps <= 0 {
		maxSteps = e.maxSteps
	}

	steps := 0
	for run.CurrentNode != "" {
		// Cancellation is checked between steps only; a tool invocation in
		// flight always finishes.
		select {
		case <-ctx.Done():
			e.cancelRun(ctx, run)
			return run.Clone()
		default:
		}

		if steps >= maxSteps {
			err := fmt.Errorf("%w: %d node executions", api.ErrStepLimitExceeded, maxSteps)
			e.failRun(ctx, run, run.CurrentNode, err)
			return run.Clone()
		}

		// Endpoints were validated at graph creation, so the node is there.
		node, _ := spec.Node(run.CurrentNode)

		fn, ok := e.tools.Resolve(node.Tool)
		if !ok {
			err := &api.ToolExecutionError{NodeID: node.ID, Tool: node.Tool, Err: api.ErrToolNotFound}
			e.failRun(ctx, run, node.ID, err)
			return run.Clone()
		}

		e.observer.OnNodeStart(ctx, run, node.ID, steps)

		startTime := time.Now()
		next, err := invokeTool(ctx, fn, run.State.Clone(), node.Metadata)
		duration := time.Since(startTime)

		e.observer.OnNodeCompleted(ctx, run, node.ID, steps, err, duration)

		m := run.Metrics[node.ID]
		m.Visits++
		m.Duration += duration
		run.Metrics[node.ID] = m

		if err != nil {
			// The log entry keeps the last good state, not the tool's
			// partial output.
			e.failRun(ctx, run, node.ID, &api.ToolExecutionError{NodeID: node.ID, Tool: node.Tool, Err: err})
			return run.Clone()
		}

		// Replace the state wholesale with the tool's result.
		if next == nil {
			next = api.State{}
		}
		run.State = next
		steps++

		e.appendLog(run, api.LogEntry{
			At:      time.Now(),
			NodeID:  node.ID,
			State:   run.State.Clone(),
			Message: "executed",
		})

		// First matching edge out of this node wins, evaluated against the
		// post-update state. No match means natural termination.
		nextNode := ""
		for _, edge := range spec.OutEdges(node.ID) {
			if evaluate(edge.Condition, run.State) {
				nextNode = edge.To
				break
			}
		}
		run.CurrentNode = nextNode
		_ = e.runs.UpdateRun(run)
	}

	run.Status = api.StatusCompleted
	run.EndedAt = time.Now()
	_ = e.runs.UpdateRun(run)

	e.observer.OnRunCompleted(ctx, run)
	return run.Clone()
}

// failRun moves the run to StatusFailed with an error log entry.
func (e *engineImpl) failRun(ctx context.Context, run *api.Run, nodeID string, err error) {
	run.Status = api.StatusFailed
	run.Err = err
	run.CurrentNode = ""
	run.EndedAt = time.Now()

	e.appendLog(run, api.LogEntry{
		At:      time.Now(),
		NodeID:  nodeID,
		State:   run.State.Clone(),
		Message: "error: " + err.Error(),
	})
	_ = e.runs.UpdateRun(run)

	e.observer.OnRunFailed(ctx, run, err)
}

// cancelRun moves the run to StatusCancelled between steps.
func (e *engineImpl) cancelRun(ctx context.Context, run *api.Run) {
	run.Status = api.StatusCancelled
	run.CurrentNode = ""
	run.EndedAt = time.Now()

	e.appendLog(run, api.LogEntry{
		At:      time.Now(),
		State:   run.State.Clone(),
		Message: "cancelled",
	})
	_ = e.runs.UpdateRun(run)
}

// appendLog records an entry on the run, persists it, and broadcasts it to
// subscribers.
func (e *engineImpl) appendLog(run *api.Run, entry api.LogEntry) {
	run.Logs = append(run.Logs, entry)
	_ = e.runs.AppendLog(run.ID, entry)
	e.bcast.Publish(run.ID, entry)
}

// invokeTool calls a tool, converting a panic into an ordinary error so a
// buggy tool fails its run instead of the process.
func invokeTool(ctx context.Context, fn api.ToolFunc, state api.State, meta api.Metadata) (out api.State, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return fn(ctx, state, meta)
}
