package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/mhalonen/virta/pkg/api"
)

// linearSpec is a two node graph: inc -> done.
func linearSpec(id string) api.GraphSpec {
	return api.GraphSpec{
		ID: id,
		Nodes: []api.NodeSpec{
			{ID: "inc", Tool: "increment"},
			{ID: "done", Tool: "passthrough"},
		},
		Edges: []api.EdgeSpec{
			{From: "inc", To: "done"},
		},
	}
}

func registerCounterTools(t *testing.T, e api.Engine) {
	t.Helper()
	if err := e.RegisterTool("increment", func(ctx context.Context, state api.State, meta api.Metadata) (api.State, error) {
		n, _ := state["count"].(int)
		state["count"] = n + 1
		return state, nil
	}); err != nil {
		t.Fatalf("RegisterTool failed: %v", err)
	}
	if err := e.RegisterTool("passthrough", func(ctx context.Context, state api.State, meta api.Metadata) (api.State, error) {
		return state, nil
	}); err != nil {
		t.Fatalf("RegisterTool failed: %v", err)
	}
}

func TestCreateGraphRejectsInvalidSpec(t *testing.T) {
	e := NewInMemoryEngine()

	_, err := e.CreateGraph(api.GraphSpec{})
	var verr *api.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
}

func TestCreateGraphRejectsDuplicateID(t *testing.T) {
	e := NewInMemoryEngine()

	if _, err := e.CreateGraph(linearSpec("g-1")); err != nil {
		t.Fatalf("CreateGraph failed: %v", err)
	}
	_, err := e.CreateGraph(linearSpec("g-1"))
	if !errors.Is(err, api.ErrGraphExists) {
		t.Fatalf("expected ErrGraphExists, got %v", err)
	}
}

func TestCreateGraphAssignsIDWhenEmpty(t *testing.T) {
	e := NewInMemoryEngine()

	id, err := e.CreateGraph(linearSpec(""))
	if err != nil {
		t.Fatalf("CreateGraph failed: %v", err)
	}
	if id == "" {
		t.Fatalf("expected a generated graph id")
	}
}

func TestStartRunUnknownGraph(t *testing.T) {
	e := NewInMemoryEngine()

	_, err := e.StartRun(context.Background(), "nope", nil)
	if !errors.Is(err, api.ErrGraphNotFound) {
		t.Fatalf("expected ErrGraphNotFound, got %v", err)
	}
}

func TestGetRunUnknownID(t *testing.T) {
	e := NewInMemoryEngine()

	_, err := e.GetRun(context.Background(), "nope")
	if !errors.Is(err, api.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestRunSyncLinearGraph(t *testing.T) {
	e := NewInMemoryEngine()
	registerCounterTools(t, e)

	if _, err := e.CreateGraph(linearSpec("linear")); err != nil {
		t.Fatalf("CreateGraph failed: %v", err)
	}

	run, err := e.RunSync(context.Background(), "linear", api.State{"count": 0})
	if err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}
	if run.Status != api.StatusCompleted {
		t.Fatalf("expected completed run, got %s (err %v)", run.Status, run.Err)
	}
	if run.State["count"] != 1 {
		t.Fatalf("expected count 1, got %v", run.State["count"])
	}
	if len(run.Logs) != 2 {
		t.Fatalf("expected one log entry per node, got %d", len(run.Logs))
	}
	if run.Logs[0].NodeID != "inc" || run.Logs[1].NodeID != "done" {
		t.Fatalf("unexpected log order: %+v", run.Logs)
	}
	if run.StartedAt.IsZero() || run.EndedAt.IsZero() {
		t.Fatalf("expected timestamps on terminal run")
	}
	if run.Metrics["inc"].Visits != 1 || run.Metrics["done"].Visits != 1 {
		t.Fatalf("unexpected metrics: %+v", run.Metrics)
	}
}

func TestRunSyncFirstMatchingEdgeWins(t *testing.T) {
	e := NewInMemoryEngine()
	registerCounterTools(t, e)

	spec := api.GraphSpec{
		ID: "branchy",
		Nodes: []api.NodeSpec{
			{ID: "start", Tool: "increment"},
			{ID: "first", Tool: "passthrough"},
			{ID: "second", Tool: "passthrough"},
			{ID: "fallback", Tool: "passthrough"},
		},
		Edges: []api.EdgeSpec{
			// Both conditions hold after increment; declaration order decides.
			{From: "start", To: "first", Condition: &api.Condition{Key: "count", Op: api.OpGe, Value: 1}},
			{From: "start", To: "second", Condition: &api.Condition{Key: "count", Op: api.OpGt, Value: 0}},
			{From: "start", To: "fallback"},
		},
	}
	if _, err := e.CreateGraph(spec); err != nil {
		t.Fatalf("CreateGraph failed: %v", err)
	}

	run, err := e.RunSync(context.Background(), "branchy", api.State{"count": 0})
	if err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}
	if run.Status != api.StatusCompleted {
		t.Fatalf("expected completed run, got %s", run.Status)
	}
	if run.Metrics["first"].Visits != 1 {
		t.Fatalf("expected the first declared edge to win, metrics: %+v", run.Metrics)
	}
	if run.Metrics["second"].Visits != 0 || run.Metrics["fallback"].Visits != 0 {
		t.Fatalf("later edges must not fire: %+v", run.Metrics)
	}
}

func TestRunSyncUnconditionalFallbackOnMissingKey(t *testing.T) {
	e := NewInMemoryEngine()
	registerCounterTools(t, e)

	spec := api.GraphSpec{
		ID: "missing-key",
		Nodes: []api.NodeSpec{
			{ID: "start", Tool: "passthrough"},
			{ID: "guarded", Tool: "passthrough"},
			{ID: "fallback", Tool: "passthrough"},
		},
		Edges: []api.EdgeSpec{
			{From: "start", To: "guarded", Condition: &api.Condition{Key: "never_set", Op: api.OpEq, Value: 1}},
			{From: "start", To: "fallback"},
		},
	}
	if _, err := e.CreateGraph(spec); err != nil {
		t.Fatalf("CreateGraph failed: %v", err)
	}

	run, err := e.RunSync(context.Background(), "missing-key", api.State{})
	if err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}
	if run.Metrics["fallback"].Visits != 1 || run.Metrics["guarded"].Visits != 0 {
		t.Fatalf("expected fallback path, metrics: %+v", run.Metrics)
	}
}

func TestRunSyncMissingToolFailsRun(t *testing.T) {
	e := NewInMemoryEngine()

	spec := api.GraphSpec{
		ID:    "no-tool",
		Nodes: []api.NodeSpec{{ID: "a", Tool: "unregistered"}},
	}
	if _, err := e.CreateGraph(spec); err != nil {
		t.Fatalf("CreateGraph failed: %v", err)
	}

	run, err := e.RunSync(context.Background(), "no-tool", nil)
	if err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}
	if run.Status != api.StatusFailed {
		t.Fatalf("expected failed run, got %s", run.Status)
	}
	if !errors.Is(run.Err, api.ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound in run error, got %v", run.Err)
	}
	var terr *api.ToolExecutionError
	if !errors.As(run.Err, &terr) || terr.Tool != "unregistered" {
		t.Fatalf("expected ToolExecutionError naming the tool, got %v", run.Err)
	}
}

func TestRunSyncToolErrorKeepsLastGoodState(t *testing.T) {
	e := NewInMemoryEngine()
	registerCounterTools(t, e)
	if err := e.RegisterTool("explode", func(ctx context.Context, state api.State, meta api.Metadata) (api.State, error) {
		state["tainted"] = true
		return state, errors.New("boom")
	}); err != nil {
		t.Fatalf("RegisterTool failed: %v", err)
	}

	spec := api.GraphSpec{
		ID: "failing",
		Nodes: []api.NodeSpec{
			{ID: "inc", Tool: "increment"},
			{ID: "bad", Tool: "explode"},
		},
		Edges: []api.EdgeSpec{{From: "inc", To: "bad"}},
	}
	if _, err := e.CreateGraph(spec); err != nil {
		t.Fatalf("CreateGraph failed: %v", err)
	}

	run, err := e.RunSync(context.Background(), "failing", api.State{"count": 0})
	if err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}
	if run.Status != api.StatusFailed {
		t.Fatalf("expected failed run, got %s", run.Status)
	}
	var terr *api.ToolExecutionError
	if !errors.As(run.Err, &terr) || terr.NodeID != "bad" {
		t.Fatalf("expected ToolExecutionError for node bad, got %v", run.Err)
	}

	// The partial output of the failing tool must not leak into the run
	// state or its final log entry.
	if _, ok := run.State["tainted"]; ok {
		t.Fatalf("failed tool output leaked into run state: %v", run.State)
	}
	last := run.Logs[len(run.Logs)-1]
	if _, ok := last.State["tainted"]; ok {
		t.Fatalf("failed tool output leaked into log entry: %v", last.State)
	}
	if last.State["count"] != 1 {
		t.Fatalf("expected last good state in error log, got %v", last.State)
	}
}

func TestRunSyncToolPanicFailsRun(t *testing.T) {
	e := NewInMemoryEngine()
	if err := e.RegisterTool("panic", func(ctx context.Context, state api.State, meta api.Metadata) (api.State, error) {
		panic("oops")
	}); err != nil {
		t.Fatalf("RegisterTool failed: %v", err)
	}

	spec := api.GraphSpec{
		ID:    "panicky",
		Nodes: []api.NodeSpec{{ID: "a", Tool: "panic"}},
	}
	if _, err := e.CreateGraph(spec); err != nil {
		t.Fatalf("CreateGraph failed: %v", err)
	}

	run, err := e.RunSync(context.Background(), "panicky", nil)
	if err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}
	if run.Status != api.StatusFailed {
		t.Fatalf("expected failed run, got %s", run.Status)
	}
}

func TestRunSyncNilToolResultBecomesEmptyState(t *testing.T) {
	e := NewInMemoryEngine()
	if err := e.RegisterTool("swallow", func(ctx context.Context, state api.State, meta api.Metadata) (api.State, error) {
		return nil, nil
	}); err != nil {
		t.Fatalf("RegisterTool failed: %v", err)
	}

	spec := api.GraphSpec{
		ID:    "swallower",
		Nodes: []api.NodeSpec{{ID: "a", Tool: "swallow"}},
	}
	if _, err := e.CreateGraph(spec); err != nil {
		t.Fatalf("CreateGraph failed: %v", err)
	}

	run, err := e.RunSync(context.Background(), "swallower", api.State{"count": 1})
	if err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}
	if run.Status != api.StatusCompleted {
		t.Fatalf("expected completed run, got %s", run.Status)
	}
	if run.State == nil || len(run.State) != 0 {
		t.Fatalf("expected empty non-nil state, got %v", run.State)
	}
}

func TestToolMetadataReachesTool(t *testing.T) {
	e := NewInMemoryEngine()

	var seen api.Metadata
	if err := e.RegisterTool("inspect", func(ctx context.Context, state api.State, meta api.Metadata) (api.State, error) {
		seen = meta
		return state, nil
	}); err != nil {
		t.Fatalf("RegisterTool failed: %v", err)
	}

	spec := api.GraphSpec{
		ID: "meta",
		Nodes: []api.NodeSpec{
			{ID: "a", Tool: "inspect", Metadata: api.Metadata{"threshold": 5}},
		},
	}
	if _, err := e.CreateGraph(spec); err != nil {
		t.Fatalf("CreateGraph failed: %v", err)
	}
	if _, err := e.RunSync(context.Background(), "meta", nil); err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}
	if seen == nil || seen["threshold"] != 5 {
		t.Fatalf("expected node metadata in tool call, got %v", seen)
	}
}
