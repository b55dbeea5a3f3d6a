package api

import "context"

// Engine is the high-level workflow engine API.
//
// Graphs and tools are administrative, read-only data from the perspective
// of run execution: register them during setup, then start runs. Every run
// executes on its own goroutine and failures are scoped to that run; no
// error leaves the engine unusable.
type Engine interface {
	// RegisterTool registers a callable under a unique name.
	// Registering the same name twice is an error.
	RegisterTool(name string, fn ToolFunc) error

	// CreateGraph validates and stores an immutable graph, returning its id.
	// Validation errors enumerate every invalid reference in the spec.
	// A caller-supplied id that already exists is rejected with ErrGraphExists.
	CreateGraph(spec GraphSpec) (string, error)

	// ListGraphs returns all registered graph specs.
	ListGraphs(ctx context.Context) ([]GraphSpec, error)

	// StartRun creates a pending run and hands it to a goroutine that drives
	// it to a terminal status. The call returns immediately with the run id;
	// execution-time errors are observed via GetRun and SubscribeLogs, never
	// returned here. Fails with ErrGraphNotFound for an unknown graph.
	StartRun(ctx context.Context, graphID string, initial State) (string, error)

	// RunSync creates a run and drives it to completion on the calling
	// goroutine. The returned run is a snapshot; the returned error is nil
	// even when the run failed (inspect Run.Status / Run.Err), matching
	// StartRun's error scoping. It is the building block for workers.
	RunSync(ctx context.Context, graphID string, initial State) (*Run, error)

	// GetRun returns a consistent snapshot of a run at any point in its
	// lifecycle, including after completion.
	GetRun(ctx context.Context, runID string) (*Run, error)

	// ListRuns returns run snapshots matching the given options.
	ListRuns(ctx context.Context, opts RunListOptions) ([]*Run, error)

	// CancelRun asks a live run to stop between steps. Cancellation is not
	// preemptive: a tool invocation already in flight finishes first. It is
	// a no-op on a terminal run.
	CancelRun(ctx context.Context, runID string) error

	// SubscribeLogs returns a live, per-subscriber-ordered stream of the
	// run's log entries. Delivery is best-effort: a slow subscriber drops
	// entries rather than blocking the run. The stream is closed once the
	// run is terminal and buffered entries have been handed over.
	SubscribeLogs(ctx context.Context, runID string, opts SubscribeOptions) (*Subscription, error)
}

// SubscribeOptions controls a log subscription.
type SubscribeOptions struct {
	// Replay delivers the entries already recorded before the subscription,
	// ahead of any live entries.
	Replay bool

	// Buffer is the per-subscriber channel capacity. Zero means a sensible
	// default. Entries beyond the buffer are dropped for that subscriber.
	Buffer int
}
