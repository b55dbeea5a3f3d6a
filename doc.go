// Package virta provides a lightweight, embeddable graph workflow engine
// for Go.
//
// A workflow is a directed graph of named nodes. Each node is bound to a
// registered tool: an opaque function that receives the run's shared state
// and returns its replacement. Conditional edges select the next node after
// every step, cycles are allowed, and a step ceiling guarantees every run
// terminates. Virta runs fully in Go with in-memory or SQLite persistence
// and integrates cleanly into existing codebases.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. Engine
//  2. GraphBuilder
//  3. ToolFunc
//  4. Run
//  5. LocalRunner
//
// # Engine
//
// The Engine owns the tool registry, stores immutable graph definitions,
// tracks runs, and provides APIs to:
//   - register tools and graphs
//   - start runs asynchronously
//   - read run state and logs at any point of the lifecycle
//   - subscribe to the live log stream of a run
//   - cancel a run between steps
//
// Engines can be backed by different storage systems:
//
//   - In-memory (non-durable, best for tests)
//   - SQLite (embedded durability)
//   - Postgres (separate virta/postgres module)
//
// Engines are safe for concurrent use: graphs and tools are read-only after
// registration, and each run is mutated only by the goroutine driving it.
//
// # GraphBuilder
//
// GraphBuilder provides the ergonomic, declarative API used to define
// graphs:
//
//	graph := virta.NewGraph("triage").
//	    Node("profile", "profile_data", nil).
//	    Node("fix", "apply_rules", virta.Metadata{"required": []string{"id"}}).
//	    EdgeIf("profile", "fix", "anomaly_count", virta.OpGt, 0).
//	    Edge("fix", "profile")
//
// Edges out of a node are evaluated in declaration order against the state
// as updated by the node's tool; the first match wins, and an edge without
// a condition always matches. When no edge matches, the run completes.
//
// # ToolFunc
//
// A ToolFunc is the unit of work bound to a node:
//
//	type ToolFunc func(ctx context.Context, state State, meta Metadata) (State, error)
//
// Tools receive a private copy of the state and return the full replacement.
// A tool error fails its run; tool errors are never retried.
//
// # Run
//
// Every started run executes on its own goroutine and carries its own state,
// status, per-node metrics, and an append-only execution log. Failures are
// scoped to one run and are observed through GetRun or a log subscription,
// never through StartRun's return value.
//
// # LocalRunner
//
// LocalRunner bundles an in-memory engine, a task queue, and a worker pool
// into a single process-local helper, for development and for workloads
// where run concurrency must be capped.
//
// For runnable programs, see the examples directory.
package virta
