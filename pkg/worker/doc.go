// Package worker processes queued run-start tasks against an Engine.
//
// Engine.StartRun launches a goroutine per run; the Worker is the bounded
// alternative: callers enqueue run starts, and a fixed pool of worker
// goroutines drains the queue, driving each run to completion with
// Engine.RunSync before picking up the next task. Use it when many runs are
// requested in bursts and their concurrency must be capped.
package worker
