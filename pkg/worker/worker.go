package worker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mhalonen/virta/internal/taskqueue"
	"github.com/mhalonen/virta/pkg/api"
)

// Worker pulls run-start tasks from a Queue and executes them on an Engine.
type Worker struct {
	engine api.Engine
	queue  taskqueue.Queue
}

// New creates a new Worker.
func New(engine api.Engine, queue taskqueue.Queue) *Worker {
	return &Worker{
		engine: engine,
		queue:  queue,
	}
}

// EnqueueStartRun enqueues a task to start a run of the given graph.
// It does NOT run the graph itself; that is done by ProcessOne.
func (w *Worker) EnqueueStartRun(ctx context.Context, graphID string, initial api.State) error {
	t := taskqueue.Task{
		ID:           uuid.NewString(),
		GraphID:      graphID,
		InitialState: initial,
		EnqueuedAt:   time.Now(),
	}
	return w.queue.Enqueue(ctx, t)
}

// ProcessOne pulls a single task from the queue and drives the run to a
// terminal status on the calling goroutine.
// Returns (processed, error):
//   - processed == false, err != nil: no task obtained (ctx cancelled or dequeue failed)
//   - processed == true: a task was processed; err reports a setup failure
//     such as an unknown graph id. A run that merely failed is not an error
//     here; its failure lives in the run record.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	task, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	_, runErr := w.engine.RunSync(ctx, task.GraphID, task.InitialState)
	return true, runErr
}
