package taskqueue

import (
	"context"
	"time"

	"github.com/mhalonen/virta/pkg/api"
)

// Task is a request to start one graph run.
type Task struct {
	ID           string
	GraphID      string
	InitialState api.State
	EnqueuedAt   time.Time
}

// Queue is a simple async task queue interface.
type Queue interface {
	// Enqueue adds a task to the queue. It should respect ctx for cancellation.
	Enqueue(ctx context.Context, t Task) error

	// Dequeue removes and returns the next task, blocking until one is available
	// or the context is cancelled.
	Dequeue(ctx context.Context) (*Task, error)

	// Len returns the approximate number of tasks queued.
	Len() int
}
