package taskqueue

import (
	"context"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := NewInMemoryQueue(4)
	ctx := context.Background()

	for _, id := range []string{"t-1", "t-2", "t-3"} {
		if err := q.Enqueue(ctx, Task{ID: id}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("expected length 3, got %d", q.Len())
	}

	for _, want := range []string{"t-1", "t-2", "t-3"} {
		task, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue failed: %v", err)
		}
		if task.ID != want {
			t.Fatalf("expected %s, got %s", want, task.ID)
		}
	}
}

func TestDequeueBlocksUntilCancelled(t *testing.T) {
	q := NewInMemoryQueue(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Dequeue(ctx); err == nil {
		t.Fatalf("expected context error from empty queue")
	}
}

func TestEnqueueRespectsCancellationWhenFull(t *testing.T) {
	q := NewInMemoryQueue(1)
	ctx := context.Background()

	if err := q.Enqueue(ctx, Task{ID: "t-1"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	full, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(full, Task{ID: "t-2"}); err == nil {
		t.Fatalf("expected context error on full queue")
	}
}
