package taskqueue

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	corep "github.com/mhalonen/virta/internal/persistence"
	coreq "github.com/mhalonen/virta/internal/taskqueue"
	"github.com/mhalonen/virta/pkg/api"
)

// PostgresQueue implements Queue using a PostgreSQL table.
//
// Schema (created automatically if missing):
//
//	CREATE TABLE IF NOT EXISTS queue_tasks (
//	    id            TEXT PRIMARY KEY,
//	    graph_id      TEXT NOT NULL,
//	    initial_state BYTEA,
//	    enqueued_at   TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//
// The queue is FIFO by enqueued_at.
type PostgresQueue struct {
	db *sql.DB
}

// NewPostgresQueue creates the required schema if needed and returns a Queue.
func NewPostgresQueue(db *sql.DB) (*PostgresQueue, error) {
	q := &PostgresQueue{db: db}
	if err := q.initSchema(); err != nil {
		return nil, err
	}
	return q, nil
}

// Ensure PostgresQueue implements Queue.
var _ coreq.Queue = (*PostgresQueue)(nil)

func (q *PostgresQueue) initSchema() error {
	_, err := q.db.Exec(`
		CREATE TABLE IF NOT EXISTS queue_tasks (
			id            TEXT PRIMARY KEY,
			graph_id      TEXT NOT NULL,
			initial_state BYTEA,
			enqueued_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}

// Enqueue inserts a task into the queue.
func (q *PostgresQueue) Enqueue(ctx context.Context, t coreq.Task) error {
	state, err := corep.EncodeJSON(t.InitialState)
	if err != nil {
		return err
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO queue_tasks (id, graph_id, initial_state)
		VALUES ($1, $2, $3)
	`, t.ID, t.GraphID, state)
	return err
}

// Dequeue blocks (with polling) until a task is available or ctx is cancelled.
//
// It claims a single row with SELECT ... FOR UPDATE SKIP LOCKED and deletes
// it in the same transaction, so concurrent workers never claim the same
// task twice.
func (q *PostgresQueue) Dequeue(ctx context.Context) (*coreq.Task, error) {
	tmr := time.NewTimer(0)
	if !tmr.Stop() {
		select {
		case <-tmr.C:
		default:
		}
	}
	defer tmr.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		task, err := q.claimOne(ctx)
		if err != nil {
			return nil, err
		}
		if task != nil {
			return task, nil
		}

		// Nothing available yet; wait a bit and retry.
		tmr.Reset(100 * time.Millisecond)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-tmr.C:
		}
	}
}

func (q *PostgresQueue) claimOne(ctx context.Context) (*coreq.Task, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	var (
		id         string
		graphID    string
		state      []byte
		enqueuedAt time.Time
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, graph_id, initial_state, enqueued_at
		FROM queue_tasks
		ORDER BY enqueued_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`).Scan(&id, &graphID, &state, &enqueuedAt)
	if err != nil {
		_ = tx.Rollback()
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM queue_tasks
		WHERE id = $1
	`, id); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	initial, err := corep.DecodeJSON[api.State](state)
	if err != nil {
		return nil, fmt.Errorf("decode task %q failed: %w", id, err)
	}
	return &coreq.Task{
		ID:           id,
		GraphID:      graphID,
		InitialState: initial,
		EnqueuedAt:   enqueuedAt,
	}, nil
}

// Len returns an approximate number of queued tasks.
func (q *PostgresQueue) Len() int {
	var n int
	if err := q.db.QueryRow(`SELECT COUNT(*) FROM queue_tasks`).Scan(&n); err != nil {
		log.Printf("PostgresQueue: Len failed: %v", err)
		return 0
	}
	return n
}
