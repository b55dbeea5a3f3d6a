package postgres

import (
	"database/sql"

	"github.com/mhalonen/virta/internal/taskqueue"
	pqueue "github.com/mhalonen/virta/postgres/internal/taskqueue"
)

// NewPostgresQueue returns a durable task queue backed by a PostgreSQL table.
func NewPostgresQueue(db *sql.DB) (taskqueue.Queue, error) {
	return pqueue.NewPostgresQueue(db)
}
