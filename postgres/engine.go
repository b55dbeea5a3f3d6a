// Package postgres provides a PostgreSQL-backed engine and task queue.
package postgres

import (
	"database/sql"

	"github.com/mhalonen/virta/internal/engine"
	"github.com/mhalonen/virta/internal/persistence"
	"github.com/mhalonen/virta/pkg/api"

	pstore "github.com/mhalonen/virta/postgres/internal/persistence"
)

// NewPostgresEngine returns an Engine that persists graphs, runs, and run
// logs in PostgreSQL.
func NewPostgresEngine(db *sql.DB) (api.Engine, error) {
	return NewPostgresEngineWithObserver(db, nil)
}

// NewPostgresEngineWithObserver returns a Postgres-backed Engine with the given Observer.
func NewPostgresEngineWithObserver(db *sql.DB, obs api.Observer) (api.Engine, error) {
	store, err := pstore.NewPostgresStore(db)
	if err != nil {
		return nil, err
	}

	return engine.NewEngineWithConfig(engine.Config{
		Persistence: persistence.Persistence{
			Graphs: store,
			Runs:   store,
		},
		Observer: obs,
	}), nil
}
