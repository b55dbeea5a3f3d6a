package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mhalonen/virta/pkg/api"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("VIRTA_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VIRTA_POSTGRES_DSN not set; skipping PostgreSQL tests")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPostgresEngine_LoopGraph(t *testing.T) {
	db := newTestDB(t)

	eng, err := NewPostgresEngine(db)
	if err != nil {
		t.Fatalf("NewPostgresEngine failed: %v", err)
	}

	if err := eng.RegisterTool("increment", func(ctx context.Context, state api.State, meta api.Metadata) (api.State, error) {
		n, _ := state["count"].(int)
		state["count"] = n + 1
		return state, nil
	}); err != nil {
		t.Fatalf("RegisterTool failed: %v", err)
	}

	spec := api.GraphSpec{
		Nodes: []api.NodeSpec{{ID: "inc", Tool: "increment"}},
		Edges: []api.EdgeSpec{
			{From: "inc", To: "inc", Condition: &api.Condition{Key: "count", Op: api.OpLt, Value: 3}},
		},
	}
	id, err := eng.CreateGraph(spec)
	if err != nil {
		t.Fatalf("CreateGraph failed: %v", err)
	}

	run, err := eng.RunSync(context.Background(), id, api.State{"count": 0})
	if err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}
	if run.Status != api.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %q (err %v)", run.Status, run.Err)
	}

	// Query from persistent storage
	stored, err := eng.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got, ok := stored.State["count"].(float64); !ok || got != 3 {
		t.Fatalf("unexpected state from PostgreSQL: %v", stored.State)
	}
	if len(stored.Logs) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(stored.Logs))
	}
}
