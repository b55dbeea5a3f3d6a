package persistence

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	corep "github.com/mhalonen/virta/internal/persistence"
	"github.com/mhalonen/virta/pkg/api"
)

// PostgresStore is a GraphStore and RunStore backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver (for example,
// "github.com/jackc/pgx/v5/stdlib"). The caller is responsible for
// importing the driver for its side effects, e.g.:
//
//	import _ "github.com/jackc/pgx/v5/stdlib"
type PostgresStore struct {
	db *sql.DB
}

// Ensure PostgresStore implements the interfaces.
var _ corep.GraphStore = (*PostgresStore)(nil)

var _ corep.RunStore = (*PostgresStore)(nil)

// NewPostgresStore initializes the required schema in the given database and
// returns a new PostgresStore.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *PostgresStore) initSchema() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS graphs (
			id TEXT PRIMARY KEY,
			seq BIGSERIAL,
			spec BYTEA NOT NULL
		);
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			graph_id TEXT NOT NULL,
			status TEXT NOT NULL,
			current_node TEXT NOT NULL DEFAULT '',
			state BYTEA,
			metrics BYTEA,
			failure_kind TEXT NOT NULL DEFAULT '',
			failure_node TEXT NOT NULL DEFAULT '',
			failure_tool TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			started_at BIGINT NOT NULL DEFAULT 0,
			ended_at BIGINT NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS run_logs (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			at BIGINT NOT NULL,
			node_id TEXT NOT NULL DEFAULT '',
			state BYTEA,
			message TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_run_logs_run_id ON run_logs(run_id, id);
	`)
	return err
}

func (p *PostgresStore) SaveGraph(spec api.GraphSpec) error {
	data, err := corep.EncodeJSON(spec)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(`INSERT INTO graphs (id, spec) VALUES ($1, $2)`, spec.ID, data)
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return corep.ErrGraphExists
	}
	return err
}

func (p *PostgresStore) GetGraph(id string) (api.GraphSpec, error) {
	var data []byte
	err := p.db.QueryRow(`SELECT spec FROM graphs WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return api.GraphSpec{}, corep.ErrGraphNotFound
		}
		return api.GraphSpec{}, err
	}
	return corep.DecodeJSON[api.GraphSpec](data)
}

func (p *PostgresStore) ListGraphs() ([]api.GraphSpec, error) {
	rows, err := p.db.Query(`SELECT spec FROM graphs ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var specs []api.GraphSpec
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		spec, err := corep.DecodeJSON[api.GraphSpec](data)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, rows.Err()
}

func (p *PostgresStore) SaveRun(run *api.Run) error {
	state, metrics, err := encodeRunBlobs(run)
	if err != nil {
		return err
	}
	kind, node, tool, msg := corep.EncodeFailure(run.Err)

	_, err = p.db.Exec(`
		INSERT INTO runs (id, graph_id, status, current_node, state, metrics,
			failure_kind, failure_node, failure_tool, error, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		run.ID,
		run.GraphID,
		string(run.Status),
		run.CurrentNode,
		state,
		metrics,
		kind,
		node,
		tool,
		msg,
		timeToNanos(run.StartedAt),
		timeToNanos(run.EndedAt),
	)
	return err
}

func (p *PostgresStore) UpdateRun(run *api.Run) error {
	state, metrics, err := encodeRunBlobs(run)
	if err != nil {
		return err
	}
	kind, node, tool, msg := corep.EncodeFailure(run.Err)

	res, err := p.db.Exec(`
		UPDATE runs
		SET graph_id = $1, status = $2, current_node = $3, state = $4, metrics = $5,
			failure_kind = $6, failure_node = $7, failure_tool = $8, error = $9,
			started_at = $10, ended_at = $11
		WHERE id = $12`,
		run.GraphID,
		string(run.Status),
		run.CurrentNode,
		state,
		metrics,
		kind,
		node,
		tool,
		msg,
		timeToNanos(run.StartedAt),
		timeToNanos(run.EndedAt),
		run.ID,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return corep.ErrRunNotFound
	}
	return nil
}

func (p *PostgresStore) AppendLog(runID string, entry api.LogEntry) error {
	state, err := corep.EncodeJSON(entry.State)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(`
		INSERT INTO run_logs (run_id, at, node_id, state, message)
		VALUES ($1, $2, $3, $4, $5)`,
		runID,
		entry.At.UnixNano(),
		entry.NodeID,
		state,
		entry.Message,
	)
	return err
}

func (p *PostgresStore) GetRun(id string) (*api.Run, error) {
	row := p.db.QueryRow(`
		SELECT id, graph_id, status, current_node, state, metrics,
			failure_kind, failure_node, failure_tool, error, started_at, ended_at
		FROM runs
		WHERE id = $1`,
		id,
	)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, corep.ErrRunNotFound
		}
		return nil, err
	}

	logs, err := p.listLogs(id)
	if err != nil {
		return nil, err
	}
	run.Logs = logs
	return run, nil
}

func (p *PostgresStore) ListRuns(filter corep.RunFilter) ([]*api.Run, error) {
	query := `
		SELECT id, graph_id, status, current_node, state, metrics,
			failure_kind, failure_node, failure_tool, error, started_at, ended_at
		FROM runs`
	var args []any
	var clauses []string

	if filter.GraphID != "" {
		args = append(args, filter.GraphID)
		clauses = append(clauses, "graph_id = $1")
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		if len(args) == 1 {
			clauses = append(clauses, "status = $1")
		} else {
			clauses = append(clauses, "status = $2")
		}
	}
	if len(clauses) > 0 {
		query = query + " WHERE " + strings.Join(clauses, " AND ")
	}

	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*api.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, run := range runs {
		logs, err := p.listLogs(run.ID)
		if err != nil {
			return nil, err
		}
		run.Logs = logs
	}
	return runs, nil
}

func (p *PostgresStore) listLogs(runID string) ([]api.LogEntry, error) {
	rows, err := p.db.Query(`
		SELECT at, node_id, state, message
		FROM run_logs
		WHERE run_id = $1
		ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []api.LogEntry
	for rows.Next() {
		var (
			atN   int64
			node  string
			state []byte
			msg   string
		)
		if err := rows.Scan(&atN, &node, &state, &msg); err != nil {
			return nil, err
		}
		st, err := corep.DecodeJSON[api.State](state)
		if err != nil {
			return nil, err
		}
		logs = append(logs, api.LogEntry{
			At:      time.Unix(0, atN),
			NodeID:  node,
			State:   st,
			Message: msg,
		})
	}
	return logs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*api.Run, error) {
	var (
		run        api.Run
		statusStr  string
		state      []byte
		metrics    []byte
		kind       string
		failNode   string
		failTool   string
		msg        string
		startedAtN int64
		endedAtN   int64
	)
	if err := row.Scan(&run.ID, &run.GraphID, &statusStr, &run.CurrentNode,
		&state, &metrics, &kind, &failNode, &failTool, &msg, &startedAtN, &endedAtN); err != nil {
		return nil, err
	}

	run.Status = api.Status(statusStr)

	st, err := corep.DecodeJSON[api.State](state)
	if err != nil {
		return nil, err
	}
	run.State = st

	m, err := corep.DecodeJSON[map[string]api.NodeMetrics](metrics)
	if err != nil {
		return nil, err
	}
	run.Metrics = m

	run.Err = corep.DecodeFailure(kind, failNode, failTool, msg)
	run.StartedAt = nanosToTime(startedAtN)
	run.EndedAt = nanosToTime(endedAtN)
	return &run, nil
}

func encodeRunBlobs(run *api.Run) (state, metrics []byte, err error) {
	state, err = corep.EncodeJSON(run.State)
	if err != nil {
		return nil, nil, err
	}
	metrics, err = corep.EncodeJSON(run.Metrics)
	if err != nil {
		return nil, nil, err
	}
	return state, metrics, nil
}

func timeToNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func nanosToTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
