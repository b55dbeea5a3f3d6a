package persistence

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mhalonen/virta/pkg/api"
)

// SQLiteStore is a GraphStore and RunStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db *sql.DB
}

// Ensure SQLiteStore implements the interfaces.
var _ GraphStore = (*SQLiteStore)(nil)

var _ RunStore = (*SQLiteStore)(nil)

// NewSQLiteStore initializes the required schema in the given database and
// returns a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS graphs (
			id TEXT PRIMARY KEY,
			spec BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			graph_id TEXT NOT NULL,
			status TEXT NOT NULL,
			current_node TEXT NOT NULL DEFAULT '',
			state BLOB,
			metrics BLOB,
			failure_kind TEXT NOT NULL DEFAULT '',
			failure_node TEXT NOT NULL DEFAULT '',
			failure_tool TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL DEFAULT 0,
			ended_at INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS run_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			at INTEGER NOT NULL,
			node_id TEXT NOT NULL DEFAULT '',
			state BLOB,
			message TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_run_logs_run_id ON run_logs(run_id, id);`,
	)
	return err
}

func (s *SQLiteStore) SaveGraph(spec api.GraphSpec) error {
	data, err := EncodeJSON(spec)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`INSERT INTO graphs (id, spec) VALUES (?, ?)`, spec.ID, data)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint") {
		return ErrGraphExists
	}
	return err
}

func (s *SQLiteStore) GetGraph(id string) (api.GraphSpec, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT spec FROM graphs WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return api.GraphSpec{}, ErrGraphNotFound
		}
		return api.GraphSpec{}, err
	}
	return DecodeJSON[api.GraphSpec](data)
}

func (s *SQLiteStore) ListGraphs() ([]api.GraphSpec, error) {
	rows, err := s.db.Query(`SELECT spec FROM graphs ORDER BY rowid ASC`)
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
		spec, err := DecodeJSON[api.GraphSpec](data)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, rows.Err()
}

func (s *SQLiteStore) SaveRun(run *api.Run) error {
	state, metrics, err := encodeRunBlobs(run)
	if err != nil {
		return err
	}
	kind, node, tool, msg := EncodeFailure(run.Err)

	_, err = s.db.Exec(`
		INSERT INTO runs (id, graph_id, status, current_node, state, metrics,
			failure_kind, failure_node, failure_tool, error, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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

func (s *SQLiteStore) UpdateRun(run *api.Run) error {
	state, metrics, err := encodeRunBlobs(run)
	if err != nil {
		return err
	}
	kind, node, tool, msg := EncodeFailure(run.Err)

	res, err := s.db.Exec(`
		UPDATE runs
		SET graph_id = ?, status = ?, current_node = ?, state = ?, metrics = ?,
			failure_kind = ?, failure_node = ?, failure_tool = ?, error = ?,
			started_at = ?, ended_at = ?
		WHERE id = ?`,
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
		return ErrRunNotFound
	}
	return nil
}

func (s *SQLiteStore) AppendLog(runID string, entry api.LogEntry) error {
	state, err := EncodeJSON(entry.State)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO run_logs (run_id, at, node_id, state, message)
		VALUES (?, ?, ?, ?, ?)`,
		runID,
		entry.At.UnixNano(),
		entry.NodeID,
		state,
		entry.Message,
	)
	return err
}

func (s *SQLiteStore) GetRun(id string) (*api.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, graph_id, status, current_node, state, metrics,
			failure_kind, failure_node, failure_tool, error, started_at, ended_at
		FROM runs
		WHERE id = ?`,
		id,
	)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	logs, err := s.listLogs(id)
	if err != nil {
		return nil, err
	}
	run.Logs = logs
	return run, nil
}

func (s *SQLiteStore) ListRuns(filter RunFilter) ([]*api.Run, error) {
	query := `
		SELECT id, graph_id, status, current_node, state, metrics,
			failure_kind, failure_node, failure_tool, error, started_at, ended_at
		FROM runs`
	var args []any
	var clauses []string

	if filter.GraphID != "" {
		clauses = append(clauses, "graph_id = ?")
		args = append(args, filter.GraphID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(clauses) > 0 {
		query = query + " WHERE " + strings.Join(clauses, " AND ")
	}

	rows, err := s.db.Query(query, args...)
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
		logs, err := s.listLogs(run.ID)
		if err != nil {
			return nil, err
		}
		run.Logs = logs
	}
	return runs, nil
}

func (s *SQLiteStore) listLogs(runID string) ([]api.LogEntry, error) {
	rows, err := s.db.Query(`
		SELECT at, node_id, state, message
		FROM run_logs
		WHERE run_id = ?
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
		st, err := DecodeJSON[api.State](state)
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

	st, err := DecodeJSON[api.State](state)
	if err != nil {
		return nil, err
	}
	run.State = st

	m, err := DecodeJSON[map[string]api.NodeMetrics](metrics)
	if err != nil {
		return nil, err
	}
	run.Metrics = m

	run.Err = DecodeFailure(kind, failNode, failTool, msg)
	run.StartedAt = nanosToTime(startedAtN)
	run.EndedAt = nanosToTime(endedAtN)
	return &run, nil
}

func encodeRunBlobs(run *api.Run) (state, metrics []byte, err error) {
	state, err = EncodeJSON(run.State)
	if err != nil {
		return nil, nil, err
	}
	metrics, err = EncodeJSON(run.Metrics)
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
