package virta

import (
	"context"
	"database/sql"

	"github.com/mhalonen/virta/internal/engine"
	"github.com/mhalonen/virta/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine               = api.Engine
	GraphSpec            = api.GraphSpec
	NodeSpec             = api.NodeSpec
	EdgeSpec             = api.EdgeSpec
	Condition            = api.Condition
	Op                   = api.Op
	State                = api.State
	Metadata             = api.Metadata
	ToolFunc             = api.ToolFunc
	Run                  = api.Run
	LogEntry             = api.LogEntry
	NodeMetrics          = api.NodeMetrics
	Status               = api.Status
	RunListOptions       = api.RunListOptions
	SubscribeOptions     = api.SubscribeOptions
	Subscription         = api.Subscription
	ValidationError      = api.ValidationError
	ToolExecutionError   = api.ToolExecutionError
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
)

// Re-export common observer helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

// Re-export the error values callers match with errors.Is.

var (
	ErrGraphNotFound     = api.ErrGraphNotFound
	ErrRunNotFound       = api.ErrRunNotFound
	ErrGraphExists       = api.ErrGraphExists
	ErrToolNotFound      = api.ErrToolNotFound
	ErrStepLimitExceeded = api.ErrStepLimitExceeded
)

// Re-export status values for convenience.

const (
	StatusPending   = api.StatusPending
	StatusRunning   = api.StatusRunning
	StatusCompleted = api.StatusCompleted
	StatusFailed    = api.StatusFailed
	StatusCancelled = api.StatusCancelled
)

// Re-export condition operators.

const (
	OpEq = api.OpEq
	OpNe = api.OpNe
	OpGt = api.OpGt
	OpLt = api.OpLt
	OpGe = api.OpGe
	OpLe = api.OpLe
)

// Engine constructors
// These wrap the internal/engine package so external callers
// never need to import internal packages.

// NewInMemoryEngine returns an Engine backed entirely by in-memory stores.
func NewInMemoryEngine() Engine {
	return engine.NewInMemoryEngine()
}

// NewInMemoryEngineWithObserver returns an in-memory Engine with the given Observer.
func NewInMemoryEngineWithObserver(obs Observer) Engine {
	return engine.NewInMemoryEngineWithObserver(obs)
}

// NewSQLiteEngine returns an Engine that persists graphs, runs, and run logs
// in a SQLite database.
func NewSQLiteEngine(db *sql.DB) (Engine, error) {
	return engine.NewSQLiteEngine(db)
}

// NewSQLiteEngineWithObserver returns a SQLite-backed Engine with the given Observer.
func NewSQLiteEngineWithObserver(db *sql.DB, obs Observer) (Engine, error) {
	return engine.NewSQLiteEngineWithObserver(db, obs)
}

// Convenience helpers that just forward to the underlying Engine.

// RegisterTool registers a callable under a unique name.
func RegisterTool(eng Engine, name string, fn ToolFunc) error {
	return eng.RegisterTool(name, fn)
}

// CreateGraph validates and stores a graph, returning its id.
func CreateGraph(eng Engine, spec GraphSpec) (string, error) {
	return eng.CreateGraph(spec)
}

// StartRun starts a run asynchronously and returns its id.
func StartRun(ctx context.Context, eng Engine, graphID string, initial State) (string, error) {
	return eng.StartRun(ctx, graphID, initial)
}

// RunSync drives a run to completion on the calling goroutine.
func RunSync(ctx context.Context, eng Engine, graphID string, initial State) (*Run, error) {
	return eng.RunSync(ctx, graphID, initial)
}

// GetRun fetches a run snapshot by id.
func GetRun(ctx context.Context, eng Engine, runID string) (*Run, error) {
	return eng.GetRun(ctx, runID)
}

// ListRuns lists run snapshots according to the given options.
func ListRuns(ctx context.Context, eng Engine, opts RunListOptions) ([]*Run, error) {
	return eng.ListRuns(ctx, opts)
}

// CancelRun asks a live run to stop between steps.
func CancelRun(ctx context.Context, eng Engine, runID string) error {
	return eng.CancelRun(ctx, runID)
}

// SubscribeLogs subscribes to the live log stream of a run.
func SubscribeLogs(ctx context.Context, eng Engine, runID string, opts SubscribeOptions) (*Subscription, error) {
	return eng.SubscribeLogs(ctx, runID, opts)
}
