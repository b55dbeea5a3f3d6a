package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mhalonen/virta/internal/broadcast"
	"github.com/mhalonen/virta/internal/persistence"
	"github.com/mhalonen/virta/pkg/api"
)

// DefaultMaxSteps bounds node executions per run when neither the graph nor
// the engine config sets a ceiling.
const DefaultMaxSteps = 1000

// engineImpl drives graph runs. Graphs and tools are read-only once
// registered; each run is mutated only by the goroutine executing it.
type engineImpl struct {
	graphs   persistence.GraphStore
	runs     persistence.RunStore
	tools    *toolRegistry
	observer api.Observer
	bcast    *broadcast.Broadcaster
	maxSteps int

	mu     sync.Mutex // guards active
	active map[string]context.CancelFunc
}

// Config describes how to construct an engineImpl.
// Only used inside this package; external callers use the helper functions.
type Config struct {
	Persistence persistence.Persistence
	Observer    api.Observer

	// MaxSteps is the default step ceiling for graphs that do not set their
	// own. Zero means DefaultMaxSteps.
	MaxSteps int
}

func NewInMemoryEngine() api.Engine {
	mem := persistence.NewInMemoryStore()
	return NewEngine(persistence.Persistence{
		Graphs: mem,
		Runs:   mem,
	})
}

// NewInMemoryEngineWithObserver returns an in-memory Engine with the given Observer.
func NewInMemoryEngineWithObserver(obs api.Observer) api.Engine {
	mem := persistence.NewInMemoryStore()
	return NewEngineWithConfig(Config{
		Persistence: persistence.Persistence{Graphs: mem, Runs: mem},
		Observer:    obs,
	})
}

func NewSQLiteEngine(db *sql.DB) (api.Engine, error) {
	return NewSQLiteEngineWithObserver(db, nil)
}

// NewSQLiteEngineWithObserver returns a SQLite-backed Engine with the given Observer.
func NewSQLiteEngineWithObserver(db *sql.DB, obs api.Observer) (api.Engine, error) {
	store, err := persistence.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	return NewEngineWithConfig(Config{
		Persistence: persistence.Persistence{Graphs: store, Runs: store},
		Observer:    obs,
	}), nil
}

// NewEngineWithConfig creates a new Engine using the given configuration.
func NewEngineWithConfig(cfg Config) api.Engine {
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &engineImpl{
		graphs:   cfg.Persistence.Graphs,
		runs:     cfg.Persistence.Runs,
		tools:    newToolRegistry(),
		observer: obs,
		bcast:    broadcast.New(),
		maxSteps: maxSteps,
		active:   make(map[string]context.CancelFunc),
	}
}

// NewEngine returns an Engine backed by the given persistence bundle.
// External users access this via virta.NewInMemoryEngine and friends.
func NewEngine(p persistence.Persistence) api.Engine {
	return NewEngineWithConfig(Config{
		Persistence: p,
	})
}

func (e *engineImpl) RegisterTool(name string, fn api.ToolFunc) error {
	return e.tools.Register(name, fn)
}

func (e *engineImpl) CreateGraph(spec api.GraphSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}

	if spec.ID == "" {
		spec.ID = uuid.NewString()
	}
	if err := e.graphs.SaveGraph(spec); err != nil {
		if errors.Is(err, persistence.ErrGraphExists) {
			return "", fmt.Errorf("%w: %s", api.ErrGraphExists, spec.ID)
		}
		return "", err
	}
	return spec.ID, nil
}

func (e *engineImpl) ListGraphs(ctx context.Context) ([]api.GraphSpec, error) {
	return e.graphs.ListGraphs()
}

func (e *engineImpl) StartRun(ctx context.Context, graphID string, initial api.State) (string, error) {
	spec, run, err := e.newRun(graphID, initial)
	if err != nil {
		return "", err
	}

	// The run outlives the StartRun call: detach from the caller's
	// cancellation but keep its values.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.mu.Lock()
	e.active[run.ID] = cancel
	e.mu.Unlock()

	go e.executeRun(runCtx, spec, run)
	return run.ID, nil
}

func (e *engineImpl) RunSync(ctx context.Context, graphID string, initial api.State) (*api.Run, error) {
	spec, run, err := e.newRun(graphID, initial)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.active[run.ID] = cancel
	e.mu.Unlock()

	return e.executeRun(runCtx, spec, run), nil
}

// newRun resolves the graph and persists a pending run record.
func (e *engineImpl) newRun(graphID string, initial api.State) (api.GraphSpec, *api.Run, error) {
	spec, err := e.graphs.GetGraph(graphID)
	if err != nil {
		if errors.Is(err, persistence.ErrGraphNotFound) {
			return api.GraphSpec{}, nil, fmt.Errorf("%w: %s", api.ErrGraphNotFound, graphID)
		}
		return api.GraphSpec{}, nil, err
	}

	run := &api.Run{
		ID:      uuid.NewString(),
		GraphID: graphID,
		Status:  api.StatusPending,
		State:   initial.Clone(),
	}
	if err := e.runs.SaveRun(run); err != nil {
		return api.GraphSpec{}, nil, err
	}

	e.bcast.Open(run.ID)
	return spec, run, nil
}

func (e *engineImpl) GetRun(ctx context.Context, runID string) (*api.Run, error) {
	run, err := e.runs.GetRun(runID)
	if err != nil {
		if errors.Is(err, persistence.ErrRunNotFound) {
			return nil, fmt.Errorf("%w: %s", api.ErrRunNotFound, runID)
		}
		return nil, err
	}
	return run, nil
}

func (e *engineImpl) ListRuns(ctx context.Context, opts api.RunListOptions) ([]*api.Run, error) {
	return e.runs.ListRuns(persistence.RunFilter{
		GraphID: opts.GraphID,
		Status:  opts.Status,
	})
}

func (e *engineImpl) CancelRun(ctx context.Context, runID string) error {
	e.mu.Lock()
	cancel, ok := e.active[runID]
	e.mu.Unlock()
	if ok {
		cancel()
		return nil
	}

	// Not active here: terminal runs are a no-op, unknown ids an error.
	if _, err := e.GetRun(ctx, runID); err != nil {
		return err
	}
	return nil
}

func (e *engineImpl) SubscribeLogs(ctx context.Context, runID string, opts api.SubscribeOptions) (*api.Subscription, error) {
	if _, err := e.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	if sub, ok := e.bcast.Subscribe(runID, opts.Replay, opts.Buffer); ok {
		return sub, nil
	}

	// The run is already terminal: the stream is just the recorded history
	// (when replay is requested), immediately closed.
	run, err := e.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	var logs []api.LogEntry
	if opts.Replay {
		logs = run.Logs
	}
	ch := make(chan api.LogEntry, len(logs))
	for _, entry := range logs {
		ch <- entry
	}
	close(ch)
	return api.NewSubscription(ch, nil), nil
}

// finishRun releases the bookkeeping of a terminal run.
func (e *engineImpl) finishRun(runID string) {
	e.mu.Lock()
	if cancel, ok := e.active[runID]; ok {
		delete(e.active, runID)
		cancel()
	}
	e.mu.Unlock()

	e.bcast.Close(runID)
}
