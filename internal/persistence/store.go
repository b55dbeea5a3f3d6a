package persistence

import (
	"errors"

	"github.com/mhalonen/virta/pkg/api"
)

var (
	// ErrGraphNotFound is returned when a graph id is not found.
	ErrGraphNotFound = errors.New("graph not found")

	// ErrGraphExists is returned when saving a graph under an id that is
	// already taken. Graphs are immutable once stored.
	ErrGraphExists = errors.New("graph already exists")

	// ErrRunNotFound is returned when a run id is not found.
	ErrRunNotFound = errors.New("run not found")
)

// GraphStore handles storage of immutable graph specs.
type GraphStore interface {
	SaveGraph(spec api.GraphSpec) error
	GetGraph(id string) (api.GraphSpec, error)
	ListGraphs() ([]api.GraphSpec, error)
}

// RunFilter is used to select runs from the store.
// Empty string / zero status mean "no filter" for that field.
type RunFilter struct {
	GraphID string
	Status  api.Status
}

// RunStore handles storage of runs and their append-only logs.
//
// UpdateRun persists every run field except Logs; log entries are written
// individually through AppendLog so they are never rewritten or reordered.
// GetRun and ListRuns return runs with their logs attached.
type RunStore interface {
	SaveRun(run *api.Run) error
	UpdateRun(run *api.Run) error
	AppendLog(runID string, entry api.LogEntry) error
	GetRun(id string) (*api.Run, error)
	ListRuns(filter RunFilter) ([]*api.Run, error)
}
