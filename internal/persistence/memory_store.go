package persistence

import (
	"sync"

	"github.com/mhalonen/virta/pkg/api"
)

// InMemoryStore is a simple, goroutine-safe implementation of
// GraphStore and RunStore backed by maps.
//
// It stores snapshots: runs are cloned on the way in and on the way out, so
// a reader never observes a partially-written update from the goroutine
// driving the run.
type InMemoryStore struct {
	mu     sync.RWMutex
	graphs map[string]api.GraphSpec
	order  []string // graph insertion order, for deterministic listing
	runs   map[string]*api.Run
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		graphs: make(map[string]api.GraphSpec),
		runs:   make(map[string]*api.Run),
	}
}

// Ensure InMemoryStore implements the interfaces.
var _ GraphStore = (*InMemoryStore)(nil)

var _ RunStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) SaveGraph(spec api.GraphSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.graphs[spec.ID]; ok {
		return ErrGraphExists
	}
	s.graphs[spec.ID] = spec
	s.order = append(s.order, spec.ID)
	return nil
}

func (s *InMemoryStore) GetGraph(id string) (api.GraphSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	spec, ok := s.graphs[id]
	if !ok {
		return api.GraphSpec{}, ErrGraphNotFound
	}
	return spec, nil
}

func (s *InMemoryStore) ListGraphs() ([]api.GraphSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]api.GraphSpec, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.graphs[id])
	}
	return out, nil
}

func (s *InMemoryStore) SaveRun(run *api.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run.Clone()
	return nil
}

func (s *InMemoryStore) UpdateRun(run *api.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.runs[run.ID]
	if !ok {
		return ErrRunNotFound
	}

	// Logs are owned by AppendLog; keep the stored sequence.
	logs := stored.Logs
	updated := run.Clone()
	updated.Logs = logs
	s.runs[run.ID] = updated
	return nil
}

func (s *InMemoryStore) AppendLog(runID string, entry api.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	stored.Logs = append(stored.Logs, entry)
	return nil
}

func (s *InMemoryStore) GetRun(id string) (*api.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run.Clone(), nil
}

func (s *InMemoryStore) ListRuns(filter RunFilter) ([]*api.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*api.Run
	for _, run := range s.runs {
		if filter.GraphID != "" && run.GraphID != filter.GraphID {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		result = append(result, run.Clone())
	}
	return result, nil
}
