package api

import "time"

// Status represents the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether the status is final. A run never leaves a
// terminal status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// LogEntry records one node execution (or a terminal event) within a run.
// Entries are append-only and totally ordered by execution order.
type LogEntry struct {
	At      time.Time `json:"at"`
	NodeID  string    `json:"node_id"`
	State   State     `json:"state"`
	Message string    `json:"message"`
}

// NodeMetrics aggregates the executions of one node within a run.
type NodeMetrics struct {
	Visits   int           `json:"visits"`
	Duration time.Duration `json:"duration"`
}

// Run is one execution instance of a graph. Its mutable fields are written
// only by the goroutine driving the run; engines hand out snapshots, never
// the live record.
type Run struct {
	ID      string `json:"id"`
	GraphID string `json:"graph_id"`
	Status  Status `json:"status"`

	// CurrentNode is the node being executed, empty once the run is terminal.
	CurrentNode string `json:"current_node,omitempty"`

	State   State                  `json:"state"`
	Logs    []LogEntry             `json:"logs"`
	Metrics map[string]NodeMetrics `json:"metrics,omitempty"`

	// Err is set when Status is StatusFailed. Use errors.Is / errors.As to
	// distinguish ErrStepLimitExceeded from a *ToolExecutionError.
	Err error `json:"-"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
}

// Clone returns a snapshot of the run that is safe to hand to other
// goroutines. Log entries hold state snapshots that are never mutated after
// append, so the entries themselves can be shared.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	out := *r
	out.State = r.State.Clone()
	out.Logs = append([]LogEntry(nil), r.Logs...)
	if r.Metrics != nil {
		out.Metrics = make(map[string]NodeMetrics, len(r.Metrics))
		for k, v := range r.Metrics {
			out.Metrics[k] = v
		}
	}
	return &out
}

// RunListOptions controls how runs are listed. Zero values mean "no filter".
type RunListOptions struct {
	// GraphID, if non-empty, limits results to runs of the given graph.
	GraphID string

	// Status, if non-empty, limits results to runs with the given status.
	Status Status
}
