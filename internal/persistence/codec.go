package persistence

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mhalonen/virta/pkg/api"
)

// Failure kinds persisted alongside a failed run so the typed error can be
// rebuilt on load. Callers rely on errors.Is / errors.As to tell a step-limit
// failure from a tool failure, and that must survive a round trip through
// the database.
const (
	failureNone         = ""
	failureTool         = "tool"
	failureToolNotFound = "tool_not_found"
	failureStepLimit    = "step_limit"
)

// EncodeJSON marshals v, mapping nil to a NULL-able empty value.
func EncodeJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// DecodeJSON unmarshals data into a fresh T; empty input yields the zero T.
func DecodeJSON[T any](data []byte) (T, error) {
	var out T
	if len(data) == 0 {
		return out, nil
	}
	err := json.Unmarshal(data, &out)
	return out, err
}

// EncodeFailure flattens a run error into (kind, node, tool, message).
func EncodeFailure(err error) (kind, node, tool, msg string) {
	if err == nil {
		return failureNone, "", "", ""
	}

	var te *api.ToolExecutionError
	if errors.As(err, &te) {
		if errors.Is(te.Err, api.ErrToolNotFound) {
			return failureToolNotFound, te.NodeID, te.Tool, te.Err.Error()
		}
		return failureTool, te.NodeID, te.Tool, te.Err.Error()
	}
	if errors.Is(err, api.ErrStepLimitExceeded) {
		return failureStepLimit, "", "", err.Error()
	}
	return failureTool, "", "", err.Error()
}

// DecodeFailure rebuilds the run error persisted by EncodeFailure.
func DecodeFailure(kind, node, tool, msg string) error {
	switch kind {
	case failureNone:
		return nil
	case failureToolNotFound:
		return &api.ToolExecutionError{NodeID: node, Tool: tool, Err: api.ErrToolNotFound}
	case failureStepLimit:
		return &wrappedErr{msg: msg, base: api.ErrStepLimitExceeded}
	default:
		return &api.ToolExecutionError{NodeID: node, Tool: tool, Err: errors.New(msg)}
	}
}

// wrappedErr preserves a persisted message while still matching its base
// sentinel via errors.Is.
type wrappedErr struct {
	msg  string
	base error
}

func (e *wrappedErr) Error() string {
	if e.msg == "" {
		return fmt.Sprintf("%v", e.base)
	}
	return e.msg
}

func (e *wrappedErr) Unwrap() error { return e.base }
