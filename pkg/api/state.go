package api

import "strings"

// State is the shared record a run threads through its nodes. Every tool
// invocation receives its own copy and returns the full replacement state;
// the engine swaps the state wholesale after each node, so a logged snapshot
// is never mutated by a later step.
type State map[string]any

// Metadata is the per-node configuration passed to a tool alongside the state.
type Metadata map[string]any

// Clone returns a shallow copy of the state. Top-level keys are independent;
// nested collections are shared, so tools must replace (not mutate) any
// nested value they change.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Lookup resolves key against the state. Dotted keys traverse nested
// map[string]any / State values ("profile.row_count"). It returns
// (nil, false) when any segment is missing or a non-map value is traversed.
func (s State) Lookup(key string) (any, bool) {
	if key == "" {
		return nil, false
	}
	var cur any = map[string]any(s)
	for _, part := range strings.Split(key, ".") {
		switch m := cur.(type) {
		case map[string]any:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		case State:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}
